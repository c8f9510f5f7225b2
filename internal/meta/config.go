package meta

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v2"

	"github.com/myuser/graphstore/internal/keys"
)

// SpaceConfig is the YAML shape of one space declaration.
type SpaceConfig struct {
	Name      string           `yaml:"name"`
	ID        int32            `yaml:"id"`
	Retention string           `yaml:"retention"` // "single" or "multi"
	EdgeTypes []EdgeTypeConfig `yaml:"edgeTypes"`
}

// EdgeTypeConfig declares one edge type of a space.
type EdgeTypeConfig struct {
	Name string `yaml:"name"`
	ID   int32  `yaml:"id"`
}

type spacesFile struct {
	Spaces []SpaceConfig `yaml:"spaces"`
}

// LoadSpaces reads YAML space declarations and returns a populated
// schema manager. Used at node bootstrap in place of a meta service.
func LoadSpaces(r io.Reader) (*AdHocSchemaManager, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read spaces config: %w", err)
	}

	var f spacesFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse spaces config: %w", err)
	}
	return BuildSpaces(f.Spaces)
}

// BuildSpaces populates a schema manager from parsed declarations.
func BuildSpaces(spaces []SpaceConfig) (*AdHocSchemaManager, error) {
	mgr := NewAdHocSchemaManager()
	for _, sc := range spaces {
		var mode RetentionMode
		switch sc.Retention {
		case "single", "":
			mode = SingleVersion
		case "multi":
			mode = MultiVersion
		default:
			return nil, fmt.Errorf("space %q: unknown retention %q", sc.Name, sc.Retention)
		}
		space := keys.SpaceID(sc.ID)
		mgr.AddSpace(space, mode)
		for _, et := range sc.EdgeTypes {
			if et.ID == 0 {
				return nil, fmt.Errorf("space %q: edge type %q: id must be non-zero", sc.Name, et.Name)
			}
			if err := mgr.AddEdgeType(space, keys.EdgeType(et.ID), et.Name); err != nil {
				return nil, err
			}
		}
	}
	return mgr, nil
}
