package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v2"

	"github.com/myuser/graphstore/internal/keys"
	"github.com/myuser/graphstore/internal/meta"
	"github.com/myuser/graphstore/internal/processor"
	"github.com/myuser/graphstore/internal/storage"
	"github.com/myuser/graphstore/internal/version"
)

// Config is the node's YAML configuration. Spaces declared here stand
// in for a meta service in single-node deployments.
type Config struct {
	Listen     string `yaml:"listen"`
	Engine     string `yaml:"engine"`    // "memory" or "badger"
	DataDir    string `yaml:"dataDir"`   // ignored for pure in-memory
	SyncWrites bool   `yaml:"syncWrites"`
	Allocator  string `yaml:"allocator"` // "counter" or "clock"

	Spaces []meta.SpaceConfig `yaml:"spaces"`
}

func loadConfig(path string) (Config, error) {
	cfg := Config{
		Listen:    ":9001",
		Engine:    "memory",
		Allocator: "counter",
	}
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func openEngine(cfg Config) (storage.Engine, error) {
	switch cfg.Engine {
	case "memory":
		if cfg.DataDir == "" {
			return storage.NewMemoryStore(), nil
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, err
		}
		return storage.OpenMemoryStore(filepath.Join(cfg.DataDir, "edges.wal"))
	case "badger":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("badger engine requires dataDir")
		}
		return storage.OpenBadgerStore(storage.BadgerConfig{
			Dir:        cfg.DataDir,
			SyncWrites: cfg.SyncWrites,
		})
	default:
		return nil, fmt.Errorf("unknown engine %q", cfg.Engine)
	}
}

func main() {
	configPath := flag.String("config", "", "Path to YAML config")
	listen := flag.String("listen", "", "Listen address (overrides config)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	if *debug {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("could not load config")
	}
	if *listen != "" {
		cfg.Listen = *listen
	}

	// Space configuration. With no declared spaces, a default
	// single-version space 0 with edge type 1 keeps dev setups working.
	var schema *meta.AdHocSchemaManager
	if len(cfg.Spaces) > 0 {
		schema, err = meta.BuildSpaces(cfg.Spaces)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid space configuration")
		}
	} else {
		schema = meta.NewAdHocSchemaManager()
		schema.AddSpace(0, meta.SingleVersion)
		if err := schema.AddEdgeType(0, 1, "default"); err != nil {
			log.Fatal().Err(err).Msg("default space setup failed")
		}
	}

	engine, err := openEngine(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("could not open storage engine")
	}
	defer engine.Close()

	var alloc version.Allocator
	switch cfg.Allocator {
	case "clock":
		alloc = version.NewClockAllocator()
	default:
		alloc = version.NewCounterAllocator()
	}

	proc := processor.New(engine, schema, alloc, log.Logger)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/edges/add", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST only", http.StatusMethodNotAllowed)
			return
		}
		var req processor.AddEdgesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("bad request: %v", err), http.StatusBadRequest)
			return
		}
		res := proc.Process(req).Wait()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(res)
	})

	mux.HandleFunc("/edges/scan", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		space, err1 := strconv.ParseInt(q.Get("space"), 10, 32)
		part, err2 := strconv.ParseInt(q.Get("part"), 10, 32)
		src, err3 := strconv.ParseInt(q.Get("src"), 10, 64)
		edgeType, err4 := strconv.ParseInt(q.Get("edgeType"), 10, 32)
		for _, e := range []error{err1, err2, err3, err4} {
			if e != nil {
				http.Error(w, "space, part, src, edgeType are required integers", http.StatusBadRequest)
				return
			}
		}

		prefix := keys.EdgePrefix(keys.PartitionID(part), keys.VertexID(src), keys.EdgeType(edgeType))
		iter, err := engine.ScanPrefix(keys.SpaceID(space), keys.PartitionID(part), prefix)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer iter.Close()

		type record struct {
			Src     keys.VertexID    `json:"src"`
			Type    keys.EdgeType    `json:"edgeType"`
			Ranking keys.EdgeRanking `json:"ranking"`
			Dst     keys.VertexID    `json:"dst"`
			Props   []byte           `json:"props"`
		}
		records := []record{}
		for ; iter.Valid(); iter.Next() {
			_, s, et, rank, dst, _, err := keys.Decode(iter.Key())
			if err != nil {
				continue
			}
			records = append(records, record{
				Src: s, Type: et, Ranking: rank, Dst: dst,
				Props: append([]byte(nil), iter.Value()...),
			})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(records)
	})

	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("listen", cfg.Listen).Str("engine", cfg.Engine).Msg("graphstore node up")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("interrupt: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}
