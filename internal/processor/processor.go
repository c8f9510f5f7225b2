package processor

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/myuser/graphstore/internal/keys"
	"github.com/myuser/graphstore/internal/meta"
	"github.com/myuser/graphstore/internal/metrics"
	"github.com/myuser/graphstore/internal/storage"
	"github.com/myuser/graphstore/internal/version"
)

// Processor applies AddEdgesRequests to the storage engine. It holds no
// state of its own across requests: just the engine, the schema source,
// and the version allocator, all safe for concurrent use. One Processor
// may serve any number of in-flight requests.
type Processor struct {
	engine storage.Engine
	schema meta.SchemaManager
	alloc  version.Allocator
	log    zerolog.Logger
}

func New(engine storage.Engine, schema meta.SchemaManager, alloc version.Allocator, log zerolog.Logger) *Processor {
	return &Processor{
		engine: engine,
		schema: schema,
		alloc:  alloc,
		log:    log,
	}
}

// Process encodes and writes the request's edges, one atomic batch per
// partition. It returns immediately; the Future resolves once every
// partition batch has completed. Partitions fail independently: codes
// for one partition never block or roll back a sibling's batch.
func (p *Processor) Process(req AddEdgesRequest) *Future {
	fut := newFuture()

	retention, err := p.schema.RetentionMode(req.Space)
	if err != nil {
		// The space is unknown to every partition of the request.
		failed := make(map[keys.PartitionID][]FailureCode, len(req.Parts))
		for part := range req.Parts {
			failed[part] = []FailureCode{ErrUnknownSpace}
		}
		p.log.Warn().Int32("space", int32(req.Space)).Msg("add edges rejected: unknown space")
		fut.complete(Result{FailedParts: failed})
		return fut
	}

	mode := version.PolicyFor(retention, req.Overwritable)

	var (
		mu     sync.Mutex
		failed = make(map[keys.PartitionID][]FailureCode)
		wg     sync.WaitGroup
	)

	for part, edges := range req.Parts {
		wg.Add(1)
		go func(part keys.PartitionID, edges []Edge) {
			defer wg.Done()
			codes := p.writePartition(req.Space, part, edges, mode)
			if len(codes) == 0 {
				return
			}
			mu.Lock()
			failed[part] = codes
			mu.Unlock()
		}(part, edges)
	}

	go func() {
		wg.Wait()
		fut.complete(Result{FailedParts: failed})
	}()
	return fut
}

// writePartition encodes one partition's edges and submits them as one
// atomic batch. A non-empty return means the partition was not durably
// written; validation keeps going after the first bad edge so the
// caller sees every distinct failure.
func (p *Processor) writePartition(space keys.SpaceID, part keys.PartitionID, edges []Edge, mode version.Mode) []FailureCode {
	start := time.Now()
	var codes []FailureCode
	batch := make([]storage.KV, 0, len(edges))

	for _, e := range edges {
		if _, err := p.schema.EdgeSchema(space, e.Key.Type); err != nil {
			codes = append(codes, classifySchemaErr(err))
			p.log.Warn().
				Int32("space", int32(space)).
				Int32("part", int32(part)).
				Int32("edgeType", int32(e.Key.Type)).
				Err(err).
				Msg("edge rejected by schema")
			continue
		}

		v := keys.SentinelVersion
		if mode == version.Append {
			var err error
			v, err = p.alloc.Next()
			if err != nil {
				codes = append(codes, ErrVersionAllocation)
				p.log.Error().Err(err).Msg("version allocation failed")
				continue
			}
			metrics.VersionsAllocated.Inc()
		}

		key := keys.EdgeKey(part, e.Key.Src, e.Key.Type, e.Key.Ranking, e.Key.Dst, v)
		batch = append(batch, storage.KV{Key: key, Value: e.Props})
	}

	// A partition with any rejected edge is reported failed and not
	// written: the caller retries the whole partition sub-request.
	if len(codes) > 0 {
		metrics.BatchWrites.WithLabelValues("rejected").Inc()
		return dedupeCodes(codes)
	}

	if err := p.engine.PutBatch(space, part, batch); err != nil {
		metrics.BatchWrites.WithLabelValues("error").Inc()
		p.log.Error().
			Int32("space", int32(space)).
			Int32("part", int32(part)).
			Int("edges", len(batch)).
			Err(err).
			Msg("batch write failed")
		return []FailureCode{ErrStorageFailure}
	}

	metrics.BatchWrites.WithLabelValues("ok").Inc()
	metrics.EdgesIngested.Add(float64(len(batch)))
	metrics.BatchDuration.Observe(time.Since(start).Seconds())
	p.log.Debug().
		Int32("space", int32(space)).
		Int32("part", int32(part)).
		Int("edges", len(batch)).
		Str("mode", mode.String()).
		Msg("batch written")
	return nil
}

func classifySchemaErr(err error) FailureCode {
	switch {
	case errors.Is(err, meta.ErrSpaceNotFound):
		return ErrUnknownSpace
	case errors.Is(err, meta.ErrEdgeTypeNotFound):
		return ErrEdgeTypeNotFound
	default:
		return ErrInvalidKey
	}
}

func dedupeCodes(codes []FailureCode) []FailureCode {
	seen := make(map[FailureCode]bool, len(codes))
	out := codes[:0]
	for _, c := range codes {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}
