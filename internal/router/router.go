package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/myuser/graphstore/internal/keys"
	"github.com/myuser/graphstore/internal/processor"
)

// Router is a client-side partition map: it splits an AddEdgesRequest
// by owning node, forwards each sub-request over HTTP, and merges the
// per-partition results. Nodes are independent, so sub-requests are
// sent concurrently.
type Router struct {
	mu          sync.RWMutex
	partAddrs   map[keys.PartitionID]string
	defaultAddr string
	client      *http.Client
}

func New(defaultAddr string) *Router {
	return &Router{
		partAddrs:   make(map[keys.PartitionID]string),
		defaultAddr: defaultAddr,
		client:      http.DefaultClient,
	}
}

// SetPartition pins a partition to a node address.
func (r *Router) SetPartition(part keys.PartitionID, addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.partAddrs[part] = addr
}

// Locate returns the address owning a partition.
func (r *Router) Locate(part keys.PartitionID) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if addr, ok := r.partAddrs[part]; ok {
		return addr
	}
	return r.defaultAddr
}

// AddEdges forwards the request to the owning nodes and merges their
// results. Partitions whose node could not be reached are reported as
// storage failures; the caller decides whether to retry them.
func (r *Router) AddEdges(req processor.AddEdgesRequest) processor.Result {
	// Group partitions by owning node.
	byNode := make(map[string]map[keys.PartitionID][]processor.Edge)
	for part, edges := range req.Parts {
		addr := r.Locate(part)
		if byNode[addr] == nil {
			byNode[addr] = make(map[keys.PartitionID][]processor.Edge)
		}
		byNode[addr][part] = edges
	}

	var (
		mu     sync.Mutex
		failed = make(map[keys.PartitionID][]processor.FailureCode)
		wg     sync.WaitGroup
	)

	for addr, parts := range byNode {
		wg.Add(1)
		go func(addr string, parts map[keys.PartitionID][]processor.Edge) {
			defer wg.Done()
			sub := processor.AddEdgesRequest{
				Space:        req.Space,
				Overwritable: req.Overwritable,
				Parts:        parts,
			}
			res, err := r.post(addr, sub)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				for part := range parts {
					failed[part] = []processor.FailureCode{processor.ErrStorageFailure}
				}
				return
			}
			for part, codes := range res.FailedParts {
				failed[part] = codes
			}
		}(addr, parts)
	}
	wg.Wait()

	return processor.Result{FailedParts: failed}
}

func (r *Router) post(addr string, req processor.AddEdgesRequest) (processor.Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return processor.Result{}, err
	}

	resp, err := r.client.Post(addr+"/edges/add", "application/json", bytes.NewReader(body))
	if err != nil {
		return processor.Result{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return processor.Result{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return processor.Result{}, fmt.Errorf("node %s: status %d: %s", addr, resp.StatusCode, raw)
	}

	var res processor.Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return processor.Result{}, fmt.Errorf("node %s: bad response: %w", addr, err)
	}
	return res, nil
}
