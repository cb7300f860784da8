package pipeline

import (
	"context"
	"sync"

	"github.com/openobserve/openobserve-sub015/internal/oerrors"
)

// StreamParams identifies one ingest stream, the key realtime
// pipelines hang off of.
type StreamParams struct {
	Org        string
	StreamName string
	StreamType string
}

// SourceKind distinguishes a realtime pipeline (compiled into the hot
// ingest path) from a scheduled one (evaluated by the scheduler on its
// own cadence).
type SourceKind string

const (
	SourceRealtime  SourceKind = "realtime"
	SourceScheduled SourceKind = "scheduled"
)

// Node is one step of a pipeline DAG.
type Node struct {
	ID   string
	Kind string
	Data map[string]any
}

// Edge is a directed connection between two pipeline nodes.
type Edge struct {
	From string
	To   string
}

// Pipeline is the persisted DAG definition plus routing metadata.
type Pipeline struct {
	ID      string
	Org     string
	Name    string
	Enabled bool
	Source  SourceKind
	Stream  StreamParams // valid when Source == SourceRealtime
	Nodes   []Node
	Edges   []Edge
}

// HasGeoFunction reports whether any node in the DAG invokes a
// geo-lookup function, which requires MMDB data to be loaded before
// the pipeline can compile.
func (p Pipeline) HasGeoFunction() bool {
	for _, n := range p.Nodes {
		if n.Kind == "function" {
			if fn, ok := n.Data["name"].(string); ok {
				switch fn {
				case "geoip_city", "geoip_country", "geoip_asn":
					return true
				}
			}
		}
	}
	return false
}

// ValidateDAG checks that every edge references a known node and that
// the graph contains no cycle.
func ValidateDAG(nodes []Node, edges []Edge) error {
	ids := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		ids[n.ID] = true
	}
	adj := make(map[string][]string, len(nodes))
	for _, e := range edges {
		if !ids[e.From] || !ids[e.To] {
			return oerrors.New(oerrors.InvalidInput, "unknown_node", "edge references unknown node")
		}
		adj[e.From] = append(adj[e.From], e.To)
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(nodes))
	var visit func(id string) error
	visit = func(id string) error {
		color[id] = gray
		for _, next := range adj[id] {
			switch color[next] {
			case gray:
				return oerrors.New(oerrors.InvalidInput, "cycle_detected", "pipeline DAG contains a cycle")
			case white:
				if err := visit(next); err != nil {
					return err
				}
			}
		}
		color[id] = black
		return nil
	}
	for _, n := range nodes {
		if color[n.ID] == white {
			if err := visit(n.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// ExecutablePipeline is the compiled, ready-to-run form of a realtime
// pipeline's DAG. Compilation today is a structural validation pass;
// function nodes are resolved against the registry at execution time.
type ExecutablePipeline struct {
	PipelineID string
	Nodes      []Node
	Edges      []Edge
}

func compile(p Pipeline) (*ExecutablePipeline, error) {
	if err := ValidateDAG(p.Nodes, p.Edges); err != nil {
		return nil, err
	}
	return &ExecutablePipeline{PipelineID: p.ID, Nodes: p.Nodes, Edges: p.Edges}, nil
}

// Store is the persistence interface backing a Cache's refetch on
// watch events, and the startup enumeration.
type Store interface {
	Get(ctx context.Context, id string) (Pipeline, error)
	List(ctx context.Context) ([]Pipeline, error)
	ListByOrg(ctx context.Context, org string) ([]Pipeline, error)
	Put(ctx context.Context, p Pipeline) error
	Delete(ctx context.Context, id string) error
	GetWithSameSourceStream(ctx context.Context, p Pipeline) (Pipeline, error)
}

// MMDBGate lets pipeline compilation block until geo-lookup data has
// finished loading, without the cache package depending on however
// that data gets fetched.
type MMDBGate struct {
	mu    sync.Mutex
	ready bool
	cond  *sync.Cond
}

func NewMMDBGate() *MMDBGate {
	g := &MMDBGate{}
	g.cond = sync.NewCond(&g.mu)
	return g
}

func (g *MMDBGate) MarkReady() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ready = true
	g.cond.Broadcast()
}

func (g *MMDBGate) Wait() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for !g.ready {
		g.cond.Wait()
	}
}

// Cache holds the three in-memory tables a node keeps: the realtime
// hot path, the scheduled lookup table, and the reverse index used to
// remove a pipeline from the hot path by ID.
type Cache struct {
	mu                sync.RWMutex
	streamExecutable  map[StreamParams]*ExecutablePipeline
	scheduled         map[string]Pipeline
	streamMapping     map[string]StreamParams
	store             Store
	mmdb              *MMDBGate
	mmdbDisableLoad   bool
}

func NewCache(store Store, mmdb *MMDBGate, mmdbDisableLoad bool) *Cache {
	return &Cache{
		streamExecutable: map[StreamParams]*ExecutablePipeline{},
		scheduled:        map[string]Pipeline{},
		streamMapping:    map[string]StreamParams{},
		store:            store,
		mmdb:             mmdb,
		mmdbDisableLoad:  mmdbDisableLoad,
	}
}

// LoadAll enumerates every pipeline and populates both caches,
// replacing any prior contents. Compilation of realtime pipelines
// waits for MMDB data first, if any enabled pipeline uses a geo
// function and MMDB loading hasn't been disabled.
func (c *Cache) LoadAll(ctx context.Context) error {
	pipelines, err := c.store.List(ctx)
	if err != nil {
		return err
	}

	needsMMDB := false
	for _, p := range pipelines {
		if p.Enabled && p.HasGeoFunction() {
			needsMMDB = true
			break
		}
	}
	if needsMMDB && !c.mmdbDisableLoad && c.mmdb != nil {
		c.mmdb.Wait()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.streamExecutable = map[StreamParams]*ExecutablePipeline{}
	c.scheduled = map[string]Pipeline{}
	c.streamMapping = map[string]StreamParams{}

	for _, p := range pipelines {
		if !p.Enabled {
			continue
		}
		c.insertLocked(p)
	}
	return nil
}

func (c *Cache) insertLocked(p Pipeline) error {
	switch p.Source {
	case SourceRealtime:
		exec, err := compile(p)
		if err != nil {
			return err
		}
		c.streamMapping[p.ID] = p.Stream
		c.streamExecutable[p.Stream] = exec
	case SourceScheduled:
		c.scheduled[p.ID] = p
	}
	return nil
}

func (c *Cache) removeLocked(id string) {
	if stream, ok := c.streamMapping[id]; ok {
		delete(c.streamMapping, id)
		delete(c.streamExecutable, stream)
	}
	delete(c.scheduled, id)
}

// GetExecutable returns the compiled realtime pipeline for stream, if
// one is cached — the hot path for batch execution.
func (c *Cache) GetExecutable(stream StreamParams) (*ExecutablePipeline, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.streamExecutable[stream]
	return p, ok
}

// GetScheduled returns the cached scheduled pipeline by ID.
func (c *Cache) GetScheduled(id string) (Pipeline, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.scheduled[id]
	return p, ok
}

// Stats reports (realtime, scheduled) cache sizes for monitoring.
func (c *Cache) Stats() (realtime, scheduled int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.streamExecutable), len(c.scheduled)
}

// ApplyPut refetches pipeline id from the store and updates the
// appropriate cache, removing it if the refetched row is disabled.
// This is what a watch event handler calls on a Put notification.
func (c *Cache) ApplyPut(ctx context.Context, id string) error {
	p, err := c.store.Get(ctx, id)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(id)
	if !p.Enabled {
		return nil
	}
	return c.insertLocked(p)
}

// ApplyDelete removes a pipeline from both caches. This is what a
// watch event handler calls on a Delete notification.
func (c *Cache) ApplyDelete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(id)
}

// ValidateNotInUse rejects creating a realtime pipeline whose source
// stream is already claimed by another enabled realtime pipeline.
func ValidateNotInUse(ctx context.Context, store Store, p Pipeline) error {
	if p.Source != SourceRealtime {
		return nil
	}
	existing, err := store.GetWithSameSourceStream(ctx, p)
	if err != nil {
		if oerrors.IsNotFound(err) {
			return nil
		}
		return err
	}
	if existing.ID != "" && existing.ID != p.ID {
		return oerrors.New(oerrors.Conflict, "stream_in_use", "a realtime pipeline with the same source stream already exists")
	}
	return nil
}
