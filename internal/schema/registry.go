package schema

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/byerlikaya/SmartRAG-sub011/internal/config"
	"github.com/byerlikaya/SmartRAG-sub011/internal/llm"
	"github.com/byerlikaya/SmartRAG-sub011/internal/logger"
)

var log = logger.Component("schema")

const analyzeConcurrency = 4

// Registry caches the analyzed schema of every configured database.
// Readers are lock-free in spirit: lookups take a read lock only, refreshes
// replace entries atomically under the write lock.
type Registry struct {
	mu       sync.RWMutex
	schemas  map[string]*DatabaseSchema
	configs  map[string]config.DatabaseConfig
	mappings []CrossDatabaseMapping
	provider llm.Provider // optional, for table summaries
}

// NewRegistry builds a registry over the enabled database configs.
func NewRegistry(cfgs []config.DatabaseConfig) *Registry {
	r := &Registry{
		schemas: make(map[string]*DatabaseSchema),
		configs: make(map[string]config.DatabaseConfig),
	}
	for _, cfg := range cfgs {
		if !cfg.Enabled {
			continue
		}
		id := DeriveID(cfg)
		r.configs[id] = cfg
		for _, m := range cfg.Mappings {
			r.mappings = append(r.mappings, CrossDatabaseMapping{
				SourceDatabase: m.SourceDatabase,
				SourceTable:    m.SourceTable,
				SourceColumn:   m.SourceColumn,
				TargetDatabase: m.TargetDatabase,
				TargetTable:    m.TargetTable,
				TargetColumn:   m.TargetColumn,
			})
		}
	}
	return r
}

// SetSummaryProvider enables AI-generated database summaries during
// analysis. Optional; summary failures are never fatal.
func (r *Registry) SetSummaryProvider(p llm.Provider) {
	r.provider = p
}

// Initialize analyzes every configured database in parallel. Per-database
// failures are recorded on the registry entry and do not abort peers.
func (r *Registry) Initialize(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(analyzeConcurrency)

	ids := r.ConfiguredIDs()
	for _, id := range ids {
		id := id
		g.Go(func() error {
			r.analyze(gctx, id)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	log.Infof("analyzed %d database(s)", len(ids))
	return ctx.Err()
}

// Refresh re-runs analysis for one database.
func (r *Registry) Refresh(ctx context.Context, id string) error {
	r.mu.RLock()
	_, ok := r.configs[id]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown database: %s", id)
	}
	r.analyze(ctx, id)
	return nil
}

func (r *Registry) analyze(ctx context.Context, id string) {
	cfg := r.configs[id]
	sch := analyzeDatabase(ctx, cfg)
	if sch.Status == StatusFailed {
		log.Warnf("schema analysis failed for %s: %s", id, sch.Error)
	} else {
		if r.provider != nil {
			sch.Summary = r.summarize(ctx, sch)
		}
		log.Infof("analyzed %s: %d tables", id, len(sch.Tables))
	}

	r.Put(sch)
}

// Put stores a pre-built schema entry, replacing any existing one.
func (r *Registry) Put(sch *DatabaseSchema) {
	r.mu.Lock()
	r.schemas[sch.ID] = sch
	r.mu.Unlock()
}

// summarize asks the provider for a one-line business summary of the
// database. Best effort.
func (r *Registry) summarize(ctx context.Context, sch *DatabaseSchema) string {
	var sb strings.Builder
	sb.WriteString("Summarize in ONE short sentence what this database is about, based on its tables.\n\n")
	for _, t := range sch.Tables {
		names := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			names[i] = c.Name
		}
		fmt.Fprintf(&sb, "- %s (%s)\n", t.Name, strings.Join(names, ", "))
	}
	sb.WriteString("\nOutput the sentence only.")

	summary, err := r.provider.GenerateResponse(ctx, sb.String(), nil)
	if err != nil {
		log.WithError(err).Debugf("summary generation failed for %s", sch.ID)
		return ""
	}
	return strings.TrimSpace(summary)
}

// Get returns the cached schema for a database id.
func (r *Registry) Get(id string) (*DatabaseSchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sch, ok := r.schemas[id]
	return sch, ok
}

// GetAll returns all cached schemas sorted by id.
func (r *Registry) GetAll() []*DatabaseSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*DatabaseSchema, 0, len(r.schemas))
	for _, sch := range r.schemas {
		out = append(out, sch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Ready returns all successfully analyzed schemas sorted by id.
func (r *Registry) Ready() []*DatabaseSchema {
	var out []*DatabaseSchema
	for _, sch := range r.GetAll() {
		if sch.Status == StatusReady {
			out = append(out, sch)
		}
	}
	return out
}

// ConfiguredIDs lists the configured database ids sorted.
func (r *Registry) ConfiguredIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.configs))
	for id := range r.configs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Config returns the connection config for a database id.
func (r *Registry) Config(id string) (config.DatabaseConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[id]
	return cfg, ok
}

// Mappings returns the operator-configured cross-database mappings.
func (r *Registry) Mappings() []CrossDatabaseMapping {
	return r.mappings
}

// HasTable reports whether (databaseID, table) exists, returning the
// schema's exact table casing.
func (r *Registry) HasTable(databaseID, table string) (string, bool) {
	sch, ok := r.Get(databaseID)
	if !ok || sch.Status != StatusReady {
		return "", false
	}
	if t, ok := sch.Table(table); ok {
		return t.Name, true
	}
	return "", false
}

// FindTable locates a table by name across all ready databases. Used to
// relocate hallucinated intent targets to the database that owns them.
func (r *Registry) FindTable(table string) (databaseID, exactName string, ok bool) {
	for _, sch := range r.Ready() {
		if t, found := sch.Table(table); found {
			return sch.ID, t.Name, true
		}
	}
	return "", "", false
}

// Summary renders the registry overview block used by the intent prompt:
// every database, its tables, and the optional AI summary.
func (r *Registry) Summary() string {
	var sb strings.Builder
	for _, sch := range r.GetAll() {
		if sch.Status != StatusReady {
			fmt.Fprintf(&sb, "Database %q (%s): unavailable (%s)\n\n", sch.ID, sch.Dialect, sch.Error)
			continue
		}
		fmt.Fprintf(&sb, "Database %q (%s, name: %s)", sch.ID, sch.Dialect, sch.DatabaseName)
		if sch.Summary != "" {
			fmt.Fprintf(&sb, ": %s", sch.Summary)
		}
		sb.WriteString("\n")
		for _, t := range sch.Tables {
			names := make([]string, len(t.Columns))
			for i, c := range t.Columns {
				names[i] = c.Name
			}
			fmt.Fprintf(&sb, "  - %s (%d rows): %s\n", t.Name, t.RowCount, strings.Join(names, ", "))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
