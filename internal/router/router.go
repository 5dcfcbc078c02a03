package router

import (
	"context"
	"sync"
	"time"

	"github.com/byerlikaya/SmartRAG-sub011/internal/config"
	"github.com/byerlikaya/SmartRAG-sub011/internal/conversation"
	"github.com/byerlikaya/SmartRAG-sub011/internal/document"
	"github.com/byerlikaya/SmartRAG-sub011/internal/executor"
	"github.com/byerlikaya/SmartRAG-sub011/internal/intent"
	"github.com/byerlikaya/SmartRAG-sub011/internal/llm"
	"github.com/byerlikaya/SmartRAG-sub011/internal/logger"
	"github.com/byerlikaya/SmartRAG-sub011/internal/merge"
	"github.com/byerlikaya/SmartRAG-sub011/internal/schema"
	"github.com/byerlikaya/SmartRAG-sub011/internal/sqlgen"
	"github.com/byerlikaya/SmartRAG-sub011/internal/synthesis"
)

var log = logger.Component("router")

// earlyExitConfidence: below this database confidence a strong document
// match answers a hybrid query alone, skipping SQL generation entirely.
const earlyExitConfidence = 0.85

// Options tune one query.
type Options struct {
	SessionID  string
	MaxResults int
	Filter     document.Filter
	Language   string
}

// Engine wires the full pipeline: intent analysis, document retrieval,
// SQL generation and execution, merging and answer synthesis.
type Engine struct {
	cfg       *config.Config
	analyzer  *intent.Analyzer
	searcher  *document.Searcher
	generator *sqlgen.Generator
	executor  *executor.Executor
	merger    *merge.Merger
	synth     *synthesis.Synthesizer
	store     conversation.Store
}

// NewEngine assembles the pipeline from its shared dependencies.
func NewEngine(cfg *config.Config, provider llm.Provider, registry *schema.Registry,
	repo document.Repository, store conversation.Store) *Engine {

	exec := executor.NewExecutor(registry, cfg.QueryTimeout())
	return &Engine{
		cfg:       cfg,
		analyzer:  intent.NewAnalyzer(provider, registry),
		searcher:  document.NewSearcher(repo, provider, cfg),
		generator: sqlgen.NewGenerator(provider, registry, cfg.MaxRetryAttempts),
		executor:  exec,
		merger:    merge.NewMerger(registry, exec),
		synth:     synthesis.NewSynthesizer(provider, cfg),
		store:     store,
	}
}

// QueryIntelligence answers one question end to end. It never returns an
// error for content-level failures; those degrade to the not-found answer
// with a system source explaining what happened.
func (e *Engine) QueryIntelligence(ctx context.Context, query string, opts Options) *synthesis.Answer {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.QueryTimeout())
	defer cancel()

	history := e.loadHistory(ctx, opts.SessionID)

	// Intent analysis and document retrieval run concurrently; both are
	// needed for most strategies and neither depends on the other.
	var (
		wg        sync.WaitGroup
		in        *intent.Intent
		intentErr error
		searchRes *document.SearchResult
		searchErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		in, intentErr = e.analyzer.Analyze(ctx, query, history)
	}()
	go func() {
		defer wg.Done()
		searchRes, searchErr = e.searcher.Search(ctx, query, opts.MaxResults, opts.Filter)
	}()
	wg.Wait()

	if ctx.Err() != nil {
		return cancelledAnswer(query)
	}

	if intentErr != nil {
		log.WithError(intentErr).Warn("intent analysis failed, using documents only")
		in = &intent.Intent{Query: query, Strategy: intent.DocumentOnly}
	}
	if in.NoAnswer {
		return e.finish(ctx, query, opts, notFoundAnswer(query))
	}

	var chunks []document.ScoredChunk
	if searchErr != nil {
		log.WithError(searchErr).Warn("document search failed")
	} else if searchRes != nil {
		chunks = searchRes.Chunks
	}

	strategy := in.Strategy
	if strategy == intent.Hybrid && searchRes != nil && searchRes.Strong && in.Confidence < earlyExitConfidence {
		log.Debug("strong document match, skipping database path")
		strategy = intent.DocumentOnly
	}

	var outcome *merge.Outcome
	if strategy != intent.DocumentOnly {
		outcome = e.queryDatabases(ctx, in)
		if outcome == nil || len(outcome.Results) == 0 || allFailed(outcome.Results) {
			// Every database target failed; fall back to whatever the
			// documents hold.
			log.Warn("all database targets failed, degrading to documents")
			outcome = nil
			strategy = intent.DocumentOnly
		}
	}
	if strategy == intent.DatabaseOnly {
		chunks = nil
	}

	if ctx.Err() != nil {
		return cancelledAnswer(query)
	}

	answer, err := e.synth.Synthesize(ctx, query, history, outcome, chunks, opts.Language)
	if err != nil {
		if ctx.Err() != nil {
			return cancelledAnswer(query)
		}
		log.WithError(err).Error("answer synthesis failed")
		answer = notFoundAnswer(query)
		answer.Sources = []synthesis.Source{{
			SourceType: "system",
			Identifier: "synthesis",
			Content:    err.Error(),
		}}
	}
	return e.finish(ctx, query, opts, answer)
}

// Close releases the executor's database connection pools.
func (e *Engine) Close() error {
	return e.executor.Close()
}

// queryDatabases runs the SQL half of the pipeline for the intent's
// targets.
func (e *Engine) queryDatabases(ctx context.Context, in *intent.Intent) *merge.Outcome {
	queries, failures := e.generator.Generate(ctx, in)
	for _, f := range failures {
		log.Warnf("no SQL for %s: %s", f.DatabaseID, f.Reason)
	}
	if len(queries) == 0 {
		return nil
	}
	results := e.executor.ExecuteAll(ctx, queries)
	return e.merger.Merge(ctx, in, results)
}

func (e *Engine) loadHistory(ctx context.Context, sessionID string) []conversation.Turn {
	if sessionID == "" || e.store == nil {
		return nil
	}
	turns, err := e.store.GetRecent(ctx, sessionID, e.cfg.Conversation.HistoryTurns)
	if err != nil {
		log.WithError(err).Warn("failed to load conversation history")
		return nil
	}
	return turns
}

// finish records the exchange in the conversation store and returns the
// answer. Store failures are logged, never surfaced.
func (e *Engine) finish(ctx context.Context, query string, opts Options, answer *synthesis.Answer) *synthesis.Answer {
	if opts.SessionID != "" && e.store != nil {
		if err := e.store.AppendTurn(ctx, opts.SessionID, conversation.RoleUser, query); err != nil {
			log.WithError(err).Warn("failed to record user turn")
		}
		if err := e.store.AppendTurn(ctx, opts.SessionID, conversation.RoleAssistant, answer.Text); err != nil {
			log.WithError(err).Warn("failed to record assistant turn")
		}
	}
	return answer
}

func notFoundAnswer(query string) *synthesis.Answer {
	return &synthesis.Answer{Query: query, Text: synthesis.NotFoundMessage, SearchedAt: time.Now()}
}

// cancelledAnswer marks an aborted request; the text stays empty so the
// caller can distinguish cancellation from a genuine no-answer.
func cancelledAnswer(query string) *synthesis.Answer {
	return &synthesis.Answer{Query: query, SearchedAt: time.Now(), Cancelled: true}
}

func allFailed(results []executor.DbResult) bool {
	for _, r := range results {
		if r.Success {
			return false
		}
	}
	return true
}
