package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/byerlikaya/SmartRAG-sub011/internal/config"
	"github.com/byerlikaya/SmartRAG-sub011/internal/conversation"
	"github.com/byerlikaya/SmartRAG-sub011/internal/document"
	"github.com/byerlikaya/SmartRAG-sub011/internal/llm"
	"github.com/byerlikaya/SmartRAG-sub011/internal/logger"
	"github.com/byerlikaya/SmartRAG-sub011/internal/router"
	"github.com/byerlikaya/SmartRAG-sub011/internal/schema"
	"github.com/byerlikaya/SmartRAG-sub011/internal/synthesis"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "configuration file")
		logLevel   = flag.String("log-level", "info", "log level (debug, info, warn, error)")
		question   = flag.String("q", "", "ask one question and exit")
		ingest     = flag.String("ingest", "", "ingest a text file before querying")
		docsOnly   = flag.Bool("d", false, "restrict search to documents")
		audioOnly  = flag.Bool("a", false, "restrict search to audio transcripts")
		imageOnly  = flag.Bool("i", false, "restrict search to image descriptions")
		dbChunks   = flag.Bool("db", false, "restrict search to database-derived chunks")
		language   = flag.String("lang", "", "answer language override")
	)
	flag.Parse()

	logger.Init(*logLevel)
	log := logger.Component("main")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := llm.NewFallbackChain(cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to build AI provider")
	}

	registry := schema.NewRegistry(cfg.Databases)
	registry.SetSummaryProvider(provider)
	if cfg.EnableAutoSchemaAnalysis {
		if err := registry.Initialize(ctx); err != nil {
			log.WithError(err).Fatal("schema analysis aborted")
		}
	}

	repo := document.NewMemoryRepository()
	ingestor := document.NewIngestor(repo, provider, cfg)

	store, cleanup, err := newStore(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to open conversation store")
	}
	defer cleanup()

	engine := router.NewEngine(cfg, provider, registry, repo, store)
	defer engine.Close()

	if cfg.Features.EnableFileWatcher && cfg.WatchDirectory != "" {
		watcher, err := document.NewWatcher(ingestor, cfg.WatchDirectory)
		if err != nil {
			log.WithError(err).Fatal("failed to start file watcher")
		}
		go watcher.Run(ctx)
	}

	if *ingest != "" {
		if err := ingestFile(ctx, ingestor, *ingest); err != nil {
			log.WithError(err).Fatal("ingestion failed")
		}
	}

	opts := router.Options{Filter: buildFilter(*docsOnly, *audioOnly, *imageOnly, *dbChunks), Language: *language}

	if *question != "" {
		printAnswer(engine.QueryIntelligence(ctx, *question, opts))
		return
	}
	repl(ctx, engine, store, opts)
}

func newStore(ctx context.Context, cfg *config.Config) (conversation.Store, func(), error) {
	if cfg.Conversation.Backend == "redis" {
		s, err := conversation.NewRedisStore(ctx, cfg.Conversation.RedisAddr, cfg.Conversation.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	}
	return conversation.NewMemoryStore(), func() {}, nil
}

func buildFilter(docs, audio, image, db bool) document.Filter {
	var types []document.ContentType
	if docs {
		types = append(types, document.TypeDocument)
	}
	if audio {
		types = append(types, document.TypeAudio)
	}
	if image {
		types = append(types, document.TypeImage)
	}
	if db {
		types = append(types, document.TypeDatabase)
	}
	return document.Filter{ContentTypes: types}
}

func ingestFile(ctx context.Context, ingestor *document.Ingestor, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	doc, err := ingestor.IngestText(ctx, filepath.Base(path), "text/plain", string(data), document.TypeDocument, "")
	if err != nil {
		return err
	}
	fmt.Printf("indexed %s as %s (%d chunks)\n", path, doc.ID, doc.ChunkCount)
	return nil
}

// repl reads questions from stdin until EOF. "/new" rotates the session,
// everything else is a question.
func repl(ctx context.Context, engine *router.Engine, store conversation.Store, opts router.Options) {
	sessionID, err := store.StartNewSession(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to start session:", err)
		return
	}
	opts.SessionID = sessionID

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	fmt.Println("smartrag ready. /new starts a fresh session, Ctrl-D exits.")
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/new":
			if id, err := store.StartNewSession(ctx); err == nil {
				opts.SessionID = id
				fmt.Println("new session", id)
			}
			continue
		}
		printAnswer(engine.QueryIntelligence(ctx, line, opts))
		if ctx.Err() != nil {
			return
		}
	}
}

func printAnswer(answer *synthesis.Answer) {
	fmt.Println(answer.Text)
	for _, s := range answer.Sources {
		switch s.SourceType {
		case "database":
			fmt.Printf("  [%s] %s (%d rows): %s\n", s.SourceType, s.Identifier, s.RowCount, s.SQL)
		default:
			fmt.Printf("  [%s] %s (score %.2f)\n", s.SourceType, s.Identifier, s.Score)
		}
	}
}
