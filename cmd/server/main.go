package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/todmy/beauty-analyzer/internal/api"
	"github.com/todmy/beauty-analyzer/internal/config"
	"github.com/todmy/beauty-analyzer/internal/conflict"
	"github.com/todmy/beauty-analyzer/internal/embeddings"
	"github.com/todmy/beauty-analyzer/internal/knowledge"
	"github.com/todmy/beauty-analyzer/internal/logger"
	"github.com/todmy/beauty-analyzer/internal/routine"
	"github.com/todmy/beauty-analyzer/internal/rules"
	"github.com/todmy/beauty-analyzer/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", "error", err)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	set, err := rules.Load(cfg.RulesFile)
	if err != nil {
		return err
	}

	deps := api.Deps{Log: log}
	var ruleStore conflict.RuleStore = conflict.NewStaticRuleStore(set.ConflictRules)
	var vectorStore knowledge.VectorStore = knowledge.NewMemoryStore()

	if cfg.Database.URL != "" {
		db, err := storage.Open(ctx, cfg.Database.URL)
		if err != nil {
			return err
		}
		defer db.Close()

		applied, err := storage.Migrate(ctx, db)
		if err != nil {
			return err
		}
		log.Info("database ready", "migrations_applied", applied)

		ruleStore = storage.NewPostgresConflictRuleRepository(db)
		vectorStore = storage.NewPostgresKnowledgeRepository(db)
		wireRepositories(&deps, db)
	} else {
		log.Warn("DATABASE_URL not set, using embedded rules and an in-memory knowledge base")
	}

	retriever, closeCache, err := newRetriever(ctx, cfg, vectorStore, log)
	if err != nil {
		return err
	}
	defer closeCache()
	if retriever != nil {
		deps.Retriever = retriever
	}

	deps.Analyzer = conflict.NewEngine(conflict.Config{
		RetrievalThreshold: cfg.Analysis.RetrievalThreshold,
		RetrievalTimeout:   cfg.Analysis.RetrievalTimeout,
		RuleTimeout:        cfg.Analysis.RuleLookupTimeout,
		MaxConcurrent:      cfg.Analysis.MaxConcurrentPairs,
	}, set, ruleStore, deps.Retriever, log)
	deps.Optimizer = routine.NewScheduler(set, log)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           api.NewServer(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting beauty-analyzer server", "port", cfg.Server.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func wireRepositories(deps *api.Deps, db *sql.DB) {
	deps.Products = storage.NewPostgresProductRepository(db)
	deps.Ingredients = storage.NewPostgresIngredientRepository(db)
	deps.Predictions = storage.NewPostgresPredictionRepository(db)
	deps.Routines = storage.NewPostgresRoutineRepository(db)
}

// newRetriever builds the RAG stack when both API keys are present. The returned
// close function releases the redis client, if one was opened.
func newRetriever(ctx context.Context, cfg *config.Config, store knowledge.VectorStore, log *logger.Logger) (knowledge.Retriever, func(), error) {
	noop := func() {}
	if cfg.Embedding.APIKey == "" || cfg.LLM.APIKey == "" {
		log.Warn("embedding or LLM API key not set, knowledge retrieval disabled")
		return nil, noop, nil
	}

	var cache embeddings.Cache = embeddings.NewMemoryCache()
	closeCache := noop
	if cfg.Database.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.Database.RedisURL)
		if err != nil {
			return nil, noop, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		opts.DialTimeout = 5 * time.Second
		rdb := redis.NewClient(opts)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			rdb.Close()
			return nil, noop, fmt.Errorf("failed to connect to redis: %w", err)
		}
		cache = embeddings.NewRedisCache(rdb, cfg.Embedding.CacheTTL)
		closeCache = func() { rdb.Close() }
	}

	embedder := embeddings.NewCachedClient(
		embeddings.NewClient(cfg.Embedding.APIKey, embeddings.WithModel(cfg.Embedding.Model)),
		cache,
		log,
	)
	completer := knowledge.NewAnthropicClient(knowledge.AnthropicConfig{
		APIKey: cfg.LLM.APIKey,
		Model:  cfg.LLM.Model,
	})

	rag := knowledge.NewRAG(embedder, store, completer, knowledge.RAGConfig{
		TopK:          cfg.RAG.TopK,
		MinSimilarity: cfg.RAG.MinSimilarity,
	}, log)
	return rag, closeCache, nil
}
