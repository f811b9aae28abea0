package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/todmy/beauty-analyzer/internal/config"
	"github.com/todmy/beauty-analyzer/internal/conflict"
	"github.com/todmy/beauty-analyzer/internal/embeddings"
	"github.com/todmy/beauty-analyzer/internal/knowledge"
	"github.com/todmy/beauty-analyzer/internal/logger"
	"github.com/todmy/beauty-analyzer/internal/routine"
	"github.com/todmy/beauty-analyzer/internal/rules"
	"github.com/todmy/beauty-analyzer/internal/storage"
	"github.com/todmy/beauty-analyzer/pkg/models"
)

// request is the input file format shared by analyze and optimize
type request struct {
	Products    []models.Product   `json:"products"`
	UserProfile models.UserProfile `json:"user_profile"`
}

func readRequest(path string) (*request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var req request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(req.Products) == 0 {
		return nil, fmt.Errorf("%s: no products", path)
	}
	return &req, nil
}

// env holds what every command needs after config and rules are loaded
type env struct {
	cfg   *config.Config
	rules *rules.Set
	log   *logger.Logger
}

func loadEnv(opts *globalOptions) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	path := opts.rulesFile
	if path == "" {
		path = cfg.RulesFile
	}
	set, err := rules.Load(path)
	if err != nil {
		return nil, err
	}

	log := logger.Nop()
	if opts.verbose {
		if log, err = logger.New("development"); err != nil {
			return nil, err
		}
	}
	return &env{cfg: cfg, rules: set, log: log}, nil
}

func (e *env) embedder() (*embeddings.CachedClient, error) {
	if e.cfg.Embedding.APIKey == "" {
		return nil, errors.New("OPENROUTER_API_KEY is required")
	}
	client := embeddings.NewClient(e.cfg.Embedding.APIKey, embeddings.WithModel(e.cfg.Embedding.Model))
	return embeddings.NewCachedClient(client, embeddings.NewMemoryCache(), e.log), nil
}

// engine builds a conflict engine over the embedded rules. With --docs, markdown
// references are indexed in memory and answer retrieval questions.
func (e *env) engine(ctx context.Context, docsDir string) (*conflict.Engine, error) {
	var retriever knowledge.Retriever
	if docsDir != "" {
		rag, err := e.memoryRAG(ctx, docsDir)
		if err != nil {
			return nil, err
		}
		retriever = rag
	}

	cfg := conflict.Config{
		RetrievalThreshold: e.cfg.Analysis.RetrievalThreshold,
		RetrievalTimeout:   e.cfg.Analysis.RetrievalTimeout,
		RuleTimeout:        e.cfg.Analysis.RuleLookupTimeout,
		MaxConcurrent:      e.cfg.Analysis.MaxConcurrentPairs,
	}
	return conflict.NewEngine(cfg, e.rules, conflict.NewStaticRuleStore(e.rules.ConflictRules), retriever, e.log), nil
}

func (e *env) memoryRAG(ctx context.Context, dir string) (*knowledge.RAG, error) {
	if e.cfg.LLM.APIKey == "" {
		return nil, errors.New("ANTHROPIC_API_KEY is required for --docs")
	}
	embedder, err := e.embedder()
	if err != nil {
		return nil, err
	}

	store := knowledge.NewMemoryStore()
	if _, err := ingestDir(ctx, e, embedder, store, dir); err != nil {
		return nil, err
	}

	completer := knowledge.NewAnthropicClient(knowledge.AnthropicConfig{
		APIKey: e.cfg.LLM.APIKey,
		Model:  e.cfg.LLM.Model,
	})
	return knowledge.NewRAG(embedder, store, completer, knowledge.RAGConfig{
		TopK:          e.cfg.RAG.TopK,
		MinSimilarity: e.cfg.RAG.MinSimilarity,
	}, e.log), nil
}

// ingestDir indexes every .md file under dir, in name order
func ingestDir(ctx context.Context, e *env, embedder knowledge.Embedder, store knowledge.VectorStore, dir string) (int, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".md") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		return 0, fmt.Errorf("no markdown files under %s", dir)
	}
	sort.Strings(files)

	ingester := knowledge.NewIngester(embedder, store, knowledge.IngestConfig{
		ChunkSize:    e.cfg.RAG.ChunkSize,
		ChunkOverlap: e.cfg.RAG.ChunkOverlap,
	}, e.log)

	total := 0
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return total, err
		}
		rel, _ := filepath.Rel(dir, f)
		n, err := ingester.Ingest(ctx, filepath.ToSlash(rel), data)
		if errors.Is(err, knowledge.ErrNoPassages) {
			e.log.Warn("skipping empty document", "file", f)
			continue
		}
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func newAnalyzeCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <products.json>",
		Short: "Detect ingredient conflicts across a set of products",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := readRequest(args[0])
			if err != nil {
				return err
			}
			e, err := loadEnv(opts)
			if err != nil {
				return err
			}
			defer e.log.Sync()

			engine, err := e.engine(cmd.Context(), opts.docsDir)
			if err != nil {
				return err
			}
			report := engine.Analyze(cmd.Context(), req.Products, req.UserProfile)

			if opts.asJSON {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
}

func newOptimizeCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "optimize <products.json>",
		Short: "Build a morning and evening routine from a set of products",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := readRequest(args[0])
			if err != nil {
				return err
			}
			e, err := loadEnv(opts)
			if err != nil {
				return err
			}
			defer e.log.Sync()

			engine, err := e.engine(cmd.Context(), opts.docsDir)
			if err != nil {
				return err
			}
			report := engine.Analyze(cmd.Context(), req.Products, req.UserProfile)
			rt := routine.NewScheduler(e.rules, e.log).Optimize(req.Products, req.UserProfile, report)

			if opts.asJSON {
				return writeJSON(cmd.OutOrStdout(), rt)
			}
			printRoutine(cmd.OutOrStdout(), rt)
			return nil
		},
	}
}

func newIngestCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <docs-dir>",
		Short: "Index markdown reference documents into the Postgres knowledge base",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(opts)
			if err != nil {
				return err
			}
			defer e.log.Sync()

			if e.cfg.Database.URL == "" {
				return errors.New("DATABASE_URL is required")
			}
			embedder, err := e.embedder()
			if err != nil {
				return err
			}

			db, err := storage.Open(cmd.Context(), e.cfg.Database.URL)
			if err != nil {
				return err
			}
			defer db.Close()
			if _, err := storage.Migrate(cmd.Context(), db); err != nil {
				return err
			}

			n, err := ingestDir(cmd.Context(), e, embedder, storage.NewPostgresKnowledgeRepository(db), args[0])
			if err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Indexed %d passages\n", n)
			return nil
		},
	}
}

func newSeedRulesCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed-rules",
		Short: "Write the rule set's conflict rules to Postgres",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(opts)
			if err != nil {
				return err
			}
			defer e.log.Sync()

			if e.cfg.Database.URL == "" {
				return errors.New("DATABASE_URL is required")
			}
			db, err := storage.Open(cmd.Context(), e.cfg.Database.URL)
			if err != nil {
				return err
			}
			defer db.Close()
			if _, err := storage.Migrate(cmd.Context(), db); err != nil {
				return err
			}

			repo := storage.NewPostgresConflictRuleRepository(db)
			for _, rule := range e.rules.ConflictRules {
				if err := repo.Upsert(cmd.Context(), rule); err != nil {
					return fmt.Errorf("%s + %s: %w", rule.Ingredient1, rule.Ingredient2, err)
				}
			}
			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Seeded %d conflict rules\n", len(e.rules.ConflictRules))
			return nil
		},
	}
}
