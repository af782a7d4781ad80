// Package main is the Bunko CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hakobune/bunko/internal/config"
	"github.com/hakobune/bunko/internal/embedding"
	"github.com/hakobune/bunko/internal/keyword"
	"github.com/hakobune/bunko/internal/rag"
	"github.com/hakobune/bunko/internal/server"
	"github.com/hakobune/bunko/internal/watcher"
	"github.com/hakobune/bunko/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/bunko/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used. Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// API keys commonly live in a local .env during development.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "serve":
		runServe()
	case "project":
		runProject()
	case "index":
		runIndex()
	case "delete":
		runDelete()
	case "docs":
		runDocs()
	case "search":
		runSearch()
	case "version", "--version", "-v":
		fmt.Printf("bunko version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// Components holds initialized services.
type Components struct {
	RAG      *rag.RAG
	Embedder embedding.Embedder
	Logger   *zap.Logger
}

func (c *Components) Close() {
	if c.RAG != nil {
		_ = c.RAG.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	var embedder embedding.Embedder
	openAIEmbedder, err := embedding.NewOpenAIEmbedder(&cfg.Embedding)
	if err != nil {
		logger.Warn("embedding service unavailable, using deterministic mock", zap.Error(err))
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	} else {
		embedder = openAIEmbedder
	}

	var extractor keyword.Extractor
	llmExtractor, err := keyword.NewLLMExtractor(&cfg.Extractor)
	if err != nil {
		logger.Warn("extraction service unavailable, keyword search degraded", zap.Error(err))
		extractor = keyword.NewStaticExtractor()
	} else {
		extractor = llmExtractor
	}

	r, err := rag.New(cfg, embedder, extractor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	return &Components{RAG: r, Embedder: embedder, Logger: logger}, nil
}

// setup is the shared preamble: load config, build logger and components.
func setup(configPath string, debugFlag bool) (*config.Config, *Components, func()) {
	cfg, resolvedPath, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debugFlag
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("config loaded", zap.String("config_path", resolvedPath))
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	cleanup := func() {
		components.Close()
		_ = logger.Sync()
	}
	return cfg, components, cleanup
}

func runServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, components, cleanup := setup(*configPath, *debug)
	defer cleanup()
	logger := components.Logger

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Watch.Project != "" && len(cfg.Watch.Directories) > 0 {
		idx := components.RAG.Indexer()
		project := cfg.Watch.Project
		watchSvc := watcher.NewWatcher(
			cfg.Watch.Directories,
			cfg.Watch.Extensions,
			cfg.Watch.RecursiveOrDefault(),
			func(path string) {
				if _, err := idx.UpsertByPath(context.Background(), project, path); err != nil {
					logger.Warn("watch index failed", zap.String("path", path), zap.Error(err))
				}
			},
			func(path string) {
				if err := idx.RemoveByPath(context.Background(), project, path); err != nil {
					logger.Warn("watch remove failed", zap.String("path", path), zap.Error(err))
				}
			},
			watcher.WithLogger(logger),
		)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
		watchSvc.SyncExistingFiles()
	}

	srv := server.NewServer(components.RAG, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runProject() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: bunko project <add|remove|list> [flags]")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("project "+sub, flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	id := fs.String("id", "", "project id (add: generated when empty)")
	name := fs.String("name", "", "project name")
	description := fs.String("description", "", "project description")
	_ = fs.Parse(os.Args[3:])

	_, components, cleanup := setup(*configPath, false)
	defer cleanup()
	ctx := context.Background()

	switch sub {
	case "add":
		projectID := *id
		if projectID == "" {
			projectID = uuid.New().String()
		}
		proj, err := components.RAG.CreateProject(ctx, projectID, *name, *description)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Create project failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Project created: %s (%s)\n", proj.Meta().ID, proj.Meta().Name)
	case "remove":
		if *id == "" && fs.NArg() > 0 {
			*id = fs.Arg(0)
		}
		if *id == "" {
			fmt.Println("Usage: bunko project remove --id <project-id>")
			os.Exit(1)
		}
		if err := components.RAG.RemoveProject(*id); err != nil {
			fmt.Fprintf(os.Stderr, "Remove project failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Project removed: %s\n", *id)
	case "list":
		projects, err := components.RAG.Projects(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "List projects failed: %v\n", err)
			os.Exit(1)
		}
		for _, p := range projects {
			fmt.Printf("%s\t%s\t%s\n", p.ID, p.Name, p.CreatedAt.Format(time.RFC3339))
		}
	default:
		fmt.Printf("Unknown project subcommand: %s\n", sub)
		os.Exit(1)
	}
}

func runIndex() {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	projectID := fs.String("project", "", "project id")
	_ = fs.Parse(os.Args[2:])

	if *projectID == "" || fs.NArg() < 1 {
		fmt.Println("Usage: bunko index --project <id> <file.md> [file.md...]")
		os.Exit(1)
	}

	_, components, cleanup := setup(*configPath, false)
	defer cleanup()
	ctx := context.Background()
	idx := components.RAG.Indexer()

	for _, path := range fs.Args() {
		doc, err := idx.AddDocumentFile(ctx, *projectID, path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Indexing %s failed: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("Indexed %s: document %d (%d chunks)\n", path, doc.ID, doc.ChunkCount)
	}
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	projectID := fs.String("project", "", "project id")
	_ = fs.Parse(os.Args[2:])

	if *projectID == "" || fs.NArg() < 1 {
		fmt.Println("Usage: bunko delete --project <id> <document-id>")
		os.Exit(1)
	}
	var docID int64
	if _, err := fmt.Sscanf(fs.Arg(0), "%d", &docID); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid document id %q\n", fs.Arg(0))
		os.Exit(1)
	}

	_, components, cleanup := setup(*configPath, false)
	defer cleanup()

	if err := components.RAG.Indexer().RemoveDocument(context.Background(), *projectID, docID); err != nil {
		fmt.Fprintf(os.Stderr, "Deletion failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Document deleted: %d\n", docID)
}

func runDocs() {
	fs := flag.NewFlagSet("docs", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	projectID := fs.String("project", "", "project id")
	_ = fs.Parse(os.Args[2:])

	if *projectID == "" {
		fmt.Println("Usage: bunko docs --project <id>")
		os.Exit(1)
	}

	_, components, cleanup := setup(*configPath, false)
	defer cleanup()
	ctx := context.Background()

	proj, err := components.RAG.Project(ctx, *projectID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Project lookup failed: %v\n", err)
		os.Exit(1)
	}
	docs, err := proj.Documents(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "List documents failed: %v\n", err)
		os.Exit(1)
	}
	for _, d := range docs {
		fmt.Printf("%d\t%s\t%d chunks\t%s\n", d.ID, d.Name, d.ChunkCount, d.CreatedAt.Format(time.RFC3339))
	}
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	projectID := fs.String("project", "", "project id")
	mode := fs.String("mode", "hybrid", "search mode: vector, keyword, or hybrid")
	k := fs.Int("k", 0, "number of results (0 = configured default)")
	alpha := fs.Float64("alpha", -1, "hybrid vector weight in [0,1] (-1 = configured default)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if *projectID == "" || fs.NArg() < 1 {
		fmt.Println("Usage: bunko search --project <id> [flags] <query>")
		os.Exit(1)
	}
	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if query == "" {
		fmt.Println("Usage: bunko search --project <id> [flags] <query>")
		os.Exit(1)
	}

	_, components, cleanup := setup(*configPath, false)
	defer cleanup()
	ctx := context.Background()

	proj, err := components.RAG.Project(ctx, *projectID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Project lookup failed: %v\n", err)
		os.Exit(1)
	}
	response, err := proj.Search(ctx, query, *mode, *k, *alpha)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(response); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("%d result(s) in %dms\n", response.Total, response.QueryTime)
		for i, r := range response.Results {
			fmt.Printf("\n%d. [doc %d, chunk %d] score=%.4f\n", i+1, r.DocumentID, r.Seq, r.Score)
			content := r.Content
			if len(content) > 300 {
				content = content[:300] + "..."
			}
			fmt.Println(content)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`bunko - Project-scoped hybrid RAG store for markdown

Usage:
  bunko serve [flags]                         Start the HTTP server
  bunko project add|remove|list [flags]       Manage projects
  bunko index --project <id> <file.md>...     Index markdown files
  bunko delete --project <id> <document-id>   Delete a document
  bunko docs --project <id>                   List documents in a project
  bunko search --project <id> [flags] <query> Search a project
  bunko version                               Show version
  bunko help                                  Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/bunko/config.yaml,
                     falls back to ./config.yaml when present)

Search Flags:
  --mode string      vector, keyword, or hybrid (default: hybrid)
  --k int            Number of results (default from config)
  --alpha float      Hybrid vector weight in [0,1] (default from config)
  --output string    text or json (default: text)

Examples:
  bunko project add --id notes --name "Personal notes"
  bunko index --project notes journal.md
  bunko search --project notes --mode hybrid kamakura bakufu
  bunko serve --debug`)
}
