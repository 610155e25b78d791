// Package main is the kotae CLI entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/cli"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/ingest"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/server"
	"github.com/hyperjump/kotae/internal/vectorstore"
	"github.com/hyperjump/kotae/internal/watcher"
	"github.com/hyperjump/kotae/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/kotae/config.yaml"
	defaultServerURL  = "http://localhost:8000"
)

// loadConfig loads config from path. When path is the default, a config.yaml in the
// current directory takes precedence. Without any config file, defaults and KOTAE_*
// variables are used. Returns the config and the path that was loaded.
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
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			var cfg config.Config
			if err := config.ApplyEnv(&cfg); err != nil {
				return nil, "", err
			}
			config.ApplyDefaults(&cfg)
			return &cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func newLogger(cfg *config.Config, debug bool) (*zap.Logger, error) {
	if debug || cfg.Debug {
		return utils.NewLogger(true)
	}
	return utils.NewLoggerWithLevel(cfg.LogLevel)
}

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "ask":
		runAsk()
	case "sessions":
		runSessions()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("kotae version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	logger, err := newLogger(cfg, *debug)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", cfg.Debug || *debug),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	srv := server.NewServer(
		components.Sessions,
		components.Ingester,
		components.Answers,
		&cfg.Server,
		components.Info,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// reorderArgs moves flags that follow positional arguments to the front so that
// flag.Parse sees them. Go's flag package stops at the first non-flag argument.
func reorderArgs(args []string) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if strings.HasPrefix(a, "-") && len(a) > 1 {
			flags = append(flags, a)
			if !strings.Contains(a, "=") && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") && !isBoolFlag(a) {
				flags = append(flags, args[i+1])
				i++
			}
			continue
		}
		positional = append(positional, a)
	}
	return append(flags, positional...)
}

func isBoolFlag(a string) bool {
	name := strings.TrimLeft(a, "-")
	return name == "debug"
}

// buildQuery joins positional arguments into one query string.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func parseFormat(s string) cli.OutputFormat {
	format, err := cli.ParseOutputFormat(s)
	if err != nil {
		fatalf("%v", err)
	}
	return format
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	corpus := fs.String("corpus", "", "corpus directory to ingest into directly")
	serverURL := fs.String("server", "", "server URL; uploads files to a session instead of a local corpus")
	sessionID := fs.String("session", "", "session id to upload into (server mode)")
	role := fs.String("role", "", "role for a new session (server mode)")
	watch := fs.Bool("watch", false, "keep watching directory arguments and ingest new files (corpus mode)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: kotae ingest [flags] <file-or-directory>...\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(reorderArgs(os.Args[2:]))
	if fs.NArg() < 1 {
		fs.Usage()
		os.Exit(1)
	}
	format := parseFormat(*outputFormat)
	ctx := context.Background()

	if *serverURL != "" {
		resp, err := cli.NewClient(*serverURL).Upload(ctx, *sessionID, *role, fs.Args())
		if err != nil {
			fatalf("Upload failed: %v", err)
		}
		if err := cli.WriteUpload(os.Stdout, resp, format); err != nil {
			fatalf("Output failed: %v", err)
		}
		return
	}
	if *corpus == "" {
		fatalf("Either --corpus or --server is required")
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	logger, err := newLogger(cfg, false)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		fatalf("Failed to initialize: %v", err)
	}
	defer components.Close()

	store, err := components.Open(*corpus)
	if err != nil {
		fatalf("Failed to open corpus: %v", err)
	}
	defer store.Close()

	var files, chunks int
	var names []string
	for _, path := range fs.Args() {
		info, err := os.Stat(path)
		if err != nil {
			fatalf("Failed to ingest %s: %v", path, err)
		}
		if info.IsDir() {
			f, n, err := components.Ingester.IngestDirectory(ctx, store, path)
			if err != nil {
				fatalf("Failed to ingest %s: %v", path, err)
			}
			files += f
			chunks += n
			names = append(names, path)
			continue
		}
		n, err := components.Ingester.IngestFile(ctx, store, path)
		if err != nil {
			fatalf("Failed to ingest %s: %v", path, err)
		}
		files++
		chunks += n
		names = append(names, filepath.Base(path))
	}
	resp := &models.UploadResponse{
		Message:   fmt.Sprintf("Successfully processed %d files (%d chunks).", files, chunks),
		Filenames: names,
	}
	if err := cli.WriteUpload(os.Stdout, resp, format); err != nil {
		fatalf("Output failed: %v", err)
	}
	if *watch {
		watchCorpus(components.Ingester, store, directories(fs.Args()), logger)
	}
}

func directories(paths []string) []string {
	var dirs []string
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			dirs = append(dirs, p)
		}
	}
	return dirs
}

// watchCorpus ingests files that appear under dirs until interrupted. A file whose
// name is already a source in the store is skipped, since stores are append-only.
func watchCorpus(in *ingest.Ingester, store *vectorstore.Store, dirs []string, logger *zap.Logger) {
	if len(dirs) == 0 {
		fatalf("--watch needs at least one directory argument")
	}
	var mu sync.Mutex
	seen := make(map[string]bool)
	for _, s := range store.Sources() {
		seen[s] = true
	}
	onFile := func(path string) {
		name := filepath.Base(path)
		mu.Lock()
		defer mu.Unlock()
		if seen[name] {
			logger.Info("already ingested, skipping", zap.String("path", path))
			return
		}
		n, err := in.IngestFile(context.Background(), store, path)
		if err != nil {
			logger.Warn("watch ingest failed", zap.String("path", path), zap.Error(err))
			return
		}
		seen[name] = true
		logger.Info("ingested", zap.String("path", path), zap.Int("chunks", n))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	w := watcher.New(dirs, in.Supports, onFile, watcher.WithLogger(logger))
	if err := w.Start(ctx); err != nil {
		fatalf("Failed to start watcher: %v", err)
	}
	defer w.Stop()
	fmt.Printf("Watching %s (Ctrl+C to stop)\n", strings.Join(dirs, ", "))
	<-ctx.Done()
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	corpus := fs.String("corpus", "", "corpus directory to answer from directly")
	serverURL := fs.String("server", "", "server URL; asks within --session")
	sessionID := fs.String("session", "", "session id (server mode)")
	role := fs.String("role", "", "role for entity filtering (direct mode)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: kotae ask [flags] <query>\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(reorderArgs(os.Args[2:]))
	query := buildQuery(fs.Args())
	if query == "" {
		fs.Usage()
		os.Exit(1)
	}
	format := parseFormat(*outputFormat)
	ctx := context.Background()

	if *serverURL != "" {
		if *sessionID == "" {
			fatalf("--session is required with --server")
		}
		resp, err := cli.NewClient(*serverURL).Chat(ctx, *sessionID, query)
		if err != nil {
			fatalf("Ask failed: %v", err)
		}
		if err := cli.WriteAnswer(os.Stdout, resp.Response, format); err != nil {
			fatalf("Output failed: %v", err)
		}
		return
	}
	if *corpus == "" {
		fatalf("Either --corpus or --server is required")
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	logger, err := newLogger(cfg, false)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		fatalf("Failed to initialize: %v", err)
	}
	defer components.Close()

	store, err := components.Open(*corpus)
	if err != nil {
		fatalf("Failed to open corpus: %v", err)
	}
	defer store.Close()

	result := components.Answers.Answer(ctx, store, query, *role)
	msg := models.Message{
		Sender:     models.SenderAI,
		Content:    result.Text,
		Sources:    result.Sources,
		Confidence: result.Confidence,
	}
	if err := cli.WriteAnswer(os.Stdout, msg, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runSessions() {
	fs := flag.NewFlagSet("sessions", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = read the session database directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: kotae sessions [flags] [session-id]\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(reorderArgs(os.Args[2:]))
	format := parseFormat(*outputFormat)
	ctx := context.Background()
	id := buildQuery(fs.Args())

	if *serverURL != "" {
		c := cli.NewClient(*serverURL)
		if id != "" {
			h, err := c.History(ctx, id)
			if err != nil {
				fatalf("Sessions failed: %v", err)
			}
			_ = cli.WriteHistory(os.Stdout, h, format)
			return
		}
		list, err := c.Sessions(ctx)
		if err != nil {
			fatalf("Sessions failed: %v", err)
		}
		_ = cli.WriteSessions(os.Stdout, list, format)
		return
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	logger, err := newLogger(cfg, false)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		fatalf("Failed to initialize: %v", err)
	}
	defer components.Close()

	if id != "" {
		h, err := components.Sessions.History(ctx, id)
		if err != nil {
			fatalf("Sessions failed: %v", err)
		}
		_ = cli.WriteHistory(os.Stdout, h, format)
		return
	}
	list, err := components.Sessions.List(ctx)
	if err != nil {
		fatalf("Sessions failed: %v", err)
	}
	_ = cli.WriteSessions(os.Stdout, list, format)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = read local state directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := parseFormat(*outputFormat)
	ctx := context.Background()

	var status *models.StatusResponse
	if *serverURL != "" {
		res, err := cli.NewClient(*serverURL).Status(ctx)
		if err != nil {
			fatalf("Status failed: %v", err)
		}
		status = res
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fatalf("Failed to load config: %v", err)
		}
		logger, err := newLogger(cfg, false)
		if err != nil {
			fatalf("Failed to create logger: %v", err)
		}
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger)
		if err != nil {
			fatalf("Failed to initialize: %v", err)
		}
		defer components.Close()
		status, err = localStatus(ctx, components)
		if err != nil {
			fatalf("Status failed: %v", err)
		}
	}
	if err := cli.WriteStatus(os.Stdout, status, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func localStatus(ctx context.Context, c *Components) (*models.StatusResponse, error) {
	count, err := c.Sessions.Count(ctx)
	if err != nil {
		return nil, err
	}
	disk, err := c.Sessions.DiskUsage()
	if err != nil {
		return nil, err
	}
	return &models.StatusResponse{
		Version:        c.Info.Version,
		Sessions:       count,
		OpenStores:     c.Sessions.OpenStores(),
		EmbeddingModel: c.Info.EmbeddingModel,
		Dimensions:     c.Info.Dimensions,
		IndexType:      c.Info.IndexType,
		Roles:          c.Answers.Roles(),
		Extensions:     c.Ingester.Extensions(),
		DiskUsageBytes: disk,
	}, nil
}

func printUsage() {
	fmt.Println(`kotae - Role-aware question answering over your documents

Usage:
  kotae server [flags]                 Start the HTTP server
  kotae ingest [flags] <path>...       Add documents to a corpus or a server session
  kotae ask [flags] <query>            Ask a question or run a task
  kotae sessions [flags] [session-id]  List sessions or show one session's history
  kotae status [flags]                 Show sessions, storage and model status
  kotae version                        Show version
  kotae help                           Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/kotae/config.yaml)
  --debug            Enable debug logging

Ingest Flags:
  --corpus string    Corpus directory for direct ingestion
  --server string    Server URL; upload into a session instead
  --session string   Session id to upload into (server mode)
  --role string      Role for a new session (server mode)
  --watch            Keep watching directory arguments and ingest new files (corpus mode)

Ask Flags:
  --corpus string    Corpus directory to answer from directly
  --server string    Server URL; ask within --session
  --session string   Session id (server mode)
  --role string      Role used to filter key entities (direct mode)
  --output string    Output format: text or json (default: text)

Sessions / Status Flags:
  --server string    Server URL (default: http://localhost:8000). Use --server "" for direct access.
  --output string    Output format: text or json (default: text)

Examples:
  kotae server
  kotae ingest --server http://localhost:8000 --role "Tech Lead" design.pdf roadmap.docx
  kotae ask --server http://localhost:8000 --session <id> "What is the launch date?"
  kotae ingest --corpus ./corpus ./docs
  kotae ingest --corpus ./corpus --watch ./inbox
  kotae ask --corpus ./corpus --role "Compliance Lead" "Summarize the KYC obligations"
  kotae sessions
  kotae status --output json`)
}
