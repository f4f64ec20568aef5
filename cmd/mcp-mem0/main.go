package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/51302890/mcp-mem0/internal/config"
	"github.com/51302890/mcp-mem0/internal/mcp"
	"github.com/51302890/mcp-mem0/internal/mem0"
	"github.com/51302890/mcp-mem0/internal/memory"
	"github.com/51302890/mcp-mem0/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "mcp-mem0",
	Short:   "MCP server for long-term memory storage and retrieval",
	Version: version.Full(),
	Long: `mcp-mem0 exposes a long-term memory store to AI agents through
MCP tools: save a memory, list all memories, and search memories
semantically. Storage, embedding, and retrieval are handled by a
mem0-compatible memory service.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("mcp-mem0 %s\n", version.Version)
		fmt.Printf("  commit:  %s\n", version.Commit)
		fmt.Printf("  built:   %s\n", version.Date)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol (MCP) server exposing the memory
tools. The transport is stdio by default; use --transport http to expose
the server over HTTP instead.`,
	RunE: runServe,
}

var saveCmd = &cobra.Command{
	Use:   "save <text>",
	Short: "Save a memory directly",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSave,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored memories as JSON",
	RunE:  runList,
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search memories semantically",
	Long: `Search stored memories using natural language queries. Results are
ranked by similarity and filtered by a minimum score.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage mcp-mem0 configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved configuration",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	RunE:  runConfigInit,
}

func init() {
	rootCmd.SetVersionTemplate("mcp-mem0 version {{.Version}}\n")

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	// Serve command flags
	serveCmd.Flags().String("transport", "", "transport (stdio or http)")
	serveCmd.Flags().String("host", "", "bind address for the http transport")
	serveCmd.Flags().IntP("port", "p", 0, "port for the http transport")

	// Search command flags
	searchCmd.Flags().IntP("limit", "n", 0, "maximum number of results")
	searchCmd.Flags().Float64("min-score", 0, "minimum similarity score (0-1)")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(saveCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(configCmd)
}

// newLogger builds a logger writing to stderr; stdout belongs to the stdio
// MCP transport. --verbose wins over the configured level.
func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	if viper.GetBool("verbose") {
		l = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

// buildService constructs the shared client handle and the service on top
// of it. The client lives for the process lifetime; it owns its own
// connection pool and needs no teardown.
func buildService(cfg *config.Config, logger *slog.Logger) (*memory.Service, *mem0.Client) {
	client := mem0.NewClient(mem0.Config{
		BaseURL:    cfg.Mem0.BaseURL,
		APIKey:     cfg.Mem0.APIKey,
		Timeout:    time.Duration(cfg.Mem0.TimeoutSeconds) * time.Second,
		MaxRetries: cfg.Mem0.MaxRetries,
	})

	service := memory.NewService(memory.ServiceConfig{
		Client: client,
		UserID: cfg.Mem0.UserID,
		Logger: logger,
	})
	return service, client
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Flags override config
	if transport, _ := cmd.Flags().GetString("transport"); transport != "" {
		cfg.Server.Transport = transport
	}
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.Server.Host = host
	}
	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.Server.Port = port
	}

	logger := newLogger(cfg.LogLevel)
	service, client := buildService(cfg, logger)

	// Probe the memory service up front. A failure is worth knowing about
	// but must not stop the server: the service may come up later.
	pingCtx, cancelPing := context.WithTimeout(cmd.Context(), 10*time.Second)
	if err := client.Ping(pingCtx); err != nil {
		logger.Warn("memory service not reachable", "error", err)
	}
	cancelPing()

	server := mcp.NewServer(mcp.ServerConfig{
		Service:         service,
		Logger:          logger,
		DefaultLimit:    cfg.Search.DefaultLimit,
		DefaultMinScore: cfg.Search.MinScore,
	})

	// Set up context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutting down")
		cancel()
	}()

	// Hot-reload search defaults while serving
	if path := config.ConfigFilePath(); path != "" {
		watcher, err := config.NewWatcher(path, logger)
		if err != nil {
			logger.Warn("config watch unavailable", "error", err)
		} else {
			watcher.SetCallback(func(updated *config.Config) {
				server.SetSearchDefaults(updated.Search.DefaultLimit, updated.Search.MinScore)
			})
			if err := watcher.Start(ctx); err != nil {
				logger.Warn("config watch failed", "error", err)
				watcher.Stop()
			} else {
				defer watcher.Stop()
			}
		}
	}

	switch cfg.Server.Transport {
	case "http", "sse":
		return server.ListenAndServe(ctx, cfg.Server.Host, cfg.Server.Port)
	default:
		logger.Info("stdio transport starting")
		return server.Run(ctx)
	}
}

func runSave(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	service, _ := buildService(cfg, newLogger(cfg.LogLevel))
	fmt.Println(service.SaveMemory(cmd.Context(), strings.Join(args, " ")))
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	service, _ := buildService(cfg, newLogger(cfg.LogLevel))
	fmt.Println(service.ListMemories(cmd.Context()))
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 {
		limit = cfg.Search.DefaultLimit
	}
	minScore, _ := cmd.Flags().GetFloat64("min-score")
	if minScore <= 0 {
		minScore = cfg.Search.MinScore
	}

	service, _ := buildService(cfg, newLogger(cfg.LogLevel))
	fmt.Println(service.SearchMemories(cmd.Context(), strings.Join(args, " "), limit, minScore))
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	fmt.Print(string(data))
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path, err := config.WriteDefaultConfig()
	if err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	fmt.Printf("Config written to %s\n", path)
	return nil
}
