package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/wagnerlima/memory-cloud/graph-mcp/internal/config"
	"github.com/wagnerlima/memory-cloud/graph-mcp/internal/graph"
	"github.com/wagnerlima/memory-cloud/graph-mcp/internal/logger"
	"github.com/wagnerlima/memory-cloud/graph-mcp/internal/server"
	"github.com/wagnerlima/memory-cloud/graph-mcp/internal/storage"
)

var (
	flagTransport string
	flagAddr      string
	flagBackend   string
	flagDataDir   string
)

var rootCmd = &cobra.Command{
	Use:   "graph-mcp",
	Short: "MCP server exposing a property-graph knowledge store",
	Long: `graph-mcp serves tools to create, relate, search, update and delete
entities in a Neo4j (or embedded SQLite) knowledge graph over the Model
Context Protocol, on stdio or streamable HTTP.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var introspectCmd = &cobra.Command{
	Use:   "introspect",
	Short: "Print the graph schema as JSON",
	RunE:  runIntrospect,
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Verify connectivity to the graph store",
	RunE:  runPing,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagBackend, "backend", "", "Graph backend: neo4j or sqlite (overrides GRAPH_BACKEND)")
	pf.StringVar(&flagDataDir, "data-dir", "", "Directory of the SQLite database (overrides SQLITE_DATA_DIR)")
	rootCmd.Flags().StringVar(&flagTransport, "transport", "", "Transport mode: stdio or http (overrides MCP_TRANSPORT)")
	rootCmd.Flags().StringVar(&flagAddr, "addr", "", "HTTP listen address (overrides MCP_HTTP_ADDR)")

	rootCmd.AddCommand(introspectCmd, pingCmd)
}

// Execute runs the root command with signal handling
func Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

// setup loads the configuration, applies flag overrides and builds the logger.
func setup(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// applyFlags overrides cfg with the flags set on the command line.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("transport") {
		cfg.Transport = flagTransport
	}
	if cmd.Flags().Changed("addr") {
		cfg.HTTPAddr = flagAddr
	}
	if cmd.Flags().Changed("backend") {
		cfg.Backend = flagBackend
	}
	if cmd.Flags().Changed("data-dir") {
		cfg.SQLite.DataDir = flagDataDir
	}
}

// openStore connects to the configured backend.
func openStore(ctx context.Context, cfg *config.Config) (graph.Store, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		return storage.OpenSQLite(cfg.SQLite.DataDir)
	default:
		return storage.OpenNeo4j(ctx, storage.Neo4jConfig{
			URI:                   cfg.Neo4j.URI,
			Username:              cfg.Neo4j.Username,
			Password:              cfg.Neo4j.Password,
			Database:              cfg.Neo4j.Database,
			MaxConnectionPoolSize: cfg.Neo4j.MaxPoolSize,
			AcquisitionTimeout:    cfg.Neo4j.AcquisitionTimeout,
		})
	}
}

func openService(cmd *cobra.Command) (*config.Config, *slog.Logger, *graph.Service, error) {
	cfg, log, err := setup(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	store, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open %s store: %w", cfg.Backend, err)
	}
	svc := graph.New(store,
		graph.WithLogger(log.With(logger.Scope("graph"))),
		graph.WithSchemaSampleSize(cfg.SchemaSampleSize),
	)
	return cfg, log, svc, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, svc, err := openService(cmd)
	if err != nil {
		return err
	}
	defer closeStore(svc.Store(), log)

	srv := server.New(svc, log)
	ctx := cmd.Context()

	switch cfg.Transport {
	case config.TransportHTTP:
		return serveHTTP(ctx, cfg, log, srv, svc.Store())
	default:
		log.Info("graph MCP server starting", slog.String("transport", "stdio"), slog.String("backend", cfg.Backend))
		if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}
}

func serveHTTP(ctx context.Context, cfg *config.Config, log *slog.Logger, srv *mcp.Server, store graph.Store) error {
	httpSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: server.NewHTTPHandler(srv, store),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("graph MCP server listening", slog.String("addr", cfg.HTTPAddr), slog.String("backend", cfg.Backend))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

func runIntrospect(cmd *cobra.Command, _ []string) error {
	_, log, svc, err := openService(cmd)
	if err != nil {
		return err
	}
	defer closeStore(svc.Store(), log)

	schema, err := svc.IntrospectSchema(cmd.Context())
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(schema)
}

func runPing(cmd *cobra.Command, _ []string) error {
	cfg, log, svc, err := openService(cmd)
	if err != nil {
		return err
	}
	defer closeStore(svc.Store(), log)

	if err := svc.Store().Ping(cmd.Context()); err != nil {
		return fmt.Errorf("ping %s store: %w", cfg.Backend, err)
	}
	cmd.Printf("%s store reachable\n", cfg.Backend)
	return nil
}

func closeStore(store graph.Store, log *slog.Logger) {
	if err := store.Close(context.Background()); err != nil {
		log.Warn("closing store", logger.Error(err))
	}
}
