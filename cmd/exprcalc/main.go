// Package main is the entry point for the exprcalc server and CLI.
package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lemonberrylabs/exprcalc/pkg/api"
	grpcapi "github.com/lemonberrylabs/exprcalc/pkg/api/grpc"
	"github.com/lemonberrylabs/exprcalc/pkg/config"
	"github.com/lemonberrylabs/exprcalc/pkg/runtime"
	"github.com/lemonberrylabs/exprcalc/pkg/store"
	"github.com/lemonberrylabs/exprcalc/web"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "exprcalc",
		Short:         "Expression calculator sessions over REST and gRPC",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.Version = version + " (commit=" + commit + ", built=" + date + ")"
	root.SetVersionTemplate("exprcalc version {{.Version}}\n")
	root.PersistentFlags().Bool("no-color", false, "Disable coloured output")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the REST and gRPC servers",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	serve.Flags().String("config", "", "TOML config file (env EXPRCALC_CONFIG)")
	serve.Flags().Int("port", 0, "HTTP server port (default 8787, env PORT)")
	serve.Flags().Int("grpc-port", 0, "gRPC server port (default 8788, env GRPC_PORT)")
	serve.Flags().String("host", "", "Bind address (default 0.0.0.0, env HOST)")
	serve.Flags().String("scripts-dir", "", "Directory of .calc scripts to load as sessions (env SCRIPTS_DIR)")
	serve.Flags().String("seed", "", "YAML bindings every new session starts with (env SEED_FILE)")
	serve.Flags().Int("max-line-length", 0, "Longest accepted line (default 400, env MAX_LINE_LENGTH)")

	root.AddCommand(serve, newEvalCmd(), newTokensCmd())
	return root
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		errorColor.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadServeConfig layers the serve flags over the file and environment.
func loadServeConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = os.Getenv("EXPRCALC_CONFIG")
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if v, _ := cmd.Flags().GetInt("port"); v != 0 {
		cfg.Server.Port = v
	}
	if v, _ := cmd.Flags().GetInt("grpc-port"); v != 0 {
		cfg.Server.GRPCPort = v
	}
	if v, _ := cmd.Flags().GetString("host"); v != "" {
		cfg.Server.Host = v
	}
	if v, _ := cmd.Flags().GetString("scripts-dir"); v != "" {
		cfg.Session.ScriptsDir = v
	}
	if v, _ := cmd.Flags().GetString("seed"); v != "" {
		cfg.Session.SeedFile = v
	}
	if v, _ := cmd.Flags().GetInt("max-line-length"); v != 0 {
		cfg.Session.MaxLineLength = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadServeConfig(cmd)
	if err != nil {
		return err
	}

	s := store.New(cfg.Session.MaxLineLength)
	if cfg.Session.SeedFile != "" {
		seed, err := runtime.LoadBindingsFile(cfg.Session.SeedFile)
		if err != nil {
			return fmt.Errorf("loading seed bindings: %w", err)
		}
		s.SetDefaultBindings(seed)
		log.Printf("Seeding new sessions with %d binding(s) from %s", len(seed), cfg.Session.SeedFile)
	}

	server := api.New(s)

	if dir := cfg.Session.ScriptsDir; dir != "" {
		if err := server.LoadDir(dir); err != nil {
			log.Printf("Warning: failed to load scripts directory: %v", err)
		}
	}

	ui := web.New(s)
	ui.Register(server.App())

	grpcServer := grpcapi.New(s)
	go func() {
		log.Printf("gRPC server listening on %s", cfg.GRPCAddr())
		if err := grpcServer.Serve(cfg.GRPCAddr()); err != nil {
			log.Fatalf("gRPC server error: %v", err)
		}
	}()

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down exprcalc...")
		grpcServer.GracefulStop()
		if err := server.Shutdown(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	}()

	log.Printf("exprcalc listening on %s (max line length %d)", cfg.HTTPAddr(), cfg.Session.MaxLineLength)
	return server.Listen(cfg.HTTPAddr())
}
