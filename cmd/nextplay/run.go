package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/hazyhaar/nextplay/autoplay"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Drive the configured pages until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger(cmd)

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return run(ctx, logger, cfg)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("config", "", "path to nextplay.yaml")
	runCmd.Flags().String("url", "", "drive a single URL (stdout reports)")
	runCmd.Flags().String("http", "", "listen address for the control API, overrides http.addr")
	runCmd.Flags().Bool("mcp", false, "serve MCP tools on /mcp")
	runCmd.Flags().Bool("headful", false, "run Chrome headful under Xvfb")
	runCmd.Flags().String("remote", "", "DevTools URL of an existing Chrome")
	runCmd.Flags().String("pages-db", "", "SQLite page list watched at runtime")
}

func loadConfig(cmd *cobra.Command) (*autoplay.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	url, _ := cmd.Flags().GetString("url")

	var cfg *autoplay.Config
	switch {
	case path != "":
		c, err := autoplay.LoadConfigFile(path)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = c
	default:
		cfg = &autoplay.Config{}
	}
	if url != "" {
		cfg.Pages = append(cfg.Pages, autoplay.PageConfig{URL: url})
	}

	if f := cmd.Flags(); f.Changed("http") {
		cfg.HTTP.Addr, _ = f.GetString("http")
	}
	if mcpOn, _ := cmd.Flags().GetBool("mcp"); mcpOn {
		cfg.HTTP.MCP = true
	}
	if headful, _ := cmd.Flags().GetBool("headful"); headful {
		cfg.Browser.Stealth = "headful"
	}
	if remote, _ := cmd.Flags().GetString("remote"); remote != "" {
		cfg.Browser.Remote = remote
	}
	if db, _ := cmd.Flags().GetString("pages-db"); db != "" {
		cfg.PagesDB = db
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(cfg.Pages) == 0 && cfg.PagesDB == "" {
		return nil, errors.New("no pages: use --config, --url or --pages-db")
	}
	return cfg, nil
}

func run(ctx context.Context, logger *slog.Logger, cfg *autoplay.Config) error {
	sinks, err := autoplay.BuildSinks(cfg.Sinks, logger)
	if err != nil {
		return err
	}

	r := autoplay.NewRunner(cfg, logger, sinks...)
	if err := r.Start(ctx); err != nil {
		r.Stop()
		return fmt.Errorf("start: %w", err)
	}
	defer r.Stop()

	if cfg.HTTP.Addr == "" {
		<-ctx.Done()
		return nil
	}

	opts := autoplay.HandlerOptions{Gatherer: r.Registry(), Logger: logger}
	if cfg.HTTP.MCP {
		opts.MCP = mcp.NewServer(&mcp.Implementation{Name: "nextplay", Version: version}, nil)
		autoplay.RegisterMCP(opts.MCP, r, logger)
	}
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           autoplay.NewHandler(r, opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("nextplay: http listening", "addr", srv.Addr, "mcp", cfg.HTTP.MCP)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("http: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("nextplay: http shutdown", "error", err)
		srv.Close()
	}
	return nil
}
