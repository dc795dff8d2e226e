// File path: cmd/funnelsim/cmd_serve.go
package main

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nicodishanthj/funnelsim/internal/api"
	"github.com/nicodishanthj/funnelsim/internal/common"
	"github.com/nicodishanthj/funnelsim/internal/config"
	"github.com/nicodishanthj/funnelsim/internal/llm"
	"github.com/nicodishanthj/funnelsim/internal/run"
	"github.com/nicodishanthj/funnelsim/internal/store"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and web UI",
		Long: `Start the simulator service: JSON API under /v1, web UI under /ui/,
health probe at /healthz. Configuration comes from FUNNELSIM_* environment
variables (and a .env file when present); flags override the environment.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := common.Logger()
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if addr, _ := cmd.Flags().GetString("addr"); strings.TrimSpace(addr) != "" {
				cfg.Addr = strings.TrimSpace(addr)
			}
			if archive, _ := cmd.Flags().GetString("archive"); strings.TrimSpace(archive) != "" {
				cfg.ArchivePath = strings.TrimSpace(archive)
			}
			if ui, _ := cmd.Flags().GetString("ui"); strings.TrimSpace(ui) != "" {
				cfg.UIDir = strings.TrimSpace(ui)
			}
			if history, _ := cmd.Flags().GetString("history"); strings.TrimSpace(history) != "" {
				cfg.HistoryPath = strings.TrimSpace(history)
			}
			if noArchive, _ := cmd.Flags().GetBool("no-archive"); noArchive {
				cfg.ArchivePath = ""
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("config: %w", err)
			}

			logger.Info("funnelsim: startup initiated", "addr", cfg.Addr, "provider", cfg.Provider, "model", cfg.Model)

			provider, err := llm.New(cfg)
			if err != nil {
				return fmt.Errorf("llm provider: %w", err)
			}
			logger.Info("funnelsim: llm provider ready", "provider", provider.Name())

			var archive *store.Store
			if strings.TrimSpace(cfg.ArchivePath) != "" {
				archive, err = store.Open(cfg.ArchivePath)
				if err != nil {
					return fmt.Errorf("open archive: %w", err)
				}
				defer archive.Close()
				logger.Info("funnelsim: run archive ready", "path", cfg.ArchivePath)
			} else {
				logger.Info("funnelsim: run archive disabled")
			}

			manager := run.NewManager(provider, cfg, archive)

			apiCfg := api.Config{
				UIDir:           cfg.UIDir,
				DefaultModel:    cfg.Model,
				DefaultPersonas: cfg.DefaultPersonas,
				MaxFlowSteps:    cfg.MaxFlowSteps,
			}
			server, err := api.NewServer(manager, archive, &apiCfg)
			if err != nil {
				return fmt.Errorf("build server: %w", err)
			}

			logger.Info("funnelsim: server listening", "addr", cfg.Addr, "ui", "/ui/", "health", "/healthz")
			fmt.Fprintf(cmd.OutOrStdout(), "Serving on %s\n", cfg.Addr)
			reachable := cfg.Addr
			if strings.HasPrefix(reachable, ":") {
				reachable = "localhost" + reachable
			}
			logger.Info("funnelsim: verify reachability", "suggestion", fmt.Sprintf("curl http://%s/healthz", reachable))
			return http.ListenAndServe(cfg.Addr, server)
		},
	}
	cmd.Flags().String("addr", "", "listen address (overrides FUNNELSIM_ADDR)")
	cmd.Flags().String("archive", "", "path to the SQLite run archive (overrides FUNNELSIM_ARCHIVE_PATH)")
	cmd.Flags().Bool("no-archive", false, "disable the SQLite run archive")
	cmd.Flags().String("ui", "", "directory holding the web UI assets")
	cmd.Flags().String("history", "", "path to the run history JSON file")
	return cmd
}
