// File path: cmd/funnelsim/cmd_run.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nicodishanthj/funnelsim/internal/common"
	"github.com/nicodishanthj/funnelsim/internal/config"
	"github.com/nicodishanthj/funnelsim/internal/llm"
	"github.com/nicodishanthj/funnelsim/internal/report"
	"github.com/nicodishanthj/funnelsim/internal/run"
	"github.com/nicodishanthj/funnelsim/internal/scenario"
)

const runPollInterval = 150 * time.Millisecond

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a scenario once and print the report",
		Long: `Run a simulation described by a YAML scenario file and print the
funnel report when it finishes. Interrupting with Ctrl-C cancels the run.

Example:
  funnelsim run --scenario onboarding.yaml --personas 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := common.Logger()
			scenarioPath, _ := cmd.Flags().GetString("scenario")
			if strings.TrimSpace(scenarioPath) == "" {
				return fmt.Errorf("--scenario is required")
			}
			sc, err := scenario.Load(scenarioPath)
			if err != nil {
				return err
			}
			req := sc.Request()
			if personas, _ := cmd.Flags().GetInt("personas"); personas > 0 {
				req.Personas = personas
			}
			if model, _ := cmd.Flags().GetString("model"); strings.TrimSpace(model) != "" {
				req.Model = strings.TrimSpace(model)
			}
			if workers, _ := cmd.Flags().GetInt("workers"); workers > 0 {
				req.Workers = workers
			}

			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("config: %w", err)
			}
			provider, err := llm.New(cfg)
			if err != nil {
				return fmt.Errorf("llm provider: %w", err)
			}

			manager := run.NewManager(provider, cfg, nil)
			runID, err := manager.Start(req)
			if err != nil {
				return err
			}
			logger.Info("funnelsim: scenario run started", "run_id", runID, "scenario", sc.Name)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			state, err := waitForRun(ctx, manager, runID)
			if err != nil {
				return err
			}
			if state.Status != "completed" {
				if state.Error != "" {
					return fmt.Errorf("run %s %s: %s", runID, state.Status, state.Error)
				}
				return fmt.Errorf("run %s %s", runID, state.Status)
			}
			result, err := manager.Result(runID)
			if err != nil {
				return err
			}

			if exportPath, _ := cmd.Flags().GetString("export"); strings.TrimSpace(exportPath) != "" {
				payload, err := json.MarshalIndent(result, "", "  ")
				if err != nil {
					return fmt.Errorf("encode result: %w", err)
				}
				if err := os.WriteFile(strings.TrimSpace(exportPath), append(payload, '\n'), 0o644); err != nil {
					return fmt.Errorf("write export: %w", err)
				}
				logger.Info("funnelsim: result exported", "path", strings.TrimSpace(exportPath))
			}

			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				return encoder.Encode(result)
			}
			width, _ := cmd.Flags().GetInt("width")
			fmt.Fprintln(cmd.OutOrStdout(), report.Render(result, width))
			return nil
		},
	}
	cmd.Flags().String("scenario", "", "path to the YAML scenario file (required)")
	cmd.Flags().Int("personas", 0, "override the scenario's persona count")
	cmd.Flags().String("model", "", "override the scenario's model")
	cmd.Flags().Int("workers", 0, "override the journey worker count")
	cmd.Flags().Bool("json", false, "print the raw result as JSON")
	cmd.Flags().String("export", "", "also write the result JSON to this file")
	cmd.Flags().Int("width", 100, "report width in columns")
	return cmd
}

// waitForRun polls until the run settles. The first interrupt requests a
// cancel and keeps polling so the final state is reported.
func waitForRun(ctx context.Context, manager *run.Manager, runID string) (run.State, error) {
	logger := common.Logger()
	interrupted := false
	for {
		state, err := manager.Status(runID)
		if err != nil {
			return run.State{}, err
		}
		if !state.Running {
			return state, nil
		}
		if interrupted {
			time.Sleep(runPollInterval)
			continue
		}
		select {
		case <-ctx.Done():
			interrupted = true
			logger.Warn("funnelsim: interrupt received, canceling run", "run_id", runID)
			if err := manager.Stop(runID); err != nil {
				logger.Warn("funnelsim: cancel request failed", "run_id", runID, "error", err)
			}
		case <-time.After(runPollInterval):
		}
	}
}
