package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/openfluke/soak/gpu"
	"github.com/openfluke/soak/internal/config"
	"github.com/openfluke/soak/internal/leak"
	"github.com/openfluke/soak/nn"
)

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run the memory leakage checks",
		Long: `Run long fixed-minibatch training loops and flag memory growth.

Two soak runs execute back to back: one with the builtin sigmoid and one
with a user-defined sigmoid built on the activation extension interface.
Each run samples resident memory before every training step and applies
the two-threshold heuristic to the collected trace.

Examples:
  soak check -d cpu        # CPU
  soak check -d 0          # first WebGPU adapter
  soak check -d gpu --json # adapter 0, JSON reports`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			dev, err := openDevice(cmd)
			if err != nil {
				return err
			}
			defer dev.Close()

			jsonOut, _ := cmd.Flags().GetBool("json")

			fmt.Println("Run memory leakage tests")

			reports := make([]*leak.Report, 0, 2)
			for _, act := range []nn.Activation{nn.Sigmoid{}, customSigmoid{}} {
				fmt.Printf("Check %s\n", act.Name())

				report, err := leak.Run(checkOptions(cfg.Check, act, dev, logger))
				if err != nil {
					return err
				}
				reports = append(reports, report)

				if !jsonOut {
					fmt.Printf("  %d iterations, RSS %d -> %d bytes, increase fraction %.3f, window growth %.0f bytes\n",
						report.Iterations, report.FirstRSSBytes, report.FinalRSSBytes,
						report.IncreaseFraction, report.WindowGrowthBytes)
				}
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(reports)
			}
			fmt.Println("No memory leaks detected")
			return nil
		},
	}
	addDeviceFlag(cmd)
	return cmd
}

// checkOptions maps the check section of the config onto soak run options.
func checkOptions(cfg config.CheckConfig, act nn.Activation, dev *gpu.Device, logger *slog.Logger) leak.Options {
	return leak.Options{
		Activation:    act,
		HiddenLayers:  cfg.HiddenLayers,
		HiddenDim:     cfg.HiddenDim,
		MinibatchSize: cfg.MinibatchSize,
		NumSamples:    cfg.NumSamples,
		LearningRate:  cfg.LearningRate,
		Seed:          cfg.Seed,
		Device:        dev,
		Heuristic: leak.Config{
			FractionTolerance:    cfg.FractionTolerance,
			GrowthToleranceBytes: float64(cfg.GrowthToleranceKB) * 1024,
			Window:               cfg.Window,
		},
		Logger: logger,
	}
}
