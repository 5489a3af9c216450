package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openfluke/soak/gpu"
	"github.com/openfluke/soak/internal/config"
	"github.com/openfluke/soak/internal/logging"
)

var version = "0.1.0-dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "soak",
		Short: "Memory-leak soak harness for the dense network runtime",
		Long: `soak trains a tiny feed-forward classifier for many iterations while
sampling resident memory, and flags runs whose memory keeps growing.

It doubles as a small example-training tool and a WebGPU adapter inspector.`,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-file", "", "Duplicate logs to this rotating file")

	// Add subcommands
	rootCmd.AddCommand(
		newVersionCmd(),
		newCheckCmd(),
		newTrainCmd(),
		newDevicesCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				fmt.Printf("{\"version\":%q}\n", version)
			} else {
				fmt.Printf("soak version %s\n", version)
			}
		},
	}
}

// addDeviceFlag registers the required device selector on a command.
func addDeviceFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("deviceid", "d", "",
		`device to use: "cpu" or -1 for the CPU, "gpu" for adapter 0, or an adapter index`)
	cmd.MarkFlagRequired("deviceid")
}

// deviceMap holds the aliases accepted by --deviceid.
var deviceMap = map[string]int{"cpu": -1, "gpu": 0}

// parseDeviceID resolves a --deviceid value to -1 (CPU) or an adapter index.
func parseDeviceID(s string) (int, error) {
	if id, ok := deviceMap[strings.ToLower(strings.TrimSpace(s))]; ok {
		return id, nil
	}
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid device id %q: use \"cpu\", \"gpu\", or an adapter index", s)
	}
	if id < -1 {
		return 0, fmt.Errorf("invalid device id %d: the only negative id is -1 (CPU)", id)
	}
	return id, nil
}

// openDevice resolves and opens the device named by the --deviceid flag.
func openDevice(cmd *cobra.Command) (*gpu.Device, error) {
	raw, _ := cmd.Flags().GetString("deviceid")
	id, err := parseDeviceID(raw)
	if err != nil {
		return nil, err
	}
	dev, err := gpu.Open(id)
	if err != nil {
		return nil, fmt.Errorf("opening device %d: %w", id, err)
	}
	return dev, nil
}

// setup loads the configuration and builds the logger, honoring flag
// overrides.
func setup(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}

	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Logging.Level = lvl
	}
	if f, _ := cmd.Flags().GetString("log-file"); f != "" {
		cfg.Logging.File = f
	}

	logger := logging.New(logging.Config{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	return cfg, logger, nil
}
