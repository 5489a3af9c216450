package main

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openfluke/soak/internal/train"
	"github.com/openfluke/soak/nn"
)

func newTrainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Run the example training loop",
		Long: `Train the small classifier on fresh synthetic minibatches.

Loss and classification error are collected at the configured progress
frequency and reported at the end along with the network shape and the
process heap usage.

Examples:
  soak train -d cpu
  soak train -d cpu --nonlinearity tanh
  soak train -d 0 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}

			name, _ := cmd.Flags().GetString("nonlinearity")
			act, err := nn.ActivationByName(name)
			if err != nil {
				return err
			}

			dev, err := openDevice(cmd)
			if err != nil {
				return err
			}
			defer dev.Close()

			jsonOut, _ := cmd.Flags().GetBool("json")

			result, err := train.Run(train.Options{
				Activation:    act,
				HiddenLayers:  cfg.Train.HiddenLayers,
				HiddenDim:     cfg.Train.HiddenDim,
				MinibatchSize: cfg.Train.MinibatchSize,
				NumSamples:    cfg.Train.NumSamples,
				LearningRate:  cfg.Train.LearningRate,
				ProgressEvery: cfg.Train.ProgressEvery,
				Seed:          cfg.Train.Seed,
				Device:        dev,
				Logger:        logger,
			})
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(result)
			}

			fmt.Printf("Trained %d parameters with %s on %s\n",
				result.Network.Parameters, result.Network.Activation, dev.Summary().Name)
			for i, loss := range result.Losses {
				fmt.Printf("Minibatch: %d, Loss: %.4f, Error: %.2f\n",
					i*cfg.Train.ProgressEvery, loss, result.Errors[i])
			}
			fmt.Printf("Final loss: %.4f, final error: %.2f\n", result.FinalLoss, result.FinalError)

			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			fmt.Printf("Heap alloc: %.1f MB (%d GC cycles)\n", float64(m.Alloc)/1024.0/1024.0, m.NumGC)
			return nil
		},
	}
	addDeviceFlag(cmd)
	cmd.Flags().String("nonlinearity", "sigmoid",
		"Hidden-layer activation: "+strings.Join(nn.ActivationNames(), ", "))
	return cmd
}
