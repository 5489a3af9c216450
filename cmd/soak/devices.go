package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openfluke/soak/gpu"
)

func newDevicesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List compute adapters visible to the process",
		Long: `Enumerate the GPU adapters the runtime can open, oldest backend first.

Pass --probe with an adapter index to open that adapter and report its
compute limits and feature set.

Examples:
  soak devices
  soak devices --json
  soak devices --probe 0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			probe, _ := cmd.Flags().GetInt("probe")

			if probe >= 0 {
				report, err := gpu.Probe(probe)
				if err != nil {
					return fmt.Errorf("failed to probe adapter %d: %w", probe, err)
				}
				if jsonOut {
					enc := json.NewEncoder(os.Stdout)
					enc.SetIndent("", "  ")
					return enc.Encode(report)
				}
				fmt.Printf("Adapter %d: %s (%s, %s backend)\n",
					report.Adapter.Index, report.Adapter.Name, report.Adapter.Type, report.Adapter.Backend)
				fmt.Printf("  Driver:                 %s\n", report.Adapter.Driver)
				fmt.Printf("  Workgroup size X:       %d (max %d)\n",
					report.WorkgroupX, report.Limits.MaxComputeWorkgroupSizeX)
				fmt.Printf("  Invocations/workgroup:  %d\n", report.Limits.MaxComputeInvocationsPerWorkgroup)
				fmt.Printf("  Workgroups/dimension:   %d\n", report.Limits.MaxComputeWorkgroupsPerDimension)
				fmt.Printf("  Storage binding size:   %d bytes\n", report.Limits.MaxStorageBufferBindingSize)
				fmt.Printf("  Max buffer size:        %d bytes\n", report.Limits.MaxBufferSize)
				fmt.Printf("  Features:               %d\n", len(report.Features))
				for _, f := range report.Features {
					fmt.Printf("    - %s\n", f)
				}
				return nil
			}

			adapters, err := gpu.List()
			if err != nil {
				return fmt.Errorf("failed to enumerate adapters: %w", err)
			}
			if jsonOut {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(adapters)
			}
			if len(adapters) == 0 {
				fmt.Println("No compute adapters found (CPU device -1 is always available)")
				return nil
			}
			fmt.Printf("%-5s %-40s %-12s %-10s %s\n", "INDEX", "NAME", "TYPE", "BACKEND", "VENDOR")
			for _, a := range adapters {
				fmt.Printf("%-5d %-40s %-12s %-10s %s\n", a.Index, a.Name, a.Type, a.Backend, a.Vendor)
			}
			return nil
		},
	}
	cmd.Flags().Int("probe", -1, "Open the adapter at this index and report its limits")
	return cmd
}
