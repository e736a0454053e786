// Command yam is the client side of the build service: it locates a
// running yamd via the port registry and drives a build or shutdown
// request against it (spec §4.10).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yam-build/yam/internal/logging"
	"github.com/yam-build/yam/internal/service"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var homeDir string

	cmd := &cobra.Command{
		Use:   "yam",
		Short: "Drive builds against a running yamd",
	}
	cmd.PersistentFlags().StringVar(&homeDir, "home", ".", "home repository directory")

	cmd.AddCommand(buildCmd(&homeDir), shutdownCmd(&homeDir))
	return cmd
}

func dial(homeDir string) (*service.Client, error) {
	pid, port, err := service.ReadPortRegistry(homeDir)
	if err != nil {
		return nil, fmt.Errorf("no running yamd found in %s (start one with `yamd`): %w", homeDir, err)
	}
	if !service.IsAlive(pid) {
		return nil, fmt.Errorf("yamd registry in %s refers to a dead process (pid %d); remove %s and restart yamd", homeDir, pid, service.PortRegistryPath)
	}
	return service.Dial("127.0.0.1", port)
}

func buildCmd(homeDir *string) *cobra.Command {
	var keepGoing bool
	var maxWorkers int

	cmd := &cobra.Command{
		Use:   "build [targets...]",
		Short: "Request a build from the running service",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := dial(*homeDir)
			if err != nil {
				return err
			}
			defer client.Close()

			req := service.BuildRequest{
				Targets:    args,
				KeepGoing:  keepGoing,
				MaxWorkers: maxWorkers,
			}
			result, err := client.Build(req, func(rec logging.Record) {
				fmt.Printf("[%s] %s: %s\n", rec.Aspect, rec.Node, rec.Message)
			})
			if err != nil {
				return err
			}
			fmt.Printf("executed=%d skipped=%d failed=%d canceled=%d duration=%s\n",
				result.Executed, result.Skipped, result.Failed, result.Canceled, result.Duration)
			if !result.Success {
				if result.Error != "" {
					fmt.Fprintln(os.Stderr, result.Error)
				}
				os.Exit(1)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&keepGoing, "keep-going", false, "continue building unaffected targets after a failure")
	cmd.Flags().IntVar(&maxWorkers, "workers", 0, "maximum concurrent Self-phase workers (0: default to NumCPU)")
	return cmd
}

func shutdownCmd(homeDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "shutdown",
		Short: "Ask the running service to exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := dial(*homeDir)
			if err != nil {
				return err
			}
			defer client.Close()
			return client.Shutdown()
		},
	}
}
