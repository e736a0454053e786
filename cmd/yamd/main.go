// Command yamd runs the YAM build service: a long-lived process that
// accepts a single client connection at a time and drives builds on its
// behalf (spec §4.10).
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yam-build/yam/internal/runner"
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
	var reposConfig string
	var aspectsPolicy string

	cmd := &cobra.Command{
		Use:   "yamd",
		Short: "Run the YAM build service",
		RunE: func(cmd *cobra.Command, args []string) error {
			if homeDir == "" {
				wd, err := os.Getwd()
				if err != nil {
					return fmt.Errorf("getting working directory: %w", err)
				}
				homeDir = wd
			}

			configText, err := os.ReadFile(reposConfig)
			if err != nil {
				return fmt.Errorf("reading repositories config %s: %w", reposConfig, err)
			}

			var aspectsYAML []byte
			if aspectsPolicy != "" {
				aspectsYAML, err = os.ReadFile(aspectsPolicy)
				if err != nil {
					return fmt.Errorf("reading aspect policy %s: %w", aspectsPolicy, err)
				}
			}

			logger, err := zap.NewProduction()
			if err != nil {
				return fmt.Errorf("initializing logger: %w", err)
			}
			defer logger.Sync()

			r := runner.New(runner.Options{
				HomeDir:     homeDir,
				ConfigText:  string(configText),
				AspectsYAML: aspectsYAML,
			})

			logger.Info("starting yamd", zap.String("home", homeDir))
			return service.ServiceMain(homeDir, r)
		},
	}

	cmd.Flags().StringVar(&homeDir, "home", "", "home repository directory (default: current directory)")
	cmd.Flags().StringVar(&reposConfig, "repositories", filepath.Join(".", "yamConfig", "repositories"), "path to the repositories config file")
	cmd.Flags().StringVar(&aspectsPolicy, "aspects", "", "path to an optional aspect policy YAML file")

	return cmd
}
