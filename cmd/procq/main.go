package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	serverrun "github.com/procq/procq/internal/cmd/server"
	cfgpkg "github.com/procq/procq/internal/config"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "procq",
		Short: "procq task queue CLI",
		Long:  "procq is a single-binary priority task queue. This CLI manages the node.",
	}

	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	serverStartCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start the procq node",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := cfgpkg.Load(configPath)
			if err != nil {
				return err
			}

			if v, _ := cmd.Flags().GetString("data-dir"); v != "" {
				cfg.DataDir = v
			}
			if v, _ := cmd.Flags().GetString("sync"); v != "" {
				cfg.Sync = v
			}
			if v, _ := cmd.Flags().GetInt("workers"); v > 0 {
				cfg.WorkersPerType = v
			}
			if v, _ := cmd.Flags().GetString("log-level"); v != "" {
				cfg.LogLevel = v
			}
			if v, _ := cmd.Flags().GetString("log-format"); v != "" {
				cfg.LogFormat = v
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			if err := serverrun.Run(context.Background(), cfg); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}
	serverStartCmd.Flags().String("config", "", "Config file path (YAML/JSON/TOML)")
	serverStartCmd.Flags().String("data-dir", "", "Data directory (default: ~/.procq/data)")
	serverStartCmd.Flags().String("sync", "", "WAL sync mode: always|interval|never")
	serverStartCmd.Flags().Int("workers", 0, "Workers per task type")
	serverStartCmd.Flags().String("log-level", "", "Log level: debug|info|warn|error")
	serverStartCmd.Flags().String("log-format", "", "Log format: json|console")
	serverCmd.AddCommand(serverStartCmd)
	rootCmd.AddCommand(serverCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
