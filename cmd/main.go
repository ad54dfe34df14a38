package main

import (
	"fmt"
	"os"

	"RestJSON/internal/config"
	"RestJSON/internal/logger"
	"RestJSON/internal/model"

	"github.com/spf13/cobra"
)

var (
	debugFlag bool
	modelsDir string
	port      string
)

var rootCmd = &cobra.Command{
	Use:           "restjson",
	Short:         "Declarative REST resources over SQL",
	Long:          `restjson serves filterable JSON resources described by YAML files`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Init("."); err != nil {
			return fmt.Errorf("log init failed: %w", err)
		}
		logger.SetDebug(debugFlag)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&modelsDir, "models", "", "directory of resource YAML files (overrides MODELS_DIR)")
	serveCmd.Flags().StringVarP(&port, "port", "p", "", "listen port (overrides PORT)")

	rootCmd.AddCommand(serveCmd, checkCmd, routesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error("command_failed", map[string]any{"error": err.Error()})
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the environment and applies flag overrides.
func loadConfig() *config.Config {
	cfg := config.LoadConfig()
	if modelsDir != "" {
		cfg.ModelsDir = modelsDir
	}
	if port != "" {
		cfg.Port = port
	}
	return cfg
}

func loadRegistry(cfg *config.Config) (*model.Registry, error) {
	reg, err := model.InitRegistry(cfg.ModelsDir, int(cfg.DefaultPageSize), nil)
	if err != nil {
		logger.Error("registry_init_failed", map[string]any{"dir": cfg.ModelsDir, "error": err.Error()})
		return nil, err
	}
	logger.Info("models_initialized", map[string]any{"resources": len(reg.Names())})
	return reg, nil
}
