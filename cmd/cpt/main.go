package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cyberfabric/cyber-pilot-sub001/internal/config"
)

// Version is set at build time.
var Version = "0.3.0"

var (
	configPath string
	noColor    bool
)

var rootCmd = &cobra.Command{
	Use:   "cpt",
	Short: "Blueprint-driven artifact generator and traceability validator",
	Long: `cpt compiles blueprints into kits and constraints, validates architecture
artifacts against those constraints, and cross-checks the @cpt markers in
source code against the identifiers the artifacts define.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			color.NoColor = true
		}
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.FileName, "Project file")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
}

// loadConfig loads the project file named by --config, falling back to the
// defaults when it does not exist.
func loadConfig() *config.Config {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
