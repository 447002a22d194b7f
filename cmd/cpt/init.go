package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cyberfabric/cyber-pilot-sub001/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default cpt.yaml and blueprint directory",
	Long: `Create the project file (cpt.yaml unless --config says otherwise) with
one default system, and the blueprint directory it points at.

An existing project file is kept unless --force is given.

Example:
  cd ~/myproject
  cpt init
  cpt init --force`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if _, err := os.Stat(configPath); err == nil && !initForce {
			fmt.Fprintf(os.Stderr, "Error: %s already exists (use --force to overwrite)\n", configPath)
			os.Exit(1)
		}
		if err := config.SaveDefault(configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		cfg, err := config.Load(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		blueprints := cfg.Resolve(cfg.Blueprints)
		if err := os.MkdirAll(blueprints, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to create blueprint directory: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s Initialized cpt project\n\n", green("✓"))
		fmt.Printf("  Config: %s\n", cyan(configPath))
		fmt.Printf("  Blueprints: %s\n", cyan(blueprints))
		fmt.Println()
		fmt.Printf("%s Next steps:\n", gray("→"))
		fmt.Printf("  %s\n", gray("cpt generate   # build kits and constraints from blueprints"))
		fmt.Printf("  %s\n", gray("cpt validate"))
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing project file")
}
