package main

import (
	"fmt"
	"os"

	"github.com/ormasoftchile/compilefail/pkg/config"
	"github.com/spf13/cobra"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Config schema operations",
}

var schemaExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the compilefail.yaml JSON Schema to stdout",
	RunE:  runSchemaExport,
}

func runSchemaExport(cmd *cobra.Command, args []string) error {
	data, err := config.GenerateJSONSchema()
	if err != nil {
		return fmt.Errorf("generate schema: %w", err)
	}
	_, err = os.Stdout.Write(append(data, '\n'))
	return err
}

var validateCmd = &cobra.Command{
	Use:   "validate [compilefail.yaml]",
	Short: "Validate a suite config file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			configPath = args[0]
		}
		if configPath == "" {
			configPath = config.DefaultFile
		}
		cfg, err := loadConfig()
		if err != nil {
			return &exitError{code: exitConfig}
		}
		fmt.Printf("✓ %s is valid (%d pattern(s), compiler %s)\n", configPath, len(cfg.Patterns), cfg.Compiler.Argv[0])
		return nil
	},
}

func init() {
	schemaCmd.AddCommand(schemaExportCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(validateCmd)
}
