package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/strata/cmd/strata/commands"
	"github.com/teranos/strata/db"
	"github.com/teranos/strata/errors"
	"github.com/teranos/strata/logger"
)

var rootCmd = &cobra.Command{
	Use:   "strata",
	Short: "strata - multi-tenant schema-less data platform",
	Long: `strata - multi-tenant schema-less data platform.

Entities of any type carry typed, dynamically named fields and typed links to
other entities. Each tenant keeps a schema catalog that is searched for
similar types before a new one is registered.

Available commands:
  am      - Manage strata configuration
  entity  - Create, read, update and delete entities
  field   - Set and read entity fields
  link    - Link entities and walk relationships
  schema  - Register schemas and find similar types
  search  - Search entities by type, text, filters and links
  mcp     - Serve platform tools over Model Context Protocol
  version - Show version information

Examples:
  strata -t acme entity create customer "Ada Lovelace"
  strata -t acme field set <id> age 36 --kind number
  strata -t acme schema similar "record a supplier invoice" --fields amount,vendor
  strata -t acme search --type customer --filter age:gte:30 --sort -name`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		// mcp speaks JSON-RPC on stdout; logs go to stderr either way
		jsonLogs := cmd.Name() == "mcp"
		if err := logger.InitializeWithLevel(jsonLogs, logger.VerbosityToLevel(verbosity)); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")
	rootCmd.PersistentFlags().Bool("json", false, "Output results as JSON")
	rootCmd.PersistentFlags().StringP("tenant", "t", os.Getenv("STRATA_TENANT"), "Tenant scope (env STRATA_TENANT)")
	rootCmd.PersistentFlags().String("db", "", "Database path (overrides database.path)")

	// Add commands
	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.EntityCmd)
	rootCmd.AddCommand(commands.FieldCmd)
	rootCmd.AddCommand(commands.LinkCmd)
	rootCmd.AddCommand(commands.SchemaCmd)
	rootCmd.AddCommand(commands.SearchCmd)
	rootCmd.AddCommand(commands.McpCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		err = db.WithReopenHint(err)
		fmt.Fprintf(os.Stderr, "Error (%s): %v\n", errors.Kind(err), err)
		for _, hint := range errors.GetAllHints(err) {
			fmt.Fprintf(os.Stderr, "  hint: %s\n", hint)
		}
		os.Exit(1)
	}
}
