package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teranos/strata/am"
	"github.com/teranos/strata/display"
	"github.com/teranos/strata/errors"
)

// AmCmd represents the am (configuration) command
var AmCmd = &cobra.Command{
	Use:   "am",
	Short: "Manage strata configuration",
	Long: `am: Manage strata configuration

Display and manage strata configuration settings.

Configuration sources (in order of precedence):
1. Command line flags (--db)
2. Environment variables (STRATA_* prefix)
3. Project config (./am.toml, searched up from the working directory)
4. User config (~/.strata/am.toml)
5. System config (/etc/strata/am.toml)
6. Default values

Examples:
  strata am show                    # Show current configuration
  strata am show --format json      # Show configuration in JSON format
  strata am get similarity.use_existing_threshold
  strata am validate                # Validate current configuration
  strata am init                    # Write defaults to ./am.toml`,
}

var amShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Display the current strata configuration from all sources",
	RunE:  runAmShow,
}

var amGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a specific configuration value",
	Long:  "Get a specific configuration value using dot notation (e.g., database.path, cache.backend)",
	Args:  cobra.ExactArgs(1),
	RunE:  runAmGet,
}

var amValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate current configuration",
	Long:  "Validate that the current strata configuration is valid",
	RunE:  runAmValidate,
}

var amWhereCmd = &cobra.Command{
	Use:   "where",
	Short: "Show where configuration is loaded from",
	Long: `Show the configuration cascade and the source of every effective setting.`,
	RunE: runAmWhere,
}

var amInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration to a file",
	Long:  "Write the built-in defaults to ./am.toml (or --user for ~/.strata/am.toml). Existing files are backed up.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAmInit,
}

var (
	configFormat  string
	initUserFlag  bool
	initForceFlag bool
)

func init() {
	// Add flags
	amShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json, yaml")
	amInitCmd.Flags().BoolVar(&initUserFlag, "user", false, "Write the user config instead of ./am.toml")
	amInitCmd.Flags().BoolVar(&initForceFlag, "force", false, "Overwrite an existing file")

	// Add subcommands
	AmCmd.AddCommand(amShowCmd)
	AmCmd.AddCommand(amGetCmd)
	AmCmd.AddCommand(amValidateCmd)
	AmCmd.AddCommand(amWhereCmd)
	AmCmd.AddCommand(amInitCmd)
}

// redactedCopy hides secrets before a config is printed
func redactedCopy(cfg *am.Config) am.Config {
	out := *cfg
	if out.Cache.Redis.Password != "" {
		out.Cache.Redis.Password = "********"
	}
	return out
}

func runAmShow(cmd *cobra.Command, args []string) error {
	// Load configuration
	loaded, err := am.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg := redactedCopy(loaded)
	out := cmd.OutOrStdout()

	// Marshal to requested format
	switch configFormat {
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config to JSON: %w", err)
		}
		fmt.Fprintln(out, string(data))

	case "yaml":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config to YAML: %w", err)
		}
		fmt.Fprintf(out, "# strata configuration\n%s", string(data))

	case "toml":
		data, err := toml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config to TOML: %w", err)
		}
		fmt.Fprintf(out, "# strata configuration\n%s", string(data))

	default:
		return errors.NewValidationError("unsupported format: %s (supported: toml, json, yaml)", configFormat)
	}

	return nil
}

func runAmGet(cmd *cobra.Command, args []string) error {
	key := args[0]

	intro, err := am.GetConfigIntrospection()
	if err != nil {
		return err
	}
	for _, setting := range intro.Settings {
		if setting.Key == key {
			fmt.Fprintln(cmd.OutOrStdout(), setting.Value)
			return nil
		}
	}
	return errors.NewNotFoundError("configuration key %q not found", key)
}

func runAmValidate(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := am.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "configuration validation failed")
	}

	fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration is valid")
	return nil
}

// sourceRank orders sources from lowest to highest precedence
var sourceRank = map[am.ConfigSource]int{
	am.SourceDefault:     0,
	am.SourceSystem:      1,
	am.SourceUser:        2,
	am.SourceProject:     3,
	am.SourceEnvironment: 4,
}

func runAmWhere(cmd *cobra.Command, args []string) error {
	// Get the full introspection data
	intro, err := am.GetConfigIntrospection()
	if err != nil {
		return fmt.Errorf("failed to get config introspection: %w", err)
	}

	settings := intro.Settings
	sort.SliceStable(settings, func(i, j int) bool {
		if ri, rj := sourceRank[settings[i].Source], sourceRank[settings[j].Source]; ri != rj {
			return ri < rj
		}
		return settings[i].Key < settings[j].Key
	})

	if display.ShouldOutputJSON(cmd) {
		return display.WriteJSON(cmd.OutOrStdout(), settings)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Configuration cascade (later overrides earlier):")
	fmt.Fprintln(out, "  1. [DEFAULT]  Built-in defaults")
	fmt.Fprintln(out, "  2. [SYSTEM]   /etc/strata/am.toml")
	fmt.Fprintf(out, "  3. [USER]     %s\n", filepath.Join(am.UserConfigDir(), am.ConfigFileName))
	fmt.Fprintln(out, "  4. [PROJECT]  ./am.toml (searches up directories)")
	fmt.Fprintln(out, "  5. [ENV]      STRATA_* environment variables")
	fmt.Fprintln(out)

	return display.Settings(out, settings)
}

func runAmInit(cmd *cobra.Command, args []string) error {
	path := am.ConfigFileName
	switch {
	case len(args) == 1:
		path = args[0]
	case initUserFlag:
		path = filepath.Join(am.UserConfigDir(), am.ConfigFileName)
	}

	if _, err := os.Stat(path); err == nil && !initForceFlag {
		return errors.WithHint(
			errors.NewConflictError("%s already exists", path),
			"pass --force to overwrite; the previous file is kept as a backup",
		)
	}

	if err := am.Save(path, am.Defaults()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote default configuration to %s\n", path)
	return nil
}
