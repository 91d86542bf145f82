package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teranos/strata/core"
	"github.com/teranos/strata/display"
	"github.com/teranos/strata/errors"
	"github.com/teranos/strata/storage"
	"github.com/teranos/strata/types"
)

// FieldCmd represents the field command
var FieldCmd = &cobra.Command{
	Use:   "field",
	Short: "Set and read entity fields",
	Long: `Manage the typed, dynamically named fields of an entity.

Kinds: text (default), number, boolean, date (RFC 3339 or YYYY-MM-DD), json.

Examples:
  strata -t acme field set <id> age 36 --kind number
  strata -t acme field bulk <id> email=ada@example.com city=London
  strata -t acme field get <id>
  strata -t acme field delete <id> city`,
}

var fieldSetCmd = &cobra.Command{
	Use:   "set <entity-id> <name> <value>",
	Short: "Create or update one field",
	Args:  cobra.ExactArgs(3),
	RunE:  runFieldSet,
}

var fieldBulkCmd = &cobra.Command{
	Use:   "bulk <entity-id> <name=value>...",
	Short: "Set several fields in one transaction",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runFieldBulk,
}

var fieldGetCmd = &cobra.Command{
	Use:   "get <entity-id>",
	Short: "List an entity's fields",
	Args:  cobra.ExactArgs(1),
	RunE:  runFieldGet,
}

var fieldDeleteCmd = &cobra.Command{
	Use:   "delete <entity-id> <name>",
	Short: "Remove a field",
	Args:  cobra.ExactArgs(2),
	RunE:  runFieldDelete,
}

var (
	fieldKindFlag     string
	fieldRequiredFlag bool
)

func init() {
	for _, c := range []*cobra.Command{fieldSetCmd, fieldBulkCmd} {
		c.Flags().StringVar(&fieldKindFlag, "kind", "", "Value kind: text, number, boolean, date, json")
		c.Flags().BoolVar(&fieldRequiredFlag, "required", false, "Mark the field required")
	}

	FieldCmd.AddCommand(fieldSetCmd)
	FieldCmd.AddCommand(fieldBulkCmd)
	FieldCmd.AddCommand(fieldGetCmd)
	FieldCmd.AddCommand(fieldDeleteCmd)
}

// fieldOptions maps --kind and --required onto store options
func fieldOptions(cmd *cobra.Command) []storage.FieldOption {
	var opts []storage.FieldOption
	if fieldKindFlag != "" {
		opts = append(opts, storage.WithKind(types.Kind(strings.ToLower(fieldKindFlag))))
	}
	if cmd.Flags().Changed("required") {
		if fieldRequiredFlag {
			opts = append(opts, storage.WithRequired())
		} else {
			opts = append(opts, storage.WithOptional())
		}
	}
	return opts
}

// parseAssignments splits name=value arguments. Values may contain '='.
func parseAssignments(args []string) (map[string]string, error) {
	values := make(map[string]string, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, errors.NewValidationError("field assignment %q must be name=value", arg)
		}
		if _, dup := values[name]; dup {
			return nil, errors.NewValidationError("field %q assigned twice", name)
		}
		values[name] = value
	}
	return values, nil
}

func runFieldSet(cmd *cobra.Command, args []string) error {
	return withPlatform(cmd, func(p *core.Platform, tenant string) error {
		attr, created, err := p.SetField(cmd.Context(), tenant, args[0], args[1], args[2], fieldOptions(cmd)...)
		if err != nil {
			return err
		}
		result := map[string]any{"field": attr, "created": created}
		return output(cmd, result, func(w io.Writer) error {
			return display.Fields(w, []types.Attribute{*attr})
		})
	})
}

func runFieldBulk(cmd *cobra.Command, args []string) error {
	values, err := parseAssignments(args[1:])
	if err != nil {
		return err
	}

	return withPlatform(cmd, func(p *core.Platform, tenant string) error {
		attrs, err := p.BulkSet(cmd.Context(), tenant, args[0], values, fieldOptions(cmd)...)
		if err != nil {
			return err
		}
		return output(cmd, attrs, func(w io.Writer) error {
			return display.Fields(w, attrs)
		})
	})
}

func runFieldGet(cmd *cobra.Command, args []string) error {
	return withPlatform(cmd, func(p *core.Platform, tenant string) error {
		fields, err := p.GetFields(cmd.Context(), tenant, args[0])
		if err != nil {
			return err
		}
		return output(cmd, fields, func(w io.Writer) error {
			return display.Fields(w, fields)
		})
	})
}

func runFieldDelete(cmd *cobra.Command, args []string) error {
	return withPlatform(cmd, func(p *core.Platform, tenant string) error {
		if err := p.DeleteField(cmd.Context(), tenant, args[0], args[1]); err != nil {
			return err
		}
		return output(cmd, map[string]any{"entity_id": args[0], "field": args[1], "deleted": true}, func(w io.Writer) error {
			_, err := fmt.Fprintf(w, "✓ Deleted field %s\n", args[1])
			return err
		})
	})
}
