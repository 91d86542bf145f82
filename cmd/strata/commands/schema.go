package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teranos/strata/catalog"
	"github.com/teranos/strata/core"
	"github.com/teranos/strata/display"
	"github.com/teranos/strata/errors"
	"github.com/teranos/strata/types"
)

// SchemaCmd represents the schema command
var SchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Register schemas and find similar types",
	Long: `Manage the tenant's schema catalog.

Before introducing a new entity type, ask the catalog for similar ones:
a score above similarity.use_existing_threshold recommends reusing the
existing type, one above similarity.variant_threshold recommends a variant.

Examples:
  strata -t acme schema similar "record a supplier invoice" --type bill --fields amount,vendor,date
  strata -t acme schema register invoice invoice.toml
  strata -t acme schema register invoice --domain finance --field amount:number:required --field vendor
  strata -t acme schema list
  strata -t acme schema context`,
}

var schemaRegisterCmd = &cobra.Command{
	Use:   "register <type> [definition.toml|definition.yaml]",
	Short: "Register an entity type",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runSchemaRegister,
}

var schemaGetCmd = &cobra.Command{
	Use:   "get <type>",
	Short: "Show a registered schema",
	Args:  cobra.ExactArgs(1),
	RunE:  runSchemaGet,
}

var schemaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered schemas",
	Args:  cobra.NoArgs,
	RunE:  runSchemaList,
}

var schemaSimilarCmd = &cobra.Command{
	Use:   "similar <requirement text>",
	Short: "Rank registered schemas against a requirement",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSchemaSimilar,
}

var schemaContextCmd = &cobra.Command{
	Use:   "context",
	Short: "Print the catalog summary used for model prompts",
	Args:  cobra.NoArgs,
	RunE:  runSchemaContext,
}

var (
	schemaNameFlag        string
	schemaDomainFlag      string
	schemaDescriptionFlag string
	schemaFieldFlags      []string
	schemaKeywordFlags    []string
	schemaAIFlag          bool
	schemaConfidenceFlag  float64

	similarTypeFlag   string
	similarFieldsFlag []string
)

func init() {
	f := schemaRegisterCmd.Flags()
	f.StringVar(&schemaNameFlag, "name", "", "Display name (default: the type)")
	f.StringVar(&schemaDomainFlag, "domain", "", "Business domain")
	f.StringVar(&schemaDescriptionFlag, "description", "", "What the type represents")
	f.StringArrayVar(&schemaFieldFlags, "field", nil, "Field as name[:kind[:required]] (repeatable)")
	f.StringSliceVar(&schemaKeywordFlags, "keywords", nil, "Similarity keywords (derived when omitted)")
	f.BoolVar(&schemaAIFlag, "ai", false, "Mark the schema as model-generated")
	f.Float64Var(&schemaConfidenceFlag, "confidence", 0, "Generator confidence between 0 and 1")

	schemaSimilarCmd.Flags().StringVar(&similarTypeFlag, "type", "", "Proposed type name")
	schemaSimilarCmd.Flags().StringSliceVar(&similarFieldsFlag, "fields", nil, "Proposed field names")

	SchemaCmd.AddCommand(schemaRegisterCmd)
	SchemaCmd.AddCommand(schemaGetCmd)
	SchemaCmd.AddCommand(schemaListCmd)
	SchemaCmd.AddCommand(schemaSimilarCmd)
	SchemaCmd.AddCommand(schemaContextCmd)
}

// parseFieldSpec parses name[:kind[:required]]
func parseFieldSpec(s string) (types.FieldSpec, error) {
	parts := strings.Split(s, ":")
	spec := types.FieldSpec{Name: strings.TrimSpace(parts[0])}
	if spec.Name == "" || len(parts) > 3 {
		return spec, errors.NewValidationError("field %q must be name[:kind[:required]]", s)
	}
	if len(parts) > 1 {
		spec.Kind = types.Kind(strings.ToLower(strings.TrimSpace(parts[1])))
	}
	if len(parts) > 2 {
		switch strings.ToLower(strings.TrimSpace(parts[2])) {
		case "required", "req", "true":
			spec.Required = true
		case "", "optional", "false":
		default:
			return spec, errors.NewValidationError("field %q: third part must be required or optional", s)
		}
	}
	return spec, nil
}

// definitionFromFlags loads the optional definition file and layers flag values on top
func definitionFromFlags(args []string) (types.Definition, error) {
	var def types.Definition
	if len(args) > 1 {
		loaded, err := catalog.LoadDefinitionFile(args[1])
		if err != nil {
			return def, err
		}
		def = loaded
	}

	if schemaDomainFlag != "" {
		def.Domain = schemaDomainFlag
	}
	if schemaDescriptionFlag != "" {
		def.Description = schemaDescriptionFlag
	}
	if len(schemaKeywordFlags) > 0 {
		def.Keywords = schemaKeywordFlags
	}
	if schemaConfidenceFlag != 0 {
		def.Confidence = schemaConfidenceFlag
	}
	for _, raw := range schemaFieldFlags {
		spec, err := parseFieldSpec(raw)
		if err != nil {
			return def, err
		}
		def.Fields = append(def.Fields, spec)
	}
	return def, nil
}

func runSchemaRegister(cmd *cobra.Command, args []string) error {
	def, err := definitionFromFlags(args)
	if err != nil {
		return err
	}

	return withPlatform(cmd, func(p *core.Platform, tenant string) error {
		schema, created, err := p.RegisterSchema(cmd.Context(), tenant, args[0], schemaNameFlag, def, schemaAIFlag)
		if err != nil {
			return err
		}
		return output(cmd, map[string]any{"schema": schema, "created": created}, func(w io.Writer) error {
			status := "✓ Registered"
			if !created {
				status = "Already registered:"
			}
			if _, err := fmt.Fprintf(w, "%s %s\n", status, schema.EntityType); err != nil {
				return err
			}
			return display.Schema(w, schema)
		})
	})
}

func runSchemaGet(cmd *cobra.Command, args []string) error {
	return withPlatform(cmd, func(p *core.Platform, tenant string) error {
		schema, err := p.GetSchema(cmd.Context(), tenant, args[0])
		if err != nil {
			return err
		}
		return output(cmd, schema, func(w io.Writer) error {
			return display.Schema(w, schema)
		})
	})
}

func runSchemaList(cmd *cobra.Command, args []string) error {
	return withPlatform(cmd, func(p *core.Platform, tenant string) error {
		schemas, err := p.ListSchemas(cmd.Context(), tenant)
		if err != nil {
			return err
		}
		return output(cmd, schemas, func(w io.Writer) error {
			return display.Schemas(w, schemas)
		})
	})
}

func runSchemaSimilar(cmd *cobra.Command, args []string) error {
	req := types.SimilarityRequest{
		RequirementText: strings.Join(args, " "),
		ProposedType:    similarTypeFlag,
		ProposedFields:  similarFieldsFlag,
	}

	return withPlatform(cmd, func(p *core.Platform, tenant string) error {
		results := p.FindSimilar(cmd.Context(), tenant, req)
		return output(cmd, results, func(w io.Writer) error {
			return display.Similar(w, results)
		})
	})
}

func runSchemaContext(cmd *cobra.Command, args []string) error {
	return withPlatform(cmd, func(p *core.Platform, tenant string) error {
		text, err := p.SchemaContext(cmd.Context(), tenant)
		if err != nil {
			return err
		}
		return output(cmd, map[string]string{"context": text}, func(w io.Writer) error {
			_, err := fmt.Fprint(w, text)
			return err
		})
	})
}
