package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/teranos/strata/core"
	"github.com/teranos/strata/display"
	"github.com/teranos/strata/query"
	"github.com/teranos/strata/types"
)

// EntityCmd represents the entity command
var EntityCmd = &cobra.Command{
	Use:   "entity",
	Short: "Create, read, update and delete entities",
	Long: `Manage entities of any type within a tenant.

Examples:
  strata -t acme entity create customer "Ada Lovelace"
  strata -t acme entity create invoice "March" --code INV-0001
  strata -t acme entity get <id>
  strata -t acme entity list --type customer
  strata -t acme entity update <id> --name "Ada King"
  strata -t acme entity delete <id>`,
}

var entityCreateCmd = &cobra.Command{
	Use:   "create <type> <name>",
	Short: "Create an entity",
	Args:  cobra.ExactArgs(2),
	RunE:  runEntityCreate,
}

var entityGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show an entity and its fields",
	Args:  cobra.ExactArgs(1),
	RunE:  runEntityGet,
}

var entityListCmd = &cobra.Command{
	Use:   "list",
	Short: "List entities",
	Args:  cobra.NoArgs,
	RunE:  runEntityList,
}

var entityUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Rename or reactivate an entity",
	Args:  cobra.ExactArgs(1),
	RunE:  runEntityUpdate,
}

var entityDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Soft-delete an entity",
	Args:  cobra.ExactArgs(1),
	RunE:  runEntityDelete,
}

var (
	entityCodeFlag     string
	entityTypeFlag     string
	entityInactiveFlag bool
	entityLimitFlag    int
	entityNameFlag     string
	entityActiveFlag   bool
)

func init() {
	entityCreateCmd.Flags().StringVar(&entityCodeFlag, "code", "", "Business code (generated when omitted)")

	entityListCmd.Flags().StringVar(&entityTypeFlag, "type", "", "Only list entities of this type")
	entityListCmd.Flags().BoolVar(&entityInactiveFlag, "inactive", false, "Include soft-deleted entities")
	entityListCmd.Flags().IntVar(&entityLimitFlag, "limit", 0, "Maximum entities to list (default: search.default_limit)")

	entityUpdateCmd.Flags().StringVar(&entityNameFlag, "name", "", "New display name")
	entityUpdateCmd.Flags().BoolVar(&entityActiveFlag, "active", true, "Set the entity active or inactive")

	EntityCmd.AddCommand(entityCreateCmd)
	EntityCmd.AddCommand(entityGetCmd)
	EntityCmd.AddCommand(entityListCmd)
	EntityCmd.AddCommand(entityUpdateCmd)
	EntityCmd.AddCommand(entityDeleteCmd)
}

func runEntityCreate(cmd *cobra.Command, args []string) error {
	return withPlatform(cmd, func(p *core.Platform, tenant string) error {
		e, err := p.CreateEntity(cmd.Context(), tenant, args[0], args[1], entityCodeFlag)
		if err != nil {
			return err
		}
		return output(cmd, e, func(w io.Writer) error {
			return display.Entities(w, []*types.Entity{e})
		})
	})
}

func runEntityGet(cmd *cobra.Command, args []string) error {
	return withPlatform(cmd, func(p *core.Platform, tenant string) error {
		e, err := p.GetEntity(cmd.Context(), tenant, args[0])
		if err != nil {
			return err
		}
		fields, err := p.GetFields(cmd.Context(), tenant, args[0])
		if err != nil {
			return err
		}

		view := query.Record{Entity: e, Fields: fields}
		return output(cmd, view, func(w io.Writer) error {
			if err := display.Entities(w, []*types.Entity{e}); err != nil {
				return err
			}
			return display.Fields(w, fields)
		})
	})
}

func runEntityList(cmd *cobra.Command, args []string) error {
	return withPlatform(cmd, func(p *core.Platform, tenant string) error {
		res, err := p.Query(cmd.Context(), tenant, query.Request{
			Type:            entityTypeFlag,
			IncludeInactive: entityInactiveFlag,
			Page:            query.Page{Limit: entityLimitFlag},
		})
		if err != nil {
			return err
		}

		entities := make([]*types.Entity, 0, len(res.Records))
		for _, rec := range res.Records {
			entities = append(entities, rec.Entity)
		}
		return output(cmd, entities, func(w io.Writer) error {
			if err := display.Entities(w, entities); err != nil {
				return err
			}
			_, err := fmt.Fprintf(w, "%d of %d entities\n", len(entities), res.Total)
			return err
		})
	})
}

func runEntityUpdate(cmd *cobra.Command, args []string) error {
	var patch types.EntityPatch
	if cmd.Flags().Changed("name") {
		patch.Name = &entityNameFlag
	}
	if cmd.Flags().Changed("active") {
		patch.Active = &entityActiveFlag
	}

	return withPlatform(cmd, func(p *core.Platform, tenant string) error {
		e, err := p.UpdateEntity(cmd.Context(), tenant, args[0], patch)
		if err != nil {
			return err
		}
		return output(cmd, e, func(w io.Writer) error {
			return display.Entities(w, []*types.Entity{e})
		})
	})
}

func runEntityDelete(cmd *cobra.Command, args []string) error {
	return withPlatform(cmd, func(p *core.Platform, tenant string) error {
		if err := p.DeleteEntity(cmd.Context(), tenant, args[0]); err != nil {
			return err
		}
		return output(cmd, map[string]any{"id": args[0], "deleted": true}, func(w io.Writer) error {
			_, err := fmt.Fprintf(w, "✓ Deleted %s\n", args[0])
			return err
		})
	})
}
