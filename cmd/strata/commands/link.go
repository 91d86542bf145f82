package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/teranos/strata/core"
	"github.com/teranos/strata/display"
	"github.com/teranos/strata/errors"
	"github.com/teranos/strata/types"
)

// LinkCmd represents the link command
var LinkCmd = &cobra.Command{
	Use:   "link",
	Short: "Link entities and walk relationships",
	Long: `Manage typed, directed relationships between entities of one tenant.

Examples:
  strata -t acme link create contains <order-id> <line-id> --payload '{"qty":2}'
  strata -t acme link resolve <order-id> --type contains
  strata -t acme link parents <line-id>
  strata -t acme link list <entity-id>
  strata -t acme link delete <link-id>
  strata -t acme link sweep --sample 500`,
}

var linkCreateCmd = &cobra.Command{
	Use:   "create <type> <parent-id> <child-id>",
	Short: "Link a parent entity to a child entity",
	Args:  cobra.ExactArgs(3),
	RunE:  runLinkCreate,
}

var linkResolveCmd = &cobra.Command{
	Use:   "resolve <parent-id>",
	Short: "List the active children of an entity",
	Args:  cobra.ExactArgs(1),
	RunE:  runLinkResolve,
}

var linkParentsCmd = &cobra.Command{
	Use:   "parents <child-id>",
	Short: "List the active parents of an entity",
	Args:  cobra.ExactArgs(1),
	RunE:  runLinkParents,
}

var linkListCmd = &cobra.Command{
	Use:   "list <entity-id>",
	Short: "List every link touching an entity",
	Args:  cobra.ExactArgs(1),
	RunE:  runLinkList,
}

var linkDeleteCmd = &cobra.Command{
	Use:   "delete <link-id>",
	Short: "Deactivate a link",
	Args:  cobra.ExactArgs(1),
	RunE:  runLinkDelete,
}

var linkSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Sample fields and links for dangling references",
	Args:  cobra.NoArgs,
	RunE:  runLinkSweep,
}

var (
	linkPayloadFlag string
	linkTypeFlag    string
	linkSampleFlag  int
)

func init() {
	linkCreateCmd.Flags().StringVar(&linkPayloadFlag, "payload", "", "JSON payload stored on the link")
	linkResolveCmd.Flags().StringVar(&linkTypeFlag, "type", "", "Only follow links of this type")
	linkParentsCmd.Flags().StringVar(&linkTypeFlag, "type", "", "Only follow links of this type")
	linkSweepCmd.Flags().IntVar(&linkSampleFlag, "sample", 0, "Rows to sample per table (default: sweep.sample_size)")

	LinkCmd.AddCommand(linkCreateCmd)
	LinkCmd.AddCommand(linkResolveCmd)
	LinkCmd.AddCommand(linkParentsCmd)
	LinkCmd.AddCommand(linkListCmd)
	LinkCmd.AddCommand(linkDeleteCmd)
	LinkCmd.AddCommand(linkSweepCmd)
}

func runLinkCreate(cmd *cobra.Command, args []string) error {
	var payload json.RawMessage
	if linkPayloadFlag != "" {
		if !json.Valid([]byte(linkPayloadFlag)) {
			return errors.NewValidationError("payload is not valid JSON")
		}
		payload = json.RawMessage(linkPayloadFlag)
	}

	return withPlatform(cmd, func(p *core.Platform, tenant string) error {
		r, err := p.Link(cmd.Context(), tenant, args[0], args[1], args[2], payload)
		if err != nil {
			return err
		}
		return output(cmd, r, func(w io.Writer) error {
			return display.Relationships(w, []types.Relationship{*r})
		})
	})
}

func runLinkResolve(cmd *cobra.Command, args []string) error {
	return withPlatform(cmd, func(p *core.Platform, tenant string) error {
		ids, err := p.Resolve(cmd.Context(), tenant, args[0], linkTypeFlag)
		if err != nil {
			return err
		}
		return output(cmd, ids, func(w io.Writer) error {
			return display.IDs(w, ids)
		})
	})
}

func runLinkParents(cmd *cobra.Command, args []string) error {
	return withPlatform(cmd, func(p *core.Platform, tenant string) error {
		ids, err := p.ResolveParents(cmd.Context(), tenant, args[0], linkTypeFlag)
		if err != nil {
			return err
		}
		return output(cmd, ids, func(w io.Writer) error {
			return display.IDs(w, ids)
		})
	})
}

func runLinkList(cmd *cobra.Command, args []string) error {
	return withPlatform(cmd, func(p *core.Platform, tenant string) error {
		links, err := p.Links(cmd.Context(), tenant, args[0])
		if err != nil {
			return err
		}
		return output(cmd, links, func(w io.Writer) error {
			return display.Relationships(w, links)
		})
	})
}

func runLinkDelete(cmd *cobra.Command, args []string) error {
	return withPlatform(cmd, func(p *core.Platform, tenant string) error {
		if err := p.Unlink(cmd.Context(), tenant, args[0]); err != nil {
			return err
		}
		return output(cmd, map[string]any{"id": args[0], "deleted": true}, func(w io.Writer) error {
			_, err := fmt.Fprintf(w, "✓ Unlinked %s\n", args[0])
			return err
		})
	})
}

func runLinkSweep(cmd *cobra.Command, args []string) error {
	return withPlatform(cmd, func(p *core.Platform, tenant string) error {
		report, err := p.SweepOrphans(cmd.Context(), tenant, linkSampleFlag)
		if err != nil {
			return err
		}
		return output(cmd, report, func(w io.Writer) error {
			return display.OrphanReport(w, report)
		})
	})
}
