package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// GetAIContext renders a tenant's catalog as plain text for a model prompt:
// one line per registered type, most used first, followed by reuse guidance.
func (c *Catalog) GetAIContext(ctx context.Context, tenantID string) (string, error) {
	defs, err := c.ListSchemas(ctx, tenantID)
	if err != nil {
		return "", err
	}

	sort.SliceStable(defs, func(i, j int) bool {
		if defs[i].UsageCount != defs[j].UsageCount {
			return defs[i].UsageCount > defs[j].UsageCount
		}
		return defs[i].EntityType < defs[j].EntityType
	})

	var b strings.Builder
	fmt.Fprintf(&b, "Registered entity types for tenant %s (%d):\n", tenantID, len(defs))
	if len(defs) == 0 {
		b.WriteString("- none\n")
	}
	for _, def := range defs {
		domain := def.Domain
		if domain == "" {
			domain = "general"
		}
		fmt.Fprintf(&b, "- %s (%s): domain=%s fields=%d usage=%d",
			def.EntityType, def.Name, domain, len(def.Fields), def.UsageCount)
		if len(def.Keywords) > 0 {
			fmt.Fprintf(&b, " keywords=%s", strings.Join(def.Keywords, ","))
		}
		if def.Malformed {
			b.WriteString(" [malformed]")
		}
		b.WriteByte('\n')
	}

	p := c.scorer.policy
	b.WriteString("\nBefore proposing a new entity type, compare it against the types above.\n")
	fmt.Fprintf(&b, "Reuse an existing type when similarity is above %.2f, ", p.UseExistingThreshold)
	fmt.Fprintf(&b, "create a variant when it is above %.2f, and create a new type otherwise.\n", p.VariantThreshold)

	return b.String(), nil
}
