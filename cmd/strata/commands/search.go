package commands

import (
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teranos/strata/core"
	"github.com/teranos/strata/display"
	"github.com/teranos/strata/errors"
	"github.com/teranos/strata/query"
)

// SearchCmd represents the search command
var SearchCmd = &cobra.Command{
	Use:   "search [text]",
	Short: "Search entities by type, text, filters and links",
	Long: `Search a tenant's entities.

Filters are field:op:value with op one of eq, neq, gt, gte, lt, lte,
contains, exists; field=value is shorthand for eq. Comparisons follow the
field's kind, so numbers and dates order numerically and chronologically.

Examples:
  strata -t acme search ada
  strata -t acme search --type customer --filter age:gte:30 --filter city=London
  strata -t acme search --type line_item --related <order-id> --related-type contains
  strata -t acme search --type invoice --sort -amount --limit 5 --offset 10`,
	Args: cobra.ArbitraryArgs,
	RunE: runSearch,
}

var (
	searchTypeFlag        string
	searchFilterFlags     []string
	searchSortFlag        string
	searchOffsetFlag      int
	searchLimitFlag       int
	searchRelatedFlag     string
	searchRelatedTypeFlag string
	searchParentsFlag     bool
	searchInactiveFlag    bool
)

func init() {
	f := SearchCmd.Flags()
	f.StringVar(&searchTypeFlag, "type", "", "Entity type")
	f.StringArrayVar(&searchFilterFlags, "filter", nil, "Field filter field:op:value (repeatable)")
	f.StringVar(&searchSortFlag, "sort", "", "Sort by name, code, created_at, updated_at or a field; prefix - for descending")
	f.IntVar(&searchOffsetFlag, "offset", 0, "Records to skip")
	f.IntVar(&searchLimitFlag, "limit", 0, "Page size (default: search.default_limit)")
	f.StringVar(&searchRelatedFlag, "related", "", "Only entities linked to this entity id")
	f.StringVar(&searchRelatedTypeFlag, "related-type", "", "Relationship type for --related")
	f.BoolVar(&searchParentsFlag, "parents", false, "With --related, match its parents instead of its children")
	f.BoolVar(&searchInactiveFlag, "inactive", false, "Include soft-deleted entities")
}

// parseFilter parses field:op:value, field:exists and field=value
func parseFilter(s string) (query.Filter, error) {
	if field, value, ok := strings.Cut(s, "="); ok && !strings.Contains(field, ":") {
		return query.Filter{Field: strings.TrimSpace(field), Op: query.OpEq, Value: value}, nil
	}

	parts := strings.SplitN(s, ":", 3)
	if len(parts) < 2 || strings.TrimSpace(parts[0]) == "" {
		return query.Filter{}, errors.WithHint(
			errors.NewValidationError("filter %q must be field:op:value", s),
			"ops: eq, neq, gt, gte, lt, lte, contains, exists",
		)
	}

	f := query.Filter{Field: strings.TrimSpace(parts[0]), Op: query.Op(strings.ToLower(parts[1]))}
	if len(parts) == 3 {
		f.Value = parts[2]
	} else if f.Op != query.OpExists {
		return query.Filter{}, errors.NewValidationError("filter %q is missing a value", s)
	}
	return f, nil
}

// parseSort parses [-]field
func parseSort(s string) query.Sort {
	s = strings.TrimSpace(s)
	if field, ok := strings.CutPrefix(s, "-"); ok {
		return query.Sort{Field: field, Desc: true}
	}
	return query.Sort{Field: s}
}

func searchRequest(args []string) (query.Request, error) {
	req := query.Request{
		Type:            searchTypeFlag,
		Text:            strings.Join(args, " "),
		Sort:            parseSort(searchSortFlag),
		Page:            query.Page{Offset: searchOffsetFlag, Limit: searchLimitFlag},
		IncludeInactive: searchInactiveFlag,
	}

	for _, raw := range searchFilterFlags {
		f, err := parseFilter(raw)
		if err != nil {
			return req, err
		}
		req.Filters = append(req.Filters, f)
	}

	if searchRelatedFlag != "" {
		direction := query.DirectionChildren
		if searchParentsFlag {
			direction = query.DirectionParents
		}
		req.Related = &query.Related{
			Type:      searchRelatedTypeFlag,
			EntityID:  searchRelatedFlag,
			Direction: direction,
		}
	}
	return req, nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	req, err := searchRequest(args)
	if err != nil {
		return err
	}

	return withPlatform(cmd, func(p *core.Platform, tenant string) error {
		res, err := p.Query(cmd.Context(), tenant, req)
		if err != nil {
			return err
		}
		return output(cmd, res, func(w io.Writer) error {
			return display.SearchResult(w, res)
		})
	})
}
