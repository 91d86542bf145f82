// Package display renders command results as pterm tables or JSON.
package display

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"github.com/teranos/strata/am"
	"github.com/teranos/strata/query"
	"github.com/teranos/strata/types"
)

// maxCellWidth truncates long values (json payloads, descriptions) in tables
const maxCellWidth = 48

func render(w io.Writer, data pterm.TableData) error {
	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, out)
	return err
}

func truncate(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if r := []rune(s); len(r) > maxCellWidth {
		return string(r[:maxCellWidth-1]) + "…"
	}
	return s
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func active(b bool) string {
	if b {
		return pterm.Green("active")
	}
	return pterm.Gray("deleted")
}

// Entities renders entities, one per row
func Entities(w io.Writer, entities []*types.Entity) error {
	data := pterm.TableData{{"ID", "Type", "Code", "Name", "State", "Updated"}}
	for _, e := range entities {
		data = append(data, []string{e.ID, e.Type, e.Code, e.Name, active(e.Active), stamp(e.UpdatedAt)})
	}
	return render(w, data)
}

// Fields renders an entity's attributes in order
func Fields(w io.Writer, fields []types.Attribute) error {
	if len(fields) == 0 {
		_, err := fmt.Fprintln(w, pterm.Gray("(no fields)"))
		return err
	}
	data := pterm.TableData{{"#", "Field", "Value", "Kind", "Required", "Format", "Problem"}}
	for _, a := range fields {
		required := ""
		if a.Required {
			required = "yes"
		}
		problem := ""
		if a.Problem != "" {
			problem = pterm.Red(truncate(a.Problem))
		}
		data = append(data, []string{
			strconv.Itoa(a.Order), a.Name, truncate(a.Value), string(a.Kind), required, a.Rules.Format, problem,
		})
	}
	return render(w, data)
}

// Relationships renders links
func Relationships(w io.Writer, links []types.Relationship) error {
	data := pterm.TableData{{"ID", "Type", "Parent", "Child", "Payload", "State"}}
	for _, r := range links {
		data = append(data, []string{r.ID, r.Type, r.ParentID, r.ChildID, truncate(string(r.Payload)), active(r.Active)})
	}
	return render(w, data)
}

// IDs renders a plain list of entity ids
func IDs(w io.Writer, ids []string) error {
	if len(ids) == 0 {
		_, err := fmt.Fprintln(w, pterm.Gray("(none)"))
		return err
	}
	for _, id := range ids {
		if _, err := fmt.Fprintln(w, id); err != nil {
			return err
		}
	}
	return nil
}

// Schemas renders catalog entries
func Schemas(w io.Writer, defs []types.SchemaDefinition) error {
	data := pterm.TableData{{"Type", "Name", "Domain", "Fields", "Usage", "Keywords", "AI"}}
	for _, d := range defs {
		fields := strings.Join(d.FieldNames(), ", ")
		if d.Malformed {
			fields = pterm.Red("unreadable")
		}
		ai := ""
		if d.AIGenerated {
			ai = fmt.Sprintf("%.2f", d.Confidence)
		}
		data = append(data, []string{
			d.EntityType, d.Name, d.Domain, truncate(fields),
			strconv.FormatInt(d.UsageCount, 10), truncate(strings.Join(d.Keywords, ", ")), ai,
		})
	}
	return render(w, data)
}

// Schema renders one definition with its full field list
func Schema(w io.Writer, d *types.SchemaDefinition) error {
	if err := Schemas(w, []types.SchemaDefinition{*d}); err != nil {
		return err
	}
	data := pterm.TableData{{"Field", "Kind", "Required"}}
	for _, f := range d.Fields {
		required := ""
		if f.Required {
			required = "yes"
		}
		data = append(data, []string{f.Name, string(f.Kind), required})
	}
	return render(w, data)
}

func recommendation(r types.Recommendation) string {
	switch r {
	case types.RecommendUseExisting:
		return pterm.Green(string(r))
	case types.RecommendCreateVariant:
		return pterm.Yellow(string(r))
	default:
		return pterm.Gray(string(r))
	}
}

// Similar renders ranked similarity results
func Similar(w io.Writer, results []types.SimilarityResult) error {
	if len(results) == 0 {
		_, err := fmt.Fprintln(w, pterm.Gray("No similar schemas: "+string(types.RecommendCreateNew)))
		return err
	}
	data := pterm.TableData{{"Type", "Score", "Name", "Keywords", "Fields", "Recommendation", "Missing", "Extra"}}
	for _, r := range results {
		data = append(data, []string{
			r.EntityType,
			fmt.Sprintf("%.3f", r.Score),
			fmt.Sprintf("%.2f", r.TypeScore),
			fmt.Sprintf("%.2f", r.KeywordScore),
			fmt.Sprintf("%.2f", r.FieldScore),
			recommendation(r.Recommendation),
			strings.Join(r.MissingFields, ", "),
			strings.Join(r.ExtraFields, ", "),
		})
	}
	return render(w, data)
}

// SearchResult renders one page of search results with a paging footer
func SearchResult(w io.Writer, res *query.Result) error {
	data := pterm.TableData{{"ID", "Type", "Code", "Name", "Fields"}}
	for _, rec := range res.Records {
		pairs := make([]string, 0, len(rec.Fields))
		for _, a := range rec.Fields {
			pairs = append(pairs, a.Name+"="+a.Value)
		}
		data = append(data, []string{rec.Entity.ID, rec.Entity.Type, rec.Entity.Code, rec.Entity.Name, truncate(strings.Join(pairs, " "))})
	}
	if err := render(w, data); err != nil {
		return err
	}

	end := res.Offset + len(res.Records)
	_, err := fmt.Fprintf(w, "%s\n", pterm.Gray(fmt.Sprintf("showing %d-%d of %d", min(res.Offset+1, end), end, res.Total)))
	return err
}

// OrphanReport renders sweep counts
func OrphanReport(w io.Writer, r *types.OrphanReport) error {
	data := pterm.TableData{
		{"Check", "Sampled", "Orphaned", "Cross-tenant"},
		{"attributes", strconv.Itoa(r.AttributesSampled), strconv.Itoa(r.OrphanAttributes), ""},
		{"relationships", strconv.Itoa(r.LinksSampled), strconv.Itoa(r.OrphanLinks), strconv.Itoa(r.CrossTenantLinks)},
	}
	if err := render(w, data); err != nil {
		return err
	}
	status := pterm.Green("clean")
	if !r.Clean() {
		status = pterm.Red("orphans found")
	}
	_, err := fmt.Fprintln(w, status)
	return err
}

// Settings renders configuration settings with their sources
func Settings(w io.Writer, settings []am.SettingInfo) error {
	data := pterm.TableData{{"Key", "Value", "Source", "From"}}
	for _, s := range settings {
		data = append(data, []string{s.Key, truncate(fmt.Sprint(s.Value)), string(s.Source), s.SourcePath})
	}
	return render(w, data)
}
