package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/Sternrassler/snowball-gateway/pkg/normalize"
	"github.com/Sternrassler/snowball-gateway/pkg/snowball"
	"github.com/jedib0t/go-pretty/v6/table"
)

// Output formats for call results.
const (
	formatTable = "table"
	formatJSON  = "json"
)

// renderResult writes a normalized result. Tables and flat records are drawn
// as tables; anything else falls back to indented JSON.
func renderResult(w io.Writer, result any, format string) error {
	if format == formatTable {
		switch v := result.(type) {
		case normalize.Table:
			_, err := fmt.Fprintln(w, renderTable(v))
			return err
		case map[string]any:
			if rendered, ok := renderRecord(v); ok {
				_, err := fmt.Fprintln(w, rendered)
				return err
			}
		}
	}
	return writeJSON(w, result)
}

func renderTable(t normalize.Table) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	tw.AppendHeader(header)

	for _, row := range t.Data {
		r := make(table.Row, len(row))
		for i, cell := range row {
			r[i] = cellText(cell)
		}
		tw.AppendRow(r)
	}
	tw.AppendFooter(table.Row{fmt.Sprintf("%d rows", len(t.Data))})
	return tw.Render()
}

// renderRecord draws a map as a field/value table. Nested tables are drawn
// below it. Records holding other nested values are not tabular.
func renderRecord(rec map[string]any) (string, bool) {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Field", "Value"})

	var nested []string
	for _, k := range keys {
		switch v := rec[k].(type) {
		case normalize.Table:
			nested = append(nested, k+"\n"+renderTable(v))
		case map[string]any, []any:
			return "", false
		default:
			tw.AppendRow(table.Row{k, cellText(v)})
		}
	}

	out := tw.Render()
	for _, n := range nested {
		out += "\n\n" + n
	}
	return out, true
}

func renderOps(w io.Writer, specs []snowball.Spec) error {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Operation", "Host", "Profile", "Params", "Description"})

	for _, s := range specs {
		params := make([]string, 0, len(s.Params))
		for _, p := range s.Params {
			switch {
			case p.Required:
				params = append(params, p.Name+"*")
			case p.Default != "":
				params = append(params, p.Name+"="+p.Default)
			default:
				params = append(params, p.Name)
			}
		}
		tw.AppendRow(table.Row{s.Name, string(s.Host), string(s.Profile), strings.Join(params, " "), s.Description})
	}
	tw.AppendFooter(table.Row{fmt.Sprintf("%d operations", len(specs)), "", "", "* required", ""})

	_, err := fmt.Fprintln(w, tw.Render())
	return err
}

func cellText(v any) string {
	switch x := v.(type) {
	case nil:
		return "-"
	case string:
		return x
	case float64:
		return fmt.Sprintf("%g", x)
	default:
		return fmt.Sprint(x)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
