package tui

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	table "github.com/charmbracelet/bubbles/table"
	"github.com/paulmach/orb/geojson"

	"slopemap/internal/mapview"
	"slopemap/internal/slope"
)

// featurePopup renders the inspect popup for a clicked feature.
func featurePopup(kind string, e mapview.Event) string {
	lines := []string{
		titleStyle.Render(kind),
		fmt.Sprintf("lon=%.6f lat=%.6f", e.Lon, e.Lat),
	}
	if e.Feature == nil {
		return strings.Join(lines, "\n")
	}
	props := e.Feature.Properties
	if kind == "cell" {
		lines = append(lines,
			fmt.Sprintf("slope: %s%%", formatValue(props[slope.PropSlope])),
			fmt.Sprintf("row %s, col %s", formatValue(props[slope.PropRow]), formatValue(props[slope.PropCol])),
			fmt.Sprintf("class colour: %s", formatValue(props[slope.PropColor])))
		return strings.Join(lines, "\n")
	}
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s: %s", k, formatValue(props[k])))
	}
	if len(keys) == 0 {
		lines = append(lines, dimStyle.Render("no attributes"))
	}
	return strings.Join(lines, "\n")
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return fmt.Sprintf("%g", t)
	case int:
		return fmt.Sprintf("%d", t)
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		bs, _ := json.Marshal(t)
		return string(bs)
	}
}

// buildAttributes unions property keys across features, in first-seen
// order, and returns one row per feature.
func buildAttributes(fc *geojson.FeatureCollection) ([]string, [][]string) {
	if fc == nil {
		return nil, nil
	}
	var order []string
	seen := map[string]bool{}
	for _, f := range fc.Features {
		keys := make([]string, 0, len(f.Properties))
		for k := range f.Properties {
			if !seen[k] {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			seen[k] = true
			order = append(order, k)
		}
	}
	rows := make([][]string, 0, len(fc.Features))
	for _, f := range fc.Features {
		vals := make([]string, len(order))
		for i, k := range order {
			vals[i] = formatValue(f.Properties[k])
		}
		rows = append(rows, vals)
	}
	return order, rows
}

// refreshAttrs rebuilds the attributes table from the user data.
func (m *Model) refreshAttrs() {
	cols, rows := buildAttributes(m.user.Features)
	if len(cols) == 0 || len(rows) == 0 {
		m.showAttrs = false
		m.status = "no attributes for current dataset"
		return
	}
	tcols := make([]table.Column, 0, len(cols)+1)
	tcols = append(tcols, table.Column{Title: "#", Width: 4})
	maxColW := 24
	for _, c := range cols {
		tcols = append(tcols, table.Column{Title: c, Width: min(len(c)+2, maxColW)})
	}
	trows := make([]table.Row, 0, len(rows))
	for i, r := range rows {
		row := make([]string, 0, len(r)+1)
		row = append(row, fmt.Sprintf("%d", i+1))
		row = append(row, r...)
		trows = append(trows, table.Row(row))
	}
	// clear rows first so columns and rows never disagree mid-update
	m.tbl.SetRows(nil)
	m.tbl.SetColumns(tcols)
	m.tbl.SetRows(trows)
}
