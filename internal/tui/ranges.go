package tui

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	table "github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"slopemap/internal/logging"
)

const (
	editMin   = "min"
	editMax   = "max"
	editColor = "color"
)

// refreshRangeTable mirrors the range table into the editor widget.
func (m *Model) refreshRangeTable() {
	cols := []table.Column{
		{Title: "#", Width: 2},
		{Title: "min", Width: 6},
		{Title: "max", Width: 6},
		{Title: "color", Width: 8},
		{Title: "label", Width: 12},
	}
	rows := make([]table.Row, 0, m.ranges.Len())
	for i, r := range m.ranges.Ranges() {
		rows = append(rows, table.Row{
			strconv.Itoa(i + 1),
			strconv.FormatFloat(r.Min, 'g', -1, 64),
			strconv.FormatFloat(r.Max, 'g', -1, 64),
			r.Color,
			r.Label,
		})
	}
	cursor := m.rangeTbl.Cursor()
	m.rangeTbl.SetRows(nil)
	m.rangeTbl.SetColumns(cols)
	m.rangeTbl.SetRows(rows)
	if cursor >= len(rows) {
		cursor = len(rows) - 1
	}
	m.rangeTbl.SetCursor(max(cursor, 0))
}

func (m *Model) selectedRange() int { return m.rangeTbl.Cursor() }

func (m *Model) addRange() {
	r := m.ranges.Add()
	m.refreshRangeTable()
	m.rangeTbl.SetCursor(m.ranges.Len() - 1)
	m.syncSlope()
	m.status = "added range " + r.Label
}

func (m *Model) deleteRange() {
	i := m.selectedRange()
	if !m.ranges.Delete(i) {
		m.status = "at least two ranges are required"
		return
	}
	m.refreshRangeTable()
	m.syncSlope()
	m.status = fmt.Sprintf("deleted range %d", i+1)
}

// beginEdit opens the inline input for field of the selected range.
func (m *Model) beginEdit(field string) {
	r, ok := m.ranges.At(m.selectedRange())
	if !ok {
		return
	}
	m.editField = field
	m.input.Prompt = field + ": "
	switch field {
	case editMin:
		m.input.SetValue(strconv.FormatFloat(r.Min, 'g', -1, 64))
	case editMax:
		m.input.SetValue(strconv.FormatFloat(r.Max, 'g', -1, 64))
	case editColor:
		m.input.SetValue(r.Color)
	}
	m.input.CursorEnd()
	m.input.Focus()
}

func (m *Model) cancelEdit() {
	m.editField = ""
	m.input.Blur()
}

// applyEdit writes the input back into the range table and reclassifies.
func (m *Model) applyEdit() {
	defer m.cancelEdit()
	i := m.selectedRange()
	raw := strings.TrimSpace(m.input.Value())
	var ok bool
	switch m.editField {
	case editMin, editMax:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			m.status = fmt.Sprintf("%s: not a number: %q", m.editField, raw)
			return
		}
		if m.editField == editMin {
			ok = m.ranges.EditMin(i, v)
		} else {
			ok = m.ranges.EditMax(i, v)
		}
	case editColor:
		ok = m.ranges.EditColor(i, raw)
	}
	if !ok {
		return
	}
	m.log.Debug("range edited", logging.Int("index", i), logging.String("field", m.editField), logging.String("value", raw))
	m.refreshRangeTable()
	m.syncSlope()
	r, _ := m.ranges.At(i)
	m.status = fmt.Sprintf("range %d: %s %s", i+1, r.Label, r.Color)
}

// legend renders one swatch per range.
func (m Model) legend() string {
	parts := make([]string, 0, m.ranges.Len())
	for _, r := range m.ranges.Ranges() {
		sw := lipgloss.NewStyle().Foreground(lipgloss.Color(r.Color)).Render("■")
		parts = append(parts, sw+" "+r.Label)
	}
	return strings.Join(parts, "  ")
}
