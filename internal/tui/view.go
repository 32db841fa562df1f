package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	if !m.mv.Alive() {
		return ""
	}
	contentWidth := max(10, m.width)
	_, _, mapWidth, mapHeight := m.layout()

	// Header
	header := titleStyle.Render(" slopemap ─ terrain slope explorer ")
	if m.drawer.Active() {
		header += " " + badgeStyle.Render("DRAW "+m.mv.Cursor())
	}
	header += dimStyle.Render("  " + m.regionLabel())
	header = lipgloss.NewStyle().Width(contentWidth).MaxHeight(headerHeight).Render(header)

	// Map area
	var mapView string
	switch {
	case m.showAttrs:
		colW := 0
		for _, c := range m.tbl.Columns() {
			colW += c.Width + 3
		}
		if colW == 0 {
			colW = min(60, contentWidth-6)
		}
		maxW := min(mapWidth, max(32, colW))
		m.tbl.SetWidth(maxW - 4)
		m.tbl.SetHeight(min(mapHeight-2, 20))
		attrsBox := boxStyle.Width(maxW).Render(m.tbl.View())
		mapView = lipgloss.Place(mapWidth, mapHeight, lipgloss.Center, lipgloss.Center, attrsBox)
	case m.pasteMode:
		m.ta.SetWidth(mapWidth)
		m.ta.SetHeight(min(mapHeight, 12))
		mapView = lipgloss.NewStyle().Width(mapWidth).Height(mapHeight).Render(m.ta.View())
	default:
		mapView = lipgloss.NewStyle().Width(mapWidth).Height(mapHeight).Render(m.mv.Render())
	}

	cols := make([]string, 0, 5)
	if m.showRanges {
		cols = append(cols, m.renderRanges(mapHeight), " ")
	}
	cols = append(cols, mapView)
	if m.inspectPopup != "" && !m.showAttrs {
		box := boxStyle.Width(popupWidth - 2).MaxHeight(mapHeight).Render(m.inspectPopup)
		cols = append(cols, " ", box)
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top, cols...)
	body = lipgloss.NewStyle().MaxHeight(mapHeight).Render(body)

	// Footer: status and coordinates, then key help
	status := dimStyle.Render(" " + m.status + " ")
	if m.hoverInfo != "" {
		status += titleStyle.Render(" " + m.hoverInfo + " ")
	}
	coords := ""
	if m.hoverHasGeo {
		coords = dimStyle.Render(fmt.Sprintf("  lon=%.5f lat=%.5f  ", m.hoverLon, m.hoverLat))
	}
	spacerW := max(0, contentWidth-lipgloss.Width(status)-lipgloss.Width(coords))
	statusLine := lipgloss.JoinHorizontal(lipgloss.Bottom, status, strings.Repeat(" ", spacerW), coords)
	footer := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().MaxWidth(contentWidth).Render(statusLine),
		lipgloss.NewStyle().MaxWidth(contentWidth).Render(m.renderHelp()))

	ui := lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
	return appStyle.Width(contentWidth).Height(m.height).Render(ui)
}

func (m Model) renderRanges(height int) string {
	parts := []string{
		titleStyle.Render("Slope ranges (%)"),
		m.rangeTbl.View(),
		m.legend(),
	}
	if m.editField != "" {
		parts = append(parts, m.input.View())
	} else {
		parts = append(parts, dimStyle.Render("a add  x del  e min  E max  c color"))
	}
	inner := lipgloss.NewStyle().Width(sidebarWidth - 4).Render(strings.Join(parts, "\n"))
	return boxStyle.Width(sidebarWidth - 2).MaxHeight(height).Render(inner)
}

func (m Model) renderHelp() string {
	if !m.helpVisible {
		return ""
	}
	keys := []string{
		"d draw",
		"r reload",
		"g ranges",
		"1-4 layers",
		"i intersect",
		"p paste",
		"t attrs",
		"↑↓←→ pan",
		"+/- zoom",
		"h help",
		"q quit",
	}
	return dimStyle.Render("  " + strings.Join(keys, "  "))
}
