package mapview

import (
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// brailleBuf is a per-cell 8-bit braille mask with the colour of the last
// layer that touched each cell.
type brailleBuf struct {
	w, h  int
	m     [][]uint8
	color [][]string
}

func newBrailleBuf(w, h int) *brailleBuf {
	m := make([][]uint8, h)
	c := make([][]string, h)
	for i := range m {
		m[i] = make([]uint8, w)
		c[i] = make([]string, w)
	}
	return &brailleBuf{w: w, h: h, m: m, color: c}
}

var brailleBits = [microX][microY]uint8{
	{0x01, 0x02, 0x04, 0x40},
	{0x08, 0x10, 0x20, 0x80},
}

// setPixel sets a micro-pixel (2x4 per cell) and stamps the cell colour.
func (b *brailleBuf) setPixel(mx, my int, color string) {
	if mx < 0 || my < 0 {
		return
	}
	cx, cy := mx/microX, my/microY
	if cx >= b.w || cy >= b.h {
		return
	}
	b.m[cy][cx] |= brailleBits[mx%microX][my%microY]
	b.color[cy][cx] = color
}

// drawLine draws a Bresenham line on the micro grid.
func (b *brailleBuf) drawLine(x0, y0, x1, y1 int, color string) {
	dx := abs(x1 - x0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	dy := -abs(y1 - y0)
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy
	for {
		b.setPixel(x0, y0, color)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

// fillRings fills the union of rings with the even-odd rule, so inner rings
// punch holes.
func (b *brailleBuf) fillRings(rings [][][2]int, color string) {
	minY, maxY := b.h*microY, -1
	for _, r := range rings {
		for _, p := range r {
			minY = min(minY, p[1])
			maxY = max(maxY, p[1])
		}
	}
	minY = max(minY, 0)
	maxY = min(maxY, b.h*microY-1)

	var xs []int
	for y := minY; y <= maxY; y++ {
		xs = xs[:0]
		for _, r := range rings {
			for i := range r {
				a, c := r[i], r[(i+1)%len(r)]
				if a[1] == c[1] {
					continue
				}
				if (y >= a[1] && y < c[1]) || (y >= c[1] && y < a[1]) {
					t := float64(y-a[1]) / float64(c[1]-a[1])
					xs = append(xs, int(float64(a[0])+t*float64(c[0]-a[0])))
				}
			}
		}
		if len(xs) < 2 {
			continue
		}
		sort.Ints(xs)
		for i := 0; i+1 < len(xs); i += 2 {
			for x := max(0, xs[i]); x <= xs[i+1] && x < b.w*microX; x++ {
				b.setPixel(x, y, color)
			}
		}
	}
}

// lines renders the buffer, grouping runs of equal colour into one style.
func (b *brailleBuf) lines() []string {
	out := make([]string, b.h)
	var sb strings.Builder
	for y := 0; y < b.h; y++ {
		sb.Reset()
		run := make([]rune, 0, b.w)
		runColor := ""
		flush := func() {
			if len(run) == 0 {
				return
			}
			if runColor == "" {
				sb.WriteString(string(run))
			} else {
				sb.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(runColor)).Render(string(run)))
			}
			run = run[:0]
		}
		for x := 0; x < b.w; x++ {
			r, c := ' ', ""
			if mask := b.m[y][x]; mask != 0 {
				r, c = rune(0x2800+int(mask)), b.color[y][x]
			}
			if c != runColor {
				flush()
				runColor = c
			}
			run = append(run, r)
		}
		flush()
		out[y] = sb.String()
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
