package mapview

import (
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

const (
	DefaultBackground = "#111827"
	DefaultFillColor  = "#9ca3af"
	DefaultLineColor  = "#e5e7eb"
)

// palette parses paint colours and caches the blended results.
type palette struct {
	bg    colorful.Color
	cache map[string]string
}

func newPalette(bgHex string) *palette {
	bg, err := colorful.Hex(bgHex)
	if err != nil {
		bg, _ = colorful.Hex(DefaultBackground)
	}
	return &palette{bg: bg, cache: make(map[string]string)}
}

// parseColor accepts "#rgb", "#rrggbb" and "rgb(r, g, b)".
func parseColor(s string) (colorful.Color, bool) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "rgb(") && strings.HasSuffix(s, ")") {
		parts := strings.Split(s[4:len(s)-1], ",")
		if len(parts) != 3 {
			return colorful.Color{}, false
		}
		var v [3]uint8
		for i, p := range parts {
			n, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
			if err != nil {
				return colorful.Color{}, false
			}
			v[i] = uint8(n)
		}
		return colorful.Color{R: float64(v[0]) / 255, G: float64(v[1]) / 255, B: float64(v[2]) / 255}, true
	}
	if len(s) == 4 && s[0] == '#' {
		s = "#" + strings.Repeat(s[1:2], 2) + strings.Repeat(s[2:3], 2) + strings.Repeat(s[3:4], 2)
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return colorful.Color{}, false
	}
	return c, true
}

// resolve returns the hex colour to draw with, blending c over the
// background at opacity. Unparseable colours fall back to fallback.
func (p *palette) resolve(c string, opacity float64, fallback string) string {
	key := c + "|" + strconv.FormatFloat(opacity, 'f', 3, 64)
	if hex, ok := p.cache[key]; ok {
		return hex
	}
	col, ok := parseColor(c)
	if !ok {
		col, _ = parseColor(fallback)
	}
	if opacity > 0 && opacity < 1 {
		col = p.bg.BlendRgb(col, opacity).Clamped()
	}
	hex := col.Hex()
	p.cache[key] = hex
	return hex
}
