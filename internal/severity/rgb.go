package severity

import (
	"regexp"
	"strconv"
	"strings"
)

// RGB holds one display color as numeric channels for renderers that cannot
// take color names.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// Gray is the fallback for every token that fails to parse.
var Gray = RGB{128, 128, 128}

// namedColors covers the display palette from the category table.
var namedColors = map[string]RGB{
	"green":     {0, 128, 0},
	"yellow":    {255, 255, 0},
	"orange":    {255, 165, 0},
	"red":       {255, 0, 0},
	"lightblue": {173, 216, 230},
	"blue":      {0, 0, 255},
	"purple":    {128, 0, 128},
	"gray":      {128, 128, 128},
}

var rgbPattern = regexp.MustCompile(`^rgba?\(\s*(-?\d+)\s*,\s*(-?\d+)\s*,\s*(-?\d+)\s*(?:,[^)]*)?\)$`)

// ToRGB converts a color token to numeric channels. It accepts a palette
// color name (case-insensitive), an rgb()/rgba() textual form (alpha ignored,
// channels clamped to 0..255), or a #RGB/#RRGGBB hex string with or without
// the leading #. Anything else resolves to Gray; ToRGB never fails.
func ToRGB(token string) RGB {
	s := strings.ToLower(strings.TrimSpace(token))
	if s == "" {
		return Gray
	}
	if c, ok := namedColors[s]; ok {
		return c
	}
	if m := rgbPattern.FindStringSubmatch(s); m != nil {
		return RGB{clampChannel(m[1]), clampChannel(m[2]), clampChannel(m[3])}
	}
	if c, ok := parseHex(s); ok {
		return c
	}
	return Gray
}

func clampChannel(s string) uint8 {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	if n < 0 {
		return 0
	}
	if n > 255 {
		return 255
	}
	return uint8(n)
}

func parseHex(s string) (RGB, bool) {
	s = strings.TrimPrefix(s, "#")
	if len(s) == 3 {
		// #abc expands to #aabbcc
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return RGB{}, false
	}
	n, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return RGB{}, false
	}
	return RGB{uint8(n >> 16), uint8(n >> 8 & 0xff), uint8(n & 0xff)}, true
}
