package widgets

import (
	"fmt"
	"strconv"
	"strings"
)

// Colour is an RGB colour written as "#rrggbb" or "#rgb".
type Colour struct {
	R, G, B uint8
}

// Parse reads a colour from its hex form. It lets the bridge accept colours as plain
// strings in query parameters and headers.
func (Colour) Parse(s string) (Colour, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return Colour{}, fmt.Errorf("colour %q: want #rrggbb", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Colour{}, fmt.Errorf("colour %q: %w", s, err)
	}
	return Colour{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

func (c Colour) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// MarshalText renders the colour in hex.
func (c Colour) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText parses the hex form.
func (c *Colour) UnmarshalText(text []byte) error {
	parsed, err := Colour{}.Parse(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
