// Package palette maps colour labels to the swatch a row is painted with.
package palette

import "strings"

// Presentation is the background/text pair used to paint a place row.
type Presentation struct {
	Background string `json:"background"`
	Text       string `json:"text"`
}

const (
	textDark  = "black"
	textLight = "white"

	fallback = "grey"
)

// backgrounds is keyed by the lower-cased label.
var backgrounds = map[string]string{
	"yellow": "gold",
	"red":    "red",
	"green":  "green",
	"blue":   "dodgerblue",
	"orange": "orange",
}

// lightText lists backgrounds too dark for black text.
var lightText = map[string]bool{
	"red":        true,
	"green":      true,
	"dodgerblue": true,
}

// Present returns the presentation for a label. Matching is
// case-insensitive and ignores surrounding spaces; anything unknown,
// including the empty string and the "..." placeholder, is grey.
func Present(label string) Presentation {
	bg, ok := backgrounds[strings.ToLower(strings.TrimSpace(label))]
	if !ok {
		bg = fallback
	}
	text := textDark
	if lightText[bg] {
		text = textLight
	}
	return Presentation{Background: bg, Text: text}
}
