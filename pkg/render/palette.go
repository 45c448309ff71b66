// Package render draws session snapshots for terminals and browsers.
package render

import (
	"github.com/fatih/color"

	"github.com/Sumatoshi-tech/treefind/pkg/tree"
)

// Hex colors of each marker, as the original panel painted them.
var markerHex = map[tree.Color]string{
	tree.Unmarked:     "#000000",
	tree.PreviousRoot: "#ff0000",
	tree.InPath:       "#ffff00",
	tree.Match:        "#008000",
	tree.NearMiss:     "#663399",
}

var markerAttrs = map[tree.Color][]color.Attribute{
	tree.PreviousRoot: {color.FgRed},
	tree.InPath:       {color.FgYellow},
	tree.Match:        {color.FgGreen, color.Bold},
	tree.NearMiss:     {color.FgMagenta},
}

// Hex returns the chart color of a marker.
func Hex(c tree.Color) string {
	if hex, ok := markerHex[c]; ok {
		return hex
	}

	return markerHex[tree.Unmarked]
}

// painter colors terminal text by marker.
type painter struct {
	enabled bool
}

func (p painter) paint(c tree.Color, text string) string {
	attrs, ok := markerAttrs[c]
	if !ok {
		return text
	}

	col := color.New(attrs...)
	if p.enabled {
		col.EnableColor()
	} else {
		col.DisableColor()
	}

	return col.Sprint(text)
}
