// Package colors provides the terminal styles used by the summary and inspect output.
//
// Colors are disabled automatically when stdout is not a terminal; Init overrides
// the detected setting from the --color flag.
package colors

import "github.com/fatih/color"

// Init allows overriding the auto-detected color setting; nil keeps it.
func Init(forceColor *bool) {
	if forceColor != nil {
		color.NoColor = !*forceColor
	}
}

func Bold() *color.Color    { return color.New(color.Bold) }
func Faint() *color.Color   { return color.New(color.Faint) }
func Red() *color.Color     { return color.New(color.FgRed) }
func Green() *color.Color   { return color.New(color.FgGreen) }
func Yellow() *color.Color  { return color.New(color.FgYellow) }
func Blue() *color.Color    { return color.New(color.FgBlue) }

// ForClass returns the style for a dependency class name as printed by inspect
func ForClass(class string) *color.Color {
	switch class {
	case "system", "same-dir":
		return Faint()
	case "relocated":
		return Green()
	case "rpath":
		return Yellow()
	case "external":
		return color.New(color.Bold, color.FgMagenta)
	default:
		return Blue()
	}
}
