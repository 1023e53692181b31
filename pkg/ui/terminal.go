package ui

import (
	"fmt"
	"io"
	"sync/atomic"

	"github.com/fatih/color"
)

// ASCIILogo is printed at the top of interactive runs
const ASCIILogo = `
    ╔════════════════════════════════════════════════════╗
    ║  ███████╗██╗ ██████╗ ██╗  ██╗████████╗             ║
    ║  ██╔════╝██║██╔════╝ ██║  ██║╚══██╔══╝             ║
    ║  █████╗  ██║██║  ███╗███████║   ██║   gen          ║
    ║  ██╔══╝  ██║██║   ██║██╔══██║   ██║                ║
    ║  ██║     ██║╚██████╔╝██║  ██║   ██║                ║
    ║  ╚═╝     ╚═╝ ╚═════╝ ╚═╝  ╚═╝   ╚═╝                ║
    ║       ARENA EDITION - BATCH FIGHT GENERATOR        ║
    ╚════════════════════════════════════════════════════╝
`

// Color functions for terminal output
var (
	Cyan    = color.New(color.FgCyan).SprintFunc()
	Yellow  = color.New(color.FgYellow).SprintFunc()
	Red     = color.New(color.FgRed).SprintFunc()
	Green   = color.New(color.FgGreen).SprintFunc()
	Magenta = color.New(color.FgMagenta).SprintFunc()
	Dim     = color.New(color.Faint).SprintFunc()
	Bold    = color.New(color.Bold).SprintFunc()
)

// Output is where the print helpers write. It follows color.Output so
// Windows consoles get translated escape codes.
var Output io.Writer = color.Output

var quiet atomic.Bool

// SetQuietMode suppresses every print helper except errors
func SetQuietMode(q bool) {
	quiet.Store(q)
}

// IsQuietMode reports whether non-error output is suppressed
func IsQuietMode() bool {
	return quiet.Load()
}

// SetColorEnabled toggles ANSI colours globally
func SetColorEnabled(enabled bool) {
	color.NoColor = !enabled
}

// PrintLogo prints the ASCII logo with color
func PrintLogo() {
	if IsQuietMode() {
		return
	}
	fmt.Fprint(Output, Cyan(ASCIILogo))
}

// PrintError prints an error message in red
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Fprintln(Output, Red(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(Output, Red(msg))
	}
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	if IsQuietMode() {
		return
	}
	fmt.Fprintln(Output, Green(msg))
}

// PrintInfo prints a label/value pair
func PrintInfo(label string, value string) {
	if IsQuietMode() {
		return
	}
	fmt.Fprintf(Output, "%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if IsQuietMode() {
		return
	}
	if len(args) > 0 {
		fmt.Fprintln(Output, Yellow(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(Output, Yellow(msg))
	}
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	if IsQuietMode() {
		return
	}
	fmt.Fprintln(Output, Magenta(msg))
}
