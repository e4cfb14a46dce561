package ui

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// ASCIILogo is printed at the top of interactive commands
const ASCIILogo = `
    ╔════════════════════════════════════════════════════════════╗
    ║  ██████╗  ██████╗ ██╗   ██╗██╗   ██╗██╗███╗   ██╗██████╗   ║
    ║  ██╔══██╗██╔═══██╗██║   ██║╚██╗ ██╔╝██║████╗  ██║██╔══██╗  ║
    ║  ██║  ██║██║   ██║██║   ██║ ╚████╔╝ ██║██╔██╗ ██║██║  ██║  ║
    ║  ██║  ██║██║   ██║██║   ██║  ╚██╔╝  ██║██║╚██╗██║██║  ██║  ║
    ║  ██████╔╝╚██████╔╝╚██████╔╝   ██║   ██║██║ ╚████║██████╔╝  ║
    ║  ╚═════╝  ╚═════╝  ╚═════╝    ╚═╝   ╚═╝╚═╝  ╚═══╝╚═════╝   ║
    ║           PROFILE MEDIA DOWNLOADER                         ║
    ╚════════════════════════════════════════════════════════════╝
`

// Color functions for terminal output. They honour NO_COLOR and non-TTY
// output through fatih/color.
var (
	Cyan    = color.New(color.FgCyan).SprintFunc()
	Yellow  = color.New(color.FgYellow).SprintFunc()
	Red     = color.New(color.FgRed).SprintFunc()
	Green   = color.New(color.FgGreen).SprintFunc()
	Magenta = color.New(color.FgMagenta).SprintFunc()
	Dim     = color.New(color.Faint).SprintFunc()
	Bold    = color.New(color.Bold).SprintFunc()
)

// Output is where the Print helpers write
var Output io.Writer = color.Output

// SetOutput redirects the Print helpers, returning the previous writer
func SetOutput(w io.Writer) io.Writer {
	prev := Output
	Output = w
	return prev
}

// PrintLogo prints the ASCII logo with color
func PrintLogo() {
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
	fmt.Fprintln(Output, Green(msg))
}

// PrintInfo prints a label/value pair
func PrintInfo(label string, value string) {
	fmt.Fprintf(Output, "%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Fprintln(Output, Yellow(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(Output, Yellow(msg))
	}
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	fmt.Fprintln(Output, Magenta(msg))
}
