package main

import (
	"fmt"
	"io"
	"os"

	"github.com/retrylife/remoteplayers/internal/links"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

// Status lines go to msgOut so command output on stdout stays scriptable.
var msgOut io.Writer = os.Stderr

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printMsg(color, symbol, format string, args ...any) {
	fmt.Fprintln(msgOut, colorize(color, symbol+" "+fmt.Sprintf(format, args...)))
}

func printSuccess(format string, args ...any) { printMsg(colorGreen, "✓", format, args...) }
func printError(format string, args ...any)   { printMsg(colorRed, "✗", format, args...) }
func printWarning(format string, args ...any) { printMsg(colorYellow, "⚠", format, args...) }
func printStep(format string, args ...any)    { printMsg(colorCyan, "→", format, args...) }

func printStatus(label string, format string, args ...any) {
	fmt.Fprintf(msgOut, "  %s %s\n", colorize(colorBold, label+":"), fmt.Sprintf(format, args...))
}

// printLinks writes one "server<TAB>url" line per link.
func printLinks(w io.Writer, all []links.Link) {
	for _, l := range all {
		fmt.Fprintf(w, "%s\t%s\n", l.Server, l.URL)
	}
}
