package cmd

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// isTTY reports whether w is an interactive terminal. Decorated output
// is reserved for terminals; pipes get plain lines.
func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

const (
	ansiBold = "\033[1m"
	ansiDim  = "\033[2m"
	ansiOff  = "\033[0m"
)

// style wraps s in the ANSI code when w is a terminal.
func style(w io.Writer, code, s string) string {
	if !isTTY(w) {
		return s
	}
	return code + s + ansiOff
}
