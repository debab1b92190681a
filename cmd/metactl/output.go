package main

import (
	"fmt"
	"io"
	"os"

	"github.com/kr/pretty"
	"github.com/mattn/go-isatty"
)

const (
	ansiBold  = "\x1b[1m"
	ansiDim   = "\x1b[2m"
	ansiReset = "\x1b[0m"
)

// output writes the command results, with colour only on a terminal.
type output struct {
	w     io.Writer
	color bool
}

func newOutput(w io.Writer) *output {
	return &output{w: w, color: isTerminal(w)}
}

func isTerminal(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (o *output) style(code, s string) string {
	if !o.color {
		return s
	}
	return code + s + ansiReset
}

// section prints a heading followed by indented lines.
func (o *output) section(title string, lines []string) {
	fmt.Fprintln(o.w, o.style(ansiBold, title+":"))
	if len(lines) == 0 {
		fmt.Fprintln(o.w, o.style(ansiDim, "  (none)"))
		return
	}
	for _, l := range lines {
		fmt.Fprintln(o.w, "  "+l)
	}
}

// field prints a single "name: value" line.
func (o *output) field(name, value string) {
	fmt.Fprintln(o.w, o.style(ansiBold, name+":")+" "+value)
}

// dump prints v with kr/pretty.
func (o *output) dump(title string, v any) {
	fmt.Fprintln(o.w, o.style(ansiDim, "-- "+title))
	fmt.Fprintf(o.w, "%# v\n", pretty.Formatter(v))
}
