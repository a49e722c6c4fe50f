package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
)

// Output formats
const (
	FormatText  = "text"
	FormatJSON  = "json"
	FormatTable = "table"
)

// ValidFormat reports whether f is a supported output format
func ValidFormat(f string) bool {
	return f == FormatText || f == FormatJSON || f == FormatTable
}

// Printer renders command results
type Printer struct {
	out    io.Writer
	format string
	bold   *color.Color
	ok     *color.Color
	warn   *color.Color
	fail   *color.Color
	info   *color.Color
}

// NewPrinter writes to out in the given format
func NewPrinter(out io.Writer, format string) *Printer {
	return &Printer{
		out:    out,
		format: format,
		bold:   color.New(color.Bold),
		ok:     color.New(color.FgGreen),
		warn:   color.New(color.FgYellow),
		fail:   color.New(color.FgRed),
		info:   color.New(color.FgCyan),
	}
}

// JSON reports whether results should be printed as raw JSON
func (p *Printer) JSON() bool {
	return p.format == FormatJSON
}

// Object prints v as indented JSON
func (p *Printer) Object(v interface{}) error {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Table prints rows under headers. Text and table formats share the layout;
// table adds a separator line.
func (p *Printer) Table(headers []string, rows [][]string) {
	w := tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)
	_, _ = p.bold.Fprintln(w, strings.Join(headers, "\t"))
	if p.format == FormatTable {
		seps := make([]string, len(headers))
		for i, h := range headers {
			seps[i] = strings.Repeat("-", len(h))
		}
		fmt.Fprintln(w, strings.Join(seps, "\t"))
	}
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	_ = w.Flush()
}

// KeyValue prints one "key: value" line with the key in bold
func (p *Printer) KeyValue(key string, value interface{}) {
	_, _ = p.bold.Fprintf(p.out, "%s: ", key)
	fmt.Fprintf(p.out, "%v\n", value)
}

// Success prints a green message
func (p *Printer) Success(format string, args ...interface{}) {
	_, _ = p.ok.Fprintf(p.out, format+"\n", args...)
}

// Info prints a cyan message
func (p *Printer) Info(format string, args ...interface{}) {
	_, _ = p.info.Fprintf(p.out, format+"\n", args...)
}

// Warning prints a yellow message
func (p *Printer) Warning(format string, args ...interface{}) {
	_, _ = p.warn.Fprintf(p.out, "Warning: "+format+"\n", args...)
}

// Status colors a health status word
func (p *Printer) Status(s string) string {
	switch s {
	case "healthy":
		return p.ok.Sprint(s)
	case "degraded":
		return p.warn.Sprint(s)
	default:
		return p.fail.Sprint(s)
	}
}
