package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"
	"unicode/utf8"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/grantqa/config"
	"github.com/otherjamesbrown/grantqa/pkg/tablestate"
)

// maxCell is the widest a text cell may be on an interactive terminal.
const maxCell = 48

// render writes v as JSON or YAML, or calls text for the human format.
func render(w io.Writer, format config.OutputFormat, v any, text func(w io.Writer) error) error {
	switch format {
	case config.OutputFormatJSON:
		return outputJSON(w, v)
	case config.OutputFormatYAML:
		return outputYAML(w, v)
	default:
		return text(w)
	}
}

func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputYAML round-trips v through JSON so the YAML keys match the JSON
// field names.
func outputYAML(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	var generic any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return enc.Close()
}

// table writes aligned columns. Long cells are truncated only when w is a
// terminal, so piped output stays complete.
type table struct {
	tw       *tabwriter.Writer
	truncate bool
}

func newTable(w io.Writer, headers ...string) *table {
	t := &table{
		tw:       tabwriter.NewWriter(w, 0, 0, 2, ' ', 0),
		truncate: isTerminal(w),
	}
	t.row(headers...)
	return t
}

func (t *table) row(cells ...string) {
	if t.truncate {
		for i, c := range cells {
			cells[i] = truncate(c, maxCell)
		}
	}
	fmt.Fprintln(t.tw, strings.Join(cells, "\t"))
}

func (t *table) flush() error {
	return t.tw.Flush()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-1]) + "…"
}

// pageFooter summarizes which rows of the result were shown.
func pageFooter(w io.Writer, p tablestate.Pagination) {
	if p.Total == 0 {
		fmt.Fprintln(w, "\nNo rows.")
		return
	}
	if p.From == 0 {
		fmt.Fprintf(w, "\nPage %d is past the last page (%d rows, %d pages).\n", p.Page, p.Total, p.TotalPages)
		return
	}
	fmt.Fprintf(w, "\nShowing %d-%d of %d (page %d of %d)\n", p.From, p.To, p.Total, p.Page, p.TotalPages)
}

func score(v float64) string {
	return fmt.Sprintf("%.1f", v)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02")
}
