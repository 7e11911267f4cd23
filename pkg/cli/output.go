package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// OutputFormat represents the output format for command results.
type OutputFormat string

const (
	// FormatText is an aligned table or plain text (default).
	FormatText OutputFormat = "text"
	// FormatJSON is indented JSON.
	FormatJSON OutputFormat = "json"
	// FormatCSV is CSV with a header row.
	FormatCSV OutputFormat = "csv"
)

// Tabular is implemented by results that render as rows.
type Tabular interface {
	TableHeaders() []string
	TableRows() [][]string
}

// Table is a ready-made Tabular value. JSON output encodes it as a list of
// objects keyed by lower-cased header.
type Table struct {
	Headers []string
	Rows    [][]string
}

// TableHeaders implements Tabular.
func (t Table) TableHeaders() []string { return t.Headers }

// TableRows implements Tabular.
func (t Table) TableRows() [][]string { return t.Rows }

// MarshalJSON encodes the table as a list of objects.
func (t Table) MarshalJSON() ([]byte, error) {
	out := make([]map[string]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		obj := make(map[string]string, len(t.Headers))
		for i, h := range t.Headers {
			if i < len(row) {
				obj[strings.ToLower(h)] = row[i]
			}
		}
		out = append(out, obj)
	}
	return json.Marshal(out)
}

// Formatter formats command output.
type Formatter interface {
	FormatTo(w io.Writer, data any) error
}

// TextFormatter formats output as plain text.
type TextFormatter struct{}

// FormatTo writes data to w. Tabular data is aligned in columns.
func (f *TextFormatter) FormatTo(w io.Writer, data any) error {
	table, ok := data.(Tabular)
	if !ok {
		_, err := fmt.Fprintf(w, "%v\n", data)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if headers := table.TableHeaders(); len(headers) > 0 {
		fmt.Fprintln(tw, strings.Join(headers, "\t"))
	}
	for _, row := range table.TableRows() {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// JSONFormatter formats output as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatTo writes data to w in JSON format.
func (f *JSONFormatter) FormatTo(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	if f.Indent {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(data)
}

// CSVFormatter formats Tabular output as CSV.
type CSVFormatter struct{}

// FormatTo writes data to w in CSV format.
func (f *CSVFormatter) FormatTo(w io.Writer, data any) error {
	table, ok := data.(Tabular)
	if !ok {
		return fmt.Errorf("csv output is not supported for %T", data)
	}

	csvWriter := csv.NewWriter(w)
	if headers := table.TableHeaders(); len(headers) > 0 {
		if err := csvWriter.Write(headers); err != nil {
			return err
		}
	}
	if err := csvWriter.WriteAll(table.TableRows()); err != nil {
		return err
	}
	return csvWriter.Error()
}

// NewFormatter creates a formatter for format. An empty format is text.
func NewFormatter(format OutputFormat) (Formatter, error) {
	switch format {
	case FormatText, "":
		return &TextFormatter{}, nil
	case FormatJSON:
		return &JSONFormatter{Indent: true}, nil
	case FormatCSV:
		return &CSVFormatter{}, nil
	default:
		return nil, NewConfigError("output", fmt.Sprintf("unknown format %q (expected text|json|csv)", format))
	}
}
