package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var sampleTable = Table{
	Headers: []string{"ID", "KEY", "VALUE"},
	Rows: [][]string{
		{"batch-default", "auto_journal.batch_threshold", "10"},
		{"batch-restaurant", "auto_journal.batch_threshold", "50"},
	},
}

func TestNewFormatter(t *testing.T) {
	tests := []struct {
		format  OutputFormat
		want    string
		wantErr bool
	}{
		{format: "", want: "*cli.TextFormatter"},
		{format: FormatText, want: "*cli.TextFormatter"},
		{format: FormatJSON, want: "*cli.JSONFormatter"},
		{format: FormatCSV, want: "*cli.CSVFormatter"},
		{format: "xml", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			f, err := NewFormatter(tt.format)
			if tt.wantErr {
				if err == nil {
					t.Fatal("NewFormatter() error = nil")
				}
				if ExitCode(err) != ExitUsage {
					t.Errorf("ExitCode() = %d, want usage", ExitCode(err))
				}
				return
			}
			if err != nil {
				t.Fatalf("NewFormatter() error = %v", err)
			}
			if got := typeName(f); got != tt.want {
				t.Errorf("type = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestTextFormatter_Table(t *testing.T) {
	var buf bytes.Buffer
	if err := (&TextFormatter{}).FormatTo(&buf, sampleTable); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), buf.String())
	}
	// Columns are aligned: the key column starts at the same offset on every line.
	col := strings.Index(lines[0], "KEY")
	for _, line := range lines[1:] {
		if strings.Index(line, "auto_journal") != col {
			t.Errorf("misaligned line %q", line)
		}
	}
}

func TestTextFormatter_Plain(t *testing.T) {
	var buf bytes.Buffer
	if err := (&TextFormatter{}).FormatTo(&buf, "3 rules imported"); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "3 rules imported\n" {
		t.Errorf("output = %q", buf.String())
	}
}

func TestJSONFormatter_Table(t *testing.T) {
	var buf bytes.Buffer
	if err := (&JSONFormatter{Indent: true}).FormatTo(&buf, sampleTable); err != nil {
		t.Fatal(err)
	}
	var got []map[string]string
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	want := []map[string]string{
		{"id": "batch-default", "key": "auto_journal.batch_threshold", "value": "10"},
		{"id": "batch-restaurant", "key": "auto_journal.batch_threshold", "value": "50"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("JSON mismatch (-want +got):\n%s", diff)
	}
}

func TestCSVFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := (&CSVFormatter{}).FormatTo(&buf, sampleTable); err != nil {
		t.Fatal(err)
	}
	want := "ID,KEY,VALUE\n" +
		"batch-default,auto_journal.batch_threshold,10\n" +
		"batch-restaurant,auto_journal.batch_threshold,50\n"
	if buf.String() != want {
		t.Errorf("CSV = %q, want %q", buf.String(), want)
	}

	if err := (&CSVFormatter{}).FormatTo(&buf, 42); err == nil {
		t.Error("FormatTo(non-tabular) error = nil")
	}
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}
