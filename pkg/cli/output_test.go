package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

type testTable struct{}

func (testTable) Headers() []string { return []string{"ID", "BUCKETS"} }
func (testTable) Rows() [][]string {
	return [][]string{{"a1", "3"}, {"b2,x", "10"}}
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{in: "", want: FormatText},
		{in: "table", want: FormatText},
		{in: "JSON", want: FormatJSON},
		{in: "csv", want: FormatCSV},
		{in: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOutputFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseOutputFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseOutputFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTextFormatter(t *testing.T) {
	formatter := &TextFormatter{}

	output, err := formatter.Format("test message")
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if string(output) != "test message\n" {
		t.Errorf("Format() = %q", string(output))
	}

	buf := &bytes.Buffer{}
	if err := formatter.FormatTo(buf, testTable{}); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %q", buf.String())
	}
	if !strings.HasPrefix(lines[0], "ID    BUCKETS") {
		t.Errorf("header not aligned: %q", lines[0])
	}
}

func TestJSONFormatter(t *testing.T) {
	tests := []struct {
		name   string
		data   any
		indent bool
	}{
		{name: "simple string", data: "test"},
		{name: "map with indent", data: map[string]string{"key": "value"}, indent: true},
		{name: "struct", data: struct {
			Name  string `json:"name"`
			Count int    `json:"count"`
		}{"test", 42}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			formatter := &JSONFormatter{Indent: tt.indent}

			output, err := formatter.Format(tt.data)
			if err != nil {
				t.Fatalf("Format() error = %v", err)
			}
			if !json.Valid(output) {
				t.Errorf("Format() produced invalid JSON: %s", output)
			}
			if tt.indent && !bytes.Contains(output, []byte("\n  ")) {
				t.Errorf("expected indented output: %s", output)
			}
		})
	}
}

func TestCSVFormatter(t *testing.T) {
	formatter := &CSVFormatter{}

	output, err := formatter.Format(testTable{})
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	want := "ID,BUCKETS\na1,3\n\"b2,x\",10\n"
	if string(output) != want {
		t.Errorf("Format() = %q, want %q", string(output), want)
	}

	if _, err := formatter.Format("not a table"); err == nil {
		t.Error("expected error for non-table data")
	}
}

func TestNewFormatter(t *testing.T) {
	tests := []struct {
		format OutputFormat
		want   string
	}{
		{FormatText, "*cli.TextFormatter"},
		{FormatJSON, "*cli.JSONFormatter"},
		{FormatCSV, "*cli.CSVFormatter"},
		{"unknown", "*cli.TextFormatter"},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			switch NewFormatter(tt.format).(type) {
			case *TextFormatter:
				if tt.want != "*cli.TextFormatter" {
					t.Errorf("got TextFormatter, want %s", tt.want)
				}
			case *JSONFormatter:
				if tt.want != "*cli.JSONFormatter" {
					t.Errorf("got JSONFormatter, want %s", tt.want)
				}
			case *CSVFormatter:
				if tt.want != "*cli.CSVFormatter" {
					t.Errorf("got CSVFormatter, want %s", tt.want)
				}
			}
		})
	}
}
