package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"
)

const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

// ErrUnknownOutput is returned for an unsupported --output value.
var ErrUnknownOutput = errors.New("unknown output format (use table, json or yaml)")

// field is one labeled row of a table report.
type field struct {
	name  string
	value any
}

// tableReport is implemented by results that render as a two column table.
type tableReport interface {
	title() string
	fields() []field
}

func checkOutputFormat(format string) error {
	switch format {
	case outputTable, outputJSON, outputYAML:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOutput, format)
	}
}

// writeReport renders report in the requested format.
func writeReport(w io.Writer, format string, report tableReport) error {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		err := enc.Encode(report)
		if err != nil {
			return fmt.Errorf("encode json: %w", err)
		}

		return nil
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)

		err := enc.Encode(report)
		if err == nil {
			err = enc.Close()
		}

		if err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}

		return nil
	case outputTable:
		tbl := table.NewWriter()
		tbl.SetOutputMirror(w)
		tbl.SetStyle(table.StyleLight)
		tbl.SetTitle(report.title())

		for _, f := range report.fields() {
			tbl.AppendRow(table.Row{f.name, f.value})
		}

		tbl.Render()

		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOutput, format)
	}
}
