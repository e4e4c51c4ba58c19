package cmd

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/gendercode/config"
	"github.com/otherjamesbrown/gendercode/pkg/coding"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

// writeStructured writes v as JSON or YAML. It reports false for other formats.
func writeStructured(w io.Writer, format config.OutputFormat, v any) (bool, error) {
	switch format {
	case config.OutputFormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case config.OutputFormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return true, err
		}
		return true, enc.Close()
	default:
		return false, nil
	}
}

var resultHeaders = []string{"row", "first_name", "unique_id", "gender"}

// writeResults writes classification results in the requested format.
func writeResults(w io.Writer, format config.OutputFormat, results []*coding.Result) error {
	if ok, err := writeStructured(w, format, results); ok {
		return err
	}

	switch format {
	case config.OutputFormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(resultHeaders); err != nil {
			return err
		}
		for _, r := range results {
			if err := cw.Write([]string{strconv.Itoa(r.Row), r.FirstName, r.UniqueID, r.Gender.String()}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()

	default:
		rows := make([][]string, len(results))
		withID := false
		for i, r := range results {
			rows[i] = []string{strconv.Itoa(r.Row), r.FirstName, r.Gender.String(), r.UniqueID}
			withID = withID || r.UniqueID != ""
		}
		headers := []string{"Row", "Name", "Gender"}
		if withID {
			headers = append(headers, "ID")
		}
		_, err := fmt.Fprintln(w, renderTable(headers, rows, []columnAlignment{alignRight}))
		return err
	}
}
