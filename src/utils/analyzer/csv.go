package analyzer

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"
)

// Header line gives the columns, every following non empty line is a row
func AnalyzeCSV(r io.Reader, fileSize int64) *Summary {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return newSummary(fileSize)
	}
	if err != nil {
		return newSummary(fileSize, ColumnInvalidCSV)
	}

	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(h)
	}

	out := newSummary(fileSize, columns...)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return newSummary(fileSize, ColumnInvalidCSV)
		}

		out.RowCount++
		if len(out.SampleData) >= MaxSampleRows {
			continue
		}

		row := NewRow()
		for i, column := range columns {
			var value string
			if i < len(record) {
				value = strings.TrimSpace(record[i])
			}
			row.SetString(column, value)

			if len(out.SampleData) == 0 {
				out.DataTypes[column] = inferCSVType(value)
			}
		}
		out.SampleData = append(out.SampleData, row)
	}

	return out
}

func inferCSVType(value string) string {
	if value == "" {
		return TypeString
	}
	if _, err := strconv.ParseFloat(value, 64); err == nil {
		return TypeNumber
	}
	if strings.ContainsAny(value, "-/") {
		return TypeDate
	}
	return TypeString
}
