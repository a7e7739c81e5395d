package analyzer

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Picks the parser by the file extension. Never fails, unparsable content yields a marker column.
func Analyze(content []byte, fileSize int64, fileName string) *Summary {
	content = bytes.TrimPrefix(content, utf8BOM)

	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv":
		return AnalyzeCSV(bytes.NewReader(content), fileSize)
	case ".json":
		return AnalyzeJSON(bytes.NewReader(content), fileSize)
	default:
		return newSummary(fileSize, ColumnUnknown)
	}
}

func AnalyzeReader(r io.Reader, fileSize int64, fileName string) (*Summary, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Analyze(content, fileSize, fileName), nil
}
