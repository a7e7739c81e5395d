package analyzer

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

var errNotAnObject = errors.New("not an object")

// Array of objects: one row per element, columns taken from the first element.
// Single object: one row.
func AnalyzeJSON(r io.Reader, fileSize int64) *Summary {
	out, err := analyzeJSON(json.NewDecoder(r), fileSize)
	if err != nil {
		return newSummary(fileSize, ColumnInvalidJSON)
	}
	return out
}

func analyzeJSON(dec *json.Decoder, fileSize int64) (out *Summary, err error) {
	out = newSummary(fileSize)

	token, err := dec.Token()
	if err != nil {
		return
	}

	switch token {
	case json.Delim('['):
		for dec.More() {
			var raw json.RawMessage
			err = dec.Decode(&raw)
			if err != nil {
				return
			}

			if out.RowCount == 0 {
				if first, err := decodeRawRow(raw); err == nil {
					out.Columns = first.Keys()
					out.DataTypes = inferJSONTypes(first)
				}
			}
			out.RowCount++

			if len(out.SampleData) < MaxSampleRows {
				row, err := decodeRawRow(raw)
				if err != nil {
					// Scalars carry no columns
					row = NewRow()
				}
				out.SampleData = append(out.SampleData, row)
			}
		}
		_, err = dec.Token()
		if err != nil {
			return
		}

	case json.Delim('{'):
		var row *Row
		row, err = decodeObjectBody(dec)
		if err != nil {
			return
		}
		out.Columns = row.Keys()
		out.DataTypes = inferJSONTypes(row)
		out.RowCount = 1
		out.SampleData = append(out.SampleData, row)

	default:
		// Top level scalar, no structure to report
	}

	// Nothing but whitespace may follow the document
	_, err = dec.Token()
	if !errors.Is(err, io.EOF) {
		if err == nil {
			err = errors.New("unexpected data after the top level value")
		}
		return
	}
	return out, nil
}

func decodeRawRow(raw json.RawMessage) (*Row, error) {
	return decodeRow(json.NewDecoder(bytes.NewReader(raw)))
}

func decodeRow(dec *json.Decoder) (*Row, error) {
	token, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if token != json.Delim('{') {
		return nil, errNotAnObject
	}
	return decodeObjectBody(dec)
}

// Reads object members after the opening brace, including the closing one
func decodeObjectBody(dec *json.Decoder) (*Row, error) {
	row := NewRow()
	for dec.More() {
		token, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := token.(string)
		if !ok {
			return nil, errNotAnObject
		}

		var value json.RawMessage
		err = dec.Decode(&value)
		if err != nil {
			return nil, err
		}
		row.Set(key, value)
	}

	_, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return row, nil
}

func inferJSONTypes(row *Row) map[string]string {
	out := make(map[string]string, row.Len())
	for _, key := range row.Keys() {
		value, _ := row.Get(key)
		out[key] = jsonType(value)
	}
	return out
}

// Null and arrays are reported as objects
func jsonType(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return TypeObject
	}
	switch raw[0] {
	case '"':
		return TypeString
	case 't', 'f':
		return TypeBoolean
	case '{', '[', 'n':
		return TypeObject
	default:
		return TypeNumber
	}
}
