package analyzer

import (
	"bytes"
	"encoding/json"
	"strings"
)

const (
	MaxSampleRows = 5

	TypeNumber  = "number"
	TypeDate    = "date"
	TypeString  = "string"
	TypeBoolean = "boolean"
	TypeObject  = "object"

	ColumnUnknown     = "Unknown"
	ColumnInvalidJSON = "Invalid JSON"
	ColumnInvalidCSV  = "Invalid CSV"
)

// Structural summary of an uploaded file
type Summary struct {
	Columns    []string          `json:"columns"`
	RowCount   int               `json:"rowCount"`
	DataTypes  map[string]string `json:"dataTypes"`
	SampleData []*Row            `json:"sampleData"`
	FileSize   int64             `json:"fileSize"`
}

func newSummary(fileSize int64, columns ...string) *Summary {
	if columns == nil {
		columns = []string{}
	}
	return &Summary{
		Columns:    columns,
		DataTypes:  map[string]string{},
		SampleData: []*Row{},
		FileSize:   fileSize,
	}
}

// Every sampled value is empty or whitespace, or there's no sample at all
func (self *Summary) IsSampleBlank() bool {
	for _, row := range self.SampleData {
		if row != nil && !row.IsBlank() {
			return false
		}
	}
	return true
}

// Ordered JSON object. Keeps the column order of the source file.
type Row struct {
	keys   []string
	values map[string]json.RawMessage
}

func NewRow() *Row {
	return &Row{values: make(map[string]json.RawMessage)}
}

func (self *Row) Set(key string, value json.RawMessage) {
	if _, ok := self.values[key]; !ok {
		self.keys = append(self.keys, key)
	}
	self.values[key] = value
}

func (self *Row) SetString(key, value string) {
	buf, _ := json.Marshal(value)
	self.Set(key, buf)
}

func (self *Row) Get(key string) (json.RawMessage, bool) {
	v, ok := self.values[key]
	return v, ok
}

func (self *Row) Keys() []string {
	return self.keys
}

func (self *Row) Len() int {
	return len(self.keys)
}

// True if there's no value that carries data.
// Numbers and booleans always carry data, zero included.
func (self *Row) IsBlank() bool {
	for _, key := range self.keys {
		if !isBlankValue(self.values[key]) {
			return false
		}
	}
	return true
}

func isBlankValue(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return true
	}

	switch raw[0] {
	case 'n':
		return true
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return false
		}
		return strings.TrimSpace(s) == ""
	case '[':
		var a []json.RawMessage
		if err := json.Unmarshal(raw, &a); err != nil {
			return false
		}
		return len(a) == 0
	case '{':
		var m map[string]json.RawMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			return false
		}
		return len(m) == 0
	}
	return false
}

func (self *Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range self.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(self.values[key])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (self *Row) UnmarshalJSON(data []byte) error {
	row, err := decodeRow(json.NewDecoder(bytes.NewReader(data)))
	if err != nil {
		return err
	}
	*self = *row
	return nil
}
