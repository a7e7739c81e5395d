package verify

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/loteraa/verifier/src/utils/analyzer"

	"gorm.io/datatypes"
)

const RejectionReasonBlank = "blank/empty data"

// Dataset is blank if its structure is missing, has no rows, no columns, no sample
// or every sampled value is empty.
func IsBlank(structure datatypes.JSON) bool {
	raw := bytes.TrimSpace(structure)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return true
	}

	var summary analyzer.Summary
	err := json.Unmarshal(raw, &summary)
	if err != nil {
		return true
	}

	return summary.RowCount <= 0 ||
		len(summary.Columns) == 0 ||
		len(summary.SampleData) == 0 ||
		summary.IsSampleBlank()
}

// Returns ErrContentRejected when the dataset has no usable data
func Accept(structure datatypes.JSON) error {
	if IsBlank(structure) {
		return fmt.Errorf("%w: %s", ErrContentRejected, RejectionReasonBlank)
	}
	return nil
}

// Column and row counts reported in the verification details
func structureCounts(structure datatypes.JSON) (rows, columns int) {
	var summary analyzer.Summary
	if err := json.Unmarshal(structure, &summary); err != nil {
		return 0, 0
	}
	return summary.RowCount, len(summary.Columns)
}
