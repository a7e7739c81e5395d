package verify

import "errors"

var (
	// Blank dataset. A business outcome, never returned to a caller.
	ErrContentRejected = errors.New("dataset contains no usable data")

	// Any error or panic during the commit sequence
	ErrWorkflowFailure = errors.New("verification workflow failed")

	// Dataset was finalized by someone else in the meantime
	ErrNotPending = errors.New("dataset is not pending")

	// Dataset left the pending state but its verification never finished
	ErrInterrupted = errors.New("verification was interrupted")
)
