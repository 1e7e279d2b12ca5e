package models

import (
	"fmt"
	"slices"

	"github.com/Vatscode/Mini-ERP/utils"
)

// allowedTransitions is the full batch lifecycle. Terminal statuses map to an
// empty slice so they are still recognised as valid statuses.
var allowedTransitions = map[BatchStatus][]BatchStatus{
	BatchStatusPending:      {BatchStatusProcessing, BatchStatusCancelled},
	BatchStatusProcessing:   {BatchStatusCompleted, BatchStatusQcFailed},
	BatchStatusQcFailed:     {BatchStatusReprocessing, BatchStatusCancelled},
	BatchStatusReprocessing: {BatchStatusCompleted, BatchStatusQcFailed},
	BatchStatusCompleted:    {},
	BatchStatusCancelled:    {},
}

func ValidBatchStatus(s BatchStatus) bool {
	_, ok := allowedTransitions[s]
	return ok
}

func IsTerminalStatus(s BatchStatus) bool {
	next, ok := allowedTransitions[s]
	return ok && len(next) == 0
}

// AllowedNextStatuses returns a copy so callers cannot mutate the table.
func AllowedNextStatuses(s BatchStatus) []BatchStatus {
	return slices.Clone(allowedTransitions[s])
}

// AttemptTransition decides whether a batch may move from current to
// requested. It is a pure decision; persisting the change is the caller's
// concern. A no-op request (current == requested) is rejected like any other
// transition the table does not list.
func AttemptTransition(current, requested BatchStatus) error {
	if !ValidBatchStatus(requested) {
		return utils.NewValidationError(fmt.Sprintf("unknown batch status %q", requested))
	}
	next, ok := allowedTransitions[current]
	if !ok {
		return utils.NewValidationError(fmt.Sprintf("unknown batch status %q", current))
	}
	if !slices.Contains(next, requested) {
		return utils.NewAppError(utils.KindInvalidTransition,
			fmt.Sprintf("cannot transition batch from %s to %s", current, requested))
	}
	return nil
}
