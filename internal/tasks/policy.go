// Error classification policy for the sync pass.
package tasks

import (
	"errors"

	"github.com/Magniswerfer/Podhaven-sub000/internal/shared"
)

// failureAction is the engine's verdict on an error from a remote call.
type failureAction int

const (
	abortPass    failureAction = iota // Structural: stop the pass, mark the state failed
	skipRecord                        // Record-level: log, count, leave flags dirty
	treatSuccess                      // The server already agrees with the local change
)

func (a failureAction) String() string {
	switch a {
	case abortPass:
		return "abort"
	case skipRecord:
		return "skip"
	case treatSuccess:
		return "success"
	default:
		return ""
	}
}

// operation identifies the kind of remote call being classified.
type operation int

const (
	opPull operation = iota
	opPush
	opUnsubscribe
)

// classify maps a remote call error onto the pass policy.
//
// boundary marks calls whose failure leaves a phase with no data to work on
// (the initial pull of a delta); transport and decoding faults are structural
// there, while the same faults on a per-record push only skip that record for
// the next pass to retry.
func classify(err error, op operation, boundary bool) failureAction {
	switch {
	case err == nil:
		return treatSuccess

	case errors.Is(err, shared.ErrConflict) && (op == opPush || op == opUnsubscribe):
		// The resource already exists upstream; the push is confirmed.
		return treatSuccess

	case errors.Is(err, shared.ErrNotFound) && op == opUnsubscribe:
		// Already gone upstream; the removal is confirmed.
		return treatSuccess

	case errors.Is(err, shared.ErrNoSession),
		errors.Is(err, shared.ErrTokenExpired),
		errors.Is(err, shared.ErrAuthFailed):
		// A dead session fails every later call the same way.
		return abortPass

	case errors.Is(err, shared.ErrLocalStore):
		return abortPass

	case boundary && (errors.Is(err, shared.ErrNetwork) ||
		errors.Is(err, shared.ErrDecoding) ||
		errors.Is(err, shared.ErrTimeout) ||
		errors.Is(err, shared.ErrServiceUnavailable)):
		return abortPass

	default:
		return skipRecord
	}
}
