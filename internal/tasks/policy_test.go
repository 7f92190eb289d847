package tasks

import (
	"fmt"
	"testing"

	"github.com/Magniswerfer/Podhaven-sub000/internal/shared"
)

func TestClassify(t *testing.T) {
	wrap := func(sentinel error) error {
		return fmt.Errorf("%w: details", sentinel)
	}

	tests := []struct {
		name     string
		err      error
		op       operation
		boundary bool
		expected failureAction
	}{
		{"nil error", nil, opPush, false, treatSuccess},
		{"conflict on push", wrap(shared.ErrConflict), opPush, false, treatSuccess},
		{"conflict on unsubscribe", wrap(shared.ErrConflict), opUnsubscribe, false, treatSuccess},
		{"conflict on pull", wrap(shared.ErrConflict), opPull, false, skipRecord},
		{"not found on unsubscribe", wrap(shared.ErrNotFound), opUnsubscribe, false, treatSuccess},
		{"not found on push", wrap(shared.ErrNotFound), opPush, false, skipRecord},
		{"no session", wrap(shared.ErrNoSession), opPull, false, abortPass},
		{"expired token mid-phase", wrap(shared.ErrTokenExpired), opPush, false, abortPass},
		{"auth failure at boundary", wrap(shared.ErrAuthFailed), opPull, true, abortPass},
		{"local store corruption", wrap(shared.ErrLocalStore), opPush, false, abortPass},
		{"network mid-phase", wrap(shared.ErrNetwork), opPush, false, skipRecord},
		{"network at boundary", wrap(shared.ErrNetwork), opPull, true, abortPass},
		{"decoding mid-phase", wrap(shared.ErrDecoding), opPush, false, skipRecord},
		{"decoding at boundary", wrap(shared.ErrDecoding), opPull, true, abortPass},
		{"timeout at boundary", wrap(shared.ErrTimeout), opPull, true, abortPass},
		{"service unavailable at boundary", wrap(shared.ErrServiceUnavailable), opPull, true, abortPass},
		{"api error at boundary", wrap(shared.ErrAPIRequest), opPull, true, skipRecord},
		{"api error mid-phase", wrap(shared.ErrAPIRequest), opPush, false, skipRecord},
		{"validation error", wrap(shared.ErrValidation), opPush, false, skipRecord},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := classify(tc.err, tc.op, tc.boundary)
			if got != tc.expected {
				t.Errorf("expected %s, got %s", tc.expected, got)
			}
		})
	}
}
