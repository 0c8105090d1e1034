package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/cogito-ai/cogito/pkg/budget"
	"github.com/cogito-ai/cogito/pkg/reasoning"
	"github.com/cogito-ai/cogito/pkg/routing"
)

// Request-level sentinels. Subsystem sentinels a caller may want to
// branch on are re-exported so one import covers the taxonomy.
var (
	// ErrTimeout reports that the request exceeded its deadline. The
	// session is cancelled through the same path as an explicit cancel.
	ErrTimeout = errors.New("reasoning timed out")

	// ErrCancelled reports that the session was cancelled while the
	// request was in flight, by the caller's context or by CancelSession.
	ErrCancelled = errors.New("reasoning cancelled")

	ErrNoEligibleModel      = routing.ErrNoEligibleModel
	ErrSessionNotFound      = budget.ErrSessionNotFound
	ErrSessionClosed        = budget.ErrSessionClosed
	ErrToTExhausted         = reasoning.ErrToTExhausted
	ErrSwarmAllAgentsFailed = reasoning.ErrSwarmAllAgentsFailed
)

// mapRunError translates an engine failure into the request-level
// taxonomy. A closed budget session and a cancelled context are both
// the footprint of explicit cancellation; a deadline hit is a timeout.
// Anything else passes through untouched.
func (r *run) mapError(err error) error {
	switch {
	case errors.Is(err, budget.ErrSessionClosed), errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	case errors.Is(err, context.DeadlineExceeded), r.ctx.Err() == context.DeadlineExceeded:
		return fmt.Errorf("%w after %s: %w", ErrTimeout, r.timeout, err)
	case r.ctx.Err() == context.Canceled:
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	default:
		return err
	}
}
