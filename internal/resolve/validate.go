package resolve

import (
	"context"

	"github.com/pkg/errors"

	"github.com/tdh8316/handlecheck/internal/probe"
	"github.com/tdh8316/handlecheck/internal/session"
)

// ValidateSite resolves a handle known to be taken and one known to be free
// and reports a failure unless they come back Taken and Available.
func (r *Resolver) ValidateSite(ctx context.Context, used, unused string, creds session.Credentials) (*ValidationFailure, error) {
	if used == "" || unused == "" {
		return nil, errors.New("missing username_claimed/username_unclaimed in database")
	}

	results, err := r.Resolve(ctx, []string{used, unused}, creds)
	if err != nil {
		return nil, err
	}
	if len(results) != 2 {
		return nil, errors.Errorf("expected 2 results, got %d", len(results))
	}

	f := &ValidationFailure{
		UsedUsername:   used,
		UnusedUsername: unused,
		Used:           results[0],
		Unused:         results[1],
	}
	if f.Used.Status == probe.StatusTaken && f.Unused.Status == probe.StatusAvailable {
		return nil, nil
	}
	return f, nil
}
