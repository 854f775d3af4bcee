package resolve

import "github.com/tdh8316/handlecheck/internal/probe"

// DeepFailedNote is appended to a kept baseline when the deep lookup failed.
const DeepFailedNote = "Deep check failed, some details hidden"

type step int

const (
	keepBaseline step = iota
	runDeep
	reportError
)

type tableKey struct {
	baseline probe.Status
	deep     bool
}

// decisions is the whole reconciliation policy: what to do with a fast
// result given whether a deep lookup can be made.
var decisions = map[tableKey]step{
	{probe.StatusAvailable, false}: keepBaseline,
	{probe.StatusAvailable, true}:  keepBaseline,
	{probe.StatusTaken, false}:     keepBaseline,
	{probe.StatusTaken, true}:      runDeep,
	{probe.StatusUncertain, false}: keepBaseline,
	{probe.StatusUncertain, true}:  runDeep,
	{probe.StatusError, false}:     reportError,
	{probe.StatusError, true}:      runDeep,
}

func decide(baseline probe.Status, deepAvailable bool) step {
	s, ok := decisions[tableKey{baseline, deepAvailable}]
	if !ok {
		return reportError
	}
	return s
}

// merge lets a deep result replace the baseline unless the deep lookup failed.
func merge(baseline, deep probe.Result) probe.Result {
	if deep.Status != probe.StatusError {
		deep.Username = baseline.Username
		return deep
	}
	return baseline.WithNote(DeepFailedNote)
}
