package resolve

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tdh8316/handlecheck/internal/probe"
	"github.com/tdh8316/handlecheck/internal/session"
)

// FastProber is the page-fetch check every handle goes through first.
type FastProber interface {
	Probe(ctx context.Context, handle string) probe.Result
}

// DeepProber is the optional profile-data lookup.
type DeepProber interface {
	Available(creds session.Credentials) bool
	Probe(ctx context.Context, handle string, creds session.Credentials) probe.Result
	// SessionRejected reports whether res came from the login session in
	// creds being sent and refused.
	SessionRejected(res probe.Result, creds session.Credentials) bool
}

// Range is a closed interval a pacing delay is drawn from.
type Range struct {
	Min time.Duration
	Max time.Duration
}

// Pacing spaces out consecutive handles on one worker. Deep applies when
// the previous handle needed the deep lookup.
type Pacing struct {
	Fast Range
	Deep Range
}

type Config struct {
	// Concurrency bounds in-flight handles; 1 keeps a batch strictly sequential.
	Concurrency int
	Pacing      Pacing
	// RegexCheck rejects malformed handles before any request is made.
	RegexCheck string
	// APIKey is handed to the deep lookup unless the caller's credentials carry one.
	APIKey string
	// Store is invalidated when the deep lookup refuses the session it provided.
	Store  session.Store
	Logger logrus.FieldLogger
}

type ValidationFailure struct {
	UsedUsername   string
	UnusedUsername string

	Used   probe.Result
	Unused probe.Result
}
