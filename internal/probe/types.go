package probe

import (
	"encoding/json"
	"errors"
	"strings"
)

type Status string

const (
	StatusAvailable Status = "Available"
	StatusTaken     Status = "Taken"
	StatusUncertain Status = "Uncertain"
	StatusError     Status = "Error"
)

// Kind is the failure taxonomy behind a status. It is kept out of the wire
// format; Status is what callers act on.
type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindExists       Kind = "exists"
	KindAmbiguous    Kind = "ambiguous"
	KindTransient    Kind = "transient"
	KindAuthRequired Kind = "auth_required"
	KindInvalid      Kind = "invalid_handle"
)

// Method names the probe that produced a result.
type Method string

const (
	MethodFast       Method = "fast"
	MethodValidation Method = "validation"
	MethodWebProfile Method = "webprofile"
	MethodRapidAPI   Method = "rapidapi"
	MethodGraphQL    Method = "graphql"
)

var (
	// ErrNotFound is an authoritative absence.
	ErrNotFound = errors.New("profile does not exist")
	// ErrAuthRequired means the source wants credentials that are missing or expired.
	ErrAuthRequired = errors.New("login required")
	// ErrTransient covers timeouts, unexpected statuses and malformed payloads.
	ErrTransient = errors.New("transient failure")
)

// Profile holds the attributes a deep lookup can return. Counts are nil when
// the source did not report them.
type Profile struct {
	ID        string `json:"id,omitempty"`
	FullName  string `json:"full_name,omitempty"`
	Followers *int64 `json:"followers,omitempty"`
	Following *int64 `json:"following,omitempty"`
	Private   *bool  `json:"private,omitempty"`
	Verified  *bool  `json:"verified,omitempty"`
}

type Result struct {
	Username string   `json:"username"`
	Status   Status   `json:"status"`
	Method   Method   `json:"method"`
	Detail   string   `json:"detail,omitempty"`
	Profile  *Profile `json:"profile,omitempty"`

	Kind Kind `json:"-"`
}

// Exists maps the status onto the boolean some clients expect; nil means unknown.
func (r Result) Exists() *bool {
	var v bool
	switch r.Status {
	case StatusTaken:
		v = true
	case StatusAvailable:
		v = false
	default:
		return nil
	}
	return &v
}

// WithNote returns a copy with note appended to the detail.
func (r Result) WithNote(note string) Result {
	if r.Detail == "" {
		r.Detail = note
	} else {
		r.Detail = strings.TrimRight(r.Detail, ". ") + ". " + note
	}
	return r
}

func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	return json.Marshal(struct {
		plain
		Exists *bool `json:"exists"`
	}{plain(r), r.Exists()})
}
