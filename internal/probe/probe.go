// Package probe implements the two existence checks for a handle: a fast
// page fetch classified by status code and content, and a deep profile-data
// lookup against one of several sources.
package probe

import "go.opentelemetry.io/otel"

var tracer = otel.Tracer("handlecheck/probe")
