package output

import (
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/fatih/color"

	"github.com/tdh8316/handlecheck/internal/probe"
)

type Printer struct {
	noColor bool
	verbose bool

	logger *log.Logger
	stream *log.Logger // optional (writes to buffer)

	profileURL func(handle string) string
}

func NewPrinter(stdout io.Writer, noColor, verbose bool, buf *strings.Builder, profileURL func(string) string) *Printer {
	p := &Printer{
		noColor:    noColor,
		verbose:    verbose,
		logger:     log.New(stdout, "", 0),
		profileURL: profileURL,
	}
	if buf != nil {
		p.stream = log.New(buf, "", 0)
	}
	return p
}

func (p *Printer) Logger() *log.Logger {
	return p.logger
}

// Result prints one resolved handle. Details behind Taken and Available are
// only shown in verbose mode.
func (p *Printer) Result(result probe.Result) {
	mark, label := p.describe(result)

	// File output is always plain.
	if p.stream != nil {
		p.stream.Printf("[%s] %s: %s", mark, result.Username, label)
	}

	if p.noColor {
		p.logger.Printf("[%s] %s: %s", mark, result.Username, label)
		return
	}

	switch result.Status {
	case probe.StatusTaken:
		p.logger.Printf("[%s] %s: %s", color.HiGreenString(mark), color.HiWhiteString(result.Username), label)
	case probe.StatusAvailable:
		p.logger.Printf("[%s] %s: %s", color.HiRedString(mark), result.Username, color.HiYellowString(label))
	case probe.StatusUncertain:
		p.logger.Printf("[%s] %s: %s", color.HiBlueString(mark), result.Username, color.HiYellowString(label))
	default:
		p.logger.Printf("[%s] %s: %s: %s",
			color.HiRedString(mark),
			result.Username,
			color.HiMagentaString("ERROR"),
			color.HiRedString(strings.TrimPrefix(label, "ERROR: ")),
		)
	}
}

func (p *Printer) describe(result probe.Result) (mark, label string) {
	switch result.Status {
	case probe.StatusTaken:
		label = "Taken"
		if p.profileURL != nil {
			label = p.profileURL(result.Username)
		}
		if summary := profileSummary(result.Profile); summary != "" {
			label += " " + summary
		}
		if p.verbose && result.Detail != "" {
			label += " (" + result.Detail + ")"
		}
		return "+", label

	case probe.StatusAvailable:
		label = "Available"
		if p.verbose && result.Detail != "" {
			label += " (" + result.Detail + ")"
		}
		return "-", label

	case probe.StatusUncertain:
		label = "Uncertain"
		if result.Detail != "" {
			label += ": " + result.Detail
		}
		return "?", label
	}

	label = "ERROR: " + result.Detail
	return "!", label
}

func profileSummary(pr *probe.Profile) string {
	if pr == nil {
		return ""
	}
	var parts []string
	if pr.FullName != "" {
		parts = append(parts, pr.FullName)
	}
	if pr.Followers != nil {
		parts = append(parts, fmt.Sprintf("%d followers", *pr.Followers))
	}
	if pr.Following != nil {
		parts = append(parts, fmt.Sprintf("%d following", *pr.Following))
	}
	if pr.Private != nil && *pr.Private {
		parts = append(parts, "private")
	}
	if pr.Verified != nil && *pr.Verified {
		parts = append(parts, "verified")
	}
	if len(parts) == 0 {
		return ""
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
