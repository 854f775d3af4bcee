package app

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/k0kubun/pp/v3"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/tdh8316/handlecheck/internal/cli"
	"github.com/tdh8316/handlecheck/internal/config"
	"github.com/tdh8316/handlecheck/internal/session"
)

func runSessionSave(cmd *cobra.Command, g cli.Global, opts cli.SessionSaveOptions) error {
	deps, err := setup(cmd, g, nil)
	if err != nil {
		return err
	}
	defer deps.Close()

	creds, err := session.ParseCookieBlob(opts.Cookies)
	if err != nil {
		return errors.Wrap(err, "parse --cookies")
	}
	if opts.SessionID != "" {
		creds.SessionID = opts.SessionID
	}
	if opts.CSRFToken != "" {
		creds.CSRFToken = opts.CSRFToken
	}
	creds.Username = opts.Username
	creds.SavedAt = time.Now().UTC()

	if err := deps.Store.Save(cmd.Context(), creds); err != nil {
		if errors.Is(err, session.ErrReadOnly) {
			return errors.Errorf("session store %q is read-only", deps.Config.SessionStore())
		}
		return errors.Wrap(err, "save session")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "[+] Session saved to %s store\n", deps.Config.SessionStore())
	return nil
}

func runSessionShow(cmd *cobra.Command, g cli.Global) error {
	deps, err := setup(cmd, g, nil)
	if err != nil {
		return err
	}
	defer deps.Close()

	out := cmd.OutOrStdout()
	creds, err := deps.Store.Load(cmd.Context())
	if errors.Is(err, session.ErrNoSession) {
		fmt.Fprintf(out, "[-] No saved session in %s store\n", deps.Config.SessionStore())
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "load session")
	}

	fmt.Fprintf(out, "source:    %s\n", creds.Source)
	fmt.Fprintf(out, "username:  %s\n", valueOr(creds.Username, "-"))
	fmt.Fprintf(out, "sessionid: %s\n", mask(creds.SessionID))
	fmt.Fprintf(out, "csrftoken: %s\n", mask(creds.CSRFToken))
	if len(creds.Cookies) > 0 {
		fmt.Fprintf(out, "cookies:   %d more\n", len(creds.Cookies))
	}
	if !creds.SavedAt.IsZero() {
		fmt.Fprintf(out, "saved at:  %s\n", creds.SavedAt.Format(time.RFC3339))
	}
	return nil
}

func runSessionClear(cmd *cobra.Command, g cli.Global) error {
	deps, err := setup(cmd, g, nil)
	if err != nil {
		return err
	}
	defer deps.Close()

	if err := deps.Store.Invalidate(cmd.Context()); err != nil {
		return errors.Wrap(err, "clear session")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "[+] Session cleared from %s store\n", deps.Config.SessionStore())
	return nil
}

func printConfig(w io.Writer, cfg *config.Config) error {
	shown := *cfg
	shown.Deep.RapidAPIKey = mask(shown.Deep.RapidAPIKey)

	printer := pp.New()
	printer.SetOutput(w)
	printer.SetColoringEnabled(!color.NoColor)
	_, err := printer.Println(shown)
	return err
}

// mask keeps the first few characters of a secret.
func mask(s string) string {
	switch {
	case s == "":
		return "-"
	case len(s) <= 6:
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-4)
}
