package app

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/tdh8316/handlecheck/internal/cli"
	"github.com/tdh8316/handlecheck/internal/config"
	"github.com/tdh8316/handlecheck/internal/data"
	"github.com/tdh8316/handlecheck/internal/httpx"
	"github.com/tdh8316/handlecheck/internal/output"
	"github.com/tdh8316/handlecheck/internal/probe"
	"github.com/tdh8316/handlecheck/internal/session"
)

func runCheck(cmd *cobra.Command, g cli.Global, opts cli.CheckOptions, handles []string) error {
	color.NoColor = color.NoColor || opts.NoColor || opts.JSON
	stdout := cmd.OutOrStdout()

	deps, err := setup(cmd, g, func(cfg *config.Config) error {
		if opts.Database != "" {
			cfg.Site.Database = opts.Database
		}
		if opts.Site != "" {
			cfg.Site.Name = opts.Site
		}
		if opts.TimeoutS > 0 {
			cfg.HTTP.TimeoutS = opts.TimeoutS
		}
		if opts.Concurrency > 0 {
			cfg.Resolve.Concurrency = opts.Concurrency
		}
		if opts.Tor {
			cfg.HTTP.Tor = true
		}
		if opts.Update {
			return updateDatabase(cmd.Context(), stdout, cfg)
		}
		return nil
	})
	if err != nil {
		return err
	}
	defer deps.Close()

	creds, err := checkCredentials(cmd.Context(), deps.Store, opts.Cookies)
	if err != nil {
		return err
	}

	if opts.Test {
		return runTest(cmd.Context(), stdout, deps, creds)
	}

	// Back-compat behavior: if no handles provided, prompt.
	if len(handles) == 0 {
		handles = promptHandles(stdout, cmd.InOrStdin())
		if len(handles) == 0 {
			return &cli.UsageError{Err: errors.New("no handles provided")}
		}
	}

	if !opts.JSON {
		fmt.Fprintf(stdout, "Checking %d handle(s) on %s\n", len(handles), deps.Config.SiteName())
	}

	results, resolveErr := deps.Resolver.Resolve(cmd.Context(), handles, creds)

	var buf strings.Builder
	if opts.JSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return errors.Wrap(err, "encode results")
		}
		for _, r := range results {
			buf.WriteString(fmt.Sprintf("%s\t%s\t%s\n", r.Username, r.Status, r.Detail))
		}
	} else {
		printer := output.NewPrinter(stdout, color.NoColor, opts.Verbose, &buf, deps.Site.ProfileURL)
		for _, r := range results {
			printer.Result(r)
		}
	}

	if opts.OutputDir != "" {
		if err := writeOutput(opts.OutputDir, buf.String()); err != nil {
			return err
		}
	}
	return resolveErr
}

// updateDatabase downloads the site database into cfg.Site.Database,
// falling back to an existing file when the download fails.
func updateDatabase(ctx context.Context, stdout io.Writer, cfg *config.Config) error {
	if cfg.Site.Database == "" {
		cfg.Site.Database = data.DefaultDataFile
	}
	_, statErr := os.Stat(cfg.Site.Database)
	fileExists := statErr == nil

	if color.NoColor {
		fmt.Fprintf(stdout, "[!] Update database: Downloading...")
	} else {
		fmt.Fprintf(stdout, "[%s] Update database: %s", color.HiBlueString("!"), color.HiYellowString("Downloading..."))
	}

	client, err := httpx.NewClient(cfg.ClientConfig())
	if err != nil {
		return errors.Wrap(err, "http client")
	}
	if err := data.UpdateFromRemote(ctx, client, cfg.Site.UpdateURL, cfg.Site.Database); err != nil {
		if !fileExists {
			fmt.Fprintln(stdout)
			return errors.Wrap(err, "failed to update database and no existing database found")
		}
		if color.NoColor {
			fmt.Fprintf(stdout, "\n[!] Failed to update database: %v (using existing)\n", err)
		} else {
			fmt.Fprintf(stdout, "\n[%s] Failed to update database: %s (using existing)\n", color.HiRedString("!"), color.HiRedString(err.Error()))
		}
		return nil
	}

	if color.NoColor {
		fmt.Fprintln(stdout, " [Done]")
	} else {
		fmt.Fprintf(stdout, " [%s]\n", color.GreenString("Done"))
	}
	return nil
}

// checkCredentials prefers --cookies over the saved session.
func checkCredentials(ctx context.Context, store session.Store, blob string) (session.Credentials, error) {
	if strings.TrimSpace(blob) != "" {
		creds, err := session.ParseCookieBlob(blob)
		return creds, errors.Wrap(err, "parse --cookies")
	}
	creds, err := store.Load(ctx)
	if errors.Is(err, session.ErrNoSession) {
		return session.Credentials{}, nil
	}
	return creds, errors.Wrap(err, "load session")
}

func writeOutput(dir, text string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create output dir %q", dir)
	}
	outPath := filepath.Join(dir, "out.txt")
	if err := os.WriteFile(outPath, []byte(text), 0o600); err != nil {
		return errors.Wrapf(err, "write %q", outPath)
	}
	return nil
}

func promptHandles(stdout io.Writer, stdin io.Reader) []string {
	fmt.Fprint(stdout, "Enter handles to check separated by a space: ")
	r := bufio.NewReader(stdin)
	line, _ := r.ReadString('\n')
	return strings.Fields(strings.TrimSpace(line))
}

func runTest(ctx context.Context, stdout io.Writer, deps *Deps, creds session.Credentials) error {
	name := deps.Config.SiteName()
	if color.NoColor {
		fmt.Fprintf(stdout, "[i] Checking %s with %s / %s...\n", name, deps.Site.UsedUsername, deps.Site.UnusedUsername)
	} else {
		fmt.Fprintf(stdout, "[%s] Checking %s with %s / %s...\n", color.HiBlueString("i"), name, deps.Site.UsedUsername, deps.Site.UnusedUsername)
	}

	start := time.Now()
	f, err := deps.Resolver.ValidateSite(ctx, deps.Site.UsedUsername, deps.Site.UnusedUsername, creds)
	if err != nil {
		return errors.Wrapf(err, "validate %s", name)
	}

	if f == nil {
		if color.NoColor {
			fmt.Fprintf(stdout, "[+] %s: working (%s)\n", name, time.Since(start).Round(time.Millisecond))
		} else {
			fmt.Fprintf(stdout, "[%s] %s: %s (%s)\n", color.HiGreenString("+"), name, color.GreenString("working"), time.Since(start).Round(time.Millisecond))
		}
		return nil
	}

	msg := fmt.Sprintf("(%s: expected Taken, result is %s%s | %s: expected Available, result is %s%s)",
		f.UsedUsername, f.Used.Status, detail(f.Used),
		f.UnusedUsername, f.Unused.Status, detail(f.Unused),
	)
	if color.NoColor {
		fmt.Fprintf(stdout, "[-] %s: Not working %s\n", name, msg)
	} else {
		fmt.Fprintf(stdout, "[-] %s: %s %s\n", name, color.RedString("Not working"), msg)
	}
	return errors.Errorf("%s site entry is not working", name)
}

func detail(r probe.Result) string {
	if r.Detail == "" {
		return ""
	}
	return " [" + r.Detail + "]"
}
