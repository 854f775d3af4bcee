// Package cli defines the handlecheck command tree. Commands only parse
// flags; the work is done by the Handlers the caller supplies.
package cli

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// UsageError marks a bad invocation (unknown flag, missing argument).
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string { return e.Err.Error() }
func (e *UsageError) Unwrap() error { return e.Err }

// Global holds the persistent flags shared by every command.
type Global struct {
	ConfigFile string
	EnvFile    string
}

type ServeOptions struct {
	Listen string
}

type CheckOptions struct {
	JSON    bool
	NoColor bool
	Verbose bool
	Test    bool
	Tor     bool
	Update  bool

	Cookies     string
	OutputDir   string
	Database    string
	Site        string
	TimeoutS    int
	Concurrency int
}

type SessionSaveOptions struct {
	Username  string
	SessionID string
	CSRFToken string
	Cookies   string
}

type Handlers struct {
	Serve        func(cmd *cobra.Command, g Global, opts ServeOptions) error
	Check        func(cmd *cobra.Command, g Global, opts CheckOptions, handles []string) error
	SessionSave  func(cmd *cobra.Command, g Global, opts SessionSaveOptions) error
	SessionShow  func(cmd *cobra.Command, g Global) error
	SessionClear func(cmd *cobra.Command, g Global) error
	Config       func(cmd *cobra.Command, g Global) error
}

func NewRootCommand(h Handlers) *cobra.Command {
	var g Global

	root := &cobra.Command{
		Use:           "handlecheck",
		Short:         "handlecheck reports whether account handles are taken.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.ConfigFile, "config", "handlecheck.yml", "config file (YAML or JSON)")
	root.PersistentFlags().StringVar(&g.EnvFile, "env-file", ".env", "dotenv file loaded before the config")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &UsageError{Err: err}
	})

	root.AddCommand(
		newServeCommand(&g, h),
		newCheckCommand(&g, h),
		newSessionCommand(&g, h),
		&cobra.Command{
			Use:   "config",
			Short: "Print the effective configuration.",
			Args:  noArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return h.Config(cmd, g)
			},
		},
	)
	return root
}

func newServeCommand(g *Global, h Handlers) *cobra.Command {
	var opts ServeOptions
	cmd := &cobra.Command{
		Use:   "serve [--listen ADDR]",
		Short: "Run the HTTP service (POST /check, GET /health).",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return h.Serve(cmd, *g, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (default from config)")
	return cmd
}

func newCheckCommand(g *Global, h Handlers) *cobra.Command {
	var opts CheckOptions
	cmd := &cobra.Command{
		Use:   "check [flags] HANDLE [HANDLES...]",
		Short: "Check handles from the terminal.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Test && len(args) > 0 {
				return &UsageError{Err: errors.New("--test takes no handles")}
			}
			if opts.TimeoutS < 0 || opts.Concurrency < 0 {
				return &UsageError{Err: errors.New("--timeout and --concurrency must not be negative")}
			}
			return h.Check(cmd, *g, opts, args)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&opts.JSON, "json", false, "print results as JSON")
	f.BoolVar(&opts.NoColor, "no-color", false, "disable colored output")
	f.BoolVarP(&opts.Verbose, "verbose", "v", false, "show probe details")
	f.BoolVar(&opts.Test, "test", false, "validate the site entry using username_claimed/unclaimed")
	f.BoolVarP(&opts.Tor, "tor", "t", false, "use the tor proxy")
	f.StringVar(&opts.Cookies, "cookies", "", `session cookies, e.g. "sessionid=...; csrftoken=..."`)
	f.StringVarP(&opts.OutputDir, "output", "o", "", "write out.txt for the batch into DIR")
	f.BoolVar(&opts.Update, "update", false, "download the site database before checking")
	f.StringVar(&opts.Database, "database", "", "custom site database (default: embedded)")
	f.StringVar(&opts.Site, "site", "", "site entry to use (default from config)")
	f.IntVar(&opts.TimeoutS, "timeout", 0, "request timeout in seconds, 5-10 (default from config)")
	f.IntVar(&opts.Concurrency, "concurrency", 0, "handles resolved in parallel (default from config)")
	return cmd
}

func newSessionCommand(g *Global, h Handlers) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage the saved login session.",
	}

	var save SessionSaveOptions
	saveCmd := &cobra.Command{
		Use:   "save",
		Short: "Save session cookies to the configured store.",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if save.SessionID == "" && save.Cookies == "" {
				return &UsageError{Err: errors.New("one of --sessionid or --cookies is required")}
			}
			return h.SessionSave(cmd, *g, save)
		},
	}
	saveCmd.Flags().StringVar(&save.Username, "username", "", "account the session belongs to")
	saveCmd.Flags().StringVar(&save.SessionID, "sessionid", "", "sessionid cookie")
	saveCmd.Flags().StringVar(&save.CSRFToken, "csrftoken", "", "csrftoken cookie")
	saveCmd.Flags().StringVar(&save.Cookies, "cookies", "", "full cookie header")

	cmd.AddCommand(
		saveCmd,
		&cobra.Command{
			Use:   "show",
			Short: "Show the saved session.",
			Args:  noArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return h.SessionShow(cmd, *g)
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Forget the saved session.",
			Args:  noArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return h.SessionClear(cmd, *g)
			},
		},
	)
	return cmd
}

func noArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		return &UsageError{Err: err}
	}
	return nil
}
