package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tdh8316/handlecheck/internal/cli"
	"github.com/tdh8316/handlecheck/internal/config"
	"github.com/tdh8316/handlecheck/internal/server"
)

// Run executes the command line in args and returns the process exit code:
// 0 on success, 2 for usage errors, 1 otherwise.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := cli.NewRootCommand(cli.Handlers{
		Serve:        runServe,
		Check:        runCheck,
		SessionSave:  runSessionSave,
		SessionShow:  runSessionShow,
		SessionClear: runSessionClear,
		Config:       runConfig,
	})
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	var usage *cli.UsageError
	if errors.As(err, &usage) {
		fmt.Fprintf(stderr, "%v\n\n%s", err, root.UsageString())
		return 2
	}
	if errors.Is(err, context.Canceled) {
		return 130
	}
	if color.NoColor {
		fmt.Fprintf(stderr, "[!] %v\n", err)
	} else {
		fmt.Fprintf(stderr, "[%s] %s\n", color.HiRedString("!"), color.HiRedString(err.Error()))
	}
	return 1
}

func loadConfig(g cli.Global) (*config.Config, error) {
	return config.Load([]string{g.EnvFile}, g.ConfigFile)
}

// setup loads the config and builds the resolver stack; tweak may adjust the
// config from command flags before anything is wired.
func setup(cmd *cobra.Command, g cli.Global, tweak func(*config.Config) error) (*Deps, error) {
	cfg, err := loadConfig(g)
	if err != nil {
		return nil, err
	}
	if tweak != nil {
		if err := tweak(cfg); err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	logger, err := cfg.NewLogger(cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	return Build(cmd.Context(), cfg, logger)
}

func runServe(cmd *cobra.Command, g cli.Global, opts cli.ServeOptions) error {
	deps, err := setup(cmd, g, nil)
	if err != nil {
		return err
	}
	defer deps.Close()

	cfg := deps.Config
	addr := opts.Listen
	if addr == "" {
		addr = cfg.ListenAddr()
	}
	srv := server.New(deps.Resolver, server.Config{
		Addr:              addr,
		MaxBodyBytes:      int64(cfg.Server.MaxBodyKB) << 10,
		MaxHandles:        cfg.Server.MaxHandles,
		ReadHeaderTimeout: secs(cfg.Server.ReadHeaderS),
		ShutdownTimeout:   cfg.ShutdownTimeout(),
		Store:             deps.Store,
		Logger:            deps.Logger,
	})
	deps.Logger.WithFields(logrus.Fields{"addr": addr, "site": cfg.SiteName()}).Info("starting handlecheck service")
	return srv.ListenAndServe(cmd.Context())
}

func runConfig(cmd *cobra.Command, g cli.Global) error {
	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}
	return printConfig(cmd.OutOrStdout(), cfg)
}

func secs(n int) time.Duration {
	return time.Duration(n) * time.Second
}
