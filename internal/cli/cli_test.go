package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

type calls struct {
	name    string
	global  Global
	serve   ServeOptions
	check   CheckOptions
	handles []string
	save    SessionSaveOptions
}

func newTestRoot(c *calls) *cobra.Command {
	record := func(name string) func(*cobra.Command, Global) error {
		return func(_ *cobra.Command, g Global) error {
			c.name, c.global = name, g
			return nil
		}
	}
	root := NewRootCommand(Handlers{
		Serve: func(_ *cobra.Command, g Global, opts ServeOptions) error {
			c.name, c.global, c.serve = "serve", g, opts
			return nil
		},
		Check: func(_ *cobra.Command, g Global, opts CheckOptions, handles []string) error {
			c.name, c.global, c.check, c.handles = "check", g, opts, handles
			return nil
		},
		SessionSave: func(_ *cobra.Command, g Global, opts SessionSaveOptions) error {
			c.name, c.global, c.save = "session save", g, opts
			return nil
		},
		SessionShow:  record("session show"),
		SessionClear: record("session clear"),
		Config:       record("config"),
	})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	return root
}

func execute(c *calls, args ...string) error {
	root := newTestRoot(c)
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

func TestCheckFlags(t *testing.T) {
	var c calls
	err := execute(&c, "check", "--json", "-v", "--no-color", "--cookies", "sessionid=x", "-o", "out", "--timeout", "7", "--update", "alice", "bob")
	require.NoError(t, err)

	require.Equal(t, "check", c.name)
	require.Equal(t, []string{"alice", "bob"}, c.handles)
	require.Equal(t, CheckOptions{
		JSON:      true,
		NoColor:   true,
		Verbose:   true,
		Cookies:   "sessionid=x",
		OutputDir: "out",
		TimeoutS:  7,
		Update:    true,
	}, c.check)
	require.Equal(t, Global{ConfigFile: "handlecheck.yml", EnvFile: ".env"}, c.global)
}

func TestGlobalFlags(t *testing.T) {
	var c calls
	require.NoError(t, execute(&c, "--config", "prod.yml", "--env-file", "prod.env", "serve", "--listen", ":9000"))
	require.Equal(t, "serve", c.name)
	require.Equal(t, Global{ConfigFile: "prod.yml", EnvFile: "prod.env"}, c.global)
	require.Equal(t, ":9000", c.serve.Listen)
}

func TestSessionCommands(t *testing.T) {
	var c calls
	require.NoError(t, execute(&c, "session", "save", "--sessionid", "abc", "--username", "me"))
	require.Equal(t, "session save", c.name)
	require.Equal(t, SessionSaveOptions{Username: "me", SessionID: "abc"}, c.save)

	require.NoError(t, execute(&c, "session", "show"))
	require.Equal(t, "session show", c.name)

	require.NoError(t, execute(&c, "session", "clear"))
	require.Equal(t, "session clear", c.name)

	require.NoError(t, execute(&c, "config"))
	require.Equal(t, "config", c.name)
}

func TestUsageErrors(t *testing.T) {
	testCases := map[string][]string{
		"unknown flag":       {"check", "--bogus", "alice"},
		"test with handles":  {"check", "--test", "alice"},
		"negative timeout":   {"check", "--timeout", "-1", "alice"},
		"serve extra args":   {"serve", "extra"},
		"save without creds": {"session", "save"},
	}
	for name, args := range testCases {
		t.Run(name, func(t *testing.T) {
			var c calls
			err := execute(&c, args...)
			require.Error(t, err)
			var usage *UsageError
			require.True(t, errors.As(err, &usage), "got %v", err)
			require.Empty(t, c.name)
		})
	}
}
