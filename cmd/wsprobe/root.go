package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/LLIEPJIOK/service-mesh/wsprobe/pkg/logging"
	"github.com/LLIEPJIOK/service-mesh/wsprobe/pkg/settings"
)

type globalFlags struct {
	settingsPath string
	logLevel     string
	logFormat    string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "wsprobe",
		Short: "Poll-driven WebSocket client for endpoint checks",
		Long: `wsprobe drives a single WebSocket session step by step: connect, send,
receive and disconnect, reporting faults observed along the way.

Host settings (keystore location and password) are read from a YAML file and
can be overridden with WSPROBE_* environment variables.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&g.settingsPath, "settings", "", "Path to YAML settings file")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&g.logFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(newConnectCmd(g))

	return root
}

func (g *globalFlags) logger(cmd *cobra.Command) *slog.Logger {
	return logging.New(logging.Config{
		Level:  logging.ParseLevel(g.logLevel),
		Format: logging.ParseFormat(g.logFormat),
		Output: cmd.ErrOrStderr(),
	})
}

func (g *globalFlags) settings() (*settings.Store, error) {
	return settings.Load(g.settingsPath)
}
