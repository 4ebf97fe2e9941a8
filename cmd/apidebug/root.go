package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/apidebug/internal/config"
	"github.com/unkn0wn-root/apidebug/internal/httpclient"
	"github.com/unkn0wn-root/apidebug/internal/logger"
	"github.com/unkn0wn-root/apidebug/internal/telemetry"
)

// app carries what every subcommand needs once the root pre-run has loaded it.
type app struct {
	verbose  bool
	settings config.Settings
	log      *logger.ZeroLogger
	tel      telemetry.Instrumenter
	client   *httpclient.Client
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{}
	root := &cobra.Command{
		Use:   "apidebug",
		Short: "Execute debug requests and follow server logs",
		Long: heredoc.Doc(`
			apidebug sends HTTP requests tagged with a debug session header,
			prints the normalized response together with any server log lines
			embedded in it, and follows live log channels over polling or
			websockets.

			Settings are read from settings.toml or settings.json in the
			config directory ($APIDEBUG_CONFIG_DIR overrides the location).
		`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging on stderr")

	root.AddCommand(
		newRunCmd(a),
		newTailCmd(a),
		newHistoryCmd(a),
		newVersionCmd(),
	)
	return root, a
}

func (a *app) init() error {
	settings, _, err := config.LoadSettings()
	if err != nil {
		return err
	}
	if a.verbose {
		settings.Log.Level = "debug"
		settings.Log.Writers = append(settings.Log.Writers, "console")
	}
	a.settings = config.NormaliseSettings(settings)
	a.log = logger.New(a.settings.Log)

	a.client = httpclient.NewClient()
	telemetryCfg := telemetry.ConfigFromEnv(os.Getenv)
	telemetryCfg.Version = Version
	provider, err := telemetry.New(telemetryCfg)
	if err != nil {
		if telemetryCfg.Enabled() {
			fmt.Fprintf(os.Stderr, "telemetry init error: %v\n", err)
		}
		provider = telemetry.Noop()
	}
	a.tel = provider
	a.client.SetTelemetry(provider)
	return nil
}

func (a *app) close() {
	if a.tel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.tel.Shutdown(ctx); err != nil {
			a.log.Err(err, "telemetry shutdown")
		}
		cancel()
	}
	if a.log != nil {
		_ = a.log.Close()
	}
}
