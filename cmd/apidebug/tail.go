package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/apidebug/internal/errdef"
	"github.com/unkn0wn-root/apidebug/internal/logfeed"
	"github.com/unkn0wn-root/apidebug/internal/logview"
	"github.com/unkn0wn-root/apidebug/internal/stream"
	"github.com/unkn0wn-root/apidebug/internal/termview"
)

type tailFlags struct {
	poll     string
	ws       string
	interval time.Duration
	session  string
	raw      bool
}

func newTailCmd(a *app) *cobra.Command {
	var f tailFlags
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Follow a server log channel",
		Long: heredoc.Doc(`
			Follows a server log channel and prints lines as they arrive.

			--poll fetches a URL on every interval; --ws keeps a websocket open.
			Without either flag the logs.poll_url and logs.push_url settings are
			used. Lost lines are reported with a notice.
		`),
		Example: heredoc.Doc(`
			apidebug tail --poll http://localhost:8080/debug/logs --interval 500ms
			apidebug tail --ws ws://localhost:8080/debug/logs/ws
		`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.tail(cmd, f)
		},
	}
	cmd.Flags().StringVar(&f.poll, "poll", "", "Log endpoint to poll")
	cmd.Flags().StringVar(&f.ws, "ws", "", "Websocket log channel")
	cmd.Flags().DurationVar(&f.interval, "interval", 0, "Poll interval (overrides settings)")
	cmd.Flags().StringVar(&f.session, "session", "", "Debug session id sent in the debug header")
	cmd.Flags().BoolVar(&f.raw, "raw", false, "Print plain lines without styling")
	cmd.MarkFlagsMutuallyExclusive("poll", "ws")
	return cmd
}

func (a *app) tail(cmd *cobra.Command, f tailFlags) error {
	pollURL := strings.TrimSpace(f.poll)
	wsURL := strings.TrimSpace(f.ws)
	if pollURL == "" && wsURL == "" {
		pollURL = a.settings.Logs.PollURL
		wsURL = a.settings.Logs.PushURL
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var header http.Header
	if id := strings.TrimSpace(f.session); id != "" {
		header = http.Header{}
		header.Set(a.settings.DebugHeader, id)
	}

	var session *stream.Session
	switch {
	case wsURL != "":
		session = stream.NewSession(ctx, stream.KindPush, wsURL, stream.Config{})
		if err := logfeed.DialPush(ctx, wsURL, session, logfeed.PushOptions{Header: header, Log: a.log}); err != nil {
			return err
		}
	case pollURL != "":
		interval := f.interval
		if interval <= 0 {
			interval = a.settings.Logs.PollEvery()
		}
		session = stream.NewSession(ctx, stream.KindPoll, pollURL, stream.Config{})
		poller := &logfeed.Poller{
			URL:      pollURL,
			Interval: interval,
			Header:   header,
			Log:      a.log,
		}
		go func() {
			if err := poller.Run(ctx, session); err != nil {
				a.log.Err(err, "poller stopped")
			}
		}()
	default:
		return errdef.New(errdef.CodeConfig, "no log channel: pass --poll or --ws, or set logs.poll_url / logs.push_url")
	}
	defer session.Cancel()

	listener := session.Subscribe()
	defer listener.Cancel()

	view := a.newLogView()
	printer := &linePrinter{out: cmd.OutOrStdout(), view: view, raw: f.raw}
	logfeed.Pump(ctx, listener, view, a.log, printer.flush)
	printer.flush()

	if err := session.Err(); err != nil && !errors.Is(err, context.Canceled) && ctx.Err() == nil {
		return err
	}
	return nil
}

// linePrinter writes lines numbered at or after next, so each line prints once.
type linePrinter struct {
	out  io.Writer
	view *logview.Engine
	raw  bool
	next int64
}

func (p *linePrinter) flush() {
	var fresh []logview.Line
	for _, line := range p.view.Lines() {
		if line.Number >= p.next {
			fresh = append(fresh, line)
		}
	}
	if len(fresh) == 0 {
		return
	}
	p.next = fresh[len(fresh)-1].Number + 1

	if p.raw {
		for _, line := range fresh {
			fmt.Fprintln(p.out, line.Text())
		}
		return
	}
	fmt.Fprintln(p.out, termview.RenderLines(fresh, termview.Options{Hyperlinks: true}))
}
