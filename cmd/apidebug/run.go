package main

import (
	"fmt"
	"io"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/apidebug/internal/config"
	"github.com/unkn0wn-root/apidebug/internal/debugexec"
	"github.com/unkn0wn-root/apidebug/internal/debugreq"
	"github.com/unkn0wn-root/apidebug/internal/harexport"
	"github.com/unkn0wn-root/apidebug/internal/history"
	"github.com/unkn0wn-root/apidebug/internal/logview"
	"github.com/unkn0wn-root/apidebug/internal/termview"
	"github.com/unkn0wn-root/apidebug/internal/watcher"
)

var sectionStyle = lipgloss.NewStyle().Bold(true).Underline(true)

type runFlags struct {
	baseURL   string
	timeout   time.Duration
	insecure  bool
	raw       bool
	trace     bool
	watch     bool
	noHistory bool
	harPath   string
	sets      []string
	unsets    []string
}

func newRunCmd(a *app) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Execute a request file and print the response with its server logs",
		Long: heredoc.Doc(`
			Loads a YAML or JSON request description, sends it with a debug
			session header and prints the normalized response. Log lines the
			server embedded in the response are rendered below the body.

			Header and param rows are sent unless they set "selected: false".
		`),
		Example: heredoc.Doc(`
			apidebug run health.yaml
			apidebug run create-user.json --base-url http://localhost:8080
			apidebug run slow.yaml --timeout 2m --trace
			apidebug run users.yaml --watch
			apidebug run create-user.yaml --set user.name=Grace --unset user.tmp --har session.har
		`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runRequest(cmd, args[0], f)
		},
	}
	cmd.Flags().StringVar(&f.baseURL, "base-url", "", "Base URL for relative request paths (overrides settings)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "Request timeout (overrides settings)")
	cmd.Flags().BoolVar(&f.insecure, "insecure", false, "Skip TLS certificate verification")
	cmd.Flags().BoolVar(&f.raw, "raw", false, "Print only the body and plain log lines")
	cmd.Flags().BoolVar(&f.trace, "trace", false, "Show DNS, connect, TLS, wait and transfer timings")
	cmd.Flags().BoolVarP(&f.watch, "watch", "w", false, "Run again every time the request file changes")
	cmd.Flags().StringArrayVar(&f.sets, "set", nil, "Set a JSON body field, path=value (repeatable)")
	cmd.Flags().StringArrayVar(&f.unsets, "unset", nil, "Delete a JSON body field by path (repeatable)")
	cmd.Flags().StringVar(&f.harPath, "har", "", "Append the exchange to this HAR file")
	cmd.Flags().BoolVar(&f.noHistory, "no-history", false, "Do not record the execution in history")
	return cmd
}

func (a *app) runRequest(cmd *cobra.Command, path string, f runFlags) error {
	opts := debugexec.OptionsFromSettings(a.settings)
	if f.baseURL != "" {
		opts.BaseURL = f.baseURL
	}
	if f.timeout > 0 {
		opts.Timeout = f.timeout
	}
	if f.insecure {
		opts.Insecure = true
	}
	opts.Trace = f.trace
	engine := debugexec.New(a.client, a.log, opts)

	// fingerprint before the first run; edits made during it still count
	var w *watcher.Watcher
	if f.watch {
		w = watcher.New(path)
	}

	req, err := loadRequestFile(path)
	if err == nil {
		err = a.executeOnce(cmd, engine, req, f)
	}
	if w == nil {
		return err
	}
	if err != nil {
		a.reportWatchError(cmd, err)
	}

	ctx := cmd.Context()
	for evt := range w.Watch(ctx, watcher.DefaultInterval) {
		if evt.Kind == watcher.EventMissing {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s is missing, waiting for it to come back\n", evt.Path)
			continue
		}
		fmt.Fprintln(cmd.OutOrStdout(), sectionStyle.Render(fmt.Sprintf("── %s changed ──", evt.Path)))
		req, err := parseRequestFile(evt.Data)
		if err == nil {
			err = a.executeOnce(cmd, engine, req, f)
		}
		if err != nil {
			a.reportWatchError(cmd, err)
		}
	}
	return nil
}

func (a *app) reportWatchError(cmd *cobra.Command, err error) {
	a.log.Err(err, "watched run failed")
	fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
}

func (a *app) executeOnce(cmd *cobra.Command, engine *debugexec.Engine, req debugreq.Request, f runFlags) error {
	if err := applyBodyEdits(&req, f.sets, f.unsets); err != nil {
		return err
	}
	executedAt := time.Now()
	resp, err := engine.Execute(cmd.Context(), req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if f.raw {
		fmt.Fprintln(out, resp.Body)
	} else {
		fmt.Fprint(out, termview.RenderResponse(resp, termview.Options{Highlight: true}))
	}
	if resp.Logs != nil {
		a.printLogs(out, *resp.Logs, f.raw)
	}
	if f.trace && !f.raw && resp.Timeline != nil {
		fmt.Fprintln(out)
		fmt.Fprintln(out, sectionStyle.Render("Timings"))
		fmt.Fprint(out, termview.RenderTimeline(resp.Timeline))
	}

	if !f.noHistory && !a.settings.History.Disabled {
		a.record(req, resp, executedAt)
	}
	if f.harPath != "" {
		entry := harexport.NewEntry(req, resp, engine.HeaderName(), executedAt)
		if err := harexport.Append(f.harPath, entry); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) printLogs(out io.Writer, frag debugreq.LogFragment, raw bool) {
	view := a.newLogView()
	view.Clear(frag.FirstIndex)
	view.Reconcile(frag)

	if raw {
		for _, line := range view.Lines() {
			fmt.Fprintln(out, line.Text())
		}
		return
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, sectionStyle.Render(fmt.Sprintf("Logs %d-%d", frag.FirstIndex, frag.LastIndex)))
	if rendered := termview.RenderLines(view.Lines(), termview.Options{LineNumbers: true, Hyperlinks: true}); rendered != "" {
		fmt.Fprintln(out, rendered)
	}
}

func (a *app) newLogView() *logview.Engine {
	return logview.New(logview.Options{
		MaxLines:   a.settings.Logs.MaxLines,
		Linkify:    !a.settings.Logs.DisableLinks,
		UseClasses: a.settings.Logs.UseClasses,
		Logger:     a.log,
	})
}

// record appends to history. Failures are only logged.
func (a *app) record(req debugreq.Request, resp *debugreq.Response, at time.Time) {
	store := history.NewStore(config.HistoryPath(), a.settings.History.MaxEntries)
	if err := store.Load(); err != nil {
		a.log.Err(err, "history load")
		return
	}
	if err := store.Append(history.NewEntry(req, resp, at)); err != nil {
		a.log.Err(err, "history append")
	}
}
