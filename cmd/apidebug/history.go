package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/apidebug/internal/config"
	"github.com/unkn0wn-root/apidebug/internal/history"
	"github.com/unkn0wn-root/apidebug/internal/termview"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		path    string
		session string
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded executions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := history.NewStore(config.HistoryPath(), a.settings.History.MaxEntries)
			if err := store.Load(); err != nil {
				return err
			}

			var entries []history.Entry
			if session != "" {
				entries = store.BySession(session)
			} else {
				entries = store.ByPath(path)
			}
			if limit > 0 && len(entries) > limit {
				entries = entries[:limit]
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no history")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "WHEN\tMETHOD\tPATH\tSTATUS\tTIME\tSIZE\tSESSION")
			for _, e := range entries {
				size := "-"
				if e.SizeBits != nil {
					size = termview.FormatSize(*e.SizeBits)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d ms\t%s\t%s\n",
					e.ExecutedAt.Local().Format(time.DateTime),
					e.Method, e.Path, e.Status, e.DurationMs, size, e.SessionID)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "Only entries for this request path")
	cmd.Flags().StringVar(&session, "session", "", "Only entries for this debug session id")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries to list (0 for all)")
	return cmd
}
