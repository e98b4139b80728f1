package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/viant/medvec/scheduler"
	"github.com/viant/medvec/service"
)

const defaultServeInterval = 5 * time.Minute

func (a *app) syncCmd() *cobra.Command {
	var force, asJSON bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync cycle from the configured source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := a.newService(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()
			result, err := svc.SyncSource(cmd.Context(), force)
			if result != nil {
				if asJSON {
					if werr := writeJSON(cmd.OutOrStdout(), result); werr != nil {
						return werr
					}
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "decision=%s existing=%d total=%d embedded=%d deleted=%d took=%s\n",
						result.Decision, result.Existing, result.Total, result.Embedded, result.Deleted, result.Duration.Round(time.Millisecond))
				}
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "rebuild the index regardless of the change probe")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func (a *app) searchCmd() *cobra.Command {
	var topK int
	var threshold float64
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find the patients most similar to a free text query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := a.newService(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()
			req := service.QueryRequest{Text: strings.Join(args, " "), TopK: topK, Threshold: threshold}
			if !cmd.Flags().Changed("top-k") {
				req.TopK = a.cfg.Search.TopK
			}
			if !cmd.Flags().Changed("threshold") {
				req.Threshold = *a.cfg.Search.Threshold
			}
			matches, err := svc.Query(cmd.Context(), req)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, matches)
			}
			if len(matches) == 0 {
				fmt.Fprintln(out, "no matches")
				return nil
			}
			for i, match := range matches {
				fmt.Fprintf(out, "%d. %s score=%.4f method=%s\n   %s\n", i+1, match.ID, match.Score, match.Method, match.Description)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&topK, "top-k", 0, "maximum number of matches (default from config)")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "minimum similarity score in [0,1] (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print matches as JSON")
	return cmd
}

func (a *app) healthCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Report index, embedder and source health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := a.newService(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()
			report := svc.Health(cmd.Context())
			out := cmd.OutOrStdout()
			if asJSON {
				if err := writeJSON(out, report); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(out, "status=%s namespace=%s indexed=%d", report.Status, report.Namespace, report.Indexed)
				if report.SourceRecords != nil {
					fmt.Fprintf(out, " source=%d", *report.SourceRecords)
				}
				fmt.Fprintln(out)
				for _, dep := range report.Dependencies {
					fmt.Fprintf(out, "  %-8s %s %s\n", dep.Name, dep.Status, dep.Detail)
				}
			}
			if report.Status == service.StatusUnavailable {
				return fmt.Errorf("health: %s", report.Status)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func (a *app) auditCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Compare every indexed position with the source without modifying the index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := a.newService(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()
			report, err := svc.AuditSource(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, report)
			}
			fmt.Fprintf(out, "in_sync=%t existing=%d total=%d missing=%d drifted=%d extra=%d\n",
				report.InSync, report.Existing, report.Total, len(report.Missing), len(report.Drifted), len(report.Extra))
			if len(report.Drifted) > 0 {
				fmt.Fprintf(out, "drifted positions: %v\n", report.Drifted)
			}
			if !report.InSync && !report.ProbeDetects {
				fmt.Fprintln(out, "a regular sync will not repair this; run: medvec sync --force")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func (a *app) summaryCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarize the indexed patient data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := a.newService(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()
			summary, err := svc.Summary(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, summary)
			}
			fmt.Fprintf(out, "namespace=%s patients=%d with_email=%d with_phone=%d\n",
				summary.Namespace, summary.Total, summary.WithEmail, summary.WithPhone)
			for _, sample := range summary.Samples {
				fmt.Fprintf(out, "  - %s\n", sample)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the summary as JSON")
	return cmd
}

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run sync cycles periodically and when watched files change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := a.newService(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()
			interval := time.Duration(a.cfg.Sync.IntervalSeconds) * time.Second
			if interval <= 0 && len(a.cfg.Sync.Watch) == 0 {
				interval = defaultServeInterval
			}
			s := scheduler.New(func(ctx context.Context) error {
				_, err := svc.SyncSource(ctx, false)
				return err
			},
				scheduler.WithInterval(interval),
				scheduler.WithWatch(a.cfg.Sync.Watch...),
				scheduler.WithDebounce(time.Duration(a.cfg.Sync.DebounceMillis)*time.Millisecond),
				scheduler.WithRunAtStart(true),
				scheduler.WithLogger(a.logger),
			)
			return s.Run(cmd.Context())
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
