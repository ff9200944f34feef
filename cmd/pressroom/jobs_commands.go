package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pressroom/internal/api"
	"pressroom/internal/apiclient"
	"pressroom/internal/textutil"
)

var stateOrder = []string{"waiting", "pending", "running", "completed", "failed"}

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and manage jobs",
	}

	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsStatsCommand(ctx))
	jobsCmd.AddCommand(newJobsTrendCommand(ctx))
	jobsCmd.AddCommand(newJobsClearCommand(ctx))

	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var states []string
	var limit, offset int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				page, err := client.List(cmd.Context(), api.ListQuery{States: states, Limit: limit, Offset: offset})
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, page)
				}
				out := cmd.OutOrStdout()
				if len(page.Items) == 0 {
					fmt.Fprintf(out, "No jobs (%d total)\n", page.Total)
					return nil
				}
				fmt.Fprint(out, renderTable(
					[]string{"ID", "Subject", "Name", "State", "Action", "Result", "Updated"},
					buildJobRows(out, page.Items),
					[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				fmt.Fprintf(out, "Showing %d-%d of %d\n", page.Offset+1, page.Offset+len(page.Items), page.Total)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&states, "state", "s", nil, "Filter by state (repeatable or comma separated)")
	cmd.Flags().IntVarP(&limit, "limit", "n", api.DefaultPageSize, "Maximum jobs to show")
	cmd.Flags().IntVar(&offset, "offset", 0, "Skip this many of the newest matching jobs")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one job in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid job id %q", args[0])
			}
			return ctx.withClient(func(client *apiclient.Client) error {
				job, err := client.Describe(cmd.Context(), id)
				if err != nil {
					if apiclient.StatusOf(err) == 404 {
						return fmt.Errorf("job %d not found", id)
					}
					return err
				}
				if asJSON {
					return writeJSON(cmd, job)
				}
				renderJobDetail(cmd.OutOrStdout(), job)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newJobsStatsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show job counts by state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				counts, err := client.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, counts)
				}
				out := cmd.OutOrStdout()
				fmt.Fprint(out, renderTable([]string{"State", "Count"}, buildStatsRows(out, counts), []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newJobsTrendCommand(ctx *commandContext) *cobra.Command {
	var days int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "trend",
		Short: "Show daily activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 1 || days > api.MaxTrendDays {
				return fmt.Errorf("--days must be between 1 and %d", api.MaxTrendDays)
			}
			return ctx.withClient(func(client *apiclient.Client) error {
				trend, err := client.Trend(cmd.Context(), days)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, trend)
				}
				rows := make([][]string, 0, len(trend.Days))
				for _, day := range trend.Days {
					rows = append(rows, []string{
						day.Day,
						strconv.Itoa(day.Created),
						strconv.Itoa(day.Completed),
						strconv.Itoa(day.Failed),
						strconv.Itoa(day.Published),
					})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"Day", "Created", "Completed", "Failed", "Published"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight},
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&days, "days", api.DefaultTrendDays, "Number of days to show, today included")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newJobsClearCommand(ctx *commandContext) *cobra.Command {
	var scope string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove finished jobs",
		Long:  "Remove completed jobs (default), failed jobs, or every job that is not running.",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch scope {
			case api.ClearCompleted, api.ClearFailed, api.ClearAll:
			default:
				return fmt.Errorf("--scope must be completed, failed, or all")
			}
			return ctx.withClient(func(client *apiclient.Client) error {
				removed, err := client.Clear(cmd.Context(), scope)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d %s\n", removed, plural(removed, "job", "jobs"))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&scope, "scope", api.ClearCompleted, "Which jobs to remove: completed, failed, or all")
	return cmd
}

func buildJobRows(out io.Writer, items []api.Job) [][]string {
	rows := make([][]string, 0, len(items))
	for _, job := range items {
		rows = append(rows, []string{
			strconv.FormatInt(job.ID, 10),
			strconv.FormatInt(job.SubjectID, 10),
			textutil.Truncate(job.DisplayName, 40),
			stateLabel(out, job.State),
			job.Action,
			job.ResultRef,
			formatTimestamp(job.UpdatedAt),
		})
	}
	return rows
}

func buildStatsRows(out io.Writer, counts map[string]int) [][]string {
	rows := make([][]string, 0, len(stateOrder))
	for _, state := range stateOrder {
		rows = append(rows, []string{stateLabel(out, state), strconv.Itoa(counts[state])})
	}
	return rows
}

func renderJobDetail(out io.Writer, job *api.Job) {
	fmt.Fprintf(out, "Job %d\n", job.ID)
	fmt.Fprintf(out, "  Subject:     %d\n", job.SubjectID)
	if job.DisplayName != "" {
		fmt.Fprintf(out, "  Name:        %s\n", job.DisplayName)
	}
	fmt.Fprintf(out, "  State:       %s\n", stateLabel(out, job.State))
	if job.Action != "" {
		fmt.Fprintf(out, "  Action:      %s\n", job.Action)
	}
	if job.ResultRef != "" {
		fmt.Fprintf(out, "  Result:      %s\n", job.ResultRef)
	}
	if job.Fingerprint != "" {
		fmt.Fprintf(out, "  Fingerprint: %s\n", job.Fingerprint)
	}
	if job.Error != "" {
		fmt.Fprintf(out, "  Error:       %s\n", job.Error)
	}
	fmt.Fprintf(out, "  Created:     %s\n", formatTimestamp(job.CreatedAt))
	fmt.Fprintf(out, "  Updated:     %s\n", formatTimestamp(job.UpdatedAt))
	if job.LastHeartbeat != "" {
		fmt.Fprintf(out, "  Heartbeat:   %s\n", formatTimestamp(job.LastHeartbeat))
	}
	if len(job.Options) > 0 {
		fmt.Fprintf(out, "  Options:\n%s\n", indentJSON(job.Options))
	}
	if len(job.Derived) > 0 {
		fmt.Fprintf(out, "  Derived:\n%s\n", indentJSON(job.Derived))
	}
}

func indentJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "    ", "  "); err != nil {
		return "    " + string(raw)
	}
	return "    " + buf.String()
}

func formatTimestamp(value string) string {
	if value == "" {
		return ""
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return value
	}
	return parsed.Local().Format("2006-01-02 15:04:05")
}

func plural(n int64, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
