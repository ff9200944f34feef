package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"pressroom/internal/api"
	"pressroom/internal/apiclient"
	"pressroom/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var check bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status and job counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			status, statusErr := client.Status(cmd.Context())
			if statusErr != nil && !errors.Is(statusErr, apiclient.ErrUnavailable) {
				return statusErr
			}

			var checks []preflight.Result
			if check {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				checks = preflight.RunAll(cmd.Context(), cfg)
			}

			if asJSON {
				payload := struct {
					Daemon *api.DaemonStatus `json:"daemon,omitempty"`
					Checks []api.CheckResult `json:"checks,omitempty"`
				}{Daemon: status}
				for _, result := range checks {
					payload.Checks = append(payload.Checks, api.CheckResult{Name: result.Name, Passed: result.Passed, Detail: result.Detail})
				}
				if err := writeJSON(cmd, payload); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				if status == nil {
					fmt.Fprintln(out, "Daemon: not running")
				} else {
					renderDaemonStatus(out, status)
				}
				if check {
					renderChecks(out, checks)
				}
			}

			if check && preflight.Failed(checks) {
				return errors.New("one or more checks failed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "Also run connectivity checks against the publisher and LLM")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func renderDaemonStatus(out io.Writer, status *api.DaemonStatus) {
	fmt.Fprintf(out, "Daemon: running (pid %d)\n", status.PID)
	fmt.Fprintf(out, "Database: %s\n", status.DBPath)
	fmt.Fprintf(out, "Lock: %s\n", status.LockFilePath)

	workers := status.Workers
	fmt.Fprintf(out, "Workers: %d/%d busy (peak %d)", workers.InFlight, workers.Concurrency, workers.PeakInFlight)
	if len(workers.InFlightIDs) > 0 {
		ids := make([]string, 0, len(workers.InFlightIDs))
		for _, id := range workers.InFlightIDs {
			ids = append(ids, strconv.FormatInt(id, 10))
		}
		fmt.Fprintf(out, " jobs %s", strings.Join(ids, ", "))
	}
	fmt.Fprintln(out)
	if workers.LastError != "" {
		fmt.Fprintf(out, "Last error: %s\n", workers.LastError)
	}
	fmt.Fprintf(out, "Live subscribers: %d (published %d, dropped %d)\n",
		status.Fanout.Subscribers, status.Fanout.Published, status.Fanout.Dropped)

	fmt.Fprint(out, renderTable([]string{"State", "Count"}, buildStatsRows(out, status.Counts), []columnAlignment{alignLeft, alignRight}))

	failed := 0
	for _, check := range status.Preflight {
		if !check.Passed {
			failed++
			fmt.Fprintf(out, "Preflight %s failed: %s\n", check.Name, check.Detail)
		}
	}
	if len(status.Preflight) > 0 && failed == 0 {
		fmt.Fprintln(out, "Preflight: ok")
	}
}

func renderChecks(out io.Writer, checks []preflight.Result) {
	rows := make([][]string, 0, len(checks))
	for _, check := range checks {
		rows = append(rows, []string{check.Name, yesNo(check.Passed), check.Detail})
	}
	fmt.Fprint(out, renderTable([]string{"Check", "Passed", "Detail"}, rows, nil))
}
