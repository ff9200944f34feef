package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"pressroom/internal/api"
	"pressroom/internal/apiclient"
)

type singleAction func(context.Context, int64) (*api.Job, error)

type bulkAction func(context.Context, api.BulkRequest) (*api.BulkResult, error)

func newConfirmCommand(ctx *commandContext) *cobra.Command {
	return newActionCommand(ctx, "confirm", "Confirm waiting jobs so workers pick them up", "waiting",
		func(c *apiclient.Client) (singleAction, bulkAction) { return c.Confirm, c.ConfirmMany })
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return newActionCommand(ctx, "retry", "Send failed jobs back to the queue", "failed",
		func(c *apiclient.Client) (singleAction, bulkAction) { return c.Retry, c.RetryMany })
}

func newActionCommand(ctx *commandContext, use, short, allState string, pick func(*apiclient.Client) (singleAction, bulkAction)) *cobra.Command {
	var all bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   use + " [job-id...]",
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			if all && len(args) > 0 {
				return errors.New("pass job ids or --all, not both")
			}
			if !all && len(args) == 0 {
				return fmt.Errorf("pass job ids or --all to %s every %s job", use, allState)
			}
			var ids []int64
			if !all {
				parsed, err := parseIDs(args)
				if err != nil {
					return err
				}
				ids = parsed
			}

			return ctx.withClient(func(client *apiclient.Client) error {
				single, bulk := pick(client)
				out := cmd.OutOrStdout()
				if len(ids) == 1 {
					job, err := single(cmd.Context(), ids[0])
					if err != nil {
						return err
					}
					if asJSON {
						return writeJSON(cmd, job)
					}
					fmt.Fprintf(out, "Job %d is now %s\n", job.ID, stateLabel(out, job.State))
					return nil
				}

				result, err := bulk(cmd.Context(), api.BulkRequest{IDs: ids, All: all})
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, result)
				}
				if len(result.Items) == 0 {
					fmt.Fprintf(out, "No %s jobs\n", allState)
					return nil
				}
				rows := make([][]string, 0, len(result.Items))
				for _, item := range result.Items {
					rows = append(rows, []string{strconv.FormatInt(item.ID, 10), item.Outcome, stateLabel(out, item.State), item.Detail})
				}
				fmt.Fprint(out, renderTable([]string{"Job", "Outcome", "State", "Detail"}, rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft}))
				fmt.Fprintf(out, "%d of %d jobs updated\n", result.Updated, len(result.Items))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, fmt.Sprintf("Apply to every %s job", allState))
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
