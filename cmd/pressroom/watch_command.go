package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"pressroom/internal/apiclient"
	"pressroom/internal/fanout"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var heartbeats bool
	var limit int

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream job outcomes as newline-delimited JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				seen := 0
				errDone := errors.New("watch limit reached")
				err := client.Watch(cmd.Context(), func(evt fanout.Event) error {
					if evt.Type == fanout.TypeHeartbeat && !heartbeats {
						return nil
					}
					if err := writeJSONLine(cmd, evt); err != nil {
						return err
					}
					seen++
					if limit > 0 && seen >= limit {
						return errDone
					}
					return nil
				})
				if errors.Is(err, errDone) || errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&heartbeats, "heartbeats", false, "Include heartbeat frames")
	cmd.Flags().IntVarP(&limit, "count", "n", 0, "Exit after this many events (0 streams until interrupted)")
	return cmd
}
