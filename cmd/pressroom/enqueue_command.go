package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"pressroom/internal/api"
	"pressroom/internal/apiclient"
)

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	var (
		confirm   bool
		noAnalyze bool
		noRewrite bool
		noAssets  bool
		style     string
		status    string
		rawOpts   string
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "enqueue <subject-id>...",
		Short: "Admit one or more store subjects for publishing",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			options, err := buildOptions(rawOpts, map[string]optionValue{
				"enable_analyze": changed(flags.Changed("no-analyze"), !noAnalyze),
				"enable_rewrite": changed(flags.Changed("no-rewrite"), !noRewrite),
				"enable_assets":  changed(flags.Changed("no-assets"), !noAssets),
				"rewrite_style":  changed(flags.Changed("style"), style),
				"post_status":    changed(flags.Changed("status"), status),
			})
			if err != nil {
				return err
			}

			return ctx.withClient(func(client *apiclient.Client) error {
				out := cmd.OutOrStdout()
				if len(ids) == 1 {
					job, err := client.Enqueue(cmd.Context(), api.EnqueueRequest{SubjectID: ids[0], Options: options, AutoConfirm: confirm})
					if err != nil {
						return err
					}
					if asJSON {
						return writeJSON(cmd, job)
					}
					fmt.Fprintf(out, "Job %d admitted for subject %d (%s)\n", job.ID, job.SubjectID, stateLabel(out, job.State))
					return nil
				}

				result, err := client.EnqueueBatch(cmd.Context(), api.BatchEnqueueRequest{SubjectIDs: ids, Options: options, AutoConfirm: confirm})
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, result)
				}
				rows := make([][]string, 0, len(result.Items))
				for _, item := range result.Items {
					job := ""
					if item.JobID > 0 {
						job = strconv.FormatInt(item.JobID, 10)
					}
					rows = append(rows, []string{strconv.FormatInt(item.SubjectID, 10), item.Outcome, job, item.Detail})
				}
				fmt.Fprint(out, renderTable([]string{"Subject", "Outcome", "Job", "Detail"}, rows,
					[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft}))
				fmt.Fprintf(out, "%d of %d subjects admitted\n", result.Created, len(ids))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&confirm, "confirm", false, "Make the jobs runnable immediately instead of waiting for confirmation")
	cmd.Flags().BoolVar(&noAnalyze, "no-analyze", false, "Skip LLM classification")
	cmd.Flags().BoolVar(&noRewrite, "no-rewrite", false, "Skip LLM rewriting")
	cmd.Flags().BoolVar(&noAssets, "no-assets", false, "Skip image uploads")
	cmd.Flags().StringVar(&style, "style", "", "Rewrite style (resource_site, news, review)")
	cmd.Flags().StringVar(&status, "status", "", "Post status (draft, publish, pending, private)")
	cmd.Flags().StringVar(&rawOpts, "options", "", "Options as a JSON object; individual flags take precedence")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

type optionValue struct {
	set   bool
	value any
}

func changed(set bool, value any) optionValue {
	return optionValue{set: set, value: value}
}

// buildOptions overlays explicitly set flags on the raw JSON object. Keys
// that are never mentioned are left for the daemon to default.
func buildOptions(raw string, flags map[string]optionValue) (json.RawMessage, error) {
	merged := map[string]any{}
	if trimmed := strings.TrimSpace(raw); trimmed != "" {
		if err := json.Unmarshal([]byte(trimmed), &merged); err != nil {
			return nil, fmt.Errorf("--options must be a JSON object: %w", err)
		}
	}
	for key, opt := range flags {
		if opt.set {
			merged[key] = opt.value
		}
	}
	if len(merged) == 0 {
		return nil, nil
	}
	return json.Marshal(merged)
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	seen := make(map[int64]struct{}, len(args))
	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil || id <= 0 {
				return nil, fmt.Errorf("invalid id %q", part)
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("at least one id is required")
	}
	return ids, nil
}
