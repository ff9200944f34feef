package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"pressroom/internal/api"
	"pressroom/internal/apiclient"
)

func newPreviewCommand(ctx *commandContext) *cobra.Command {
	var (
		noAnalyze bool
		noRewrite bool
		style     string
		showBody  bool
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "preview <subject-id>",
		Short: "Render what a job would publish without posting anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid subject id %q", args[0])
			}
			flags := cmd.Flags()
			options, err := buildOptions("", map[string]optionValue{
				"enable_analyze": changed(flags.Changed("no-analyze"), !noAnalyze),
				"enable_rewrite": changed(flags.Changed("no-rewrite"), !noRewrite),
				"rewrite_style":  changed(flags.Changed("style"), style),
			})
			if err != nil {
				return err
			}

			return ctx.withClient(func(client *apiclient.Client) error {
				runCtx, cancel := context.WithTimeout(cmd.Context(), api.PreviewTimeout)
				defer cancel()
				preview, err := client.Preview(runCtx, api.PreviewRequest{SubjectID: id, Options: options})
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, preview)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Preview for subject %d: %s\n", preview.SubjectID, preview.Name)
				fmt.Fprintf(out, "  Stages:      %s\n", strings.Join(preview.Stages, ", "))
				if preview.CategoryID > 0 {
					fmt.Fprintf(out, "  Category:    %d\n", preview.CategoryID)
				}
				if len(preview.Tags) > 0 {
					fmt.Fprintf(out, "  Tags:        %s\n", strings.Join(preview.Tags, ", "))
				}
				if preview.SEOTitle != "" {
					fmt.Fprintf(out, "  SEO title:   %s\n", preview.SEOTitle)
				}
				if preview.SEODescription != "" {
					fmt.Fprintf(out, "  SEO summary: %s\n", preview.SEODescription)
				}
				if preview.RewrittenContent != "" {
					fmt.Fprintf(out, "\n%s\n", preview.RewrittenContent)
				}
				if showBody {
					fmt.Fprintf(out, "\n%s\n", preview.Body)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&noAnalyze, "no-analyze", false, "Skip LLM classification")
	cmd.Flags().BoolVar(&noRewrite, "no-rewrite", false, "Skip LLM rewriting")
	cmd.Flags().StringVar(&style, "style", "", "Rewrite style (resource_site, news, review)")
	cmd.Flags().BoolVar(&showBody, "body", false, "Print the rendered post body")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
