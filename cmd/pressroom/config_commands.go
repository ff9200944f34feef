package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"pressroom/internal/config"
)

const maskedSecret = "********"

// integration is one external connection a config may or may not enable.
type integration struct {
	name    string
	setting string
	env     string
	enabled func(*config.Config) bool
}

var integrations = []integration{
	{"Publisher", "publisher.base_url", "PRESSROOM_WP_URL", func(c *config.Config) bool {
		return c.Publisher.BaseURL != "" && c.Publisher.Username != "" && c.Publisher.AppPassword != ""
	}},
	{"Language model", "llm.api_key", "PRESSROOM_LLM_API_KEY", func(c *config.Config) bool { return c.LLM.APIKey != "" }},
	{"API token", "paths.api_token", "PRESSROOM_API_TOKEN", func(c *config.Config) bool { return c.Paths.APIToken != "" }},
	{"ntfy", "notifications.ntfy_topic", "PRESSROOM_NTFY_TOPIC", func(c *config.Config) bool { return c.Notifications.NtfyTopic != "" }},
}

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}
	configCmd.AddCommand(
		newConfigInitCommand(),
		newConfigShowCommand(ctx),
		newConfigValidateCommand(ctx),
	)
	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := initTarget(targetPath)
			if err != nil {
				return err
			}
			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("check config path: %w", err)
				}
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("create config directory: %w", err)
			}
			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n\n", target)
			fmt.Fprintln(out, "Fill these in (or set the variables in a .env next to the file):")
			rows := make([][]string, 0, len(integrations))
			for _, in := range integrations {
				rows = append(rows, []string{in.name, in.setting, in.env})
			}
			fmt.Fprint(out, renderTable([]string{"Integration", "Setting", "Environment"}, rows, nil))
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func initTarget(flagValue string) (string, error) {
	if strings.TrimSpace(flagValue) == "" {
		path, err := config.DefaultConfigPath()
		if err != nil {
			return "", fmt.Errorf("determine default config path: %w", err)
		}
		return path, nil
	}
	path, err := config.ExpandPath(strings.TrimSpace(flagValue))
	if err != nil {
		return "", fmt.Errorf("resolve config path: %w", err)
	}
	return path, nil
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	var reveal bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as TOML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			view := *cfg
			if !reveal {
				maskSecrets(&view)
			}
			data, err := toml.Marshal(view)
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			out := cmd.OutOrStdout()
			if ctx.configPath != "" {
				fmt.Fprintf(out, "# %s\n", ctx.configPath)
			}
			_, err = out.Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&reveal, "reveal", false, "Print secrets instead of masking them")
	return cmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and list enabled integrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", ctx.configPath)
			if _, err := os.Stat(ctx.configPath); errors.Is(err, os.ErrNotExist) {
				fmt.Fprintln(out, "Config file not found; defaults were used")
			}
			renderIntegrations(out, cfg)
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

func renderIntegrations(out io.Writer, cfg *config.Config) {
	rows := make([][]string, 0, len(integrations))
	for _, in := range integrations {
		rows = append(rows, []string{in.name, yesNo(in.enabled(cfg))})
	}
	fmt.Fprint(out, renderTable([]string{"Integration", "Configured"}, rows, nil))
	if !integrations[0].enabled(cfg) {
		fmt.Fprintln(out, "Warning: publisher is not configured; jobs will fail at the publish stage")
	}
}

func maskSecrets(cfg *config.Config) {
	for _, secret := range []*string{&cfg.Paths.APIToken, &cfg.LLM.APIKey, &cfg.Publisher.AppPassword} {
		if *secret != "" {
			*secret = maskedSecret
		}
	}
}
