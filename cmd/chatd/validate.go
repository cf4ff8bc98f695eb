package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kit/storefront-chat/internal/config"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check configuration and print the effective settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd)
		},
	}
}

func runValidate(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "listen:       %s\n", cfg.App.Addr())
	fmt.Fprintf(out, "socket:       %s\n", cfg.Chat.WSURL)
	fmt.Fprintf(out, "api:          %s\n", cfg.Chat.APIURL)
	fmt.Fprintf(out, "reconnect:    %d attempts, %s..%s\n", cfg.Chat.ReconnectMaxAttempts, cfg.Chat.ReconnectBaseDelay(), cfg.Chat.ReconnectMaxDelay())
	fmt.Fprintf(out, "correlation:  %s\n", cfg.Chat.CorrelationWindow())
	fmt.Fprintf(out, "media:        %s\n", mediaSummary(cfg.Media))
	fmt.Fprintf(out, "archive:      %s\n", enabled(cfg.Postgres.DSN != ""))
	fmt.Fprintf(out, "ticket cache: %s\n", enabled(cfg.Redis.Addr != ""))
	fmt.Fprintln(out, "config ok")
	return nil
}

func mediaSummary(m config.MediaConfig) string {
	if m.Backend == config.MediaBackendS3 {
		return fmt.Sprintf("s3://%s/%s (%s)", m.S3Bucket, m.S3Prefix, m.S3Region)
	}
	return m.UploadURL
}

func enabled(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}
