package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/spec-kit/storefront-chat/internal/auth"
	"github.com/spec-kit/storefront-chat/internal/config"
	"github.com/spec-kit/storefront-chat/internal/domain"
)

func newTokenCmd() *cobra.Command {
	var participant, role string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development bearer token for the local API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToken(cmd, participant, role)
		},
	}

	cmd.Flags().StringVar(&participant, "participant", "", "participant id carried as the token subject")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleCustomer), "customer or agent")
	_ = cmd.MarkFlagRequired("participant")
	return cmd
}

func runToken(cmd *cobra.Command, participant, rawRole string) error {
	if strings.TrimSpace(participant) == "" {
		return errors.New("--participant must not be empty")
	}
	r, err := domain.ParseRole(rawRole)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	token, expires, err := tokens.GenerateToken(participant, r)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expires.UTC().Format(time.RFC3339))
	return nil
}
