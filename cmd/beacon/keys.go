package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"beacon/internal/access/verifier"
	"beacon/pkg/domain"
)

func (c *cli) hashKeyCmd() *cobra.Command {
	var name, tier string
	cmd := &cobra.Command{
		Use:   "hash-key",
		Short: "Hash an API key read from stdin into an api_keys entry",
		Long: `Read a plaintext API key from stdin and print the "name:tier:hash" entry to
add to api_keys. The plaintext is never stored.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := domain.ParseTier(tier)
			if err != nil {
				return err
			}
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return errors.New("expected the api key on stdin")
			}
			hash, err := verifier.HashKey(strings.TrimSpace(line))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s:%s:%s\n", name, t, hash)
			return err
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "key name recorded as the caller subject")
	cmd.Flags().StringVar(&tier, "tier", string(domain.TierEnterprise), "tier granted to the key")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func (c *cli) issueTokenCmd() *cobra.Command {
	var subject, tier string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "issue-token",
		Short: "Sign a tier token with the configured jwt_signing_key",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := c.load()
			if err != nil {
				return err
			}
			if cfg.JWTSigningKey == "" {
				return errors.New("jwt_signing_key is required")
			}
			t, err := domain.ParseTier(tier)
			if err != nil {
				return err
			}
			token, err := verifier.IssueToken(cfg.JWTSigningKey, subject, t, time.Now(), ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "caller subject the quota is keyed on")
	cmd.Flags().StringVar(&tier, "tier", string(domain.TierRecruiter), "tier carried by the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
