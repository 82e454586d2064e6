package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"livehouse/internal/auth"
)

func newTokenCmd(a *app) *cobra.Command {
	var subject string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the ingest endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, err := auth.NewTokenManager(a.cfg.Security.JWTSecret, a.cfg.Security.TokenTTL).Issue(subject)
			if err != nil {
				return logFailure(err, "issue token")
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Who the token is for")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
