package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an admin bearer token from ADMIN_JWT_SECRET",
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret := os.Getenv("ADMIN_JWT_SECRET")
			if secret == "" {
				return fmt.Errorf("ADMIN_JWT_SECRET is not set")
			}

			now := time.Now()
			claims := jwt.MapClaims{
				"role": "admin",
				"sub":  subject,
				"iat":  now.Unix(),
				"exp":  now.Add(ttl).Unix(),
			}
			token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "enginectl", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	return cmd
}

func newBlockCmd(client *apiClient) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "block <user-id>",
		Short: "Block a user manually",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := client.do(cmd.Context(), http.MethodPost,
				"/api/v1/admin/users/"+args[0]+"/block",
				map[string]string{"reason": reason})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), data)
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded in the audit trail")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func newUnblockCmd(client *apiClient) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "unblock <user-id>",
		Short: "Unblock a user and clear usage caps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := client.do(cmd.Context(), http.MethodPost,
				"/api/v1/admin/users/"+args[0]+"/unblock",
				map[string]string{"reason": reason})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), data)
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded in the audit trail")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func newPlanCmd(client *apiClient) *cobra.Command {
	var (
		planName     string
		durationDays int
	)

	cmd := &cobra.Command{
		Use:   "plan <user-id>",
		Short: "Change a user's plan, creating the record when missing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]interface{}{"plan_name": planName}
			if durationDays > 0 {
				payload["duration_days"] = durationDays
			}
			data, err := client.do(cmd.Context(), http.MethodPost,
				"/api/v1/admin/users/"+args[0]+"/plan", payload)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), data)
		},
	}

	cmd.Flags().StringVar(&planName, "plan", "", "target plan name")
	cmd.Flags().IntVar(&durationDays, "days", 0, "override the plan term in days")
	_ = cmd.MarkFlagRequired("plan")
	return cmd
}

func newRiskCmd(client *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "risk <user-id>",
		Short: "Show the current risk assessment for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := client.do(cmd.Context(), http.MethodGet,
				"/api/v1/users/"+args[0]+"/risk", nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), data)
		},
	}
}

func newAuditCmd(client *apiClient) *cobra.Command {
	var (
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:   "audit [user-id]",
		Short: "List enforcement audit entries, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := fmt.Sprintf("/api/v1/admin/audit?limit=%d&offset=%d", limit, offset)
			if len(args) == 1 {
				path = fmt.Sprintf("/api/v1/users/%s/audit?limit=%d&offset=%d", args[0], limit, offset)
			}
			data, err := client.do(cmd.Context(), http.MethodGet, path, nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), data)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "maximum entries to return")
	cmd.Flags().IntVar(&offset, "offset", 0, "entries to skip")
	return cmd
}

func newMetricsCmd(client *apiClient) *cobra.Command {
	var alerts bool

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Show the live metrics snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := "/api/v1/metrics/snapshot"
			if alerts {
				path = "/api/v1/metrics/alerts"
			}
			data, err := client.do(cmd.Context(), http.MethodGet, path, nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), data)
		},
	}

	cmd.Flags().BoolVar(&alerts, "alerts", false, "show fired alerts instead of the snapshot")
	return cmd
}
