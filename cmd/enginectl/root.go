package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	client := &apiClient{}

	rootCmd := &cobra.Command{
		Use:           "enginectl",
		Short:         "Operator CLI for the entitlement engine",
		Long:          "enginectl drives the engine's admin API: block and unblock users, change plans, inspect risk assessments and the enforcement audit trail, and watch live metrics.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVar(&client.baseURL, "api", envOrDefault("ENGINE_API", "http://localhost:8080"), "base URL of the engine API")
	rootCmd.PersistentFlags().StringVar(&client.token, "token", os.Getenv("ENGINE_ADMIN_TOKEN"), "admin bearer token")

	rootCmd.AddCommand(
		newTokenCmd(),
		newBlockCmd(client),
		newUnblockCmd(client),
		newPlanCmd(client),
		newRiskCmd(client),
		newAuditCmd(client),
		newMetricsCmd(client),
	)

	return rootCmd
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
