package main

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func defaultAPI() string {
	if v := os.Getenv("BOTCTL_API"); v != "" {
		return v
	}
	return "http://localhost:8080"
}

func newRootCmd() *cobra.Command {
	var (
		apiFlag string
		timeout time.Duration
	)
	root := &cobra.Command{
		Use:           "botctl",
		Short:         "CLI client for the purge robot REST API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&apiFlag, "api", "a", defaultAPI(), "Bot server base URL")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Request timeout")

	client := func() *apiClient { return newAPIClient(apiFlag, timeout) }

	root.AddCommand(newRobotsCmd(client), newReportCmd(client))
	root.AddCommand(&cobra.Command{
		Use:   "health",
		Short: "Show server health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return client().do(cmd.Context(), http.MethodGet, "/api/health", nil, cmd.OutOrStdout())
		},
	})
	return root
}

func robotPath(id string) string { return "/api/robots/" + url.PathEscape(id) }

func newRobotsCmd(client func() *apiClient) *cobra.Command {
	robots := &cobra.Command{Use: "robots", Short: "Manage purge robots"}

	robots.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List robots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return client().do(cmd.Context(), http.MethodGet, "/api/robots", nil, cmd.OutOrStdout())
		},
	})

	robots.AddCommand(&cobra.Command{
		Use:   "get ROBOT_ID",
		Short: "Show one robot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return client().do(cmd.Context(), http.MethodGet, robotPath(args[0]), nil, cmd.OutOrStdout())
		},
	})

	robots.AddCommand(&cobra.Command{
		Use:   "config ROBOT_ID",
		Short: "Print the stored YAML policy of a robot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return client().do(cmd.Context(), http.MethodGet, robotPath(args[0])+"/config", nil, cmd.OutOrStdout())
		},
	})

	robots.AddCommand(&cobra.Command{
		Use:   "delete ROBOT_ID",
		Short: "Delete a robot and its pending purge records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client().do(cmd.Context(), http.MethodDelete, robotPath(args[0]), nil, cmd.OutOrStdout()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	})

	robots.AddCommand(&cobra.Command{
		Use:   "run ROBOT_ID",
		Short: "Run one purge pass for a robot now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return client().do(cmd.Context(), http.MethodPost, robotPath(args[0])+"/run", nil, cmd.OutOrStdout())
		},
	})

	robots.AddCommand(newCreateRobotCmd(client))
	return robots
}

func newCreateRobotCmd(client func() *apiClient) *cobra.Command {
	var (
		name, description, email, apiKey, platform, session string
		scheduleDays, lastActiveDays                        int
		checkName, checkEmail, checkActive, inactive        bool
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a robot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			body := map[string]any{
				"name":              name,
				"platformEmail":     email,
				"platformApiKey":    apiKey,
				"platformType":      platform,
				"cloudSessionToken": session,
				"active":            !inactive,
				"scheduleDays":      scheduleDays,
				"lastActiveDays":    lastActiveDays,
				"checkDoubleName":   checkName,
				"checkDoubleEmail":  checkEmail,
				"checkActiveStatus": checkActive,
			}
			if cmd.Flags().Changed("description") {
				body["description"] = description
			}
			return client().do(cmd.Context(), http.MethodPost, "/api/robots", body, cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.StringVarP(&name, "name", "n", "", "Robot name (required)")
	f.StringVarP(&description, "description", "d", "", "Robot description")
	f.StringVar(&email, "email", "", "Atlassian admin email (required)")
	f.StringVar(&apiKey, "api-key", "", "Atlassian API key")
	f.StringVar(&platform, "platform", "CLOUD", "Platform type: CLOUD or SERVER")
	f.StringVar(&session, "session-token", "", "Cloud session token used to list the roster")
	f.IntVar(&scheduleDays, "schedule-days", 1, "Days between purge passes")
	f.IntVar(&lastActiveDays, "last-active-days", 0, "Flag users inactive for this many days (0 disables)")
	f.BoolVar(&checkName, "check-name", false, "Flag duplicate display names")
	f.BoolVar(&checkEmail, "check-email", false, "Flag duplicate emails")
	f.BoolVar(&checkActive, "check-active", false, "Flag deactivated users")
	f.BoolVar(&inactive, "inactive", false, "Create the robot paused")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newReportCmd(client func() *apiClient) *cobra.Command {
	var robotID string
	report := &cobra.Command{
		Use:   "report",
		Short: "Show queued and removed users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := "/api/report"
			if robotID != "" {
				path += "?robotId=" + url.QueryEscape(robotID)
			}
			return client().do(cmd.Context(), http.MethodGet, path, nil, cmd.OutOrStdout())
		},
	}
	report.PersistentFlags().StringVarP(&robotID, "robot", "r", "", "Limit to one robot")

	var to string
	email := &cobra.Command{
		Use:   "email",
		Short: "Email the report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			body := map[string]string{"email": to}
			if robotID != "" {
				body["robotId"] = robotID
			}
			return client().do(cmd.Context(), http.MethodPost, "/api/report/email", body, cmd.OutOrStdout())
		},
	}
	email.Flags().StringVar(&to, "to", "", "Recipient address (required)")
	_ = email.MarkFlagRequired("to")
	report.AddCommand(email)
	return report
}
