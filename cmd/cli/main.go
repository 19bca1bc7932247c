package main

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourusername/nicedowns-go/api/handlers"
	"github.com/yourusername/nicedowns-go/internal/app"
	"github.com/yourusername/nicedowns-go/internal/domain"
	"github.com/yourusername/nicedowns-go/pkg/logger"
)

var (
	serverURL   string
	noAutoStart bool
	rootCmd     = &cobra.Command{
		Use:   "nicedowns",
		Short: "nicedowns CLI - resolve and save media from social platforms",
		Long: `A command-line interface for resolving TikTok, Facebook, Twitter/X, Instagram,
Reddit and YouTube links (or Instagram usernames for stories) and saving the media.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.PersistentFlags().BoolVar(&noAutoStart, "no-auto-start", false, "Don't auto-start server if not running")

	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(currentCmd)
	rootCmd.AddCommand(deliverCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(inflightCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(platformsCmd)
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(configCmd)
}

// ensureServer checks if server is running and starts it if needed (unless --no-auto-start)
func ensureServer() *apiClient {
	if !noAutoStart {
		if err := ensureServerRunning(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}
	// Deliveries run inside the request, so allow for slow transfers
	return newAPIClient(serverURL, 10*time.Minute)
}

var submitCmd = &cobra.Command{
	Use:   "submit [url-or-username]",
	Short: "Resolve a link or Instagram username",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := ensureServer()

		var sub domain.Submission
		err := client.do(http.MethodPost, "/api/v1/submissions", handlers.SubmitRequest{Input: args[0]}, &sub)
		if err != nil {
			return err
		}
		printSubmission(cmd.OutOrStdout(), &sub)
		return nil
	},
}

var currentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show the current submission",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := ensureServer()

		var sub domain.Submission
		if err := client.do(http.MethodGet, "/api/v1/submissions/current", nil, &sub); err != nil {
			return err
		}
		printSubmission(cmd.OutOrStdout(), &sub)
		return nil
	},
}

var deliverCmd = &cobra.Command{
	Use:   "deliver [asset-id-or-number]",
	Short: "Save one asset of the current submission",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := ensureServer()
		filename, _ := cmd.Flags().GetString("filename")

		assetID, err := resolveAssetID(client, args[0])
		if err != nil {
			return err
		}

		var attempt domain.DeliveryAttempt
		path := "/api/v1/submissions/current/assets/" + url.PathEscape(assetID) + "/deliver"
		if err := client.do(http.MethodPost, path, handlers.DeliverRequest{Filename: filename}, &attempt); err != nil {
			return err
		}
		printAttempt(cmd.OutOrStdout(), &attempt)
		return nil
	},
}

// resolveAssetID accepts an asset id or its 1-based position in the current submission
func resolveAssetID(client *apiClient, arg string) (string, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return arg, nil
	}

	var sub domain.Submission
	if err := client.do(http.MethodGet, "/api/v1/submissions/current", nil, &sub); err != nil {
		return "", err
	}
	if !sub.IsResolved() || n < 1 || n > len(sub.Descriptor.Assets) {
		return "", fmt.Errorf("no asset #%d in the current submission", n)
	}
	return sub.Descriptor.Assets[n-1].ID, nil
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the current submission",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := ensureServer()
		if err := client.do(http.MethodDelete, "/api/v1/submissions/current", nil, nil); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Submission cleared")
		return nil
	},
}

var inflightCmd = &cobra.Command{
	Use:   "inflight",
	Short: "List deliveries that are still running",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := ensureServer()

		var running []app.InFlightDelivery
		if err := client.do(http.MethodGet, "/api/v1/deliveries/in-flight", nil, &running); err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ATTEMPT\tASSET\tFILENAME\tSTARTED")
		for _, d := range running {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				truncate(d.AttemptID, 8),
				truncate(d.AssetID, 8),
				d.Filename,
				d.StartedAt.Format(time.Kitchen))
		}
		return w.Flush()
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent submissions",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := ensureServer()
		limit, _ := cmd.Flags().GetInt("limit")
		showStats, _ := cmd.Flags().GetBool("stats")

		if showStats {
			var stats domain.HistoryStats
			if err := client.do(http.MethodGet, "/api/v1/history/stats", nil, &stats); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "History Statistics:")
			fmt.Fprintf(out, "  Submissions: %d\n", stats.Submissions)
			fmt.Fprintf(out, "  Resolved:    %d\n", stats.Resolved)
			fmt.Fprintf(out, "  Failed:      %d\n", stats.Failed)
			fmt.Fprintf(out, "  Degraded:    %d\n", stats.Degraded)
			fmt.Fprintf(out, "  Saved:       %d\n", stats.Automated)
			fmt.Fprintf(out, "  Manual:      %d\n", stats.Assisted)
			return nil
		}

		var result struct {
			Submissions []*domain.Submission `json:"submissions"`
		}
		if err := client.do(http.MethodGet, fmt.Sprintf("/api/v1/history?limit=%d", limit), nil, &result); err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tINPUT\tPLATFORM\tSTATUS\tCREATED")
		for _, s := range result.Submissions {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				truncate(s.ID, 8),
				truncate(s.Input, 40),
				s.Platform,
				s.Status,
				s.CreatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var platformsCmd = &cobra.Command{
	Use:   "platforms",
	Short: "List supported platforms and their provider chains",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := ensureServer()

		var platforms []handlers.PlatformInfo
		if err := client.do(http.MethodGet, "/api/v1/platforms", nil, &platforms); err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "PLATFORM\tPROVIDERS")
		for _, p := range platforms {
			fmt.Fprintf(w, "%s\t%v\n", p.DisplayName, p.Providers)
		}
		return w.Flush()
	},
}

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Check provider connectivity",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := ensureServer()

		var statuses []domain.ProviderStatus
		if err := client.do(http.MethodGet, "/api/v1/providers/status", nil, &statuses); err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "PROVIDER\tREACHABLE\tLATENCY\tERROR")
		for _, s := range statuses {
			fmt.Fprintf(w, "%s\t%t\t%dms\t%s\n", s.Provider, s.Reachable, s.LatencyMS, s.Error)
		}
		return w.Flush()
	},
}

var logsCmd = &cobra.Command{
	Use:   "logs [category]",
	Short: "Show today's entries of a log category (resolve, delivery, error)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := ensureServer()
		limit, _ := cmd.Flags().GetInt("limit")
		query, _ := cmd.Flags().GetString("search")

		path := fmt.Sprintf("/api/v1/logs/%s?limit=%d", url.PathEscape(args[0]), limit)
		if query != "" {
			path = fmt.Sprintf("/api/v1/logs/%s/search?limit=%d&q=%s", url.PathEscape(args[0]), limit, url.QueryEscape(query))
		}

		var result struct {
			Entries []logger.LogEntry `json:"entries"`
		}
		if err := client.do(http.MethodGet, path, nil, &result); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, e := range result.Entries {
			fmt.Fprintf(out, "%s  %-5s  %s", e.Timestamp, e.Level, e.Message)
			for k, v := range e.Fields {
				fmt.Fprintf(out, "  %s=%v", k, v)
			}
			fmt.Fprintln(out)
		}
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Write the effective configuration to a file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		output, _ := cmd.Flags().GetString("output")

		config, err := app.LoadConfig(path)
		if err != nil {
			return err
		}
		if err := app.SaveConfig(config, output); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", output)
		return nil
	},
}

func init() {
	deliverCmd.Flags().StringP("filename", "f", "", "Save under this filename")
	historyCmd.Flags().IntP("limit", "n", 20, "Number of submissions to show")
	historyCmd.Flags().Bool("stats", false, "Show aggregate counts instead")
	logsCmd.Flags().IntP("limit", "n", 50, "Number of entries to show")
	logsCmd.Flags().StringP("search", "s", "", "Only show entries containing this text")
	configCmd.Flags().StringP("config", "c", "", "Config file to load (default search path if empty)")
	configCmd.Flags().StringP("output", "o", "config.yaml", "File to write")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
