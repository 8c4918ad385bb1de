package main

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/yourusername/vidgrab-go/internal/domain"
)

var (
	serverAddr   string
	noAutoStart  bool
	configFile   string
	portableMode bool

	rootCmd = &cobra.Command{
		Use:           "vidgrab",
		Short:         "VidGrab CLI - multi-platform video download manager",
		Long:          `A command-line interface for queueing and monitoring video downloads handled by the VidGrab server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "http://localhost:8090", "Server URL")
	rootCmd.PersistentFlags().BoolVar(&noAutoStart, "no-auto-start", false, "Don't auto-start server if not running")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file passed to an auto-started server")
	rootCmd.PersistentFlags().BoolVar(&portableMode, "portable", false, "Use portable mode for local commands and an auto-started server")

	rootCmd.AddCommand(addCmd, listCmd, getCmd, statsCmd, cancelCmd, retryCmd, deleteCmd, waitCmd)
	rootCmd.AddCommand(probeCmd, extractorsCmd, poolCmd, pathsCmd, templatesCmd, logsCmd, portableCmd, configCmd)

	addCmd.Flags().StringP("quality", "q", "", "Quality: best, worst, 720p or a format id")
	addCmd.Flags().BoolP("audio-only", "a", false, "Download the audio track only")
	addCmd.Flags().BoolP("wait", "w", false, "Wait for the download and show progress")
	listCmd.Flags().StringP("status", "s", "", "Filter by status")
	listCmd.Flags().StringP("platform", "p", "", "Filter by platform")
	listCmd.Flags().IntP("limit", "n", 0, "Maximum number of downloads")
}

func serverURL() string {
	return serverAddr
}

// client returns an API client, starting the server first unless disabled
func client() *apiClient {
	if !noAutoStart {
		if err := ensureServerRunning(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}
	return newAPIClient(serverURL())
}

var addCmd = &cobra.Command{
	Use:   "add [url]",
	Short: "Add a download to the queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		quality, _ := cmd.Flags().GetString("quality")
		audioOnly, _ := cmd.Flags().GetBool("audio-only")
		wait, _ := cmd.Flags().GetBool("wait")

		api := client()
		var download domain.Download
		err := api.post("/api/v1/downloads", map[string]interface{}{
			"url":        args[0],
			"quality":    quality,
			"audio_only": audioOnly,
		}, &download)
		if err != nil {
			return err
		}

		fmt.Printf("Download added successfully!\n")
		fmt.Printf("ID:       %s\n", download.ID)
		fmt.Printf("Platform: %s\n", download.Platform)
		fmt.Printf("Status:   %s\n", download.Status)

		if wait {
			return waitForDownload(api, download.ID)
		}
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List downloads",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		platform, _ := cmd.Flags().GetString("platform")
		limit, _ := cmd.Flags().GetInt("limit")

		query := url.Values{}
		if status != "" {
			query.Set("status", status)
		}
		if platform != "" {
			query.Set("platform", platform)
		}
		if limit > 0 {
			query.Set("limit", strconv.Itoa(limit))
		}

		var downloads []domain.Download
		if err := client().get("/api/v1/downloads", query, &downloads); err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tPLATFORM\tSTATUS\tPROGRESS\tCREATED")
		for _, d := range downloads {
			title := d.Title
			if title == "" {
				title = d.URL
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.1f%%\t%s\n",
				truncate(d.ID, 8),
				truncate(title, 40),
				d.Platform,
				d.Status,
				d.Progress,
				d.CreatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show download statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		var stats struct {
			Downloads domain.DownloadStats `json:"downloads"`
			Active    int                  `json:"active"`
			InFlight  int                  `json:"in_flight"`
			Running   bool                 `json:"running"`
		}
		if err := client().get("/api/v1/downloads/stats", nil, &stats); err != nil {
			return err
		}

		fmt.Println("Download Statistics:")
		fmt.Printf("  Total:      %d\n", stats.Downloads.Total)
		fmt.Printf("  Queued:     %d\n", stats.Downloads.Queued)
		fmt.Printf("  Processing: %d\n", stats.Downloads.Processing)
		fmt.Printf("  Completed:  %d\n", stats.Downloads.Completed)
		fmt.Printf("  Failed:     %d\n", stats.Downloads.Failed)
		fmt.Printf("  Cancelled:  %d\n", stats.Downloads.Cancelled)
		fmt.Printf("  Active:     %d\n", stats.Active)
		fmt.Printf("  Queue:      %s\n", runningLabel(stats.Running))
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Get download details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var d domain.Download
		if err := client().get("/api/v1/downloads/"+args[0], nil, &d); err != nil {
			return err
		}

		fmt.Printf("Download Details:\n")
		fmt.Printf("  ID:       %s\n", d.ID)
		fmt.Printf("  URL:      %s\n", d.URL)
		fmt.Printf("  Platform: %s\n", d.Platform)
		fmt.Printf("  Status:   %s\n", d.Status)
		if d.Title != "" {
			fmt.Printf("  Title:    %s\n", d.Title)
		}
		if d.Quality != "" {
			fmt.Printf("  Quality:  %s\n", d.Quality)
		}
		fmt.Printf("  Progress: %.1f%% (%s / %s)\n", d.Progress, formatBytes(d.DownloadedBytes), formatBytes(d.TotalBytes))
		fmt.Printf("  Retries:  %d\n", d.RetryCount)
		fmt.Printf("  Created:  %s\n", d.CreatedAt.Format("2006-01-02 15:04:05"))
		if d.FilePath != "" {
			fmt.Printf("  File:     %s\n", d.FilePath)
		}
		if d.ErrorMessage != "" {
			fmt.Printf("  Error:    %s\n", d.ErrorMessage)
		}
		return nil
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel [id]",
	Short: "Cancel a queued or running download",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := client().post("/api/v1/downloads/"+args[0]+"/cancel", nil, nil); err != nil {
			return err
		}
		fmt.Println("Download cancelled successfully")
		return nil
	},
}

var retryCmd = &cobra.Command{
	Use:   "retry [id]",
	Short: "Retry a failed or cancelled download",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := client().post("/api/v1/downloads/"+args[0]+"/retry", nil, nil); err != nil {
			return err
		}
		fmt.Println("Download queued for retry")
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Remove a download from the queue history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := client().delete("/api/v1/downloads/" + args[0]); err != nil {
			return err
		}
		fmt.Println("Download deleted")
		return nil
	},
}

var waitCmd = &cobra.Command{
	Use:   "wait [id]",
	Short: "Follow a download until it finishes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return waitForDownload(client(), args[0])
	},
}

func runningLabel(running bool) string {
	if running {
		return "running"
	}
	return "stopped"
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
