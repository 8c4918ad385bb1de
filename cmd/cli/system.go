package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/yourusername/vidgrab-go/internal/app"
	"github.com/yourusername/vidgrab-go/internal/domain"
	"github.com/yourusername/vidgrab-go/internal/pool"
	"github.com/yourusername/vidgrab-go/internal/portable"
	"github.com/yourusername/vidgrab-go/pkg/logger"
)

var probeCmd = &cobra.Command{
	Use:   "probe [url]",
	Short: "Show metadata and qualities for a URL without downloading",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var probe struct {
			Routing struct {
				Plugin     string  `json:"plugin"`
				Confidence float64 `json:"confidence"`
			} `json:"routing"`
			Platform  domain.Platform        `json:"platform"`
			Cached    bool                   `json:"cached"`
			Metadata  domain.VideoMetadata   `json:"metadata"`
			Qualities []domain.QualityOption `json:"qualities"`
		}
		if err := client().post("/api/v1/extractors/probe", map[string]string{"url": args[0]}, &probe); err != nil {
			return err
		}

		fmt.Printf("Title:    %s\n", probe.Metadata.Title)
		fmt.Printf("Author:   %s\n", probe.Metadata.Author)
		fmt.Printf("Platform: %s (plugin %s, confidence %.1f)\n", probe.Platform, probe.Routing.Plugin, probe.Routing.Confidence)
		fmt.Printf("Duration: %ds\n", probe.Metadata.Duration)
		if probe.Cached {
			fmt.Println("Source:   cache")
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "\nQUALITY\tRESOLUTION\tFORMAT\tSIZE\tCODEC")
		for _, q := range probe.Qualities {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", q.QualityID, q.Resolution, q.FormatName, formatBytes(q.FileSize), q.Codec)
		}
		return w.Flush()
	},
}

var extractorsCmd = &cobra.Command{
	Use:   "extractors",
	Short: "List registered extractors",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Extractors []struct {
				Name       string   `json:"name"`
				Status     string   `json:"status"`
				Domains    []string `json:"supported_domains"`
				UsageCount int64    `json:"usage_count"`
				ErrorCount int64    `json:"error_count"`
			} `json:"extractors"`
		}
		if err := client().get("/api/v1/extractors", nil, &resp); err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tSTATUS\tUSED\tERRORS\tDOMAINS")
		for _, e := range resp.Extractors {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", e.Name, e.Status, e.UsageCount, e.ErrorCount, truncate(strings.Join(e.Domains, ","), 50))
		}
		return w.Flush()
	},
}

func extractorToggleCmd(action string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " [name]",
		Short: strings.ToUpper(action[:1]) + action[1:] + " an extractor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client().post("/api/v1/extractors/"+args[0]+"/"+action, nil, nil); err != nil {
				return err
			}
			fmt.Printf("Extractor %s: %sd\n", args[0], action)
			return nil
		},
	}
}

var poolCmd = &cobra.Command{
	Use:   "pool",
	Short: "Show connection pool statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Running bool                      `json:"running"`
			Hosts   int                       `json:"hosts"`
			Stats   map[string]pool.HostStats `json:"stats"`
		}
		if err := client().get("/api/v1/pool/stats", nil, &resp); err != nil {
			return err
		}

		fmt.Printf("Pool %s, %d host(s)\n\n", runningLabel(resp.Running), resp.Hosts)
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "HOST\tACTIVE\tIDLE\tREQUESTS\tERRORS\tTIMEOUTS")
		for host, s := range resp.Stats {
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%.1f%%\t%.1f%%\n", host, s.ActiveConnections, s.IdleConnections, s.RequestsCount, s.ErrorRate*100, s.TimeoutRate*100)
		}
		return w.Flush()
	},
}

var poolResetCmd = &cobra.Command{
	Use:   "reset [host]",
	Short: "Reset pool statistics for one host or all hosts",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]string{}
		if len(args) == 1 {
			body["host"] = args[0]
		}
		if err := client().post("/api/v1/pool/reset", body, nil); err != nil {
			return err
		}
		fmt.Println("Pool statistics reset")
		return nil
	},
}

var pathsCmd = &cobra.Command{
	Use:   "paths",
	Short: "Show where the server keeps its files",
	RunE: func(cmd *cobra.Command, args []string) error {
		var info portable.Info
		if err := client().get("/api/v1/system/paths", nil, &info); err != nil {
			return err
		}
		printInfo(info)
		return nil
	},
}

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List filename templates with a sample rendering",
	RunE: func(cmd *cobra.Command, args []string) error {
		type template struct {
			Name     string `json:"name"`
			Template string `json:"template"`
			Preview  string `json:"preview"`
		}
		var resp struct {
			Current   template   `json:"current"`
			Templates []template `json:"templates"`
		}
		if err := client().get("/api/v1/system/templates", nil, &resp); err != nil {
			return err
		}

		fmt.Printf("Current: %s -> %s\n\n", resp.Current.Template, resp.Current.Preview)
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tTEMPLATE\tPREVIEW")
		for _, t := range resp.Templates {
			fmt.Fprintf(w, "%s\t%s\t%s\n", t.Name, t.Template, t.Preview)
		}
		return w.Flush()
	},
}

var logsCmd = &cobra.Command{
	Use:   "logs [category]",
	Short: "Show server logs (queue, pool, error, download)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		category := string(logger.CategoryQueue)
		if len(args) == 1 {
			category = args[0]
		}
		date, _ := cmd.Flags().GetString("date")
		search, _ := cmd.Flags().GetString("search")
		limit, _ := cmd.Flags().GetInt("limit")
		export, _ := cmd.Flags().GetString("export")

		query := url.Values{}
		if date != "" {
			query.Set("date", date)
		}
		if limit > 0 {
			query.Set("limit", strconv.Itoa(limit))
		}

		api := client()
		if export != "" {
			var raw []byte
			if err := api.get("/api/v1/logs/"+category+"/export", query, &raw); err != nil {
				return err
			}
			if err := os.WriteFile(export, raw, 0644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s to %s\n", formatBytes(int64(len(raw))), export)
			return nil
		}

		path := "/api/v1/logs/" + category
		if search != "" {
			path += "/search"
			query.Set("q", search)
		}

		var resp struct {
			Entries []logger.LogEntry `json:"entries"`
		}
		if err := api.get(path, query, &resp); err != nil {
			return err
		}
		for _, e := range resp.Entries {
			line := fmt.Sprintf("%s %-5s %s", e.Timestamp, strings.ToUpper(e.Level), e.Message)
			for k, v := range e.Fields {
				line += fmt.Sprintf(" %s=%v", k, v)
			}
			fmt.Println(strings.TrimSpace(line))
		}
		return nil
	},
}

var portableCmd = &cobra.Command{
	Use:   "portable",
	Short: "Manage the portable installation",
}

var portableInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the portable directory tree next to the executable",
	RunE: func(cmd *cobra.Command, args []string) error {
		migrate, _ := cmd.Flags().GetBool("migrate")

		paths, err := portable.New(portable.Options{ForcePortable: true})
		if err != nil {
			return err
		}
		if err := paths.CreatePortableStructure(); err != nil {
			return err
		}
		if migrate {
			migrated, err := paths.MigrateFromInstalled("")
			if err != nil {
				return err
			}
			if migrated {
				fmt.Println("Copied configuration and database from the installed location")
			}
		}

		printInfo(paths.Info())
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with default values",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		path := configFile
		if path == "" {
			paths, err := portable.New(portable.Options{ForcePortable: portableMode})
			if err != nil {
				return err
			}
			path = paths.ConfigFile(portable.ConfigName)
		}

		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("%s already exists, use --force to overwrite", path)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}

		if err := app.SaveConfig(domain.DefaultConfig(), path); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		config, paths, err := app.LoadConfig(configFile, portable.Options{ForcePortable: portableMode})
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "server\t%s:%d\n", config.Server.Host, config.Server.Port)
		fmt.Fprintf(w, "portable\t%t\n", paths.IsPortable())
		fmt.Fprintf(w, "download dir\t%s\n", config.Download.BaseDir)
		fmt.Fprintf(w, "database\t%s\n", config.Queue.DatabasePath)
		fmt.Fprintf(w, "logs\t%s\n", config.Logging.LogsDir)
		fmt.Fprintf(w, "concurrency\t%d (%d per platform)\n", config.Download.ConcurrentLimit, config.Download.ConcurrentPerPlatform)
		fmt.Fprintf(w, "quality\t%s\n", config.Download.DefaultQuality)
		fmt.Fprintf(w, "filename template\t%s\n", config.Download.FilenameTemplate)
		fmt.Fprintf(w, "extractor backend\t%s\n", config.Extractor.Backend)
		if config.Network.ProxyURL != "" {
			fmt.Fprintf(w, "proxy\t%s\n", config.Network.ProxyURL)
		}
		return w.Flush()
	},
}

func printInfo(info portable.Info) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Portable\t%t\n", info.IsPortable)
	fmt.Fprintf(w, "App\t%s\n", info.AppDirectory)
	fmt.Fprintf(w, "Data\t%s\n", info.DataDirectory)
	fmt.Fprintf(w, "Config\t%s\n", info.ConfigDirectory)
	fmt.Fprintf(w, "Cache\t%s\n", info.CacheDirectory)
	fmt.Fprintf(w, "Logs\t%s\n", info.LogsDirectory)
	fmt.Fprintf(w, "Database\t%s\n", info.DatabasePath)
	fmt.Fprintf(w, "Downloads\t%s\n", info.DownloadsDirectory)
	w.Flush()
}

func init() {
	extractorsCmd.AddCommand(extractorToggleCmd("enable"), extractorToggleCmd("disable"))
	poolCmd.AddCommand(poolResetCmd)
	portableCmd.AddCommand(portableInitCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd)

	logsCmd.Flags().StringP("date", "d", "", "Day to read (YYYY-MM-DD), default today")
	logsCmd.Flags().StringP("search", "q", "", "Only show entries containing this text")
	logsCmd.Flags().IntP("limit", "n", 100, "Maximum number of entries")
	logsCmd.Flags().StringP("export", "o", "", "Write the raw log file to this path")
	portableInitCmd.Flags().Bool("migrate", false, "Copy config and database from the installed location")
	configInitCmd.Flags().BoolP("force", "f", false, "Overwrite an existing file")
}
