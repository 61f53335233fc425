package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"pouch-go/internal/app"
	"pouch-go/internal/config"
	"pouch-go/internal/pouch"
	"pouch-go/internal/server"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a PouchApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "DownloadCategory", "SyncAll").
func newApp(ctx context.Context, operation string) (*app.PouchApp, error) {
	defaults := app.GetDefaults()

	cfg, err := config.Load(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewPouchApp(ctx, cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// attachProgressBar renders per-category progress on stdout when it is a
// terminal. Non-TTY runs keep the structured log output only.
func attachProgressBar(a *app.PouchApp) {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return
	}

	a.SetProgressFunc(func(p pouch.CategoryProgress) {
		width, _, err := term.GetSize(fd)
		if err != nil || width <= 0 {
			width = 80
		}

		label := fmt.Sprintf("%-14s", p.Category)
		barWidth := width - len(label) - 12
		if barWidth < 10 {
			barWidth = 10
		}
		filled := 0
		if p.Total > 0 {
			filled = barWidth * p.Done / p.Total
		}
		if filled > barWidth {
			filled = barWidth
		}

		fmt.Printf("\r%s [%s%s] %3.0f%%", label,
			strings.Repeat("=", filled),
			strings.Repeat(" ", barWidth-filled),
			p.Percent())
		if p.Final {
			fmt.Println()
		}
	})
}

var rootCmd = &cobra.Command{
	Use:   "pouch",
	Short: "Offline content sync engine",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults := app.GetDefaults()

		cfg := config.NewConfig(defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		fmt.Println("Set origin.url before running pouch sync.")
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults := app.GetDefaults()

		cfg, err := config.Load(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:  %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:   %s\n", cfg.LogDir)
		fmt.Printf("Origin:    %s", cfg.Origin.Type)
		switch cfg.Origin.Type {
		case "http":
			fmt.Printf(" (%s)", cfg.Origin.URL)
		case "s3":
			fmt.Printf(" (s3://%s/%s)", cfg.Origin.S3Bucket, cfg.Origin.S3Prefix)
		case "filesystem":
			fmt.Printf(" (%s)", cfg.Origin.Root)
		}
		fmt.Println()
		fmt.Printf("Store:     %s\n", cfg.Store.Type)
		fmt.Printf("Cache:     %s (namespace %s)\n", cfg.Cache.Type, cfg.Cache.Namespace)
		fmt.Printf("Workers:   %d\n", cfg.Sync.Workers)
		fmt.Printf("API Addr:  %s\n", cfg.Server.Addr)
		return nil
	},
}

// check command
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check content version and offline state",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, "Check")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Check(ctx); err != nil {
			return fmt.Errorf("check failed: %w", err)
		}

		report, err := a.Status()
		if err != nil {
			return err
		}
		fmt.Printf("Content version: %s\n", orUnknown(report.Version))
		fmt.Printf("Offline progress: %.0f%%\n", report.Progress)
		return nil
	},
}

// download command
var downloadCmd = &cobra.Command{
	Use:   "download CATEGORY",
	Short: "Download one category's assets",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, "DownloadCategory")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Check(ctx); err != nil {
			return fmt.Errorf("check failed: %w", err)
		}

		name := args[0]
		if a.Service().IsCategoryDownloaded(name) {
			fmt.Printf("%s is already downloaded.\n", name)
			return nil
		}

		attachProgressBar(a)
		if err := a.DownloadCategory(ctx, name); err != nil {
			return fmt.Errorf("download failed: %w", err)
		}

		fmt.Printf("Downloaded %s\n", name)
		return nil
	},
}

// sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Download every category in priority order",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, "SyncAll")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Check(ctx); err != nil {
			return fmt.Errorf("check failed: %w", err)
		}

		attachProgressBar(a)
		if err := a.SyncAll(ctx); err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}

		fmt.Println("Sync complete.")
		return nil
	},
}

// status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "View offline availability per category",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "Status")
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Status()
		if err != nil {
			return err
		}

		fmt.Printf("Content version: %s\n", orUnknown(report.Version))
		fmt.Printf("Initial sync complete: %v\n", report.InitialSyncComplete)
		fmt.Printf("Overall: %.0f%%\n\n", report.Progress)

		for _, c := range report.Categories {
			if c.Record != nil {
				fmt.Printf("  [x] %-16s %d/%d assets  %s\n", c.Name,
					c.Record.FetchedCount, c.Record.AssetCount,
					c.Record.CompletedAt.Local().Format("2006-01-02 15:04:05"))
			} else {
				fmt.Printf("  [ ] %-16s\n", c.Name)
			}
		}
		return nil
	},
}

// repair command
var repairCmd = &cobra.Command{
	Use:   "repair [CATEGORY]",
	Short: "Refetch assets missing from completed categories",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, "Repair")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Check(ctx); err != nil {
			return fmt.Errorf("check failed: %w", err)
		}

		category := ""
		if len(args) > 0 {
			category = args[0]
		}

		n, err := a.Repair(ctx, category)
		if err != nil {
			return fmt.Errorf("repair failed: %w", err)
		}
		if n == 0 {
			fmt.Println("Nothing to repair.")
		} else {
			fmt.Printf("Refetched %d asset(s)\n", n)
		}
		return nil
	},
}

// verify command
var verifyCmd = &cobra.Command{
	Use:   "verify [CATEGORY]",
	Short: "Inspect cached assets for missing or corrupt payloads",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deep, _ := cmd.Flags().GetBool("deep")

		a, err := newApp(cmd.Context(), "Verify")
		if err != nil {
			return err
		}
		defer a.Close()

		category := ""
		if len(args) > 0 {
			category = args[0]
		}

		report, err := a.Verify(cmd.Context(), category, deep)
		if err != nil {
			return fmt.Errorf("verify failed: %w", err)
		}

		fmt.Printf("Checked %d asset(s): %d missing, %d corrupt\n",
			report.Checked, len(report.Missing), len(report.Corrupt))
		for _, rec := range report.Missing {
			fmt.Printf("  missing  %s\n", rec.URL)
		}
		for _, rec := range report.Corrupt {
			fmt.Printf("  corrupt  %s\n", rec.URL)
		}
		if !report.OK() {
			fmt.Println("Run 'pouch repair' to refetch missing assets.")
		}
		return nil
	},
}

// purge command
var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete all offline records and cached assets",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		if !force {
			return fmt.Errorf("purge deletes all offline content; re-run with --force")
		}

		a, err := newApp(cmd.Context(), "Purge")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Purge(); err != nil {
			return fmt.Errorf("purge failed: %w", err)
		}

		fmt.Println("Offline state purged.")
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View sync operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd.Context(), "History")
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.History(limit)
		if err != nil {
			return err
		}

		if len(runs) == 0 {
			fmt.Println("No sync operations recorded.")
			return nil
		}

		for _, run := range runs {
			duration := ""
			if run.FinishedAt != nil {
				d := run.FinishedAt.Sub(run.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			params := run.Parameters
			if params != "" {
				params = " " + params
			}
			counts := ""
			if run.Fetched > 0 || run.Failed > 0 {
				counts = fmt.Sprintf("  %d fetched, %d failed", run.Fetched, run.Failed)
			}
			fmt.Printf("%s  %-18s%s  %s  %-8s %s%s\n",
				run.ID[:8],
				run.Operation,
				params,
				run.StartedAt.Local().Format("2006-01-02 15:04:05"),
				run.Status,
				duration,
				counts,
			)
		}
		return nil
	},
}

// serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the local status API for UI collaborators",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, "Serve")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Check(ctx); err != nil {
			return fmt.Errorf("check failed: %w", err)
		}

		srv := server.New(a, a.Config().Server, a.Logger())
		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("server stopped: %w", err)
		}
		return nil
	},
}

func orUnknown(s string) string {
	if s == "" {
		return "(unknown)"
	}
	return s
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(repairCmd)
	verifyCmd.Flags().Bool("deep", false, "Decode image headers instead of type-sniffing only")
	rootCmd.AddCommand(verifyCmd)
	purgeCmd.Flags().Bool("force", false, "Confirm deletion of all offline content")
	rootCmd.AddCommand(purgeCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(serveCmd)
}
