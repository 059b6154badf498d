package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"orderscraper/internal/auth"
	"orderscraper/internal/components/chrono"
	"orderscraper/internal/components/telemetry"
	"orderscraper/internal/export"
	"orderscraper/internal/pagecache"
	"orderscraper/internal/scraper"
	"orderscraper/internal/session"
	"orderscraper/lib/browser"
	"orderscraper/lib/util/serviceutil"

	"github.com/spf13/cobra"
)

var (
	scrapeSince        *string
	scrapeForceRelogin *bool
	scrapePhone        *string
	scrapeOut          *string
	scrapeFormat       *string
	scrapeRows         *string
	scrapeDetails      *bool
	scrapeHeadless     *bool
	scrapeNoCache      *bool
)

func init() {
	flags := scrapeCmd.Flags()
	scrapeSince = flags.String("since", "", "Keep orders placed on or after this date (YYYY-MM-DD), defaults to the first of the current month.")
	scrapeForceRelogin = flags.Bool("force-relogin", false, "Discard the stored session and log in again.")
	scrapePhone = flags.String("phone", "", "The phone number to log in with, defaults to $ORDERSCRAPER_PHONE and is asked for when both are empty.")
	scrapeOut = flags.StringP("out", "o", "", "The output file, '-' writes csv to stdout. Defaults to orders.csv or orders.db.")
	scrapeFormat = flags.StringP("format", "f", "csv", "The output format: csv, sqlite or table.")
	scrapeRows = flags.String("rows", "orders", "One row per order ('orders') or per line item ('items').")
	scrapeDetails = flags.Bool("details", false, "Open every order's page to read its line items.")
	scrapeHeadless = flags.Bool("headless", false, "Run chrome without a window.")
	scrapeNoCache = flags.Bool("no-cache", false, "Open every detail page even when it was cached by an earlier run.")
	rootCmd.AddCommand(scrapeCmd)
}

// parseSince reads a YYYY-MM-DD date in the storefront's timezone, an empty value
// means the start of the current month.
func parseSince(value string, clock chrono.API) (time.Time, error) {
	if value == "" {
		return chrono.StartOfMonth(clock.Now()), nil
	}
	since, err := time.ParseInLocation(time.DateOnly, value, clock.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("--since must be formatted as YYYY-MM-DD: %w", err)
	}
	if since.After(clock.Now()) {
		return time.Time{}, fmt.Errorf("--since %s is in the future", value)
	}
	return since, nil
}

func resolvePhone(flag string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv("ORDERSCRAPER_PHONE")
}

func defaultOut(format export.Format, out string) string {
	if out != "" {
		return out
	}
	switch format {
	case export.FormatSQLite:
		return "orders.db"
	case export.FormatTable:
		return "-"
	}
	return "orders.csv"
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape [--since YYYY-MM-DD] [--format csv|sqlite|table] [--out <path>]",
	Short: "Logs in, loads the order history and exports it.",
	Run: func(cmd *cobra.Command, args []string) {
		err := scrape(cmd.Context(), loadConfig())
		if err != nil {
			serviceutil.Fatal("scrape failed", err)
		}
	},
}

// scrape owns the browser and the page cache so they are closed before the process exits.
func scrape(ctx context.Context, cfg scraper.Config) error {
	clock, err := chrono.NewStandardImpl(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone: %w", err)
	}
	since, err := parseSince(*scrapeSince, clock)
	if err != nil {
		return err
	}
	format, err := export.ParseFormat(*scrapeFormat)
	if err != nil {
		return err
	}
	rows, err := export.ParseRows(*scrapeRows)
	if err != nil {
		return err
	}
	phone := resolvePhone(*scrapePhone)
	if phone != "" {
		err = auth.ValidatePhone(phone)
		if err != nil {
			return fmt.Errorf("phone number: %w", err)
		}
	}

	out := defaultOut(format, *scrapeOut)
	sink, err := export.NewSink(format, out, rows, os.Stdout)
	if err != nil {
		return err
	}

	page, err := browser.NewChrome(ctx, browser.ChromeOptions{
		Headless:      *scrapeHeadless,
		UserAgent:     cfg.UserAgent,
		Width:         1280,
		Height:        900,
		ActionTimeout: cfg.Timeouts.Navigation.Duration(),
	})
	if err != nil {
		return err
	}
	defer page.Close()

	s, err := scraper.NewScraper(
		cfg,
		page,
		session.NewFileStore(cfg.SessionPath),
		auth.NewTerminalPrompter(os.Stdin, os.Stderr, phone),
		sink,
		clock,
		telemetry.SlogAPI{},
	)
	if err != nil {
		return err
	}

	if *scrapeDetails && !*scrapeNoCache && cfg.Cache.Dir != "" {
		cache, err := pagecache.Open(pagecache.Options{
			Dir:     cfg.Cache.Dir,
			BaseURL: cfg.BaseURL,
			TTL:     cfg.Cache.TTL(),
		}, clock)
		if err != nil {
			return err
		}
		defer cache.Close()
		s = s.WithCache(cache)
	}

	slog.Info("scraping orders", "since", since.Format(time.DateOnly), "format", format.String(), "out", out)
	report, err := s.Run(ctx, scraper.RunOptions{
		Since:        since,
		ForceRelogin: *scrapeForceRelogin,
		Details:      *scrapeDetails,
	})
	report.Render(os.Stderr)
	return err
}
