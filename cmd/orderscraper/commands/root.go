package commands

import (
	"context"
	"fmt"
	"os"

	"orderscraper/internal/components/telemetry"
	"orderscraper/internal/scraper"
	"orderscraper/lib/util/serviceutil"

	"github.com/spf13/cobra"
)

var configPath *string
var verbose *bool

func init() {
	configPath = rootCmd.PersistentFlags().String("config", "", "The config file, defaults to $ORDERSCRAPER_CONFIG or config.json5. A missing file means the defaults are used.")
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Show debug logs.")
}

var rootCmd = &cobra.Command{
	Use:           "orderscraper",
	Short:         "orderscraper exports your order history from a quick-commerce storefront.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(*verbose)
	},
}

// resolveConfigPath runs after main has loaded .env, flags are parsed before that
// so their defaults cannot read the environment.
func resolveConfigPath(flag string) string {
	if flag != "" {
		return flag
	}
	if env := os.Getenv("ORDERSCRAPER_CONFIG"); env != "" {
		return env
	}
	return "config.json5"
}

func loadConfig() scraper.Config {
	cfg, err := scraper.LoadConfig(resolveConfigPath(*configPath))
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	cfg, err = cfg.ResolvePaths()
	if err != nil {
		serviceutil.Fatal("failed to resolve state paths", err)
	}
	return cfg
}

// ExecuteContext runs the command line and returns the process exit code.
func ExecuteContext(ctx context.Context) int {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
