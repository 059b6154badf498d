package commands

import (
	"errors"
	"fmt"
	"os"
	"time"

	"orderscraper/internal/session"
	"orderscraper/lib/util/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(sessionCmd)
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Discards the stored session, the next scrape logs in again.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		store := session.NewFileStore(cfg.SessionPath)
		err := store.Invalidate(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to discard session", err)
		}
		fmt.Fprintln(os.Stderr, "logged out")
	},
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Shows the stored session.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		store := session.NewFileStore(cfg.SessionPath)
		bundle, err := store.Load(cmd.Context())
		if errors.Is(err, session.ErrNoBundle) {
			fmt.Fprintln(os.Stderr, "no stored session")
			return
		}
		if err != nil {
			serviceutil.Fatal("failed to read session", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendRow(table.Row{"ID", bundle.ID.String()})
		t.AppendRow(table.Row{"Issued", bundle.IssuedAt.Format(time.DateTime)})
		t.AppendRow(table.Row{"Origin", bundle.Origin})
		t.AppendRow(table.Row{"Cookies", len(bundle.Cookies)})
		t.AppendRow(table.Row{"Stored keys", len(bundle.Storage)})
		t.AppendRow(table.Row{"File", store.Path()})
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
