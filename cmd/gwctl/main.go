// gwctl is an operator tool for the auth-gateway database: inspect recent
// audit rows, sweep expired sessions, and apply pending migrations.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/brizzai/auth-gateway/internal/config"
	"github.com/brizzai/auth-gateway/internal/store"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var dbPath string

func main() {
	Execute()
}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "gwctl",
	Short: "Operator tooling for the auth-gateway database",
	Long: `gwctl works directly against the gateway's SQLite database.
It can list recent audit rows, sweep expired sessions, and apply migrations.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		versionFlag, _ := cmd.Flags().GetBool("version")
		if versionFlag {
			pterm.Info.Println(config.GetVersionInfo())
			os.Exit(0)
		}
	}

	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "./gateway.db", "Path to the gateway SQLite database")
	rootCmd.PersistentFlags().BoolP("version", "v", false, "Show version information")
	rootCmd.AddCommand(logsCmd, sweepCmd, migrateCmd)

	logsCmd.Flags().Int("limit", 50, "Maximum number of rows to show")
	logsCmd.Flags().String("url-contains", "", "Comma-separated URL substrings to filter on")
}

func openStore() *store.Store {
	s, err := store.Open(dbPath)
	if err != nil {
		pterm.Error.Printf("Failed to open database %s: %v\n", dbPath, err)
		os.Exit(1)
	}
	return s
}

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show recent audit rows",
	Run: func(cmd *cobra.Command, args []string) {
		s := openStore()
		defer func() { _ = s.Close() }()

		limit, _ := cmd.Flags().GetInt("limit")
		urlContains, _ := cmd.Flags().GetString("url-contains")

		var patterns []string
		for _, pattern := range strings.Split(urlContains, ",") {
			if trimmed := strings.TrimSpace(pattern); trimmed != "" {
				patterns = append(patterns, trimmed)
			}
		}

		rows, err := s.ListRequestLogs(context.Background(), store.RequestLogFilter{
			URLContains: patterns,
			Limit:       limit,
		})
		if err != nil {
			pterm.Error.Printf("Failed to list logs: %v\n", err)
			os.Exit(1)
		}

		if len(rows) == 0 {
			pterm.Info.Println("No audit rows found")
			return
		}

		table := pterm.TableData{{"Time", "Method", "URL", "Status", "Duration", "User", "Downstream"}}
		for _, row := range rows {
			downstream := ""
			if row.DownstreamURL != "" {
				downstream = fmt.Sprintf("%s %s -> %d", row.DownstreamMethod, row.DownstreamURL, row.DownstreamStatusCode)
			}
			table = append(table, []string{
				row.CreatedAt,
				row.Method,
				row.URL,
				fmt.Sprintf("%d", row.StatusCode),
				fmt.Sprintf("%dms", row.DurationMs),
				row.UserSub,
				downstream,
			})
		}
		if err := pterm.DefaultTable.WithHasHeader().WithData(table).Render(); err != nil {
			pterm.Error.Println(err)
		}
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete expired sessions",
	Run: func(cmd *cobra.Command, args []string) {
		s := openStore()
		defer func() { _ = s.Close() }()

		var total int64
		for {
			deleted, err := s.DeleteExpiredSessions(context.Background(), time.Now(), 500)
			if err != nil {
				pterm.Error.Printf("Sweep failed: %v\n", err)
				os.Exit(1)
			}
			total += deleted
			if deleted == 0 {
				break
			}
		}
		pterm.Success.Printf("Deleted %d expired sessions\n", total)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	Run: func(cmd *cobra.Command, args []string) {
		// Open applies migrations as a side effect.
		s := openStore()
		defer func() { _ = s.Close() }()
		pterm.Success.Println("Migrations applied")
	},
}
