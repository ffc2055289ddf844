package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	version    = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "learnsprint",
	Short: "Learning sprint tracker with streaks and generated insights",
	Long: `learnsprint tracks 14-day learning sprints: daily check-ins, streak statistics,
a generated learning path at sprint creation and periodic pattern insights.

Running without a subcommand starts the HTTP server.`,
	Version:      version,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json (default config/config.json)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(tokenCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the insight sweeper",
	RunE:  runServe,
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one insight sweep over all active sprints and exit",
	RunE:  runSweep,
}

var (
	tokenUser string
	tokenTTL  string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for a user id (development)",
	Long: `Mint a bearer token signed with JWT_SECRET.

Examples:
  learnsprint token --user user_123
  learnsprint token --user user_123 --ttl 2h`,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "user id to put in the token subject")
	tokenCmd.Flags().StringVar(&tokenTTL, "ttl", "24h", "token lifetime")
	_ = tokenCmd.MarkFlagRequired("user")
}
