package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/iksnae/festive-connect/internal"
	"github.com/spf13/cobra"
)

var (
	verbose    bool
	configPath string
	baseURL    string
	cachePath  string
	agentName  string
	userID     string
	version    string = "dev"
	commit     string = "unknown"
	date       string = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "festive",
	Short: "Plan festival events and chat with the FestiveConnect agent",
	Long: `A command-line client for the FestiveConnect backend.

Manage the festival programme and talk to the planning agent from your
terminal. Chat history is kept in a local cache so conversations survive
between runs and can be exported.

Features:
  • Create, edit and browse festival events
  • See what is on today and what is coming up next
  • Chat with the agent, with optional file attachments
  • Keep, render and delete agent sessions
  • Export conversations (JSONL, Markdown, YAML, JSON)

Quick Start:
  festive events list --sort date_asc     # Browse the programme
  festive sessions new                    # Start a conversation
  festive chat "what is on tonight?"      # Ask the agent
  festive sessions export <id> --format md

Settings come from --config (or $FESTIVE_CONFIG), a .env file and
FESTIVE_* environment variables. Flags override all of them.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		internal.SetVerbose(verbose)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// Ctrl-C cancels the command's requests, including a running agent stream.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		internal.LogDebug("Command failed: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %s\n", userMessage(err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "FestiveConnect backend URL")
	rootCmd.PersistentFlags().StringVar(&cachePath, "cache", "", "Path to the local session cache database")
	rootCmd.PersistentFlags().StringVar(&agentName, "agent", "", "Agent (app) name to talk to")
	rootCmd.PersistentFlags().StringVar(&userID, "user", "", "User id for agent sessions")

	// Set version template to ensure --version flag works
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}
