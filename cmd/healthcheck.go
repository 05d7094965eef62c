package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/festive-connect/internal"
	"github.com/iksnae/festive-connect/internal/chat"
	"github.com/iksnae/festive-connect/internal/events"
	"github.com/spf13/cobra"
)

var (
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")).
			Bold(true).
			Underline(true)
)

var errHealthcheckFailed = errors.New("health check failed")

// healthcheckCmd represents the healthcheck command
var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Check that festive can reach its cache and the backend",
	Long: `Check the health of festive by verifying:
  • The configuration loads and is valid
  • The local session cache can be opened
  • The backend answers GET /events/

This command is useful for debugging setup issues, especially in CI/CD
environments. Add --verbose for the settings in use and timings.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, sectionStyle.Render("🔍 FestiveConnect Health Check"))
		fmt.Fprintln(out)

		// Step 1: Configuration
		fmt.Fprintln(out, infoStyle.Render("Step 1: Loading configuration..."))
		cfg, err := loadConfig()
		if err == nil {
			err = cfg.Validate()
		}
		if err != nil {
			fmt.Fprintln(out, errorStyle.Render("❌ Configuration is invalid:"), err)
			return errHealthcheckFailed
		}
		fmt.Fprintln(out, successStyle.Render("✅ Configuration loaded"))
		if verbose {
			fmt.Fprintf(out, "   Backend: %s\n", cfg.BaseURL)
			fmt.Fprintf(out, "   Agent:   %s (user %s)\n", cfg.AgentName, cfg.UserID)
			fmt.Fprintf(out, "   Cache:   %s\n", cfg.CachePath)
			fmt.Fprintf(out, "   Timeout: %s\n", cfg.Timeout)
		}
		fmt.Fprintln(out)

		// Step 2: Local cache
		fmt.Fprintln(out, infoStyle.Render("Step 2: Opening the session cache..."))
		cacheOK := true
		store, err := internal.NewSQLiteStore(cfg.CachePath)
		if err != nil {
			cacheOK = false
			fmt.Fprintln(out, errorStyle.Render("❌ Failed to open the session cache:"), err)
		} else {
			ids, idsErr := chat.NewSessionCache(store, cfg.KeyPrefix).IDs()
			_ = store.Close()
			if idsErr != nil {
				cacheOK = false
				fmt.Fprintln(out, errorStyle.Render("❌ Failed to read the session cache:"), idsErr)
			} else {
				fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✅ Session cache readable, %d session(s) cached", len(ids))))
			}
		}
		fmt.Fprintln(out)

		// Step 3: Backend round trip
		fmt.Fprintln(out, infoStyle.Render("Step 3: Contacting the backend..."))
		start := time.Now()
		list, err := events.NewService(newClient(cfg)).List(cmd.Context())
		backendOK := err == nil
		if backendOK {
			fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✅ Backend answered with %d event(s)", len(list))))
			if verbose {
				fmt.Fprintf(out, "   Round trip: %s\n", time.Since(start).Round(time.Millisecond))
			}
		} else {
			fmt.Fprintln(out, errorStyle.Render("❌ Backend request failed:"), userMessage(err))
			if verbose {
				fmt.Fprintf(out, "   %v\n", err)
			}
		}
		fmt.Fprintln(out)

		// Summary
		fmt.Fprintln(out, sectionStyle.Render("📊 Summary"))
		fmt.Fprintln(out)
		switch {
		case cacheOK && backendOK:
			fmt.Fprintln(out, successStyle.Render("✅ Health check passed!"))
			return nil
		case backendOK:
			fmt.Fprintln(out, warningStyle.Render("⚠️  Backend reachable but the local cache is unusable"))
			fmt.Fprintln(out, "   • Chat history will not be saved")
		default:
			fmt.Fprintln(out, errorStyle.Render("❌ Health check failed"))
			fmt.Fprintf(out, "   • Is the backend running at %s?\n", cfg.BaseURL)
		}
		return errHealthcheckFailed
	},
}

func init() {
	rootCmd.AddCommand(healthcheckCmd)
}
