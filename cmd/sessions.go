package cmd

import (
	"context"
	"fmt"
	"io"
	"slices"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/festive-connect/internal"
	"github.com/iksnae/festive-connect/internal/api"
	"github.com/iksnae/festive-connect/internal/chat"
	"github.com/spf13/cobra"
)

var (
	sessionsYes bool
)

var activeStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("42")).
	Bold(true)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage agent chat sessions",
	Long: `List, create, render and delete the agent's chat sessions.

The backend owns the sessions; the local cache keeps the messages sent
and received from this machine so they can be shown and exported.`,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List remote sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		sync := a.synchronizer(chat.Discard)

		var ids []string
		err = internal.ShowProgress(cmd.Context(), "Loading sessions", func() error {
			var listErr error
			ids, listErr = sync.ListRemoteSessions(cmd.Context())
			return listErr
		})
		if err != nil {
			return err
		}
		// A remembered session the backend no longer lists is dropped
		if last := a.lastActive(); slices.Contains(ids, last) {
			sync.SetActiveSession(last)
		}
		a.rememberActive(sync.ActiveSession())
		displaySessions(cmd.OutOrStdout(), ids, sync.ActiveSession(), a.cache)
		return nil
	},
}

var sessionsNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a session and make it active",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		sync := a.synchronizer(chat.Discard)
		rs, err := sync.CreateSession(cmd.Context())
		if rs != nil {
			a.rememberActive(rs.ID)
		}
		if err != nil {
			return err
		}
		internal.FprintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Created session %s", rs.ID))
		return nil
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Render a session and make it active",
	Long: `Fetch a session from the backend and render its history, followed
by the messages cached on this machine.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		sync := a.synchronizer(newTerminalRenderer(cmd.OutOrStdout()))
		if err := sync.RenderSession(cmd.Context(), args[0]); err != nil {
			return err
		}
		a.rememberActive(sync.ActiveSession())
		return nil
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a session remotely and locally",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		if !sessionsYes {
			if err := confirm(cmd, fmt.Sprintf("Delete session %s?", id)); err != nil {
				return err
			}
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		sync := a.synchronizer(chat.Discard)
		sync.SetActiveSession(a.lastActive())
		// The listing decides which session takes over when the active one goes
		if _, err := sync.ListRemoteSessions(cmd.Context()); err != nil {
			internal.LogWarn("Failed to list sessions before delete: %v", err)
		}

		if err := sync.DeleteSession(cmd.Context(), id); err != nil {
			return err
		}
		a.rememberActive(sync.ActiveSession())
		internal.FprintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Deleted session %s", id))
		return nil
	},
}

var sessionsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached session from this machine",
	Long: `Remove every cached session from the local cache. Sessions on the
backend are not touched.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !sessionsYes {
			if err := confirm(cmd, "Remove all locally cached sessions?"); err != nil {
				return err
			}
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.cache.Clear()
		if err != nil {
			return err
		}
		internal.FprintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Removed %d cached session(s)", n))
		return nil
	},
}

func displaySessions(w io.Writer, ids []string, active string, cache *chat.SessionCache) {
	if len(ids) == 0 {
		fmt.Fprintln(w, "No sessions found. Start one with 'festive sessions new'.")
		return
	}

	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("💬 Found %s", countStyle.Render(fmt.Sprintf("%d sessions", len(ids))))))
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\tID\tMESSAGES\tCREATED")
	for _, id := range ids {
		marker := ""
		if id == active {
			marker = activeStyle.Render("*")
		}
		msgs, created := "-", "-"
		if s := cache.Load(id); s != nil {
			msgs = fmt.Sprintf("%d", len(s.Messages))
			if s.CreatedAt != "" {
				created = s.CreatedAt
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", marker, idStyle.Render(id), msgs, dateStyle.Render(created))
	}
	_ = tw.Flush()
}

// activateSession picks the session a chat goes to: the requested one,
// else the last active one if the backend still has it, else the first
// remote one. With no remote sessions a new one is created.
func activateSession(ctx context.Context, a *app, sync *chat.Synchronizer, requested string) error {
	if requested != "" {
		sync.SetActiveSession(requested)
		return nil
	}

	if last := a.lastActive(); last != "" {
		_, err := sync.GetRemoteSession(ctx, last)
		switch {
		case err == nil:
			sync.SetActiveSession(last)
			return nil
		case api.IsNotFound(err):
			internal.LogInfo("Session %s is gone from the backend, picking another", last)
			a.rememberActive("")
		default:
			return err
		}
	}

	ids, err := sync.ListRemoteSessions(ctx)
	if err != nil {
		return err
	}
	if len(ids) > 0 {
		return nil
	}
	_, err = sync.CreateSession(ctx)
	return err
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd, sessionsNewCmd, sessionsShowCmd, sessionsDeleteCmd, sessionsClearCmd)

	sessionsDeleteCmd.Flags().BoolVarP(&sessionsYes, "yes", "y", false, "Delete without asking")
	sessionsClearCmd.Flags().BoolVarP(&sessionsYes, "yes", "y", false, "Clear without asking")
}
