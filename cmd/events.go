package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/festive-connect/internal"
	"github.com/iksnae/festive-connect/internal/events"
	"github.com/spf13/cobra"
)

var (
	eventsSort    string
	eventsYes     bool
	eventFields   events.Event
	eventLineup   string
	eventsNowFunc = time.Now
)

var (
	// Styles
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	dateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	locationStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135")).
			Italic(true)
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Manage festival events",
	Long:  `Create, browse, update and delete the events of the festival programme.`,
}

var eventsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List events",
	Long: `List every event in the programme.

Use --sort date_asc or --sort date_desc to order by date; events whose
date cannot be read sort first.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if eventsSort != "" && eventsSort != events.SortDateAsc && eventsSort != events.SortDateDesc {
			return fmt.Errorf("invalid sort order %q (use %s or %s)", eventsSort, events.SortDateAsc, events.SortDateDesc)
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		list, err := a.events.List(cmd.Context())
		if err != nil {
			return err
		}
		if eventsSort != "" {
			list = events.Sort(list, eventsSort)
		}
		displayEvents(cmd.OutOrStdout(), list)
		return nil
	},
}

var eventsShowCmd = &cobra.Command{
	Use:   "show <event-id>",
	Short: "Show one event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ev, err := a.events.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		displayEvent(cmd.OutOrStdout(), ev)
		return nil
	},
}

var eventsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create an event",
	Long: `Create an event. Title, date and location are required.

Dates may be RFC 3339 or a local date and time such as 2025-10-03T20:00.
Performers are given as a comma-separated list.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ev := eventFields
		ev.Performers = events.ParsePerformers(eventLineup)
		// Validate before contacting anything
		ev.Normalize()
		if err := ev.Validate(); err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		created, err := a.events.Create(cmd.Context(), ev)
		if err != nil {
			return err
		}
		internal.FprintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Created event %s", created.ID))
		displayEvent(cmd.OutOrStdout(), created)
		return nil
	},
}

var eventsUpdateCmd = &cobra.Command{
	Use:   "update <event-id>",
	Short: "Update an event",
	Long: `Update an event. Flags that are not given keep their current value;
--performers replaces the whole lineup.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		current, err := a.events.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		ev := mergeEvent(cmd, *current)

		updated, err := a.events.Update(cmd.Context(), args[0], ev)
		if err != nil {
			return err
		}
		internal.FprintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Updated event %s", args[0]))
		displayEvent(cmd.OutOrStdout(), updated)
		return nil
	},
}

var eventsDeleteCmd = &cobra.Command{
	Use:   "delete <event-id>",
	Short: "Delete an event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !eventsYes {
			if err := confirm(cmd, fmt.Sprintf("Delete event %s?", args[0])); err != nil {
				return err
			}
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.events.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		internal.FprintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Deleted event %s", args[0]))
		return nil
	},
}

var eventsNextCmd = &cobra.Command{
	Use:   "next",
	Short: "Show what is on today and what comes next",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		list, err := a.events.List(cmd.Context())
		if err != nil {
			return err
		}
		now := eventsNowFunc()
		out := cmd.OutOrStdout()

		fmt.Fprintln(out, headerStyle.Render("🎪 On today"))
		if today := events.OngoingToday(list, now); len(today) > 0 {
			displayEvents(out, today)
		} else {
			fmt.Fprintln(out, "Nothing on today.")
		}
		fmt.Fprintln(out)

		fmt.Fprintln(out, headerStyle.Render("⏭  Up next"))
		if next, ok := events.NextUpcoming(list, now); ok {
			displayEvent(out, &next)
		} else {
			fmt.Fprintln(out, "No upcoming events.")
		}
		return nil
	},
}

// mergeEvent overlays the flags given on the command line onto ev
func mergeEvent(cmd *cobra.Command, ev events.Event) events.Event {
	flags := cmd.Flags()
	if flags.Changed("title") {
		ev.Title = eventFields.Title
	}
	if flags.Changed("date") {
		ev.Date = eventFields.Date
	}
	if flags.Changed("location") {
		ev.Location = eventFields.Location
	}
	if flags.Changed("description") {
		ev.Description = eventFields.Description
	}
	if flags.Changed("performers") {
		ev.Performers = events.ParsePerformers(eventLineup)
	}
	return ev
}

func displayEvents(w io.Writer, list []events.Event) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No events found.")
		return
	}

	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("🎉 Found %s", countStyle.Render(fmt.Sprintf("%d events", len(list))))))
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tDATE\tLOCATION\tPERFORMERS")
	for _, ev := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			idStyle.Render(ev.ID),
			titleStyle.Render(ev.Title),
			dateStyle.Render(events.FormatDate(ev.Date)),
			locationStyle.Render(ev.Location),
			ev.Lineup(),
		)
	}
	_ = tw.Flush()
}

func displayEvent(w io.Writer, ev *events.Event) {
	fmt.Fprintln(w, titleStyle.Render(ev.Title))
	fmt.Fprintf(w, "  ID:         %s\n", idStyle.Render(ev.ID))
	fmt.Fprintf(w, "  Date:       %s\n", dateStyle.Render(events.FormatDate(ev.Date)))
	fmt.Fprintf(w, "  Location:   %s\n", locationStyle.Render(ev.Location))
	if len(ev.Performers) > 0 {
		fmt.Fprintf(w, "  Performers: %s\n", ev.Lineup())
	}
	if ev.Description != "" {
		fmt.Fprintf(w, "  %s\n", ev.Description)
	}
}

func addEventFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&eventFields.Title, "title", "", "Event title")
	cmd.Flags().StringVar(&eventFields.Date, "date", "", "Event date and time")
	cmd.Flags().StringVar(&eventFields.Location, "location", "", "Where the event takes place")
	cmd.Flags().StringVar(&eventLineup, "performers", "", "Comma-separated performers")
	cmd.Flags().StringVar(&eventFields.Description, "description", "", "Event description")
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsListCmd, eventsShowCmd, eventsAddCmd, eventsUpdateCmd, eventsDeleteCmd, eventsNextCmd)

	eventsListCmd.Flags().StringVar(&eventsSort, "sort", "", "Sort order: date_asc or date_desc")
	eventsDeleteCmd.Flags().BoolVarP(&eventsYes, "yes", "y", false, "Delete without asking")
	addEventFlags(eventsAddCmd)
	addEventFlags(eventsUpdateCmd)
}
