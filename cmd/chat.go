package cmd

import (
	"errors"
	"strings"

	"github.com/iksnae/festive-connect/internal/chat"
	"github.com/spf13/cobra"
)

var (
	chatSession string
	chatFile    string
)

// chatCmd sends one message to the agent and streams the reply
var chatCmd = &cobra.Command{
	Use:   "chat [message...]",
	Short: "Send a message to the agent",
	Long: `Send a message to the FestiveConnect agent and print its reply as it
streams in. The exchange is saved in the local cache.

Without --session the message goes to the last active session, else the
first session on the backend, else a new one.`,
	Example: `  festive chat "add a jazz night on friday at the main stage"
  festive chat --file poster.png "use this for the opening night"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.TrimSpace(strings.Join(args, " "))

		var attachment *chat.InlineData
		if chatFile != "" {
			var err error
			if attachment, err = chat.AttachmentFromFile(chatFile); err != nil {
				return err
			}
		}
		if text == "" && attachment == nil {
			return errors.New("nothing to send: give a message or --file")
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		sync := a.synchronizer(newTerminalRenderer(cmd.OutOrStdout()))
		if err := activateSession(cmd.Context(), a, sync, chatSession); err != nil {
			return err
		}
		a.rememberActive(sync.ActiveSession())

		return sync.SendMessage(cmd.Context(), text, attachment)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVarP(&chatSession, "session", "s", "", "Session to send to")
	chatCmd.Flags().StringVar(&chatFile, "file", "", "Attach a file to the message")
}
