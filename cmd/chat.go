package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/MazarSayed/stock-platform/agent/assistant"
)

var (
	bannerStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7C3AED")).
		Padding(0, 1)

	agentStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#10B981"))

	guardrailStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#F59E0B"))

	hintStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#6B7280"))

	errorStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#EF4444")).
		Bold(true)
)

func newChatCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the assistant in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if sessionID == "" {
				sessionID = uuid.NewString()
			}

			fmt.Println(bannerStyle.Render("Stock Trading Platform Assistant"))
			fmt.Println(hintStyle.Render("/new starts a new session, /quit exits"))
			fmt.Println(hintStyle.Render("session " + sessionID))

			for {
				var line string
				err := survey.AskOne(&survey.Input{Message: "you:"}, &line)
				if errors.Is(err, terminal.InterruptErr) {
					return nil
				}
				if err != nil {
					return err
				}

				switch strings.TrimSpace(line) {
				case "":
					continue
				case "/quit", "/exit":
					return nil
				case "/new":
					sessionID = uuid.NewString()
					fmt.Println(hintStyle.Render("session " + sessionID))
					continue
				}

				resp, err := a.assistant.Chat(ctx, assistant.ChatRequest{Message: line, SessionID: sessionID})
				if err != nil {
					fmt.Println(errorStyle.Render("error: " + err.Error()))
					continue
				}
				fmt.Println(renderReply(resp))
			}
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "resume an existing session id")

	return cmd
}

func renderReply(resp assistant.ChatResponse) string {
	tag := agentStyle.Render("[" + resp.Agent + "]")
	if resp.Agent == assistant.AgentGuardrail {
		tag = guardrailStyle.Render("[" + resp.Agent + "]")
	}
	return tag + " " + resp.Response
}
