// ABOUTME: CLI commands to ask one-off questions and hold conversations
// ABOUTME: Answers carry numbered citations and a confidence score
package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harper/bookbuddy/internal/chat"
)

var (
	askDocument string
	askK        int
	askPersona  string

	chatConversation string
	chatDocument     string
	chatPersona      string
	chatHistory      bool
)

// NewAskCmd creates ask command
func NewAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about your books",
		Long: `Ask a question and get an answer grounded in your uploaded books.

Greetings and small talk are answered directly; everything else is
answered from the most relevant passages with [n] citations. Saved
memories (see "bookbuddy memory") are used as extra context.

Personas: scholar, friend (default), quizzer.

Examples:
  bookbuddy ask "Why does Emma meddle in Harriet's affairs?"
  bookbuddy ask --document 3f1c... --persona scholar "What are the main themes?"
  bookbuddy ask --k 8 --format json "Who is Mr. Knightley?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runAsk,
	}

	cmd.Flags().StringVar(&askDocument, "document", "", "Restrict to one document ID")
	cmd.Flags().IntVar(&askK, "k", 5, "Number of passages to retrieve")
	cmd.Flags().StringVar(&askPersona, "persona", "", "Answer tone: scholar, friend, or quizzer")

	return cmd
}

func runAsk(cmd *cobra.Command, args []string) error {
	if err := validatePositiveInt(askK, "k"); err != nil {
		return err
	}

	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.close()

	answer, err := a.chat.Ask(cmd.Context(), chat.AskRequest{
		Question:   strings.Join(args, " "),
		DocumentID: askDocument,
		OwnerID:    a.cfg.UserID,
		K:          askK,
		Persona:    a.persona(askPersona),
	})
	if err != nil {
		return err
	}

	if wantJSON() {
		return printJSON(cmd.OutOrStdout(), answer)
	}
	printAnswer(cmd.OutOrStdout(), answer)
	return nil
}

// NewChatCmd creates chat command
func NewChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Continue a conversation about your books",
		Long: `Send a message in a conversation. The last few messages are used as
context and every exchange is saved. Omit --conversation to start a
new conversation; its ID is printed so you can continue it.

Examples:
  bookbuddy chat "What happens at Box Hill?"
  bookbuddy chat --conversation 9a2e... "And how does Emma react?"
  bookbuddy chat --conversation 9a2e... --history`,
		RunE: runChat,
	}

	cmd.Flags().StringVar(&chatConversation, "conversation", "", "Conversation ID to continue")
	cmd.Flags().StringVar(&chatDocument, "document", "", "Restrict to one document ID")
	cmd.Flags().StringVar(&chatPersona, "persona", "", "Answer tone: scholar, friend, or quizzer")
	cmd.Flags().BoolVar(&chatHistory, "history", false, "Print the conversation instead of sending a message")

	return cmd
}

func runChat(cmd *cobra.Command, args []string) error {
	if chatHistory {
		return runChatHistory(cmd)
	}
	message := strings.TrimSpace(strings.Join(args, " "))
	if message == "" {
		return fmt.Errorf("no message provided")
	}

	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.close()

	result, err := a.chat.Send(cmd.Context(), chat.SendRequest{
		ConversationID: chatConversation,
		Message:        message,
		DocumentID:     chatDocument,
		OwnerID:        a.cfg.UserID,
		Persona:        a.persona(chatPersona),
	})
	if err != nil {
		return err
	}

	if wantJSON() {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"conversation_id": result.ConversationID,
			"answer":          result.Answer,
		})
	}
	printAnswer(cmd.OutOrStdout(), result.Answer)
	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "Conversation: %s\n", result.ConversationID)
	}
	return nil
}

func runChatHistory(cmd *cobra.Command) error {
	if chatConversation == "" {
		return fmt.Errorf("--history requires --conversation")
	}

	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.close()

	conv, err := chat.NewService(a.store, nil, a.log).Conversation(cmd.Context(), chatConversation, a.cfg.UserID)
	if err != nil {
		return err
	}

	if wantJSON() {
		return printJSON(cmd.OutOrStdout(), conv)
	}

	out := cmd.OutOrStdout()
	for _, msg := range conv.Messages {
		speaker := "You"
		if msg.Role == "assistant" {
			speaker = "BookBuddy"
		}
		fmt.Fprintf(out, "%s (%s):\n%s\n\n", speaker, formatTime(msg.CreatedAt), msg.Content)
	}
	return nil
}
