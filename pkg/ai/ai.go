// Package ai generates assistant messages for chat rooms. A provider
// is given the recent room history and the name of the user it should
// impersonate, and returns either the next message in the user's voice
// or a polished version of a draft the user supplied.
//
// Two backends are implemented: an OpenAI-compatible chat completion
// API (gpt mode) and a local Ollama server (ollama mode). Both share
// the same prompt construction and reply cleanup.
package ai

import (
	"context"
	"fmt"
	"strings"
)

// Turn is one prior message of the room history, oldest first.
type Turn struct {
	Sender  string
	Content string
}

// Provider generates one assistant message.
//
// history is the room's recent messages in chronological order, asUser
// the display name of the user the reply should sound like, and draft
// an optional message to improve instead of continuing the chat. The
// returned text is cleaned of wrapping whitespace and quotes.
type Provider interface {
	Generate(ctx context.Context, history []Turn, asUser, draft string) (string, error)
}

// chatMessage is the request message shape shared by both backends.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// buildPrompt renders the shared prompt: a system instruction, one user
// turn per history message, and the final task turn.
func buildPrompt(history []Turn, asUser, draft string) []chatMessage {
	prompt := make([]chatMessage, 0, len(history)+2)
	prompt = append(prompt, chatMessage{
		Role: "system",
		Content: fmt.Sprintf(
			"You are participating in a group chat. Your goal is to respond "+
				"as if you are '%s', using a casual, human-like, friendly tone. ",
			asUser),
	})
	for _, turn := range history {
		prompt = append(prompt, chatMessage{
			Role:    "user",
			Content: fmt.Sprintf("%s: %s", turn.Sender, turn.Content),
		})
	}
	if draft != "" {
		prompt = append(prompt, chatMessage{
			Role: "user",
			Content: fmt.Sprintf(
				"As %s, you're planning to send this message: '%s'. "+
					"Improve it to make it sound more natural, accurate, and casual in this group chat context.",
				asUser, draft),
		})
	} else {
		prompt = append(prompt, chatMessage{
			Role: "user",
			Content: fmt.Sprintf(
				"Continue the chat as if you are %s. "+
					"Craft the next message that fits naturally into the "+
					"conversation, something user would like to say next. Do not "+
					"mention the name of the user you are pretending to be in "+
					"your response. Do not use long paragraphs, lists, or formal "+
					"language. Do not introduce yourself or sign messages. Do not put your answer in quotes or brackets.",
				asUser),
		})
	}
	return prompt
}

// cleanReply trims whitespace, strips any wrapping quote characters and
// trims again. Models are told not to quote their answers but do it
// anyway often enough.
func cleanReply(text string) string {
	text = strings.TrimSpace(text)
	text = strings.Trim(text, `"'`)
	return strings.TrimSpace(text)
}
