package model

import "time"

type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// Bot replies shown to the user. The terminal client reuses them for transport failures.
const (
	GreetingMessage    = "Hello! I'm your AI assistant. How can I help you today?"
	NotIndexedMessage  = "No documents have been indexed yet. Please upload a PDF document first."
	QueryFailedMessage = "Sorry, something went wrong while answering your question. Please try again."
	EmptyAnswerMessage = "The index service returned an empty response."
)

// Message is one entry of the conversation log. Messages are never mutated once appended.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
