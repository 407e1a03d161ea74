package models

import (
	"strings"
	"time"
)

// Message is one turn of a chat.
type Message struct {
	ChatID    string    `msgpack:"chat_id"`
	Role      string    `msgpack:"role"`
	Text      string    `msgpack:"text"`
	CreatedAt time.Time `msgpack:"created_at"`
}

// DocumentRecord describes an ingested file.
type DocumentRecord struct {
	Filename   string    `msgpack:"filename"`
	Filepath   string    `msgpack:"filepath"`
	UploadedAt time.Time `msgpack:"uploaded_at"`
}

// FormatHistory renders messages, oldest first, as "User: ..." and
// "Assistant: ..." lines.
func FormatHistory(messages []Message) string {
	var sb strings.Builder
	for _, m := range messages {
		prefix := AssistantPrefix
		if m.Role == RoleUser {
			prefix = UserPrefix
		}
		sb.WriteString(prefix)
		sb.WriteString(": ")
		sb.WriteString(m.Text)
		sb.WriteString("\n")
	}
	return sb.String()
}
