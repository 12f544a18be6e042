package models

import "time"

// MessageFormat tells which decode path a stored message needs.
type MessageFormat int

const (
	// FormatHybridWrapped messages carry a session key wrapped for the receiver.
	FormatHybridWrapped MessageFormat = iota
	// FormatLegacyDirect messages were RSA-encrypted straight to the receiver.
	FormatLegacyDirect
)

func (f MessageFormat) String() string {
	switch f {
	case FormatHybridWrapped:
		return "hybrid"
	case FormatLegacyDirect:
		return "legacy"
	default:
		return "unknown"
	}
}

type Message struct {
	ID             string
	SenderID       string
	SenderUsername string
	ReceiverID     string
	Format         MessageFormat
	Payload        string
	// WrappedKey is empty for FormatLegacyDirect.
	WrappedKey string
	CreatedAt  time.Time
}

// InboxEntry is one decrypted (or placeholder) inbox item.
type InboxEntry struct {
	Sender  string `json:"sender"`
	Content string `json:"content"`
	SentAt  string `json:"sent_at"`
}
