package webhook

import (
	"strconv"
	"time"
)

// ===============================================
// Webhook Payload Types
// ===============================================

// Field discriminators on a Change. Anything else is acknowledged and
// skipped.
const (
	FieldMessages      = "messages"
	FieldMessageEchoes = "message_echoes"
	FieldHistory       = "history"
	FieldContactsSync  = "contacts_sync"
	FieldAppStateSync  = "smb_app_state_sync"
)

// Payload is one webhook delivery: a batch of entries, each carrying a batch
// of changes. The provider guarantees at-least-once delivery of the whole
// envelope, so every level may repeat.
type Payload struct {
	Object  string  `json:"object"`
	Entries []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string `json:"field"`
	Value Value  `json:"value"`
}

// Value is the union body of a change; which slices are populated depends on
// the Field discriminator.
type Value struct {
	MessagingProduct string            `json:"messaging_product,omitempty"`
	Metadata         Metadata          `json:"metadata"`
	Contacts         []ContactProfile  `json:"contacts,omitempty"`
	Messages         []InboundMessage  `json:"messages,omitempty"`
	Echoes           []EchoMessage     `json:"message_echoes,omitempty"`
	History          []HistoryChunk    `json:"history,omitempty"`
	Statuses         []DeliveryStatus  `json:"statuses,omitempty"`
}

// Metadata identifies which provider connection a change belongs to.
type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

// ContactProfile is the identity metadata the provider attaches alongside
// inbound messages and contact syncs.
type ContactProfile struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

// ===============================================
// Messages
// ===============================================

// InboundMessage is one regular inbound message. Exactly one of the typed
// bodies is set, matching Type.
type InboundMessage struct {
	From      string    `json:"from"`
	ID        string    `json:"id"`
	Timestamp string    `json:"timestamp"`
	Type      string    `json:"type"`
	Text      *TextBody `json:"text,omitempty"`
	Image     *MediaRef `json:"image,omitempty"`
	Audio     *MediaRef `json:"audio,omitempty"`
	Video     *MediaRef `json:"video,omitempty"`
	Document  *MediaRef `json:"document,omitempty"`
	Sticker   *MediaRef `json:"sticker,omitempty"`
}

type TextBody struct {
	Body string `json:"body"`
}

// MediaRef is a provider media handle; the binary is fetched separately via
// the two-step media protocol.
type MediaRef struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	SHA256   string `json:"sha256,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// Media returns the media reference matching the message type, if any.
func (m *InboundMessage) Media() *MediaRef {
	switch m.Type {
	case "image":
		return m.Image
	case "audio":
		return m.Audio
	case "video":
		return m.Video
	case "document":
		return m.Document
	case "sticker":
		return m.Sticker
	default:
		return nil
	}
}

// SentAt parses the provider's epoch-seconds timestamp. A zero time is
// returned for missing or malformed values; callers treat that as "now"
// rather than dropping the message as stale.
func (m *InboundMessage) SentAt() time.Time {
	if m.Timestamp == "" {
		return time.Time{}
	}
	secs, err := strconv.ParseInt(m.Timestamp, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(secs, 0)
}

// ===============================================
// Echoes
// ===============================================

// EchoMessage is a business-sent message mirrored back by the provider. It
// signals a human replying through the provider's own client.
type EchoMessage struct {
	To        string    `json:"to"`
	From      string    `json:"from"`
	ID        string    `json:"id"`
	Timestamp string    `json:"timestamp"`
	Type      string    `json:"type"`
	Text      *TextBody `json:"text,omitempty"`
}

// ===============================================
// History
// ===============================================

// HistoryChunk is one slice of a bulk backfill. Progress is a coarse
// percentage; the provider may never send a terminal 100.
type HistoryChunk struct {
	Metadata struct {
		Phase    string `json:"phase"`
		Progress int    `json:"progress"`
	} `json:"metadata"`
	Threads []HistoryThread `json:"threads"`
}

type HistoryThread struct {
	ID       string           `json:"id"`
	Messages []HistoryMessage `json:"messages"`
}

type HistoryMessage struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	FromMe    bool      `json:"from_me"`
	Type      string    `json:"type"`
	Text      *TextBody `json:"text,omitempty"`
	Timestamp string    `json:"timestamp"`
}

// DeliveryStatus reports outbound message state transitions. This pipeline
// acknowledges but does not act on them.
type DeliveryStatus struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	RecipientID string `json:"recipient_id"`
}
