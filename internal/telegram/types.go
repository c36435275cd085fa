package telegram

import (
	"net/http"
	"sync"
	"time"

	"mock-interview/internal/interview"
)

// Bot talks to the Telegram Bot API.
type Bot struct {
	token   string
	baseURL string
	client  *http.Client
}

// Update is one incoming Telegram update.
type Update struct {
	UpdateID int      `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

type Message struct {
	MessageID int    `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      *Chat  `json:"chat"`
	Text      string `json:"text,omitempty"`
}

type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

type Chat struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
	Type      string `json:"type"`
}

type SendMessageRequest struct {
	ChatID    int64  `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

type GetUpdatesResponse struct {
	OK          bool     `json:"ok"`
	Result      []Update `json:"result"`
	Description string   `json:"description,omitempty"`
}

type SendMessageResponse struct {
	OK          bool     `json:"ok"`
	Result      *Message `json:"result,omitempty"`
	Description string   `json:"description,omitempty"`
}

// UserSession is the per-user conversation. State covers the setup dialogue; once an
// interview runs, its progress lives in the facade.
type UserSession struct {
	UserID        int64
	ChatID        int64
	State         SessionState
	CandidateName string
	SessionID     string
	LastActivity  time.Time

	mu     sync.Mutex
	facade *interview.Facade
}

type SessionState string

const (
	StateIdle         SessionState = "idle"
	StateAwaitingName SessionState = "awaiting_name"
	StateAwaitingRole SessionState = "awaiting_role"
	StateInterview    SessionState = "interview"
)
