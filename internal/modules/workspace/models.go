// Package workspace persists the user-facing application state: agents,
// pools and notification settings, saved as one JSON document per user.
package workspace

import (
	"time"

	"github.com/alphatrader/alphatrader/internal/modules/agents"
)

// NotifyConfig is the user's notification sink settings.
type NotifyConfig struct {
	WebhookURL     string `json:"webhookUrl,omitempty"`
	TelegramToken  string `json:"telegramToken,omitempty"`
	TelegramChatID string `json:"telegramChatId,omitempty"`
}

// Workspace is the complete persisted state for one user.
type Workspace struct {
	Agents    []agents.AgentState `json:"agents"`
	Pools     []agents.Pool       `json:"pools"`
	Notify    NotifyConfig        `json:"notify"`
	UpdatedAt time.Time           `json:"updatedAt"`
}
