/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

// Notifier delivers room notifications to whatever transport is attached.
// Delivery is fire-and-forget; Notify must not block on slow clients.
type Notifier interface {
	Notify(code string, msg any)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(code string, msg any)

func (f NotifierFunc) Notify(code string, msg any) { f(code, msg) }

const (
	TypeStateChanged      = "state-changed"
	TypeOriginalReady     = "original-ready"
	TypeImagesReady       = "images-ready"
	TypeRoundResults      = "round-results"
	TypeGameOver          = "game-over"
	TypePlayerListChanged = "player-list-changed"
)

type StateChangedMessage struct {
	Type  string `json:"type"`
	State Phase  `json:"state"`
	Round int    `json:"round,omitempty"`
}

type OriginalReadyMessage struct {
	Type     string   `json:"type"`
	Prompt   string   `json:"prompt"`
	Image    ImageRef `json:"image"`
	Category string   `json:"category"`
}

// ImagesReadyMessage maps player id to generated image; encoding/json
// writes map keys in sorted order, so the payload is deterministic.
type ImagesReadyMessage struct {
	Type   string              `json:"type"`
	Images map[string]ImageRef `json:"images"`
}

type RoundResultsMessage struct {
	Type       string         `json:"type"`
	Round      int            `json:"round"`
	Scores     map[string]int `json:"scores"`
	Cumulative map[string]int `json:"cumulative"`
}

type GameOverMessage struct {
	Type   string         `json:"type"`
	Scores map[string]int `json:"scores"`
}

type PlayerListChangedMessage struct {
	Type    string          `json:"type"`
	Players []PlayerSummary `json:"players"`
	HostID  string          `json:"hostId"`
}

// PlayerListChanged builds the membership notification for a room.
func PlayerListChanged(room *Room) PlayerListChangedMessage {
	s := room.Summary()
	return PlayerListChangedMessage{
		Type:    TypePlayerListChanged,
		Players: s.Players,
		HostID:  s.HostID,
	}
}
