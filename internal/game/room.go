/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import (
	"encoding/json"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"
)

// Phase is the position of a room in its round sequence.
type Phase string

const (
	PhaseWaiting          Phase = "waiting"
	PhaseStarting         Phase = "starting"
	PhaseShowingImage     Phase = "showing_image"
	PhaseWritingPrompt    Phase = "writing_prompt"
	PhaseGeneratingImages Phase = "generating_images"
	PhaseVoting           Phase = "voting"
	PhaseShowingResults   Phase = "showing_results" // reserved for explicit voting, never entered
	PhaseGameOver         Phase = "game_over"
)

type Difficulty string

const (
	DifficultyEasy    Difficulty = "easy"
	DifficultyMedium  Difficulty = "medium"
	DifficultyHard    Difficulty = "hard"
	DifficultyExtreme Difficulty = "extreme"
)

// ParseDifficulty lower-cases s. Unknown values are kept so the deadline
// lookup can fall back to its default.
func ParseDifficulty(s string) Difficulty {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DifficultyMedium
	}
	return Difficulty(s)
}

// Config is fixed for the lifetime of a room.
type Config struct {
	RoundCount int        `json:"roundCount"`
	Difficulty Difficulty `json:"difficulty"`
	Categories []string   `json:"categories"`
	Mode       string     `json:"mode"`
}

func (c Config) clone() Config {
	c.Categories = slices.Clone(c.Categories)
	return c
}

// ImageRef points at a generated image. The empty reference means no image
// and is encoded as JSON null.
type ImageRef string

func (i ImageRef) MarshalJSON() ([]byte, error) {
	if i == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(i))
}

type Player struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// RoundData is replaced wholesale at the start of every round.
type RoundData struct {
	Category       string              `json:"category"`
	OriginalPrompt string              `json:"originalPrompt"`
	OriginalImage  ImageRef            `json:"originalImage"`
	Prompts        map[string]string   `json:"prompts"`
	Images         map[string]ImageRef `json:"images"`
	Scores         map[string]int      `json:"scores"`
}

func newRoundData() *RoundData {
	return &RoundData{
		Prompts: make(map[string]string),
		Images:  make(map[string]ImageRef),
		Scores:  make(map[string]int),
	}
}

func (rd *RoundData) clone() RoundData {
	out := *rd
	out.Prompts = maps.Clone(rd.Prompts)
	out.Images = maps.Clone(rd.Images)
	out.Scores = maps.Clone(rd.Scores)
	return out
}

// PlayerSummary is the public view of a member.
type PlayerSummary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Score  int    `json:"score"`
	IsHost bool   `json:"isHost"`
}

// RoomSummary is a point-in-time copy of a room for display.
type RoomSummary struct {
	Code       string          `json:"code"`
	State      Phase           `json:"state"`
	Round      int             `json:"round"`
	RoundCount int             `json:"roundCount"`
	HostID     string          `json:"hostId"`
	Players    []PlayerSummary `json:"players"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// Room is one game session. All mutable fields are guarded by mu; the
// code and config never change after creation.
type Room struct {
	code      string
	config    Config
	createdAt time.Time

	mu           sync.Mutex
	hostID       string
	players      map[string]*Player
	order        []string // join order, display only
	state        Phase
	currentRound int
	round        *RoundData
	pendingGate  *Gate
}

func newRoom(code string, cfg Config, now time.Time) *Room {
	return &Room{
		code:      code,
		config:    cfg.clone(),
		createdAt: now,
		players:   make(map[string]*Player),
		state:     PhaseWaiting,
		round:     newRoundData(),
	}
}

func (r *Room) Code() string { return r.code }

func (r *Room) Config() Config { return r.config.clone() }

func (r *Room) HostID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hostID
}

func (r *Room) State() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Room) CurrentRound() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currentRound
}

// Len returns the number of members.
func (r *Room) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

func (r *Room) Has(playerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.players[playerID]
	return ok
}

// PlayerIDs returns member ids in join order.
func (r *Room) PlayerIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.order)
}

// Players returns copies of the members in join order.
func (r *Room) Players() []Player {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Player, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.players[id])
	}
	return out
}

// Round returns a copy of the current round data.
func (r *Room) Round() RoundData {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.round.clone()
}

// Totals returns cumulative scores by player id.
func (r *Room) Totals() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.totalsLocked()
}

func (r *Room) totalsLocked() map[string]int {
	out := make(map[string]int, len(r.players))
	for id, p := range r.players {
		out[id] = p.Score
	}
	return out
}

func (r *Room) Summary() RoomSummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	players := make([]PlayerSummary, 0, len(r.order))
	for _, id := range r.order {
		p := r.players[id]
		players = append(players, PlayerSummary{
			ID:     p.ID,
			Name:   p.Name,
			Score:  p.Score,
			IsHost: p.ID == r.hostID,
		})
	}

	return RoomSummary{
		Code:       r.code,
		State:      r.state,
		Round:      r.currentRound,
		RoundCount: r.config.RoundCount,
		HostID:     r.hostID,
		Players:    players,
		CreatedAt:  r.createdAt,
	}
}

// addPlayerLocked inserts a fresh member; capacity is checked by the registry.
func (r *Room) addPlayerLocked(id, name string) {
	r.players[id] = &Player{ID: id, Name: name}
	r.order = append(r.order, id)
	if r.hostID == "" {
		r.hostID = id
	}
}

// removePlayerLocked drops a member and promotes the earliest-joined
// remaining member when the host leaves. It reports whether id was present.
func (r *Room) removePlayerLocked(id string) bool {
	if _, ok := r.players[id]; !ok {
		return false
	}

	delete(r.players, id)
	r.order = slices.DeleteFunc(r.order, func(s string) bool { return s == id })

	if r.hostID == id {
		r.hostID = ""
		if len(r.order) > 0 {
			r.hostID = r.order[0]
		}
	}

	return true
}

func (r *Room) setState(p Phase) {
	r.mu.Lock()
	r.state = p
	r.mu.Unlock()
}

// begin moves a waiting room into STARTING.
func (r *Room) begin() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != PhaseWaiting {
		return ErrGameInProgress
	}
	r.state = PhaseStarting
	return nil
}

// resetRound replaces the round data and enters SHOWING_IMAGE.
func (r *Room) resetRound(round int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if round > r.currentRound {
		r.currentRound = round
	}
	r.round = newRoundData()
	r.state = PhaseShowingImage
}

func (r *Room) setOriginal(category string, o Original) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.round.Category = category
	r.round.OriginalPrompt = o.Prompt
	r.round.OriginalImage = o.Image
}

// setImages stores images for members still present and returns the
// round's full image map.
func (r *Room) setImages(images map[string]ImageRef) map[string]ImageRef {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, img := range images {
		if _, ok := r.players[id]; ok {
			r.round.Images[id] = img
		}
	}
	return maps.Clone(r.round.Images)
}

// applyScore records a round score and adds it to the member's total. It
// is a no-op for players that have left.
func (r *Room) applyScore(playerID string, score int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[playerID]
	if !ok {
		return false
	}
	r.round.Scores[playerID] = score
	p.Score += score
	return true
}
