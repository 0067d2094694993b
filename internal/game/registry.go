/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// CodeLength is the number of characters in a room code.
	CodeLength = 6
	// CodeAlphabet is the set of characters room codes are drawn from.
	CodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	DefaultMaxPlayers = 6
)

// Registry owns every live room. Registry operations are serialized by mu;
// a room's own lock is always taken after mu, never before.
type Registry struct {
	mu       sync.Mutex
	rooms    map[string]*Room
	byPlayer map[string]string // player id -> room code

	maxPlayers int
	newCode    func() string
	clock      Clock
	log        zerolog.Logger
}

type RegistryOption func(*Registry)

// WithMaxPlayers sets the room capacity. Values below 1 are ignored.
func WithMaxPlayers(n int) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.maxPlayers = n
		}
	}
}

// WithCodeGenerator replaces the random room code source.
func WithCodeGenerator(f func() string) RegistryOption {
	return func(r *Registry) { r.newCode = f }
}

func WithRegistryClock(c Clock) RegistryOption {
	return func(r *Registry) { r.clock = c }
}

func WithRegistryLogger(l zerolog.Logger) RegistryOption {
	return func(r *Registry) { r.log = l }
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		rooms:      make(map[string]*Room),
		byPlayer:   make(map[string]string),
		maxPlayers: DefaultMaxPlayers,
		newCode:    randomCode,
		clock:      realClock{},
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// randomCode draws CodeLength characters from CodeAlphabet using crypto/rand.
func randomCode() string {
	buf := make([]byte, CodeLength)
	if _, err := rand.Read(buf); err != nil {
		panic("crypto/rand failure: " + err.Error())
	}
	out := make([]byte, CodeLength)
	for i := range out {
		out[i] = CodeAlphabet[int(buf[i])%len(CodeAlphabet)]
	}
	return string(out)
}

// CreateRoom builds a waiting room with the creator as its only member and
// host. Codes are regenerated until one is not in use.
func (r *Registry) CreateRoom(cfg Config, creatorID, creatorName string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if code, ok := r.byPlayer[creatorID]; ok {
		if _, live := r.rooms[code]; live {
			return "", ErrAlreadyInRoom
		}
		delete(r.byPlayer, creatorID)
	}

	var code string
	for {
		code = r.newCode()
		if _, exists := r.rooms[code]; !exists {
			break
		}
	}

	room := newRoom(code, cfg, r.now())
	room.addPlayerLocked(creatorID, creatorName)

	r.rooms[code] = room
	r.byPlayer[creatorID] = code

	r.log.Info().Str("room", code).Str("player", creatorID).Msg("GAMES: Created room")

	return code, nil
}

// JoinRoom adds a member to an existing room. Joining a room the player is
// already in succeeds without changes.
func (r *Registry) JoinRoom(code, playerID, playerName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[code]
	if !ok {
		return ErrRoomNotFound
	}

	if current, ok := r.byPlayer[playerID]; ok {
		if current == code {
			return nil
		}
		if _, live := r.rooms[current]; live {
			return ErrAlreadyInRoom
		}
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if len(room.players) >= r.maxPlayers {
		return ErrRoomFull
	}

	room.addPlayerLocked(playerID, playerName)
	r.byPlayer[playerID] = code

	r.log.Info().Str("room", code).Str("player", playerID).Msg("GAMES: Player joined")

	return nil
}

// RemovePlayer takes a player out of whichever room holds it. When the
// room becomes empty it is deleted. It returns the affected room, if any,
// and whether that room was deleted.
func (r *Registry) RemovePlayer(playerID string) (*Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	code, ok := r.byPlayer[playerID]
	if !ok {
		return nil, false
	}
	delete(r.byPlayer, playerID)

	room, ok := r.rooms[code]
	if !ok {
		return nil, false
	}

	room.mu.Lock()
	removed := room.removePlayerLocked(playerID)
	empty := len(room.players) == 0
	if removed {
		room.checkGateLocked()
	}
	room.mu.Unlock()

	if !removed {
		return room, false
	}

	r.log.Info().Str("room", code).Str("player", playerID).Msg("GAMES: Player left")

	if empty {
		delete(r.rooms, code)
		r.log.Info().Str("room", code).Msg("GAMES: Deleted empty room")
	}

	return room, empty
}

func (r *Registry) GetRoom(code string) (*Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[code]
	return room, ok
}

func (r *Registry) GetRoomByPlayer(playerID string) (*Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	code, ok := r.byPlayer[playerID]
	if !ok {
		return nil, false
	}
	room, ok := r.rooms[code]
	return room, ok
}

// Live reports whether room is still the registered room for its code.
func (r *Registry) Live(room *Room) bool {
	if room == nil {
		return false
	}
	current, ok := r.GetRoom(room.Code())
	return ok && current == room
}

// Len returns the number of live rooms.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// Close drops every room. Running games see their rooms as deleted.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	clear(r.rooms)
	clear(r.byPlayer)
}

func (r *Registry) now() time.Time {
	return r.clock.Now()
}
