/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/Seednode/promptbox/internal/game"
)

const (
	defaultPlayerName = "Player"
	defaultRoundCount = 3
	defaultMode       = "classic"

	maxNameLength   = 24
	maxPromptLength = 300
)

// RoomSettings is the room configuration a client asks for. Zero values
// take the defaults.
type RoomSettings struct {
	RoundCount int      `json:"roundCount"`
	Difficulty string   `json:"difficulty"`
	Categories []string `json:"categories"`
	Mode       string   `json:"mode"`
}

// Result is the reply to every client request.
type Result struct {
	OK     bool   `json:"ok"`
	Code   string `json:"code,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func failed(err error) Result {
	return Result{Reason: err.Error()}
}

// Rooms handles client requests against the registry and starts games.
type Rooms struct {
	registry     *game.Registry
	orchestrator *game.Orchestrator
	notifier     game.Notifier
	maxRounds    int
	log          zerolog.Logger

	ctx   context.Context
	games sync.WaitGroup
}

func newRooms(ctx context.Context, registry *game.Registry, orchestrator *game.Orchestrator, notifier game.Notifier, maxRounds int, log zerolog.Logger) *Rooms {
	return &Rooms{
		registry:     registry,
		orchestrator: orchestrator,
		notifier:     notifier,
		maxRounds:    maxRounds,
		log:          log,
		ctx:          ctx,
	}
}

func (s RoomSettings) config(maxRounds int) game.Config {
	rounds := s.RoundCount
	if rounds == 0 {
		rounds = defaultRoundCount
	}
	rounds = min(max(rounds, 1), maxRounds)

	categories := game.NormalizeCategories(s.Categories)
	if len(categories) == 0 {
		categories = []string{game.RandomCategory}
	}

	mode := strings.ToLower(strings.TrimSpace(s.Mode))
	if mode == "" {
		mode = defaultMode
	}

	return game.Config{
		RoundCount: rounds,
		Difficulty: game.ParseDifficulty(s.Difficulty),
		Categories: categories,
		Mode:       mode,
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:n]))
}

func playerName(name string) string {
	if name = truncate(name, maxNameLength); name == "" {
		return defaultPlayerName
	}
	return name
}

func roomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// guard turns a panic inside a request into a failed result.
func (s *Rooms) guard(op, playerID string, f func() Result) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Str("op", op).Str("player", playerID).Interface("panic", r).Msg("ERROR: Request handler panicked")
			res = Result{Reason: fmt.Sprint(r)}
		}
	}()

	return f()
}

func (s *Rooms) playerListChanged(room *game.Room) {
	if s.notifier == nil || !s.registry.Live(room) {
		return
	}
	s.notifier.Notify(room.Code(), game.PlayerListChanged(room))
}

func (s *Rooms) Create(playerID, name string, settings RoomSettings) Result {
	return s.guard("create-room", playerID, func() Result {
		code, err := s.registry.CreateRoom(settings.config(s.maxRounds), playerID, playerName(name))
		if err != nil {
			return failed(err)
		}

		if room, ok := s.registry.GetRoom(code); ok {
			s.playerListChanged(room)
		}

		return Result{OK: true, Code: code}
	})
}

func (s *Rooms) Join(playerID, code, name string) Result {
	return s.guard("join-room", playerID, func() Result {
		code = roomCode(code)

		if err := s.registry.JoinRoom(code, playerID, playerName(name)); err != nil {
			return failed(err)
		}

		if room, ok := s.registry.GetRoom(code); ok {
			s.playerListChanged(room)
		}

		return Result{OK: true, Code: code}
	})
}

// Start begins the game in code on its own goroutine. Only members may
// start a game.
func (s *Rooms) Start(playerID, code string) Result {
	return s.guard("start-game", playerID, func() Result {
		code = roomCode(code)

		room, ok := s.registry.GetRoom(code)
		if !ok {
			return failed(game.ErrRoomNotFound)
		}
		if !room.Has(playerID) {
			return Result{Reason: "player is not in this room"}
		}

		if err := s.orchestrator.Begin(room); err != nil {
			return failed(err)
		}

		s.games.Go(func() {
			if err := s.orchestrator.Run(s.ctx, room); err != nil {
				s.log.Info().Err(err).Str("room", code).Msg("GAMES: Game stopped")
			}
		})

		return Result{OK: true, Code: code}
	})
}

// Submit always succeeds; prompts outside a round are dropped by the room.
func (s *Rooms) Submit(playerID, code, text string) Result {
	return s.guard("submit-prompt", playerID, func() Result {
		code = roomCode(code)

		if room, ok := s.registry.GetRoom(code); ok {
			if !room.Submit(playerID, truncate(text, maxPromptLength)) {
				s.log.Debug().Str("room", code).Str("player", playerID).Str("state", string(room.State())).Msg("GAMES: Dropped prompt")
			}
		}

		return Result{OK: true, Code: code}
	})
}

// Leave removes playerID from its room, if any.
func (s *Rooms) Leave(playerID string) Result {
	return s.guard("leave-room", playerID, func() Result {
		room, deleted := s.registry.RemovePlayer(playerID)
		if room == nil {
			return Result{OK: true}
		}

		if !deleted {
			s.playerListChanged(room)
		}

		return Result{OK: true, Code: room.Code()}
	})
}

// Wait blocks until every running game has returned.
func (s *Rooms) Wait() {
	s.games.Wait()
}
