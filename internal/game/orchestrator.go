/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Original is the reference prompt and image for a round.
type Original struct {
	Prompt string   `json:"prompt"`
	Image  ImageRef `json:"image"`
}

// Gateway produces images. Implementations enforce their own timeout and
// should degrade to a fallback image rather than fail.
type Gateway interface {
	GenerateOriginal(ctx context.Context, category string) (Original, error)
	GenerateFromPrompt(ctx context.Context, prompt string) (ImageRef, error)
}

// Timings holds the fixed phase durations.
type Timings struct {
	ViewTime        time.Duration
	InterRound      time.Duration
	Deadlines       map[Difficulty]time.Duration
	DefaultDeadline time.Duration
}

func DefaultTimings() Timings {
	return Timings{
		ViewTime:   10 * time.Second,
		InterRound: 5 * time.Second,
		Deadlines: map[Difficulty]time.Duration{
			DifficultyEasy:    5 * time.Minute,
			DifficultyMedium:  3 * time.Minute,
			DifficultyHard:    2 * time.Minute,
			DifficultyExtreme: 1 * time.Minute,
		},
		DefaultDeadline: 3 * time.Minute,
	}
}

// Deadline returns the writing time for a difficulty.
func (t Timings) Deadline(d Difficulty) time.Duration {
	if v, ok := t.Deadlines[d]; ok {
		return v
	}
	return t.DefaultDeadline
}

var errRoomGone = errors.New("room deleted")

// Orchestrator drives rooms through their rounds.
type Orchestrator struct {
	registry *Registry
	gateway  Gateway
	notifier Notifier
	clock    Clock
	rand     Rand
	timings  Timings
	log      zerolog.Logger
}

type Option func(*Orchestrator)

func WithClock(c Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

func WithRand(r Rand) Option {
	return func(o *Orchestrator) { o.rand = r }
}

func WithTimings(t Timings) Option {
	return func(o *Orchestrator) { o.timings = t }
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

func NewOrchestrator(registry *Registry, gateway Gateway, notifier Notifier, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry: registry,
		gateway:  gateway,
		notifier: notifier,
		clock:    realClock{},
		rand:     globalRand{},
		timings:  DefaultTimings(),
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// StartGame begins room and runs it to GAME_OVER on the calling goroutine.
func (o *Orchestrator) StartGame(ctx context.Context, room *Room) error {
	if err := o.Begin(room); err != nil {
		return err
	}
	return o.Run(ctx, room)
}

// Begin moves a waiting room into STARTING. It fails if the room is nil or
// a game has already been started in it.
func (o *Orchestrator) Begin(room *Room) error {
	if room == nil {
		return ErrInvalidRoom
	}
	if err := room.begin(); err != nil {
		return err
	}

	o.notify(room, StateChangedMessage{Type: TypeStateChanged, State: PhaseStarting})

	return nil
}

// Run plays every configured round and finishes the game. It returns early
// only when ctx ends. A room deleted mid-game is marked over without any
// further notifications.
func (o *Orchestrator) Run(ctx context.Context, room *Room) error {
	if room == nil {
		return ErrInvalidRoom
	}

	cfg := room.Config()

	for round := 1; round <= cfg.RoundCount; round++ {
		err := o.playRound(ctx, room, cfg, round)
		if errors.Is(err, errRoomGone) {
			room.setState(PhaseGameOver)
			o.log.Info().Str("room", room.Code()).Int("round", round).Msg("GAMES: Room deleted mid-game")
			return nil
		}
		if err != nil {
			return err
		}
	}

	room.setState(PhaseGameOver)
	o.notify(room, StateChangedMessage{Type: TypeStateChanged, State: PhaseGameOver})
	o.notify(room, GameOverMessage{Type: TypeGameOver, Scores: room.Totals()})

	o.log.Info().Str("room", room.Code()).Msg("GAMES: Game over")

	return nil
}

func (o *Orchestrator) playRound(ctx context.Context, room *Room, cfg Config, round int) error {
	code := room.Code()

	if !o.registry.Live(room) {
		return errRoomGone
	}

	room.resetRound(round)
	o.notify(room, StateChangedMessage{Type: TypeStateChanged, State: PhaseShowingImage, Round: round})

	category := pickCategory(o.rand, cfg.Categories)

	original, err := o.gateway.GenerateOriginal(ctx, category)
	if err != nil {
		o.log.Warn().Err(err).Str("room", code).Str("category", category).Msg("GAMES: Original generation failed")
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	room.setOriginal(category, original)
	o.notify(room, OriginalReadyMessage{
		Type:     TypeOriginalReady,
		Prompt:   original.Prompt,
		Image:    original.Image,
		Category: category,
	})

	if err := o.sleep(ctx, o.timings.ViewTime); err != nil {
		return err
	}

	if !o.registry.Live(room) {
		return errRoomGone
	}

	room.setState(PhaseWritingPrompt)
	o.notify(room, StateChangedMessage{Type: TypeStateChanged, State: PhaseWritingPrompt, Round: round})

	gate := OpenGate(o.clock, room, o.timings.Deadline(cfg.Difficulty))
	cause, err := gate.Await(ctx)
	room.closeGate(gate)
	if err != nil {
		return err
	}

	prompts := gate.Prompts()

	o.log.Debug().Str("room", code).Int("round", round).Str("cause", string(cause)).Int("prompts", len(prompts)).Msg("GAMES: Prompt collection closed")

	if !o.registry.Live(room) {
		return errRoomGone
	}

	room.setState(PhaseGeneratingImages)
	o.notify(room, StateChangedMessage{Type: TypeStateChanged, State: PhaseGeneratingImages, Round: round})

	images := room.setImages(o.generateImages(ctx, room, prompts))
	if ctx.Err() != nil {
		return ctx.Err()
	}
	o.notify(room, ImagesReadyMessage{Type: TypeImagesReady, Images: images})

	if !o.registry.Live(room) {
		return errRoomGone
	}

	room.setState(PhaseVoting)
	o.notify(room, StateChangedMessage{Type: TypeStateChanged, State: PhaseVoting, Round: round})

	scores := o.score(room, original.Prompt, prompts)
	o.notify(room, RoundResultsMessage{
		Type:       TypeRoundResults,
		Round:      round,
		Scores:     scores,
		Cumulative: room.Totals(),
	})

	return o.sleep(ctx, o.timings.InterRound)
}

// generateImages requests an image for every member with a prompt in the
// closed gate's snapshot. Members without one, and failed requests, get no
// image.
func (o *Orchestrator) generateImages(ctx context.Context, room *Room, prompts map[string]string) map[string]ImageRef {
	ids := room.PlayerIDs()
	results := make([]ImageRef, len(ids))

	var wg sync.WaitGroup
	for i, id := range ids {
		prompt := prompts[id]
		if prompt == "" {
			continue
		}

		wg.Go(func() {
			img, err := o.gateway.GenerateFromPrompt(ctx, prompt)
			if err != nil {
				o.log.Warn().Err(err).Str("room", room.Code()).Str("player", id).Msg("GAMES: Image generation failed")
				return
			}
			results[i] = img
		})
	}
	wg.Wait()

	images := make(map[string]ImageRef, len(ids))
	for i, id := range ids {
		images[id] = results[i]
	}
	return images
}

// score computes and applies round scores for current members against the
// prompts their images were generated from. A member without an image
// scores 0.
func (o *Orchestrator) score(room *Room, original string, prompts map[string]string) map[string]int {
	rd := room.Round()
	scores := make(map[string]int)

	for _, id := range room.PlayerIDs() {
		s := 0
		if rd.Images[id] != "" {
			s = Similarity(original, prompts[id])
		}
		if room.applyScore(id, s) {
			scores[id] = s
		}
	}

	return scores
}

func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	select {
	case <-o.clock.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) notify(room *Room, msg any) {
	if o.notifier == nil || !o.registry.Live(room) {
		return
	}
	o.notifier.Notify(room.Code(), msg)
}
