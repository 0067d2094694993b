/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) GenerateOriginal(ctx context.Context, category string) (Original, error) {
	args := m.Called(ctx, category)
	return args.Get(0).(Original), args.Error(1)
}

func (m *mockGateway) GenerateFromPrompt(ctx context.Context, prompt string) (ImageRef, error) {
	args := m.Called(ctx, prompt)
	return args.Get(0).(ImageRef), args.Error(1)
}

// recorder keeps every notification and optionally reacts to each one on
// the orchestrator's goroutine.
type recorder struct {
	mu   sync.Mutex
	msgs []any
	hook func(msg any)
}

func (r *recorder) Notify(_ string, msg any) {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()

	if r.hook != nil {
		r.hook(msg)
	}
}

func (r *recorder) messages() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]any(nil), r.msgs...)
}

func (r *recorder) states() []Phase {
	var out []Phase
	for _, m := range r.messages() {
		if sc, ok := m.(StateChangedMessage); ok {
			out = append(out, sc.State)
		}
	}
	return out
}

func (r *recorder) last() any {
	msgs := r.messages()
	if len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1]
}

type fixedRand int

func (f fixedRand) IntN(n int) int { return int(f) % n }

func fastTimings(deadline time.Duration) Timings {
	return Timings{
		ViewTime:        time.Millisecond,
		InterRound:      time.Millisecond,
		DefaultDeadline: deadline,
	}
}

const originalPrompt = "a red fox in the snow"

func twoPlayerRoom(t *testing.T, rounds int) (*Registry, *Room) {
	t.Helper()

	reg := NewRegistry()
	cfg := Config{RoundCount: rounds, Difficulty: DifficultyHard, Categories: []string{"space"}, Mode: "classic"}

	code, err := reg.CreateRoom(cfg, "p0", "Ada")
	require.NoError(t, err)
	require.NoError(t, reg.JoinRoom(code, "p1", "Grace"))

	room, _ := reg.GetRoom(code)
	return reg, room
}

func submitOnWriting(room *Room, prompts map[string]string) func(any) {
	return func(msg any) {
		sc, ok := msg.(StateChangedMessage)
		if !ok || sc.State != PhaseWritingPrompt {
			return
		}
		for id, text := range prompts {
			room.Submit(id, text)
		}
	}
}

func runGame(t *testing.T, o *Orchestrator, room *Room) error {
	t.Helper()

	errc := make(chan error, 1)
	go func() { errc <- o.StartGame(context.Background(), room) }()

	select {
	case err := <-errc:
		return err
	case <-time.After(3 * time.Second):
		t.Fatal("game did not finish")
		return nil
	}
}

func TestStartGame_PlaysToGameOver(t *testing.T) {
	reg, room := twoPlayerRoom(t, 1)

	gw := new(mockGateway)
	gw.On("GenerateOriginal", mock.Anything, "space").Return(Original{Prompt: originalPrompt, Image: "orig.png"}, nil)
	gw.On("GenerateFromPrompt", mock.Anything, "a red fox").Return(ImageRef("p0.png"), nil)
	gw.On("GenerateFromPrompt", mock.Anything, "blue whale").Return(ImageRef("p1.png"), nil)

	rec := &recorder{hook: submitOnWriting(room, map[string]string{"p0": "a red fox", "p1": "blue whale"})}

	o := NewOrchestrator(reg, gw, rec, WithTimings(fastTimings(time.Minute)), WithRand(fixedRand(0)))

	require.NoError(t, runGame(t, o, room))

	assert.Equal(t, PhaseGameOver, room.State())
	assert.Equal(t, []Phase{
		PhaseStarting,
		PhaseShowingImage,
		PhaseWritingPrompt,
		PhaseGeneratingImages,
		PhaseVoting,
		PhaseGameOver,
	}, rec.states())

	want := map[string]int{
		"p0": Similarity(originalPrompt, "a red fox"),
		"p1": Similarity(originalPrompt, "blue whale"),
	}
	assert.Equal(t, map[string]int{"p0": 50, "p1": 0}, want)
	assert.Equal(t, want, room.Totals())
	assert.Equal(t, GameOverMessage{Type: TypeGameOver, Scores: want}, rec.last())

	rd := room.Round()
	assert.Equal(t, "space", rd.Category)
	assert.Equal(t, ImageRef("orig.png"), rd.OriginalImage)
	assert.Equal(t, map[string]ImageRef{"p0": "p0.png", "p1": "p1.png"}, rd.Images)

	var results []RoundResultsMessage
	for _, m := range rec.messages() {
		if rr, ok := m.(RoundResultsMessage); ok {
			results = append(results, rr)
		}
	}
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Round)
	assert.Equal(t, want, results[0].Scores)
	assert.Equal(t, want, results[0].Cumulative)

	gw.AssertExpectations(t)
}

func TestStartGame_AccumulatesAcrossRounds(t *testing.T) {
	reg, room := twoPlayerRoom(t, 3)

	gw := new(mockGateway)
	gw.On("GenerateOriginal", mock.Anything, mock.Anything).Return(Original{Prompt: originalPrompt, Image: "orig.png"}, nil)
	gw.On("GenerateFromPrompt", mock.Anything, mock.Anything).Return(ImageRef("img.png"), nil)

	rec := &recorder{hook: submitOnWriting(room, map[string]string{"p0": originalPrompt, "p1": "red fox"})}
	o := NewOrchestrator(reg, gw, rec, WithTimings(fastTimings(time.Minute)))

	require.NoError(t, runGame(t, o, room))

	assert.Equal(t, 3, room.CurrentRound())
	assert.Equal(t, map[string]int{"p0": 300, "p1": 3 * 33}, room.Totals())
	gw.AssertNumberOfCalls(t, "GenerateOriginal", 3)
	gw.AssertNumberOfCalls(t, "GenerateFromPrompt", 6)
}

func TestStartGame_DeadlineWithMissingPrompt(t *testing.T) {
	reg, room := twoPlayerRoom(t, 1)

	gw := new(mockGateway)
	gw.On("GenerateOriginal", mock.Anything, mock.Anything).Return(Original{Prompt: originalPrompt, Image: "orig.png"}, nil)
	gw.On("GenerateFromPrompt", mock.Anything, "red fox").Return(ImageRef("p0.png"), nil)

	rec := &recorder{hook: submitOnWriting(room, map[string]string{"p0": "red fox"})}
	o := NewOrchestrator(reg, gw, rec, WithTimings(fastTimings(20*time.Millisecond)))

	require.NoError(t, runGame(t, o, room))

	rd := room.Round()
	assert.Equal(t, map[string]ImageRef{"p0": "p0.png", "p1": ""}, rd.Images)
	assert.Equal(t, map[string]int{"p0": 33, "p1": 0}, room.Totals())

	gw.AssertNumberOfCalls(t, "GenerateFromPrompt", 1)
}

func TestStartGame_FailedImageScoresZero(t *testing.T) {
	reg, room := twoPlayerRoom(t, 1)

	gw := new(mockGateway)
	gw.On("GenerateOriginal", mock.Anything, mock.Anything).Return(Original{Prompt: originalPrompt, Image: "orig.png"}, nil)
	gw.On("GenerateFromPrompt", mock.Anything, "a red fox").Return(ImageRef("p0.png"), nil)
	gw.On("GenerateFromPrompt", mock.Anything, "a red fox in the snow").Return(ImageRef(""), errors.New("upstream unavailable"))

	rec := &recorder{hook: submitOnWriting(room, map[string]string{"p0": "a red fox", "p1": "a red fox in the snow"})}
	o := NewOrchestrator(reg, gw, rec, WithTimings(fastTimings(time.Minute)))

	require.NoError(t, runGame(t, o, room))

	assert.Equal(t, map[string]int{"p0": 50, "p1": 0}, room.Totals())

	var images ImagesReadyMessage
	for _, m := range rec.messages() {
		if ir, ok := m.(ImagesReadyMessage); ok {
			images = ir
		}
	}
	assert.Equal(t, ImageRef(""), images.Images["p1"])
}

func TestStartGame_FailedOriginalStillPlays(t *testing.T) {
	reg, room := twoPlayerRoom(t, 1)

	gw := new(mockGateway)
	gw.On("GenerateOriginal", mock.Anything, mock.Anything).Return(Original{}, errors.New("upstream unavailable"))
	gw.On("GenerateFromPrompt", mock.Anything, mock.Anything).Return(ImageRef("img.png"), nil)

	rec := &recorder{hook: submitOnWriting(room, map[string]string{"p0": "anything", "p1": "else"})}
	o := NewOrchestrator(reg, gw, rec, WithTimings(fastTimings(time.Minute)))

	require.NoError(t, runGame(t, o, room))

	assert.Equal(t, PhaseGameOver, room.State())
	assert.Equal(t, map[string]int{"p0": 0, "p1": 0}, room.Totals())
}

func TestStartGame_PromptsSentWhileShowingCount(t *testing.T) {
	reg, room := twoPlayerRoom(t, 1)

	gw := new(mockGateway)
	gw.On("GenerateOriginal", mock.Anything, mock.Anything).Return(Original{Prompt: originalPrompt, Image: "orig.png"}, nil)
	gw.On("GenerateFromPrompt", mock.Anything, mock.Anything).Return(ImageRef("img.png"), nil)

	rec := &recorder{hook: func(msg any) {
		if _, ok := msg.(OriginalReadyMessage); !ok {
			return
		}
		room.Submit("p0", originalPrompt)
		room.Submit("p1", "a red fox")
	}}
	o := NewOrchestrator(reg, gw, rec, WithTimings(fastTimings(time.Hour)))

	// An hour-long deadline means finishing at all proves the gate opened early.
	require.NoError(t, runGame(t, o, room))

	assert.Equal(t, map[string]int{"p0": 100, "p1": 50}, room.Totals())
	gw.AssertNumberOfCalls(t, "GenerateFromPrompt", 2)
}

func TestStartGame_ResubmissionAfterGateIsNotScored(t *testing.T) {
	reg, room := twoPlayerRoom(t, 1)

	gw := new(mockGateway)
	gw.On("GenerateOriginal", mock.Anything, mock.Anything).Return(Original{Prompt: originalPrompt, Image: "orig.png"}, nil)
	gw.On("GenerateFromPrompt", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { room.Submit("p0", originalPrompt) }).
		Return(ImageRef("img.png"), nil)

	rec := &recorder{hook: submitOnWriting(room, map[string]string{"p0": "blue whale", "p1": "a red fox"})}
	o := NewOrchestrator(reg, gw, rec, WithTimings(fastTimings(time.Minute)))

	require.NoError(t, runGame(t, o, room))

	assert.Equal(t, map[string]int{"p0": 0, "p1": 50}, room.Totals())
	assert.Equal(t, originalPrompt, room.Round().Prompts["p0"], "late prompt is still recorded")

	gw.AssertCalled(t, "GenerateFromPrompt", mock.Anything, "blue whale")
	gw.AssertNotCalled(t, "GenerateFromPrompt", mock.Anything, originalPrompt)
}

func TestBegin_Errors(t *testing.T) {
	reg, room := twoPlayerRoom(t, 1)
	o := NewOrchestrator(reg, new(mockGateway), nil)

	assert.ErrorIs(t, o.Begin(nil), ErrInvalidRoom)
	assert.ErrorIs(t, o.Run(context.Background(), nil), ErrInvalidRoom)

	require.NoError(t, o.Begin(room))
	assert.Equal(t, PhaseStarting, room.State())

	assert.ErrorIs(t, o.Begin(room), ErrGameInProgress)
	assert.ErrorIs(t, o.StartGame(context.Background(), room), ErrGameInProgress)
}

func TestStartGame_RoomDeletedMidGame(t *testing.T) {
	reg := NewRegistry()
	code, err := reg.CreateRoom(testConfig(), "p0", "Ada")
	require.NoError(t, err)
	room, _ := reg.GetRoom(code)

	gw := new(mockGateway)
	gw.On("GenerateOriginal", mock.Anything, mock.Anything).Return(Original{Prompt: originalPrompt, Image: "orig.png"}, nil)

	rec := &recorder{}
	rec.hook = func(msg any) {
		if sc, ok := msg.(StateChangedMessage); ok && sc.State == PhaseWritingPrompt {
			reg.RemovePlayer("p0")
		}
	}

	o := NewOrchestrator(reg, gw, rec, WithTimings(fastTimings(time.Minute)))

	require.NoError(t, runGame(t, o, room))

	assert.Equal(t, PhaseGameOver, room.State())
	assert.False(t, reg.Live(room))

	for _, m := range rec.messages() {
		_, isGameOver := m.(GameOverMessage)
		assert.False(t, isGameOver, "no notifications after deletion")
	}
	assert.Equal(t, PhaseWritingPrompt, rec.states()[len(rec.states())-1])

	gw.AssertNotCalled(t, "GenerateFromPrompt", mock.Anything, mock.Anything)
}

func TestRun_StopsWhenContextEnds(t *testing.T) {
	reg, room := twoPlayerRoom(t, 1)

	gw := new(mockGateway)
	gw.On("GenerateOriginal", mock.Anything, mock.Anything).Return(Original{Prompt: originalPrompt, Image: "orig.png"}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recorder{hook: func(msg any) {
		if sc, ok := msg.(StateChangedMessage); ok && sc.State == PhaseWritingPrompt {
			cancel()
		}
	}}

	o := NewOrchestrator(reg, gw, rec, WithTimings(fastTimings(time.Hour)))

	require.NoError(t, o.Begin(room))
	assert.ErrorIs(t, o.Run(ctx, room), context.Canceled)
	assert.Nil(t, room.PendingGate())
}

func TestRun_UsesInjectedClock(t *testing.T) {
	reg, room := twoPlayerRoom(t, 1)
	clk := newFakeClock()

	gw := new(mockGateway)
	gw.On("GenerateOriginal", mock.Anything, mock.Anything).Return(Original{Prompt: originalPrompt, Image: "orig.png"}, nil)
	gw.On("GenerateFromPrompt", mock.Anything, mock.Anything).Return(ImageRef("img.png"), nil)

	timings := DefaultTimings()
	o := NewOrchestrator(reg, gw, &recorder{}, WithClock(clk), WithTimings(timings))

	require.NoError(t, o.Begin(room))

	errc := make(chan error, 1)
	go func() { errc <- o.Run(context.Background(), room) }()

	// Viewing delay.
	clk.waitForTimers(t, 1)
	assert.Equal(t, PhaseShowingImage, room.State())
	clk.Advance(timings.ViewTime)

	// Prompt deadline for hard rooms.
	clk.waitForTimers(t, 1)
	assert.Equal(t, PhaseWritingPrompt, room.State())
	room.Submit("p0", "red fox")
	clk.Advance(timings.Deadline(DifficultyHard))

	// Pause between rounds.
	clk.waitForTimers(t, 1)
	assert.Equal(t, PhaseVoting, room.State())
	clk.Advance(timings.InterRound)

	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("game did not finish")
	}

	assert.Equal(t, map[string]int{"p0": 33, "p1": 0}, room.Totals())
}

func TestTimings_Deadline(t *testing.T) {
	tm := DefaultTimings()

	assert.Equal(t, 5*time.Minute, tm.Deadline(DifficultyEasy))
	assert.Equal(t, 3*time.Minute, tm.Deadline(DifficultyMedium))
	assert.Equal(t, 2*time.Minute, tm.Deadline(DifficultyHard))
	assert.Equal(t, time.Minute, tm.Deadline(DifficultyExtreme))
	assert.Equal(t, 3*time.Minute, tm.Deadline(Difficulty("nightmare")))
}
