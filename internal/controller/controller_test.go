package controller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfloor/floord/internal/driver/fake"
	"github.com/openfloor/floord/internal/playlist"
	"github.com/openfloor/floord/internal/render"
)

// fakeClock advances only when slept on, or explicitly.
type fakeClock struct {
	t     time.Time
	slept []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Sleep(d time.Duration) {
	c.slept = append(c.slept, d)
	c.t = c.t.Add(d)
}

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

// stubProcessor is a scriptable processor for loop tests.
type stubProcessor struct {
	name       string
	fps        int
	renderCost time.Duration
	failAfter  int // fail on the Nth call, 0 = never
	failWith   error

	clock     *fakeClock
	calls     int
	frames    []render.Context
	maxValues []int
	bpms      []float64
	ranged    map[int]int
}

func (s *stubProcessor) SetBPM(bpm float64, _ time.Time) { s.bpms = append(s.bpms, bpm) }
func (s *stubProcessor) SetMaxValue(max int)             { s.maxValues = append(s.maxValues, max) }
func (s *stubProcessor) RequestedFPS() int               { return s.fps }

func (s *stubProcessor) OnRangedValueChange(control, value int) {
	if s.ranged == nil {
		s.ranged = map[int]int{}
	}
	s.ranged[control] = value
}

func (s *stubProcessor) GetNextFrame(ctx render.Context) (render.Frame, error) {
	s.calls++
	if s.renderCost > 0 && s.clock != nil {
		s.clock.advance(s.renderCost)
	}
	if s.failAfter > 0 && s.calls >= s.failAfter {
		err := s.failWith
		if err == nil {
			err = errors.New("synthetic render failure")
		}
		return nil, err
	}
	s.frames = append(s.frames, ctx)
	return render.NewFrame(), nil
}

// harness bundles a controller with its collaborators on a shared clock.
type harness struct {
	clk   *fakeClock
	drv   *fake.Driver
	reg   *render.Registry
	pl    *playlist.Playlist
	ctl   *Controller
	procs map[string]*stubProcessor
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clk:   newFakeClock(),
		drv:   fake.New(),
		reg:   render.NewRegistry(),
		procs: map[string]*stubProcessor{},
	}
	h.pl = playlist.New("default")
	h.pl.SetTimeFunc(h.clk.Now)
	pm := playlist.NewManager(h.pl, "")
	h.ctl = New(h.drv, pm, h.reg, h.clk)
	return h
}

// register installs a factory producing a fresh stub on every build and
// remembers the latest instance under name.
func (h *harness) register(name string, template stubProcessor) {
	h.reg.Register(name, func(args map[string]interface{}) (render.Processor, error) {
		s := template
		s.name = name
		s.clock = h.clk
		h.procs[name] = &s
		return &s, nil
	})
}

func TestSetProcessorUnknown(t *testing.T) {
	h := newHarness(t)
	h.register("Good", stubProcessor{})
	require.NoError(t, h.ctl.SetProcessor("Good", nil))

	err := h.ctl.SetProcessor("Unknown", map[string]interface{}{})
	assert.ErrorIs(t, err, render.ErrUnknownProcessor)
	// The active processor is left unchanged.
	assert.Equal(t, "Good", h.ctl.CurrentProcessor())
}

func TestSetProcessorCreateFailure(t *testing.T) {
	h := newHarness(t)
	h.register("Good", stubProcessor{})
	h.reg.Register("Broken", func(map[string]interface{}) (render.Processor, error) {
		return nil, errors.New("bad args")
	})
	require.NoError(t, h.ctl.SetProcessor("Good", nil))

	err := h.ctl.SetProcessor("Broken", nil)
	assert.ErrorIs(t, err, render.ErrProcessorCreate)
	assert.NotErrorIs(t, err, render.ErrUnknownProcessor)
	assert.Equal(t, "Good", h.ctl.CurrentProcessor())
}

func TestSetProcessorAdoptsRequestedFPS(t *testing.T) {
	h := newHarness(t)
	h.register("Fast", stubProcessor{fps: 60})
	h.register("NoPref", stubProcessor{})

	require.NoError(t, h.ctl.SetProcessor("Fast", nil))
	assert.Equal(t, 60, h.ctl.FPS())

	require.NoError(t, h.ctl.SetProcessor("NoPref", nil))
	assert.Equal(t, DefaultFPS, h.ctl.FPS())
}

func TestSetProcessorPushesTempo(t *testing.T) {
	h := newHarness(t)
	h.register("Show", stubProcessor{})
	h.ctl.SetBPM(98, time.Time{})

	require.NoError(t, h.ctl.SetProcessor("Show", nil))
	require.NotEmpty(t, h.procs["Show"].bpms)
	assert.Equal(t, 98.0, h.procs["Show"].bpms[0])
}

func TestFirstFrameLoadsPlaylistProcessor(t *testing.T) {
	h := newHarness(t)
	h.register("Show", stubProcessor{})
	h.pl.Append(playlist.NewItem("Show", "", 0, nil))

	require.NoError(t, h.ctl.RunOneFrame())
	assert.Equal(t, "Show", h.ctl.CurrentProcessor())
	assert.Equal(t, 1, h.drv.SentCount)
	assert.Equal(t, 1, h.drv.ReadCount)
	require.NotNil(t, h.drv.LastSent)
	assert.Len(t, h.drv.LastSent, render.NumSquares)
}

func TestHotSwapOnlyWhenIdentityChanges(t *testing.T) {
	h := newHarness(t)
	h.register("Show", stubProcessor{})
	h.pl.Append(playlist.NewItem("Show", "", 0, map[string]interface{}{"r": 1.0}))

	require.NoError(t, h.ctl.RunOneFrame())
	first := h.procs["Show"]
	require.NoError(t, h.ctl.RunOneFrame())
	// Same (name, args): no reconstruction.
	assert.Same(t, first, h.procs["Show"])
	assert.Equal(t, 2, first.calls)

	// Same name, different args: swap.
	h.pl.Append(playlist.NewItem("Show", "", 0, map[string]interface{}{"r": 2.0}))
	h.ctl.AdvancePlaylist()
	require.NoError(t, h.ctl.RunOneFrame())
	assert.NotSame(t, first, h.procs["Show"])
}

func TestBrightnessSurvivesHotSwap(t *testing.T) {
	h := newHarness(t)
	h.register("A", stubProcessor{})
	h.register("B", stubProcessor{})
	h.pl.Append(playlist.NewItem("A", "", 0, nil))
	h.pl.Append(playlist.NewItem("B", "", 0, nil))

	h.ctl.ScaleBrightness(0.5)
	require.NoError(t, h.ctl.RunOneFrame())
	// 0.5 * 255 from the fake driver.
	require.NotEmpty(t, h.procs["A"].maxValues)
	assert.Equal(t, 127, h.procs["A"].maxValues[len(h.procs["A"].maxValues)-1])

	h.ctl.AdvancePlaylist()
	require.NoError(t, h.ctl.RunOneFrame())
	require.NotEmpty(t, h.procs["B"].maxValues)
	assert.Equal(t, 127, h.procs["B"].maxValues[len(h.procs["B"].maxValues)-1])
}

func TestScaleBrightnessPushesToActive(t *testing.T) {
	h := newHarness(t)
	h.register("Show", stubProcessor{})
	require.NoError(t, h.ctl.SetProcessor("Show", nil))

	h.ctl.ScaleBrightness(0.25)
	p := h.procs["Show"]
	require.NotEmpty(t, p.maxValues)
	assert.Equal(t, 63, p.maxValues[len(p.maxValues)-1])
}

func TestProcessorFailureEvictsItemAndContinues(t *testing.T) {
	h := newHarness(t)
	h.register("Flaky", stubProcessor{failAfter: 3})
	h.register("Steady", stubProcessor{})
	h.pl.Append(playlist.NewItem("Flaky", "", 0, nil))
	h.pl.Append(playlist.NewItem("Steady", "", 0, nil))

	// Two good frames, then a failure that evicts the item.
	for i := 0; i < 3; i++ {
		require.NoError(t, h.ctl.RunOneFrame())
	}
	require.Equal(t, 1, h.pl.Len())
	assert.Equal(t, "Steady", h.pl.Items()[0].Name)
	// The failed frame was never sent.
	assert.Equal(t, 2, h.drv.SentCount)

	// The loop keeps producing frames from what is now current.
	require.NoError(t, h.ctl.RunOneFrame())
	require.NoError(t, h.ctl.RunOneFrame())
	assert.Equal(t, "Steady", h.ctl.CurrentProcessor())
	assert.Equal(t, 4, h.drv.SentCount)
}

func TestSoleItemFailureDoesNotCrash(t *testing.T) {
	h := newHarness(t)
	h.register("Flaky", stubProcessor{failAfter: 1})
	h.pl.Append(playlist.NewItem("Flaky", "", 0, nil))

	require.NoError(t, h.ctl.RunOneFrame())
	assert.Equal(t, 1, h.pl.Len())
	assert.Equal(t, 0, h.drv.SentCount)
	// Loop stays alive even though the item cannot be removed.
	require.NoError(t, h.ctl.RunOneFrame())
}

func TestUnloadableItemIsEvicted(t *testing.T) {
	h := newHarness(t)
	h.register("Good", stubProcessor{})
	h.reg.Register("Broken", func(map[string]interface{}) (render.Processor, error) {
		return nil, errors.New("cannot build")
	})
	h.pl.Append(playlist.NewItem("Broken", "", 0, nil))
	h.pl.Append(playlist.NewItem("Good", "", 0, nil))

	require.NoError(t, h.ctl.RunOneFrame())
	require.Equal(t, 1, h.pl.Len())
	assert.Equal(t, "Good", h.pl.Items()[0].Name)

	require.NoError(t, h.ctl.RunOneFrame())
	assert.Equal(t, "Good", h.ctl.CurrentProcessor())
}

func TestInterruptPropagates(t *testing.T) {
	h := newHarness(t)
	h.register("Canceled", stubProcessor{failAfter: 1, failWith: context.Canceled})
	h.pl.Append(playlist.NewItem("Canceled", "", 0, nil))
	h.pl.Append(playlist.NewItem("Canceled", "x", 0, nil))

	err := h.ctl.RunOneFrame()
	assert.ErrorIs(t, err, context.Canceled)
	// Never reclassified as a processor failure: nothing was evicted.
	assert.Equal(t, 2, h.pl.Len())
}

func TestRunStopsOnContextCancel(t *testing.T) {
	h := newHarness(t)
	h.register("Show", stubProcessor{})
	h.pl.Append(playlist.NewItem("Show", "", 0, nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := h.ctl.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIdlePollWhenStopped(t *testing.T) {
	h := newHarness(t)
	h.register("Show", stubProcessor{})
	h.pl.Append(playlist.NewItem("Show", "", 0, nil))
	h.pl.Stop()

	require.NoError(t, h.ctl.RunOneFrame())
	require.Len(t, h.clk.slept, 1)
	assert.Equal(t, idlePoll, h.clk.slept[0])
	assert.Equal(t, 0, h.drv.SentCount)
}

func TestPacingSleepsRemainder(t *testing.T) {
	h := newHarness(t)
	// 24 fps, rendering costs 10ms per frame.
	h.register("Show", stubProcessor{renderCost: 10 * time.Millisecond})
	h.pl.Append(playlist.NewItem("Show", "", 0, nil))

	start := h.clk.Now()
	require.NoError(t, h.ctl.RunOneFrame())

	period := time.Second / DefaultFPS
	require.Len(t, h.clk.slept, 1)
	assert.Equal(t, period-10*time.Millisecond, h.clk.slept[0])
	// The whole tick lands on the frame period.
	assert.Equal(t, period, h.clk.Now().Sub(start))
}

func TestPacingAbsorbsOverrun(t *testing.T) {
	h := newHarness(t)
	h.register("Slow", stubProcessor{renderCost: 80 * time.Millisecond})
	h.pl.Append(playlist.NewItem("Slow", "", 0, nil))

	require.NoError(t, h.ctl.RunOneFrame())
	// Overrun: no sleep, no catch-up.
	assert.Empty(t, h.clk.slept)

	require.NoError(t, h.ctl.RunOneFrame())
	assert.Empty(t, h.clk.slept)
}

func TestRenderContextContents(t *testing.T) {
	h := newHarness(t)
	h.register("Show", stubProcessor{})
	h.pl.Append(playlist.NewItem("Show", "", 0, nil))

	downbeat := h.clk.Now().Add(-2 * time.Second)
	h.ctl.SetBPM(130, downbeat)
	h.drv.SetWeight(5, 700)

	require.NoError(t, h.ctl.RunOneFrame())
	p := h.procs["Show"]
	require.Len(t, p.frames, 1)
	ctx := p.frames[0]
	assert.Equal(t, 130.0, ctx.BPM)
	assert.Equal(t, downbeat, ctx.Downbeat)
	assert.Equal(t, 700, ctx.Weights[5])
	assert.False(t, ctx.Clock.IsZero())
}

func TestSyntheticOverlaySubstitutesNonZeroSlots(t *testing.T) {
	h := newHarness(t)
	h.register("Show", stubProcessor{})
	h.pl.Append(playlist.NewItem("Show", "", 0, nil))

	h.drv.SetWeight(2, 50)
	h.drv.SetWeight(3, 60)
	h.ctl.SquareWeightOn(3)

	require.NoError(t, h.ctl.RunOneFrame())
	p := h.procs["Show"]
	ctx := p.frames[len(p.frames)-1]
	// Hardware reading passes through where the overlay is clear.
	assert.Equal(t, 50, ctx.Weights[2])
	// Overlay slot substitutes the max floor value.
	assert.Equal(t, h.drv.MaxFloor, ctx.Weights[3])

	h.ctl.SquareWeightOff(3)
	require.NoError(t, h.ctl.RunOneFrame())
	ctx = p.frames[len(p.frames)-1]
	assert.Equal(t, 60, ctx.Weights[3])
}

func TestSquareWeightBounds(t *testing.T) {
	h := newHarness(t)
	// Out-of-range indexes are dropped without panicking.
	h.ctl.SquareWeightOn(-1)
	h.ctl.SquareWeightOn(render.NumSquares)
	h.ctl.SquareWeightOff(-1)
	h.ctl.SquareWeightOff(render.NumSquares)
	assert.False(t, h.ctl.syntheticActive)
}

func TestRangedValueForwarding(t *testing.T) {
	h := newHarness(t)
	h.register("Show", stubProcessor{})
	require.NoError(t, h.ctl.SetProcessor("Show", nil))

	h.ctl.HandleRangedValue(2, 99)
	assert.Equal(t, 99, h.procs["Show"].ranged[2])

	// Out of range either side: stored nowhere, forwarded nowhere.
	h.ctl.HandleRangedValue(-1, 10)
	h.ctl.HandleRangedValue(MaxRangedValues, 10)
	assert.Len(t, h.procs["Show"].ranged, 1)
}

func TestSetBPMForwardsToActive(t *testing.T) {
	h := newHarness(t)
	h.register("Show", stubProcessor{})
	require.NoError(t, h.ctl.SetProcessor("Show", nil))

	h.ctl.SetBPM(140, time.Time{})
	p := h.procs["Show"]
	assert.Equal(t, 140.0, p.bpms[len(p.bpms)-1])
	assert.Equal(t, 140.0, h.ctl.BPM())
}

func TestTwoItemScheduleEndToEnd(t *testing.T) {
	h := newHarness(t)
	h.register("First", stubProcessor{})
	h.register("Second", stubProcessor{})
	h.pl.Append(playlist.NewItem("First", "", 10, nil))
	h.pl.Append(playlist.NewItem("Second", "", 0, nil))

	require.NoError(t, h.ctl.RunOneFrame())
	assert.Equal(t, "First", h.ctl.CurrentProcessor())

	// Jump past the 10s deadline; the next poll advances to item 1.
	h.clk.advance(11 * time.Second)
	require.NoError(t, h.ctl.RunOneFrame())
	assert.Equal(t, "Second", h.ctl.CurrentProcessor())

	// Item 1 has no duration: it never reverts without further input.
	h.clk.advance(time.Hour)
	require.NoError(t, h.ctl.RunOneFrame())
	assert.Equal(t, "Second", h.ctl.CurrentProcessor())
	assert.Equal(t, 1, h.pl.Position())
}

func TestNoProcessorSkipsRender(t *testing.T) {
	h := newHarness(t)
	// Running playlist but empty queue: the tick idles through cleanly.
	require.NoError(t, h.ctl.RunOneFrame())
	assert.Equal(t, 1, h.drv.SentCount) // transfer still runs
	assert.Nil(t, h.drv.LastSent)
}

func TestStatusSnapshot(t *testing.T) {
	h := newHarness(t)
	h.register("Show", stubProcessor{fps: 30})
	h.pl.Append(playlist.NewItem("Show", "", 0, nil))
	require.NoError(t, h.ctl.RunOneFrame())

	st := h.ctl.Status()
	assert.Equal(t, 30, st.FPS)
	assert.Equal(t, "Show", st.Processor)
	assert.Equal(t, 0, st.Position)
	assert.Equal(t, 1, st.Length)
	assert.True(t, st.Running)
}
