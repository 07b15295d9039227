// Package controller runs the per-frame playback loop: it polls the
// playlist for the current item, hot-swaps the active processor when the
// item changes, renders a frame from current sensor and tempo state, hands
// it to the driver and paces itself to the target frame rate. Processor
// failures evict the offending playlist item and the loop keeps going.
package controller

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openfloor/floord/internal/driver"
	"github.com/openfloor/floord/internal/playlist"
	"github.com/openfloor/floord/internal/render"
)

const (
	DefaultFPS      = 24
	DefaultBPM      = 120.0
	MaxRangedValues = 4

	// idlePoll is the coarse sleep between checks while the playlist is
	// stopped.
	idlePoll = 500 * time.Millisecond
)

// Controller owns all playback runtime state. External mutators and the
// frame loop share one mutex, so a tick never observes a half-applied
// mutation and mutations never interleave with rendering.
type Controller struct {
	mu sync.Mutex

	driver    driver.Driver
	playlists *playlist.Manager
	registry  *render.Registry
	clock     Clock
	log       zerolog.Logger

	processor   render.Processor
	currentName string
	currentArgs map[string]interface{}

	fps         int
	framePeriod time.Duration
	frameStart  time.Time

	bpm      float64
	downbeat time.Time

	maxLED       int
	maxEffective int
	maxFloor     int

	rangedValues [MaxRangedValues]int

	// Synthetic sensor overlay: non-zero slots substitute for hardware
	// readings. Owned per instance.
	syntheticWeights [render.NumSquares]int
	syntheticActive  bool
}

// New wires a controller. A nil clock selects the system clock.
func New(drv driver.Driver, playlists *playlist.Manager, registry *render.Registry, clock Clock) *Controller {
	if clock == nil {
		clock = SystemClock()
	}
	c := &Controller{
		driver:    drv,
		playlists: playlists,
		registry:  registry,
		clock:     clock,
		log:       log.With().Str("component", "controller").Logger(),
		maxLED:    drv.GetMaxLEDValue(),
		maxFloor:  drv.GetMaxFloorValue(),
	}
	c.maxEffective = c.maxLED
	c.setFPS(DefaultFPS)
	c.setBPM(DefaultBPM, time.Time{})
	return c
}

// Playlists exposes the playlist manager for read-only inspection.
func (c *Controller) Playlists() *playlist.Manager { return c.playlists }

func (c *Controller) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

func (c *Controller) BPM() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bpm
}

// CurrentProcessor reports the identity of the active processor.
func (c *Controller) CurrentProcessor() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentName
}

// SetFPS sets the target frame rate. The currently sleeping tick is not
// rescheduled.
func (c *Controller) SetFPS(fps int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setFPS(fps)
}

func (c *Controller) setFPS(fps int) {
	if fps <= 0 {
		fps = DefaultFPS
	}
	c.fps = fps
	c.framePeriod = time.Second / time.Duration(fps)
}

// SetBPM updates the tempo reference. A zero downbeat means "now". The new
// tempo is forwarded to the active processor immediately.
func (c *Controller) SetBPM(bpm float64, downbeat time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log.Info().Float64("bpm", bpm).Msg("setting bpm")
	c.setBPM(bpm, downbeat)
}

func (c *Controller) setBPM(bpm float64, downbeat time.Time) {
	c.bpm = bpm
	if downbeat.IsZero() {
		downbeat = c.clock.Now()
	}
	c.downbeat = downbeat
	if c.processor != nil {
		c.processor.SetBPM(bpm, downbeat)
	}
}

// ScaleBrightness recomputes the effective maximum LED value as
// factor * max and pushes it into the active processor. The stored value
// survives processor swaps.
func (c *Controller) ScaleBrightness(factor float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if factor < 0 {
		factor = 0
	} else if factor > 1 {
		factor = 1
	}
	c.log.Info().Int("percent", int(factor*100)).Msg("setting brightness")
	c.maxEffective = int(factor * float64(c.maxLED))
	if c.processor != nil {
		c.processor.SetMaxValue(c.maxEffective)
	}
}

// HandleRangedValue stores a control value and forwards it to the active
// processor. Out-of-range control numbers are logged and dropped; they come
// from noisy external hardware.
func (c *Controller) HandleRangedValue(control, value int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if control < 0 || control >= MaxRangedValues {
		c.log.Warn().Int("control", control).Msg("ignoring out-of-range control number")
		return
	}
	c.rangedValues[control] = value
	if c.processor != nil {
		c.processor.OnRangedValueChange(control, value)
	}
}

// SquareWeightOn sets one slot of the synthetic sensor overlay to the
// maximum floor value.
func (c *Controller) SquareWeightOn(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= render.NumSquares {
		c.log.Error().Int("index", index).Msg("ignoring square weight beyond bounds")
		return
	}
	c.syntheticWeights[index] = c.maxFloor
	c.syntheticActive = true
}

// SquareWeightOff clears one overlay slot. The overlay deactivates once no
// slot is set.
func (c *Controller) SquareWeightOff(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= render.NumSquares {
		c.log.Error().Int("index", index).Msg("ignoring square weight beyond bounds")
		return
	}
	c.syntheticWeights[index] = 0
	for _, v := range c.syntheticWeights {
		if v != 0 {
			return
		}
	}
	c.syntheticActive = false
}

// SetProcessor builds and activates a processor by name. Configuration
// failures (unknown name, construction error) are returned to the caller
// and leave the active processor unchanged.
func (c *Controller) SetProcessor(name string, args map[string]interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setProcessor(name, args)
}

func (c *Controller) setProcessor(name string, args map[string]interface{}) error {
	p, err := c.registry.Build(name, args)
	if err != nil {
		return err
	}
	p.SetBPM(c.bpm, c.downbeat)

	fps := p.RequestedFPS()
	if fps <= 0 {
		fps = DefaultFPS
	}
	c.setFPS(fps)

	c.processor = p
	c.currentName = name
	c.currentArgs = args

	c.log.Info().Str("processor", name).Int("fps", fps).Msg("started processor")
	return nil
}

// Playlist mutation surface. All navigation from control surfaces funnels
// through here so it serializes against the frame loop.

func (c *Controller) AdvancePlaylist() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playlists.Advance()
}

func (c *Controller) PreviousPlaylist() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playlists.Previous()
}

func (c *Controller) StartPlaylist() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playlists.Start()
}

func (c *Controller) StopPlaylist() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playlists.Stop()
}

func (c *Controller) StayPlaylist() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playlists.Stay()
}

func (c *Controller) GoToPlaylistItem(position int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playlists.GoTo(position)
}

func (c *Controller) SetCurrentPlaylist(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playlists.SetCurrent(name)
}

func (c *Controller) SavePlaylist(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playlists.Save(name)
}

// Run drives frames until the context is canceled. Cancellation is the only
// signal that terminates the loop; processor failures self-heal in place.
func (c *Controller) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.RunOneFrame(); err != nil {
			return err
		}
	}
}

// RunOneFrame executes a single tick of the playback cycle. A non-nil
// return means an interrupt and terminates the caller's loop.
func (c *Controller) RunOneFrame() error {
	c.mu.Lock()
	if !c.playlists.Current().IsRunning() {
		c.mu.Unlock()
		c.clock.Sleep(idlePoll)
		return nil
	}

	c.frameStart = c.clock.Now()
	c.checkPlaylist()
	send, err := c.generateFrame()
	if err != nil {
		c.mu.Unlock()
		return err
	}
	if send {
		c.transferData()
	}
	start, period := c.frameStart, c.framePeriod
	c.mu.Unlock()

	c.delay(start, period)
	return nil
}

// checkPlaylist hot-swaps the processor when the current playlist item's
// (name, args) identity differs from the loaded one. The stored effective
// max is re-applied so brightness scaling survives the swap.
func (c *Controller) checkPlaylist() {
	item := c.playlists.Current().GetCurrent()
	if item == nil {
		return
	}
	if item.Name == c.currentName && reflect.DeepEqual(item.Args, c.currentArgs) {
		return
	}
	c.log.Debug().Str("processor", item.Name).Msg("loading processor")
	if err := c.setProcessor(item.Name, item.Args); err != nil {
		// A playlist item naming a broken or unknown processor degrades the
		// playlist, not the installation.
		c.log.Error().Err(err).Str("processor", item.Name).Msg("removing unloadable playlist item")
		c.removeCurrentItem()
		return
	}
	c.processor.SetMaxValue(c.maxEffective)
}

// generateFrame renders and stages one frame. The bool reports whether the
// staged data should be transferred this tick: a failed render is never
// sent, it evicts the offending playlist item instead.
func (c *Controller) generateFrame() (bool, error) {
	if c.processor == nil {
		return true, nil
	}

	rctx := render.Context{
		Clock:    c.frameStart,
		Downbeat: c.downbeat,
		Weights:  c.weights(),
		BPM:      c.bpm,
	}

	frame, err := c.processor.GetNextFrame(rctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// An interrupt is never reclassified as a processor failure.
			return false, err
		}
		c.log.Error().Err(err).Str("processor", c.currentName).Msg("error generating frame")
		c.log.Warn().Msg("removing processor due to error")
		c.removeCurrentItem()
		return false, nil
	}

	c.driver.SetLEDs(frame)
	return true, nil
}

func (c *Controller) removeCurrentItem() {
	pl := c.playlists.Current()
	if err := pl.Remove(pl.Position()); err != nil {
		c.log.Warn().Err(err).Msg("could not remove playlist item")
	}
}

// weights merges the hardware reading with any active synthetic overlay
// slots.
func (c *Controller) weights() []int {
	w := c.driver.GetWeights()
	if !c.syntheticActive {
		return w
	}
	for i := 0; i < len(w) && i < render.NumSquares; i++ {
		if v := c.syntheticWeights[i]; v != 0 {
			w[i] = v
		}
	}
	return w
}

func (c *Controller) transferData() {
	if err := c.driver.SendData(); err != nil {
		c.log.Warn().Err(err).Msg("send data failed")
	}
	if err := c.driver.ReadData(); err != nil {
		c.log.Warn().Err(err).Msg("read data failed")
	}
}

// delay sleeps out the remainder of the frame period. Overruns are only
// logged, never compensated.
func (c *Controller) delay(start time.Time, period time.Duration) {
	elapsed := c.clock.Now().Sub(start)
	if elapsed < period {
		c.clock.Sleep(period - elapsed)
	} else {
		c.log.Debug().Dur("over", elapsed-period).Msg("frame overran its period")
	}
}
