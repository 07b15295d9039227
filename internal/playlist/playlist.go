package playlist

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openfloor/floord/internal/render"
)

var (
	// ErrOutOfRange is returned for navigation or removal at an invalid index.
	ErrOutOfRange = errors.New("position out of range")
	// ErrLastItem is returned when removing the only remaining item.
	ErrLastItem = errors.New("cannot remove the last item in playlist")
)

// Playlist is an ordered queue of items with a cursor and a duration-driven
// auto-advance deadline. It is a pull-based state machine: GetCurrent moves
// the cursor when the deadline has passed, so staleness is bounded by the
// caller's poll interval. Not safe for concurrent use; the controller is the
// serialization point.
type Playlist struct {
	Title string

	queue       []*Item
	position    int       // -1 before first access
	nextAdvance time.Time // zero means play indefinitely
	running     bool

	now func() time.Time
	log zerolog.Logger
}

func New(title string) *Playlist {
	return &Playlist{
		Title:    title,
		position: -1,
		running:  true,
		now:      time.Now,
		log:      log.With().Str("component", "playlist").Str("title", title).Logger(),
	}
}

// FromFile loads a playlist from a stored file, skipping unknown processors.
func FromFile(path string, reg *render.Registry, strict bool) (*Playlist, error) {
	p := New("Playlist")
	if err := p.LoadFile(path, reg, strict); err != nil {
		return nil, err
	}
	return p, nil
}

// FromSingleItem wraps one item in a playlist.
func FromSingleItem(item *Item) *Playlist {
	p := New("Playlist")
	p.Append(item)
	return p
}

// SetTimeFunc replaces the wall-clock source, for tests and simulation.
func (p *Playlist) SetTimeFunc(now func() time.Time) { p.now = now }

func (p *Playlist) Len() int { return len(p.queue) }

func (p *Playlist) Position() int { return p.position }

func (p *Playlist) NextAdvance() time.Time { return p.nextAdvance }

func (p *Playlist) IsRunning() bool { return p.running }

// Items returns a copy of the queue for inspection.
func (p *Playlist) Items() []*Item {
	out := make([]*Item, len(p.queue))
	copy(out, p.queue)
	return out
}

func (p *Playlist) Clear() {
	p.position = -1
	p.nextAdvance = time.Time{}
	p.queue = nil
}

// Append adds an item at the end and returns its index.
func (p *Playlist) Append(item *Item) int {
	p.queue = append(p.queue, item)
	return len(p.queue) - 1
}

// InsertNext adds an item at the current cursor position (or index 0 if the
// cursor is unset) and returns the index it was inserted at. The inserted
// item becomes the current one on the next poll.
func (p *Playlist) InsertNext(item *Item) int {
	pos := p.position
	if pos < 0 {
		pos = 0
	}
	p.queue = append(p.queue, nil)
	copy(p.queue[pos+1:], p.queue[pos:])
	p.queue[pos] = item
	return pos
}

// GetCurrent returns the item the cursor points to, advancing first if this
// is the first poll ever or the deadline has passed. Returns nil when the
// playlist is empty or the cursor could not be placed (stopped playlist
// before first access).
func (p *Playlist) GetCurrent() *Item {
	if len(p.queue) == 0 {
		return nil
	}
	if p.position < 0 {
		p.Advance()
	} else if !p.nextAdvance.IsZero() && p.now().After(p.nextAdvance) {
		p.Advance()
	}
	if p.position < 0 {
		return nil
	}
	return p.queue[p.position]
}

// Advance moves the cursor forward one position, wrapping at the end.
func (p *Playlist) Advance() {
	if len(p.queue) == 0 {
		return
	}
	pos := 0
	if p.position >= 0 {
		pos = (p.position + 1) % len(p.queue)
	}
	_ = p.GoTo(pos)
}

// Previous moves the cursor back one position, wrapping at the start.
func (p *Playlist) Previous() {
	if len(p.queue) == 0 {
		return
	}
	pos := 0
	if p.position >= 0 {
		pos = (p.position - 1 + len(p.queue)) % len(p.queue)
	}
	_ = p.GoTo(pos)
}

// GoTo places the cursor at position and recomputes the deadline from that
// item's duration. It is a no-op while the playlist is stopped.
func (p *Playlist) GoTo(position int) error {
	if !p.running {
		return nil
	}
	if position < 0 || position >= len(p.queue) {
		return fmt.Errorf("%w: %d (length %d)", ErrOutOfRange, position, len(p.queue))
	}
	p.position = position

	current := p.queue[p.position]
	if current.Duration > 0 {
		p.nextAdvance = p.now().Add(current.Duration)
	} else {
		p.nextAdvance = time.Time{}
	}

	p.log.Info().Str("item", current.Title).Int("position", p.position).Msg("advanced")
	return nil
}

// Remove deletes the item at position. Removing the only remaining item is
// forbidden. Removing the current item auto-advances so playback continues
// with whatever is now at that index.
func (p *Playlist) Remove(position int) error {
	if position < 0 || position >= len(p.queue) {
		return fmt.Errorf("%w: %d (length %d)", ErrOutOfRange, position, len(p.queue))
	}
	if len(p.queue) == 1 {
		return ErrLastItem
	}

	p.queue = append(p.queue[:position], p.queue[position+1:]...)
	if p.position < 0 {
		return nil
	}
	switch {
	case position < p.position:
		// Items shifted left underneath the cursor.
		p.position--
	case position == p.position:
		p.position--
		p.Advance()
	}
	return nil
}

// Stop pauses the playlist, stashing the time remaining on the current item
// so Start can restore it.
func (p *Playlist) Stop() {
	if p.position >= 0 && p.position < len(p.queue) {
		current := p.queue[p.position]
		if !p.nextAdvance.IsZero() {
			current.remaining = p.nextAdvance.Sub(p.now())
			current.hasRemaining = true
		} else {
			current.hasRemaining = false
		}
	}
	p.nextAdvance = time.Time{}
	p.running = false
}

// Start resumes the playlist, restoring any stashed remaining duration.
func (p *Playlist) Start() {
	if p.position >= 0 && p.position < len(p.queue) {
		current := p.queue[p.position]
		if current.hasRemaining {
			p.nextAdvance = p.now().Add(current.remaining)
			current.hasRemaining = false
		} else {
			p.nextAdvance = time.Time{}
		}
	}
	p.running = true
}

// Stay clears the deadline so the current item plays indefinitely.
func (p *Playlist) Stay() {
	p.nextAdvance = time.Time{}
}

// fileSpec is the stored shape of a playlist.
type fileSpec struct {
	Title string     `json:"title"`
	Queue []itemSpec `json:"queue"`
}

// Load replaces the queue from serialized playlist data. Item names must
// resolve against the registry; unknown names are skipped with a warning,
// or fail the whole load in strict mode.
func (p *Playlist) Load(data []byte, reg *render.Registry, strict bool) error {
	var doc fileSpec
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse playlist: %w", err)
	}
	p.Clear()
	for _, s := range doc.Queue {
		if !reg.Has(s.Name) {
			if strict {
				return fmt.Errorf("%w: %q", render.ErrUnknownProcessor, s.Name)
			}
			p.log.Warn().Str("processor", s.Name).Msg("skipping unknown processor")
			continue
		}
		p.Append(itemFromSpec(s))
	}
	return nil
}

// LoadFile replaces the queue from a playlist file.
func (p *Playlist) LoadFile(path string, reg *render.Registry, strict bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return p.Load(data, reg, strict)
}

// Save serializes the playlist in the stored descriptor shape.
func (p *Playlist) Save() ([]byte, error) {
	doc := fileSpec{Title: p.Title, Queue: make([]itemSpec, 0, len(p.queue))}
	for _, it := range p.queue {
		doc.Queue = append(doc.Queue, it.toSpec())
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// SaveFile writes the playlist to a file.
func (p *Playlist) SaveFile(path string) error {
	b, err := p.Save()
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}
