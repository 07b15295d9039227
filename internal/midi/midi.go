// Package midi maps inbound MIDI events onto the controller's mutation
// API: low notes toggle synthetic square weights, a block of high notes
// drives playlist transport, and the first four control-change numbers feed
// the ranged-value slots.
package midi

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openfloor/floord/internal/controller"
	"github.com/openfloor/floord/internal/render"
)

// Command identifies the subset of MIDI commands the floor reacts to.
type Command string

const (
	NoteOn        Command = "note_on"
	NoteOff       Command = "note_off"
	ControlChange Command = "control_mode_change"
)

// Transport note numbers, placed just above the square range.
const (
	NoteAdvance  = 96
	NotePrevious = 97
	NoteStop     = 98
	NoteStart    = 99
	NoteStay     = 100
)

// Event is one decoded MIDI message.
type Event struct {
	Command  Command
	Note     int
	Velocity int
	Control  int
	Value    int
}

// Dispatcher routes events into the controller.
type Dispatcher struct {
	ctl *controller.Controller
	log zerolog.Logger
}

func NewDispatcher(ctl *controller.Controller) *Dispatcher {
	return &Dispatcher{
		ctl: ctl,
		log: log.With().Str("component", "midi").Logger(),
	}
}

// Handle applies one event. Unrecognized commands and notes are logged and
// dropped; MIDI hardware is noisy by nature.
func (d *Dispatcher) Handle(ev Event) {
	switch ev.Command {
	case NoteOn:
		d.handleNoteOn(ev)
	case NoteOff:
		d.handleNoteOff(ev)
	case ControlChange:
		d.ctl.HandleRangedValue(ev.Control, ev.Value)
	default:
		d.log.Debug().Str("command", string(ev.Command)).Msg("ignoring unsupported command")
	}
}

func (d *Dispatcher) handleNoteOn(ev Event) {
	switch {
	case ev.Note >= 0 && ev.Note < render.NumSquares:
		// A note-on with zero velocity is a note-off in disguise.
		if ev.Velocity == 0 {
			d.ctl.SquareWeightOff(ev.Note)
			return
		}
		d.ctl.SquareWeightOn(ev.Note)
	case ev.Note == NoteAdvance:
		d.ctl.AdvancePlaylist()
	case ev.Note == NotePrevious:
		d.ctl.PreviousPlaylist()
	case ev.Note == NoteStop:
		d.ctl.StopPlaylist()
	case ev.Note == NoteStart:
		d.ctl.StartPlaylist()
	case ev.Note == NoteStay:
		d.ctl.StayPlaylist()
	default:
		d.log.Debug().Int("note", ev.Note).Msg("unmapped note")
	}
}

func (d *Dispatcher) handleNoteOff(ev Event) {
	if ev.Note >= 0 && ev.Note < render.NumSquares {
		d.ctl.SquareWeightOff(ev.Note)
	}
}

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// NoteName renders a MIDI note number in conventional octave notation,
// where note 0 is C-1 and note 60 is C4.
func NoteName(note int) string {
	if note < 0 || note > 127 {
		return fmt.Sprintf("note(%d)", note)
	}
	return fmt.Sprintf("%s%d", noteNames[note%12], note/12-1)
}
