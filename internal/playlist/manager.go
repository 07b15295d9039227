package playlist

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openfloor/floord/internal/render"
)

// DefaultName is the reserved name of the always-present default playlist.
const DefaultName = "default"

var (
	// ErrBadName is returned when a playlist name fails the identifier pattern.
	ErrBadName = errors.New("illegal playlist name")
	// ErrDefaultReadOnly is returned when saving the default playlist.
	ErrDefaultReadOnly = errors.New("the default playlist cannot be saved")
	// ErrUnknownPlaylist is returned when a named playlist does not exist.
	ErrUnknownPlaylist = errors.New("unknown playlist")
)

var nameRE = regexp.MustCompile(`^[0-9a-zA-Z_\s]+$`)

// Manager owns the default playlist plus user playlists loaded from a
// directory, and tracks which one is current. Navigation methods proxy to
// the current playlist.
type Manager struct {
	defaultPlaylist *Playlist
	userDir         string
	user            map[string]*Playlist
	current         *Playlist
	log             zerolog.Logger
}

func NewManager(defaultPlaylist *Playlist, userDir string) *Manager {
	return &Manager{
		defaultPlaylist: defaultPlaylist,
		userDir:         userDir,
		user:            map[string]*Playlist{},
		current:         defaultPlaylist,
		log:             log.With().Str("component", "playlist-manager").Logger(),
	}
}

// Initialize eagerly loads every user playlist file from the directory. The
// filename stem, lower-cased, becomes the playlist name. Loads are lenient:
// unknown processors are dropped with a warning.
func (m *Manager) Initialize(reg *render.Registry) error {
	if m.userDir == "" {
		return nil
	}
	entries, err := os.ReadDir(m.userDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		name := strings.ToLower(strings.TrimSuffix(e.Name(), ".json"))
		if name == DefaultName {
			continue
		}
		p := New(name)
		if err := p.LoadFile(filepath.Join(m.userDir, e.Name()), reg, false); err != nil {
			m.log.Warn().Err(err).Str("file", e.Name()).Msg("skipping unreadable playlist")
			continue
		}
		m.user[name] = p
		m.log.Info().Str("playlist", name).Msg("loaded playlist")
	}
	return nil
}

// Get returns the playlist with the given name, or nil. The default name
// always resolves to the default playlist.
func (m *Manager) Get(name string) *Playlist {
	if name == DefaultName {
		return m.defaultPlaylist
	}
	return m.user[name]
}

// All returns every playlist keyed by name, default included.
func (m *Manager) All() map[string]*Playlist {
	out := map[string]*Playlist{DefaultName: m.defaultPlaylist}
	for k, v := range m.user {
		out[k] = v
	}
	return out
}

// Save writes a user playlist back to its file. The default playlist and
// names failing the identifier pattern are rejected.
func (m *Manager) Save(name string) error {
	name = strings.ToLower(name)
	if !nameRE.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrBadName, name)
	}
	if name == DefaultName {
		return ErrDefaultReadOnly
	}
	p, ok := m.user[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPlaylist, name)
	}
	return p.SaveFile(filepath.Join(m.userDir, name+".json"))
}

// Current returns the playlist navigation currently applies to.
func (m *Manager) Current() *Playlist { return m.current }

// SetCurrent switches which playlist is current.
func (m *Manager) SetCurrent(name string) error {
	if name == DefaultName {
		m.current = m.defaultPlaylist
		return nil
	}
	p, ok := m.user[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPlaylist, name)
	}
	m.current = p
	return nil
}

// Navigation proxies to the current playlist.

func (m *Manager) Advance()  { m.current.Advance() }
func (m *Manager) Previous() { m.current.Previous() }
func (m *Manager) Start()    { m.current.Start() }
func (m *Manager) Stop()     { m.current.Stop() }
func (m *Manager) Stay()     { m.current.Stay() }

func (m *Manager) GoTo(position int) error { return m.current.GoTo(position) }
