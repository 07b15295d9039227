// Package ws exposes the controller's mutation API over a websocket, plus a
// plain HTTP health endpoint. It is a thin adapter: every inbound message
// maps onto one controller call and gets a JSON reply.
package ws

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openfloor/floord/internal/controller"
)

type Server struct {
	ctl       *controller.Controller
	startTime time.Time
	log       zerolog.Logger
}

func NewServer(ctl *controller.Controller) *Server {
	return &Server{
		ctl:       ctl,
		startTime: time.Now(),
		log:       log.With().Str("component", "ws").Logger(),
	}
}

// Routes installs the handlers on a mux.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/control", s.HandleControlWS)
	mux.HandleFunc("/health", s.HandleHealth)
}

func (s *Server) HandleControlWS(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg map[string]any
		if err := json.Unmarshal(data, &msg); err != nil {
			s.log.Debug().Err(err).Msg("bad control message")
			continue
		}
		resp := s.Apply(msg)
		b, _ := json.Marshal(resp)
		conn.SetWriteDeadline(time.Now().Add(200 * time.Millisecond))
		_ = conn.WriteMessage(websocket.TextMessage, b)
	}
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.ctl.Status()
	resp := map[string]any{
		"uptime_s": time.Since(s.startTime).Seconds(),
		"status":   st,
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// Apply executes one control command and returns the reply payload.
// Configuration errors surface in the reply; everything else is ack'd with
// a status snapshot.
func (s *Server) Apply(msg map[string]any) map[string]any {
	cmd, _ := msg["cmd"].(string)
	var err error

	switch cmd {
	case "advance":
		s.ctl.AdvancePlaylist()
	case "previous":
		s.ctl.PreviousPlaylist()
	case "start":
		s.ctl.StartPlaylist()
	case "stop":
		s.ctl.StopPlaylist()
	case "stay":
		s.ctl.StayPlaylist()
	case "goto":
		err = s.ctl.GoToPlaylistItem(intField(msg, "position"))
	case "set_fps":
		s.ctl.SetFPS(intField(msg, "fps"))
	case "set_bpm":
		if bpm, ok := msg["bpm"].(float64); ok {
			s.ctl.SetBPM(bpm, time.Time{})
		}
	case "brightness":
		if f, ok := msg["factor"].(float64); ok {
			s.ctl.ScaleBrightness(f)
		}
	case "ranged":
		s.ctl.HandleRangedValue(intField(msg, "control"), intField(msg, "value"))
	case "square_on":
		s.ctl.SquareWeightOn(intField(msg, "index"))
	case "square_off":
		s.ctl.SquareWeightOff(intField(msg, "index"))
	case "set_playlist":
		name, _ := msg["name"].(string)
		err = s.ctl.SetCurrentPlaylist(name)
	case "save_playlist":
		name, _ := msg["name"].(string)
		err = s.ctl.SavePlaylist(name)
	case "set_processor":
		name, _ := msg["name"].(string)
		args, _ := msg["args"].(map[string]any)
		err = s.ctl.SetProcessor(name, args)
	default:
		return map[string]any{"error": "unknown command: " + cmd}
	}

	if err != nil {
		return map[string]any{"cmd": cmd, "error": err.Error()}
	}
	return map[string]any{"cmd": cmd, "status": s.ctl.Status()}
}

func intField(msg map[string]any, key string) int {
	if f, ok := msg[key].(float64); ok {
		return int(f)
	}
	return -1
}
