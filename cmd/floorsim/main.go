// floorsim plays a playlist headlessly against the fake driver on a virtual
// clock, printing one summary line per frame. Useful for checking a
// playlist file before putting it on the installation.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openfloor/floord/internal/controller"
	"github.com/openfloor/floord/internal/driver/fake"
	"github.com/openfloor/floord/internal/playlist"
	"github.com/openfloor/floord/internal/render"
	"github.com/openfloor/floord/internal/shows"
)

// simClock advances virtually: Sleep moves time forward without waiting.
type simClock struct {
	t time.Time
}

func (c *simClock) Now() time.Time        { return c.t }
func (c *simClock) Sleep(d time.Duration) { c.t = c.t.Add(d) }

func main() {
	var (
		playlistPath = flag.String("playlist", "", "path to a playlist JSON file")
		frames       = flag.Int("frames", 100, "number of frames to simulate")
	)
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	reg := render.NewRegistry()
	shows.RegisterAll(reg)

	var def *playlist.Playlist
	if *playlistPath != "" {
		p, err := playlist.FromFile(*playlistPath, reg, false)
		if err != nil {
			log.Fatal().Err(err).Msg("could not load playlist")
		}
		def = p
	} else {
		def = playlist.FromSingleItem(playlist.NewItem("Rainbow", "", 0, nil))
	}

	clk := &simClock{t: time.Now()}
	def.SetTimeFunc(clk.Now)

	drv := fake.New()
	pm := playlist.NewManager(def, "")
	ctl := controller.New(drv, pm, reg, clk)

	for i := 0; i < *frames; i++ {
		if err := ctl.RunOneFrame(); err != nil {
			log.Fatal().Err(err).Msg("frame loop stopped")
		}
		printFrame(i, clk.t, drv.LastSent)
	}
}

func printFrame(n int, t time.Time, frame render.Frame) {
	if len(frame) == 0 {
		fmt.Printf("[frame %04d] %s (no frame)\n", n, t.Format("15:04:05.000"))
		return
	}
	var r, g, b float64
	for i := range frame {
		r += float64(frame[i].R)
		g += float64(frame[i].G)
		b += float64(frame[i].B)
	}
	c := float64(len(frame))
	fmt.Printf("[frame %04d] %s avg=(%.1f,%.1f,%.1f) first=(%d,%d,%d)\n",
		n, t.Format("15:04:05.000"), r/c, g/c, b/c, frame[0].R, frame[0].G, frame[0].B)
}
