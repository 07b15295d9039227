package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/physic"

	"github.com/openfloor/floord/internal/config"
	"github.com/openfloor/floord/internal/controller"
	floordriver "github.com/openfloor/floord/internal/driver"
	"github.com/openfloor/floord/internal/driver/fake"
	"github.com/openfloor/floord/internal/driver/spidev"
	"github.com/openfloor/floord/internal/playlist"
	"github.com/openfloor/floord/internal/render"
	"github.com/openfloor/floord/internal/shows"
	"github.com/openfloor/floord/internal/ws"
)

func main() {
	var (
		configPath  = flag.String("config", "config.yaml", "path to config.yaml")
		addr        = flag.String("addr", ":8080", "HTTP listen address")
		driverName  = flag.String("driver", "fake", "driver: spi | fake")
		playlistDir = flag.String("playlists", "playlists", "user playlist directory")
		defaultList = flag.String("playlist", "", "playlist file for the default playlist")
		brightness  = flag.Float64("brightness", 1.0, "global brightness 0..1")
		bpm         = flag.Float64("bpm", controller.DefaultBPM, "initial tempo")
		simOnly     = flag.Bool("sim-only", false, "force the fake driver (no hardware output)")
	)
	flag.Parse()

	// ---- Logging ----
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})

	// ---- Load config.yaml (optional) ----
	var cfg *config.Config
	if c, err := config.Load(*configPath); err != nil {
		log.Warn().Err(err).Str("path", *configPath).Msg("config load failed; proceeding with flags")
	} else {
		cfg = c
	}

	// ---- Effective params (config overrides flags where available) ----
	eAddr, eDriver := *addr, *driverName
	eDir, eList := *playlistDir, *defaultList
	eBright, eBPM := *brightness, *bpm
	spiDev := ""
	spiKHz := 0
	if cfg != nil {
		if cfg.Addr != "" {
			eAddr = cfg.Addr
		}
		if cfg.Driver != "" {
			eDriver = cfg.Driver
		}
		if cfg.PlaylistDir != "" {
			eDir = cfg.PlaylistDir
		}
		if cfg.DefaultPlaylist != "" {
			eList = cfg.DefaultPlaylist
		}
		if cfg.Brightness > 0 {
			eBright = cfg.Brightness
		}
		if cfg.BPM > 0 {
			eBPM = cfg.BPM
		}
		spiDev = cfg.SPI.Dev
		spiKHz = cfg.SPI.SpeedKHz
	}
	if *simOnly {
		eDriver = "fake"
	}

	// ---- Processor registry ----
	reg := render.NewRegistry()
	shows.RegisterAll(reg)

	// ---- Driver selection with fallback ----
	var drv floordriver.Driver
	switch eDriver {
	case "spi":
		d, err := spidev.Open(spiDev, physic.Frequency(spiKHz)*physic.KiloHertz)
		if err != nil {
			log.Warn().Err(err).Str("dev", spiDev).Msg("SPI init failed; falling back to fake driver")
			drv = fake.New()
		} else {
			drv = d
		}
	case "fake":
		drv = fake.New()
	default:
		log.Warn().Str("driver", eDriver).Msg("unknown driver; using fake")
		drv = fake.New()
	}

	// ---- Default playlist ----
	var def *playlist.Playlist
	if eList != "" {
		p, err := playlist.FromFile(eList, reg, false)
		if err != nil {
			log.Fatal().Err(err).Str("file", eList).Msg("could not load default playlist")
		}
		def = p
	} else {
		def = playlist.FromSingleItem(playlist.NewItem("Rainbow", "", 0, nil))
	}

	pm := playlist.NewManager(def, eDir)
	if err := pm.Initialize(reg); err != nil {
		log.Warn().Err(err).Str("dir", eDir).Msg("could not load user playlists")
	}

	// ---- Controller ----
	ctl := controller.New(drv, pm, reg, nil)
	if cfg != nil && cfg.FPS > 0 {
		ctl.SetFPS(cfg.FPS)
	}
	ctl.SetBPM(eBPM, time.Time{})
	if eBright < 1.0 {
		ctl.ScaleBrightness(eBright)
	}

	// ---- Control surface ----
	mux := http.NewServeMux()
	ws.NewServer(ctl).Routes(mux)
	srv := &http.Server{
		Addr:         eAddr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- ctl.Run(ctx) }()
	go func() {
		log.Info().Str("addr", eAddr).Str("driver", eDriver).Msg("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server crashed")
		}
	}()

	// ---- Graceful shutdown ----
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-ch:
		log.Info().Str("signal", s.String()).Msg("shutting down")
		cancel()
		<-errCh
	case err := <-errCh:
		log.Error().Err(err).Msg("playback loop stopped")
		cancel()
	}

	_ = srv.Close()
	if err := drv.Close(); err != nil {
		log.Warn().Err(err).Msg("driver close failed")
	}
}
