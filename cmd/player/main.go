// Package main provides the player entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/musicstream/internal/app/filter"
	"github.com/osa030/musicstream/internal/app/notification"
	"github.com/osa030/musicstream/internal/app/playback"
	"github.com/osa030/musicstream/internal/domain/playlist"
	"github.com/osa030/musicstream/internal/domain/track"
	"github.com/osa030/musicstream/internal/infra/config"
	"github.com/osa030/musicstream/internal/infra/decoder"
	"github.com/osa030/musicstream/internal/infra/device"
	"github.com/osa030/musicstream/internal/infra/device/backend"
	"github.com/osa030/musicstream/internal/infra/logger"
)

var (
	app         = kingpin.New("musicstream", "Streaming audio player")
	configPath  = app.Flag("config", "Path to config file (default: built-in settings)").String()
	verbose     = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile     = app.Flag("logfile", "Path to log file (default: stderr)").String()
	backendName = app.Flag("backend", "Audio backend: "+strings.Join(backend.Names, ", ")).String()

	playCmd    = app.Command("play", "Play audio files in order (default)").Default()
	playFiles  = playCmd.Arg("files", "Audio files (default: configured playlist)").Strings()
	playLoop   = playCmd.Flag("loop", "Loop each track until skipped").Bool()
	playVolume = playCmd.Flag("volume", "Initial volume (gain, 1 is unchanged)").Default("1").Float32()
	playOffset = playCmd.Flag("offset", "Start offset of the first track").Duration()
	playParams = playCmd.Flag("param", "Stream parameter as key=value, e.g. volume=0.5").Short('p').StringMap()

	infoCmd   = app.Command("info", "Show track metadata and exit")
	infoFiles = infoCmd.Arg("files", "Audio files").Required().Strings()

	listFiltersCmd = app.Command("list-filters", "List available playlist filters and exit")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listFiltersCmd.FullCommand() {
		printFilters()
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	loggerConfig := logger.Config{
		Output: cfg.Logging.Output,
		Level:  cfg.Logging.Level,
		File:   cfg.Logging.File,
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = "file"
		loggerConfig.File = *logfile
	}
	closer, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	switch command {
	case infoCmd.FullCommand():
		err = runInfo(cfg, *infoFiles)
	default:
		err = runPlay(cfg)
	}
	if err != nil {
		zlog.Error().Err(err).Msg("player: exiting")
	}
	_ = closer.Close()
	if err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file when given and applies flag overrides.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		cfg, err = config.Default()
	}
	if err != nil {
		return nil, err
	}

	if *backendName != "" {
		cfg.Device.Backend = *backendName
		if err := cfg.Validate(); err != nil {
			return nil, errors.Wrap(err, "invalid --backend")
		}
	}
	return cfg, nil
}

// streamConfig converts the file settings into worker settings.
func streamConfig(c config.StreamConfig) playback.Config {
	return playback.Config{
		BufferCount:       c.BufferCount,
		ChunkFrames:       c.ChunkFrames,
		WakeInterval:      c.WakeInterval(),
		JoinTimeout:       c.JoinTimeout(),
		UnderrunWarnAfter: c.UnderrunWarnAfter,
	}
}

// buildPlaylist probes every path and runs the configured filter chain over
// the result. Tracks that cannot be probed are skipped.
func buildPlaylist(cfg *config.Config, name string, paths []string) (*playlist.Playlist, error) {
	chain, err := filter.NewChainFromConfig(cfg.Filters)
	if err != nil {
		return nil, errors.Wrap(err, "invalid filter config")
	}

	list := &playlist.Playlist{Name: name}
	for _, path := range paths {
		t, err := decoder.Probe(path)
		if err != nil {
			zlog.Warn().Err(err).Str("path", path).Msg("player: skipping track")
			continue
		}
		list.Tracks = append(list.Tracks, t)
	}

	admitted, rejected := chain.Apply(context.Background(), list)
	for _, r := range rejected {
		zlog.Warn().Str("path", r.Track.Path).Str("code", r.Code).Msg("player: track filtered")
	}
	if admitted.Len() == 0 {
		return nil, errors.New("no playable tracks")
	}
	return admitted, nil
}

// printFilters prints available filters.
func printFilters() {
	registered := filter.GetRegistered()
	names := make([]string, 0, len(registered))
	for name := range registered {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("Available Filters:")
	for _, name := range names {
		f := registered[name]()
		codes := strings.Join(f.ReturnCodes(), ", ")
		fmt.Printf("  %-24s - %s [codes: %s]\n", f.Name(), f.Description(), codes)
	}
}

func runInfo(cfg *config.Config, paths []string) error {
	list, err := buildPlaylist(cfg, "info", paths)
	if err != nil {
		return err
	}

	for _, t := range list.Tracks {
		fmt.Printf("%-30s %-6s %-24s %8s  %d frames\n",
			t.Title, t.Codec, t.Format.String(), t.Duration.Round(time.Millisecond), t.Frames)
	}
	fmt.Printf("%d tracks, total %s\n", list.Len(), list.TotalDuration().Round(time.Second))
	return nil
}

func runPlay(cfg *config.Config) error {
	paths, name := *playFiles, "command line"
	if len(paths) == 0 {
		paths, name = cfg.Playlist.Tracks, cfg.Playlist.Name
	}
	if len(paths) == 0 {
		return errors.New("no tracks to play")
	}

	params, err := parseParams(*playParams)
	if err != nil {
		return err
	}

	list, err := buildPlaylist(cfg, name, paths)
	if err != nil {
		return err
	}
	zlog.Info().Msgf("Playing %s: %d tracks, %s", list.Name, list.Len(), list.TotalDuration().Round(time.Second))

	dev, err := backend.New(cfg.Device.Backend, cfg.Device.Period())
	if err != nil {
		return errors.Wrapf(err, "failed to open %s backend", cfg.Device.Backend)
	}
	defer func() {
		if err := dev.Close(); err != nil {
			zlog.Warn().Err(err).Msg("player: failed to close device")
		}
	}()

	mgr := notification.NewManager()
	defer mgr.Close()
	mgr.Subscribe(notification.StreamFunc(printNotification))

	p := &player{
		cfg:    streamConfig(cfg.Stream),
		dev:    dev,
		mgr:    mgr,
		params: params,
		loop:   *playLoop,
		volume: *playVolume,
	}
	if cfg.Stream.Preload {
		p.cache = decoder.NewCache()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	commands := readCommands(os.Stdin, func(err error) {
		fmt.Fprintln(os.Stderr, err)
	})

	for i, t := range list.Tracks {
		var offset time.Duration
		if i == 0 {
			offset = *playOffset
		}

		quit, err := p.playTrack(t, offset, sigCh, commands)
		if err != nil {
			zlog.Error().Err(err).Str("path", t.Path).Msg("player: track failed")
		}
		if quit {
			break
		}
	}
	return nil
}

type player struct {
	cfg    playback.Config
	dev    device.Device
	mgr    *notification.Manager
	cache  *decoder.Cache // nil unless preloading
	params *streamParams
	loop   bool
	volume float32
}

func (p *player) open(path string) (*playback.Stream, error) {
	if p.cache == nil {
		return playback.NewStream(path, p.dev, p.cfg)
	}
	data, err := p.cache.Get(path)
	if err != nil {
		return nil, err
	}
	return playback.NewStreamFromData(data, p.dev, p.cfg)
}

// playTrack plays one track until it ends, the user skips or quits, or a
// signal arrives. It reports whether playback of the list should stop.
func (p *player) playTrack(t track.Track, offset time.Duration, sigCh <-chan os.Signal, commands <-chan consoleCommand) (bool, error) {
	s, err := p.open(t.Path)
	if err != nil {
		return false, errors.Wrapf(err, "failed to open %s", t.Path)
	}
	defer func() {
		if err := s.Close(); err != nil {
			zlog.Warn().Err(err).Str("stream", s.ID()).Msg("player: close failed")
		}
	}()

	done := make(chan playback.Event, 1)
	subID := p.mgr.Subscribe(notification.StreamFunc(func(n *notification.Notification) error {
		if n.Event.Stream != s.ID() {
			return nil
		}
		if n.Event.Type == playback.EventEndOfStream || n.Event.Type == playback.EventError {
			select {
			case done <- n.Event:
			default:
			}
		}
		return nil
	}))
	defer p.mgr.Unsubscribe(subID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.mgr.Relay(ctx, t.Title, s.Events())

	if err := s.SetVolume(p.volume); err != nil {
		return false, err
	}
	if err := p.params.apply(s); err != nil {
		return false, err
	}
	s.SetLooping(p.loop)
	if offset > 0 {
		if err := s.SetOffsetDuration(offset); err != nil {
			return false, err
		}
	}
	if err := s.Play(); err != nil {
		return false, err
	}
	fmt.Printf("> %s (%s)\n", t.Title, t.Duration.Round(time.Second))

	for {
		select {
		case sig := <-sigCh:
			zlog.Info().Msgf("Received %s, stopping", sig)
			return true, nil
		case e := <-done:
			if e.Type == playback.EventError {
				return false, e.Err
			}
			return false, nil
		case cmd, ok := <-commands:
			if !ok {
				// stdin closed; keep playing without console control
				commands = nil
				continue
			}
			switch cmd.kind {
			case cmdQuit:
				return true, nil
			case cmdNext:
				return false, nil
			}
			if err := control(s, cmd); err != nil {
				fmt.Fprintln(os.Stderr, err)
			}
		}
	}
}

// control applies a console command to the playing stream.
func control(s *playback.Stream, cmd consoleCommand) error {
	switch cmd.kind {
	case cmdToggle:
		if s.IsPlaying() {
			return s.Pause()
		}
		return s.Play()
	case cmdStop:
		return s.Stop()
	case cmdPlay:
		return s.Play()
	case cmdRestart:
		// Streams of unknown length cannot seek; stopping rewinds them.
		rewind := s.Stop
		if s.Frames() > 0 {
			rewind = func() error { return s.SetOffset(0) }
		}
		if err := rewind(); err != nil {
			return err
		}
		return s.Play()
	case cmdLoop:
		s.SetLooping(!s.IsLooping())
		fmt.Printf("loop %t\n", s.IsLooping())
	case cmdSeek:
		return s.SetOffsetDuration(cmd.offset)
	case cmdVolume:
		return s.SetVolume(cmd.volume)
	case cmdStatus:
		fmt.Printf("%s %s / %s loop=%t volume=%.2f underruns=%d\n",
			s.State(), s.OffsetDuration().Round(time.Second), s.Duration().Round(time.Second),
			s.IsLooping(), s.Volume(), s.Underruns())
	}
	return nil
}

// printNotification writes one event line to stdout.
func printNotification(n *notification.Notification) error {
	line := fmt.Sprintf("[%04d] %s: %s", n.SequenceNo, n.Track, n.Event.Type)
	switch n.Event.Type {
	case playback.EventStateChanged:
		line += " -> " + n.Event.State.String()
	case playback.EventSeeked, playback.EventLooped:
		line += fmt.Sprintf(" @%d", n.Event.Offset)
	case playback.EventError:
		line += fmt.Sprintf(": %v", n.Event.Err)
	}
	fmt.Println(line)
	return nil
}
