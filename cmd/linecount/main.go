package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/LdDl/linecounter/internal/config"
	"github.com/LdDl/linecounter/internal/overlay"
	"github.com/LdDl/linecounter/internal/session"
	"github.com/LdDl/linecounter/internal/source"
	"github.com/LdDl/linecounter/internal/store"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const streamWait = 200 * time.Millisecond

var (
	configPath  = flag.String("config", "", "Path to JSON configuration file")
	inputPath   = flag.String("input", "-", "Tracked observations as JSON lines ('-' for stdin)")
	dbPath      = flag.String("db", "", "SQLite database for crossing events (overrides db_path from config)")
	overlayPath = flag.String("overlay", "", "Write PNG with line and final counts")
	debug       = flag.Bool("debug", false, "Log every crossing")
)

func main() {
	flag.Parse()
	level := zerolog.InfoLevel
	if *debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()

	if err := run(logger); err != nil {
		logger.Error().Err(err).Msg("vehicle counting failed")
		os.Exit(1)
	}
}

func run(logger zerolog.Logger) error {
	cfg := config.Empty()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			return err
		}
	}

	input, name, err := openInput(*inputPath)
	if err != nil {
		return err
	}
	defer input.Close()

	reader := source.NewReader(input)
	info, hasInfo, err := reader.ReadHeader()
	if err != nil {
		return errors.Wrap(err, "can't read stream header")
	}
	if hasInfo {
		logger.Info().Int("width", info.Width).Int("height", info.Height).Int("fps", info.FPS).Int("total_frames", info.TotalFrames).Msg("video info")
	}

	var sink session.EventSink
	path := cfg.GetDBPath()
	if *dbPath != "" {
		path = *dbPath
	}
	if path != "" {
		st, err := store.Open(path)
		if err != nil {
			return err
		}
		defer st.Close()
		sink = st
	}

	s, err := session.New(cfg, info, name, sink, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := s.Start(ctx); err != nil {
		return err
	}

	frames := make(chan source.Frame, cfg.GetBufferSize())
	streamErr := make(chan error, 1)
	go func() {
		defer close(frames)
		streamErr <- source.Stream(ctx, reader, frames)
	}()

	last := session.Snapshot{Progress: -1}
	for snapshot := range s.Run(ctx, frames) {
		last = snapshot
	}
	if err := streamResult(ctx, streamErr); err != nil {
		logger.Error().Err(err).Msg("observation stream interrupted, partial results kept")
	}
	if ctx.Err() != nil {
		logger.Warn().Int("frame", last.FrameIndex).Msg("processing stopped")
	}

	if err := s.Finish(context.Background()); err != nil {
		return err
	}

	tally := s.Tally()
	if *overlayPath != "" {
		width, height := cfg.GetFrameWidth(), cfg.GetFrameHeight()
		if info.Width > 0 && info.Height > 0 {
			width, height = info.Width, info.Height
		}
		img := overlay.Blank(width, height)
		if traces := s.Traces(); traces != nil {
			overlay.DrawTraces(img, traces)
		}
		overlay.Draw(img, s.Line(), s.Convention(), tally)
		if err := writePNG(*overlayPath, img); err != nil {
			return err
		}
		logger.Info().Str("path", *overlayPath).Msg("overlay saved")
	}

	fmt.Printf("Cars IN: %d\nCars OUT: %d\nTotal Cars: %d\n", tally.In, tally.Out, tally.Total())
	return nil
}

// streamResult returns error of the stream goroutine. After cancellation the reader
// may still be blocked on input (e.g. stdin), so it is waited for only briefly.
func streamResult(ctx context.Context, streamErr <-chan error) error {
	var err error
	if ctx.Err() == nil {
		err = <-streamErr
	} else {
		select {
		case err = <-streamErr:
		case <-time.After(streamWait):
			return nil
		}
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func openInput(path string) (io.ReadCloser, string, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), "stdin", nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, "", errors.Wrap(err, "can't open input")
	}
	return file, path, nil
}

func writePNG(path string, img *image.RGBA) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "can't create overlay file")
	}
	if err := png.Encode(file, img); err != nil {
		file.Close()
		return errors.Wrap(err, "can't encode overlay")
	}
	return errors.Wrap(file.Close(), "can't close overlay file")
}
