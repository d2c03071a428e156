// Package session owns the state of a single counting run: the line crossing counter,
// an optional event sink and the logger. A Session is driven either frame by frame
// via ProcessFrame or by Run, which processes frames on its own goroutine.
package session

import (
	"context"
	"time"

	"github.com/LdDl/linecounter/counter"
	"github.com/LdDl/linecounter/internal/config"
	"github.com/LdDl/linecounter/internal/overlay"
	"github.com/LdDl/linecounter/internal/source"
	"github.com/LdDl/linecounter/internal/store"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// EventSink receives session lifecycle, crossings and tallies. *store.Store implements it
type EventSink interface {
	StartSession(ctx context.Context, info store.SessionInfo) error
	RecordCrossings(ctx context.Context, sessionID uuid.UUID, events []counter.CrossingEvent[string]) error
	RecordTally(ctx context.Context, sessionID uuid.UUID, frameIndex int, tally counter.Tally) error
	FinishSession(ctx context.Context, sessionID uuid.UUID, finishedAt time.Time) error
}

// Snapshot is the result of processing a single frame
type Snapshot struct {
	FrameIndex int
	Tally      counter.Tally
	Events     []counter.CrossingEvent[string]
	Skipped    []counter.SkippedObservation[string]
	// Detections dropped by class or confidence filter
	Filtered int
	// Progress in percent, -1 when total number of frames is unknown
	Progress int
}

// Session is not safe for concurrent use. While Run is active only the returned
// snapshots should be used to read counts.
type Session struct {
	ID          uuid.UUID
	sourceName  string
	counter     *counter.LineCrossingCounter[string]
	anchor      counter.Anchor
	filter      source.Filter
	traces      *overlay.Traces
	sink        EventSink
	logger      zerolog.Logger
	logEvery    int
	bufferSize  int
	totalFrames int
	processed   int
	lastFrame   int
}

// New creates session. Frame size from info (when known) overrides configured frame size.
// Sink may be nil.
func New(cfg *config.Config, info source.Info, sourceName string, sink EventSink, logger zerolog.Logger) (*Session, error) {
	runCfg := *cfg
	if info.Width > 0 && info.Height > 0 {
		runCfg.SetFrameSize(info.Width, info.Height)
	}
	lc, err := config.NewCounter[string](&runCfg)
	if err != nil {
		return nil, errors.Wrap(err, "can't create line crossing counter")
	}
	anchor, err := runCfg.GetAnchor()
	if err != nil {
		return nil, err
	}
	var traces *overlay.Traces
	if length := runCfg.GetTraceLength(); length > 0 {
		traces = overlay.NewTraces(length, runCfg.GetEvictionHorizon())
	}
	id := uuid.New()
	return &Session{
		ID:          id,
		sourceName:  sourceName,
		counter:     lc,
		anchor:      anchor,
		filter:      runCfg.GetFilter(),
		traces:      traces,
		sink:        sink,
		logger:      logger.With().Str("session_id", id.String()).Logger(),
		logEvery:    runCfg.GetLogEvery(),
		bufferSize:  runCfg.GetBufferSize(),
		totalFrames: info.TotalFrames,
		lastFrame:   -1,
	}, nil
}

// Line returns reference line of the counter
func (s *Session) Line() counter.Line {
	return s.counter.Line()
}

// Tally returns current counts
func (s *Session) Tally() counter.Tally {
	return s.counter.GetTally()
}

// Convention returns direction convention of the counter
func (s *Session) Convention() counter.DirectionConvention {
	return s.counter.Convention()
}

// Traces returns recent positions of tracks, nil when traces are disabled
func (s *Session) Traces() *overlay.Traces {
	return s.traces
}

// Reset restarts counting without recreating the session
func (s *Session) Reset() {
	s.counter.Reset()
	if s.traces != nil {
		s.traces.Reset()
	}
	s.processed = 0
	s.lastFrame = -1
}

// Start records session in the sink
func (s *Session) Start(ctx context.Context) error {
	line := s.counter.Line()
	s.logger.Info().
		Str("source", s.sourceName).
		Float64("line_start_x", line.Start.X).Float64("line_start_y", line.Start.Y).
		Float64("line_end_x", line.End.X).Float64("line_end_y", line.End.Y).
		Str("direction", s.counter.Convention().String()).
		Str("anchor", s.anchor.String()).
		Msg("session started")
	if s.sink == nil {
		return nil
	}
	err := s.sink.StartSession(ctx, store.SessionInfo{
		ID:        s.ID,
		Source:    s.sourceName,
		Line:      line,
		Direction: s.counter.Convention(),
		StartedAt: time.Now(),
	})
	return errors.Wrap(err, "can't record session start")
}

// Finish stores final tally and marks session as finished
func (s *Session) Finish(ctx context.Context) error {
	tally := s.counter.GetTally()
	s.logger.Info().
		Int("frames", s.processed).
		Int("in", tally.In).Int("out", tally.Out).Int("total", tally.Total()).
		Msg("session finished")
	if s.sink == nil {
		return nil
	}
	if s.lastFrame >= 0 {
		if err := s.sink.RecordTally(ctx, s.ID, s.lastFrame, tally); err != nil {
			return errors.Wrap(err, "can't record final tally")
		}
	}
	return errors.Wrap(s.sink.FinishSession(ctx, s.ID, time.Now()), "can't record session finish")
}

// ProcessFrame feeds frame to the counter. Snapshot is valid even when error
// is returned: errors come from the sink only.
func (s *Session) ProcessFrame(ctx context.Context, frame source.Frame) (Snapshot, error) {
	frame = s.filter.Apply(frame)
	observations := frame.Observations(s.anchor)
	events, skipped := s.counter.Update(observations, frame.Index)
	if s.traces != nil {
		s.traces.Add(frame.Index, observations)
	}
	s.processed++
	s.lastFrame = frame.Index
	tally := s.counter.GetTally()
	snapshot := Snapshot{
		FrameIndex: frame.Index,
		Tally:      tally,
		Events:     events,
		Skipped:    skipped,
		Filtered:   frame.Filtered,
		Progress:   s.progress(),
	}

	for _, skip := range skipped {
		s.logger.Warn().Err(skip.Err).Int("frame", frame.Index).Int("index", skip.Index).Str("track_id", skip.Observation.ID).Msg("observation skipped")
	}
	for _, event := range events {
		s.logger.Debug().Int("frame", event.FrameIndex).Str("track_id", event.TrackID).Str("direction", event.Direction.String()).Msg("line crossed")
	}
	periodic := s.logEvery > 0 && frame.Index%s.logEvery == 0
	if periodic {
		s.logger.Info().Int("frame", frame.Index).Int("progress", snapshot.Progress).Int("in", tally.In).Int("out", tally.Out).Msg("processing frame")
	}

	if s.sink == nil {
		return snapshot, nil
	}
	return snapshot, s.record(ctx, frame.Index, events, tally, len(events) > 0 || periodic)
}

// record passes frame results to the sink. A panicking sink is turned into error
func (s *Session) record(ctx context.Context, frameIndex int, events []counter.CrossingEvent[string], tally counter.Tally, withTally bool) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("sink panic on frame %d: %v", frameIndex, r)
		}
	}()
	if err := s.sink.RecordCrossings(ctx, s.ID, events); err != nil {
		return errors.Wrapf(err, "can't record crossings of frame %d", frameIndex)
	}
	if withTally {
		if err := s.sink.RecordTally(ctx, s.ID, frameIndex, tally); err != nil {
			return errors.Wrapf(err, "can't record tally of frame %d", frameIndex)
		}
	}
	return nil
}

// Run processes frames on a separated goroutine. Returned channel is buffered with
// configured buffer size and is closed when frames is closed or ctx is done.
// Frame errors are logged and processing continues.
func (s *Session) Run(ctx context.Context, frames <-chan source.Frame) <-chan Snapshot {
	out := make(chan Snapshot, s.bufferSize)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case frame, ok := <-frames:
				if !ok {
					return
				}
				snapshot, err := s.ProcessFrame(ctx, frame)
				if err != nil {
					s.logger.Error().Err(err).Int("frame", frame.Index).Msg("error processing frame")
				}
				select {
				case out <- snapshot:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func (s *Session) progress() int {
	if s.totalFrames <= 0 {
		return -1
	}
	progress := s.processed * 100 / s.totalFrames
	if progress > 100 {
		return 100
	}
	return progress
}
