package counter

import (
	"math"

	"github.com/pkg/errors"
)

const (
	// DefaultEvictionHorizon is number of absent frames after which track state is discarded
	DefaultEvictionHorizon = 30
	// DefaultMinCrossingFrames is number of consecutive observations on the new side needed to count a crossing
	DefaultMinCrossingFrames = 1
)

// TrackObservation is a single frame's report for one tracked object
type TrackObservation[K comparable] struct {
	ID       K
	Position Point
}

// NewObservation creates observation with given anchor of bounding box as position
func NewObservation[K comparable](id K, bbox Rectangle, anchor Anchor) TrackObservation[K] {
	return TrackObservation[K]{
		ID:       id,
		Position: bbox.Anchor(anchor),
	}
}

// TrackState is per-track memory held by the counter
type TrackState[K comparable] struct {
	ID K
	// Side the track was last observed on
	Side Side
	// Confirmed is the side where the track was first seen or which entry has been counted last
	Confirmed Side
	// HasCountedThisEpisode is true when entry into the current episode has been resolved (counted or absorbed)
	HasCountedThisEpisode bool
	// EpisodeFrames is number of observations in the current episode
	EpisodeFrames int
	FirstSeen     int
	LastSeen      int
}

// CrossingEvent is emitted once per counted crossing
type CrossingEvent[K comparable] struct {
	TrackID    K
	Direction  Direction
	FrameIndex int
}

// Tally holds cumulative counts
type Tally struct {
	In  int
	Out int
}

// Total returns sum of in and out counts
func (tally Tally) Total() int {
	return tally.In + tally.Out
}

// LineCrossingCounter counts tracks crossing the reference line.
// It is not safe for concurrent use: callers must serialize Update, Reset and reads.
type LineCrossingCounter[K comparable] struct {
	line Line
	// Perpendicular distance tolerance for "on the line" test
	epsilon float64
	// Max number of frames the track could be absent before its state is removed. Default is 30
	evictionHorizon int
	// Consecutive observations required on the new side. Default is 1
	minCrossingFrames int
	convention        DirectionConvention
	// Main storage
	tracks map[K]*TrackState[K]
	tally  Tally
}

// NewLineCrossingCounterDefault creates counter with default horizon, epsilon and direction convention
func NewLineCrossingCounterDefault[K comparable](start, end Point) (*LineCrossingCounter[K], error) {
	return NewLineCrossingCounter[K](start, end, DefaultEvictionHorizon, 0, NegativeToPositiveIn, DefaultMinCrossingFrames)
}

// NewLineCrossingCounter creates new instance of LineCrossingCounter.
// Zero epsilon selects DefaultEpsilonRatio of the line length.
func NewLineCrossingCounter[K comparable](start, end Point, evictionHorizon int, epsilon float64, convention DirectionConvention, minCrossingFrames int) (*LineCrossingCounter[K], error) {
	line, err := NewLine(start, end)
	if err != nil {
		return nil, err
	}
	if evictionHorizon <= 0 {
		return nil, errors.Wrapf(ErrInvalidConfiguration, "eviction horizon must be positive, got %d", evictionHorizon)
	}
	if epsilon < 0 || math.IsNaN(epsilon) || math.IsInf(epsilon, 0) {
		return nil, errors.Wrapf(ErrInvalidConfiguration, "epsilon must be finite and non-negative, got %v", epsilon)
	}
	if minCrossingFrames <= 0 {
		return nil, errors.Wrapf(ErrInvalidConfiguration, "min crossing frames must be positive, got %d", minCrossingFrames)
	}
	if convention != NegativeToPositiveIn && convention != PositiveToNegativeIn {
		return nil, errors.Wrapf(ErrInvalidConfiguration, "unknown direction convention %d", convention)
	}
	if epsilon == 0 {
		epsilon = DefaultEpsilonRatio * line.Length()
	}
	return &LineCrossingCounter[K]{
		line:              line,
		epsilon:           epsilon,
		evictionHorizon:   evictionHorizon,
		minCrossingFrames: minCrossingFrames,
		convention:        convention,
		tracks:            make(map[K]*TrackState[K]),
	}, nil
}

// Line returns reference line
func (lc *LineCrossingCounter[K]) Line() Line {
	return lc.line
}

// Epsilon returns effective on-line tolerance
func (lc *LineCrossingCounter[K]) Epsilon() float64 {
	return lc.epsilon
}

// Convention returns direction convention
func (lc *LineCrossingCounter[K]) Convention() DirectionConvention {
	return lc.convention
}

// GetTally returns snapshot of cumulative counts
func (lc *LineCrossingCounter[K]) GetTally() Tally {
	return lc.tally
}

// ActiveTracks returns number of tracks currently remembered
func (lc *LineCrossingCounter[K]) ActiveTracks() int {
	return len(lc.tracks)
}

// Track returns copy of track state
func (lc *LineCrossingCounter[K]) Track(id K) (TrackState[K], bool) {
	state, ok := lc.tracks[id]
	if !ok {
		return TrackState[K]{}, false
	}
	return *state, true
}

// Reset clears all track states and tally
func (lc *LineCrossingCounter[K]) Reset() {
	lc.tracks = make(map[K]*TrackState[K])
	lc.tally = Tally{}
}

// Update processes observations of a single frame.
// Events are returned in the order of observations. Rejected observations are skipped
// and reported, they never affect other observations of the batch.
func (lc *LineCrossingCounter[K]) Update(observations []TrackObservation[K], frameIndex int) ([]CrossingEvent[K], []SkippedObservation[K]) {
	var events []CrossingEvent[K]
	var skipped []SkippedObservation[K]
	// We need to prevent double update of tracks
	seen := make(map[K]struct{}, len(observations))
	for i, observation := range observations {
		if !observation.Position.IsFinite() {
			skipped = append(skipped, SkippedObservation[K]{
				Index:       i,
				Observation: observation,
				Err:         errors.Wrapf(ErrInvalidObservation, "non-finite position %v", observation.Position),
			})
			continue
		}
		if math.IsNaN(crossProduct(lc.line.Start, lc.line.End, observation.Position)) {
			skipped = append(skipped, SkippedObservation[K]{
				Index:       i,
				Observation: observation,
				Err:         errors.Wrapf(ErrInvalidObservation, "position %v is out of range", observation.Position),
			})
			continue
		}
		if _, ok := seen[observation.ID]; ok {
			skipped = append(skipped, SkippedObservation[K]{
				Index:       i,
				Observation: observation,
				Err:         errors.Wrapf(ErrInvalidObservation, "duplicate track id %v in frame %d", observation.ID, frameIndex),
			})
			continue
		}
		seen[observation.ID] = struct{}{}
		if event, ok := lc.observe(observation, frameIndex); ok {
			events = append(events, event)
		}
	}
	lc.evict(frameIndex)
	return events, skipped
}

// observe advances state machine of a single track
func (lc *LineCrossingCounter[K]) observe(observation TrackObservation[K], frameIndex int) (CrossingEvent[K], bool) {
	state, ok := lc.tracks[observation.ID]
	if !ok {
		state = &TrackState[K]{
			ID:        observation.ID,
			Side:      SideUnknown,
			Confirmed: SideUnknown,
			FirstSeen: frameIndex,
		}
		lc.tracks[observation.ID] = state
	}
	state.LastSeen = frameIndex

	side := lc.line.Side(observation.Position, lc.epsilon)
	if side == SideUnknown {
		// On the line: carry previous side forward
		side = state.Side
	}
	if side == SideUnknown {
		return CrossingEvent[K]{}, false
	}
	if state.Side == SideUnknown {
		// First sighting on a known side is never a crossing
		state.Side = side
		state.Confirmed = side
		state.HasCountedThisEpisode = true
		state.EpisodeFrames = 1
		return CrossingEvent[K]{}, false
	}

	if side == state.Side {
		state.EpisodeFrames++
	} else {
		state.Side = side
		state.EpisodeFrames = 1
		state.HasCountedThisEpisode = false
	}
	if state.HasCountedThisEpisode {
		return CrossingEvent[K]{}, false
	}
	if side == state.Confirmed {
		// Came back before the excursion has been confirmed
		state.HasCountedThisEpisode = true
		return CrossingEvent[K]{}, false
	}
	if state.EpisodeFrames < lc.minCrossingFrames {
		return CrossingEvent[K]{}, false
	}

	direction := lc.convention.direction(state.Confirmed, side)
	switch direction {
	case DirectionIn:
		lc.tally.In++
	case DirectionOut:
		lc.tally.Out++
	}
	state.Confirmed = side
	state.HasCountedThisEpisode = true
	return CrossingEvent[K]{
		TrackID:    observation.ID,
		Direction:  direction,
		FrameIndex: frameIndex,
	}, true
}

// evict removes tracks which have not been seen for more than eviction horizon frames
func (lc *LineCrossingCounter[K]) evict(frameIndex int) {
	for id, state := range lc.tracks {
		if state.LastSeen < frameIndex-lc.evictionHorizon {
			delete(lc.tracks, id)
		}
	}
}
