package overlay

import (
	"sync"

	"github.com/LdDl/linecounter/counter"
)

type trace struct {
	points   []counter.Point
	lastSeen int
}

// Traces keeps a bounded history of recent positions of every track
type Traces struct {
	// maximum number of points per track
	length int
	// tracks absent for more than horizon frames are dropped
	horizon int
	history map[string]*trace
	sync.Mutex
}

// NewTraces creates history keeping up to length points per track
func NewTraces(length, horizon int) *Traces {
	return &Traces{
		length:  length,
		horizon: horizon,
		history: make(map[string]*trace),
	}
}

// Reset clears all history
func (traces *Traces) Reset() {
	traces.Lock()
	defer traces.Unlock()
	traces.history = make(map[string]*trace)
}

// Add appends positions of the frame and drops stale tracks
func (traces *Traces) Add(frameIndex int, observations []counter.TrackObservation[string]) {
	traces.Lock()
	defer traces.Unlock()
	for _, observation := range observations {
		if !observation.Position.IsFinite() {
			continue
		}
		tr, ok := traces.history[observation.ID]
		if !ok {
			tr = &trace{}
			traces.history[observation.ID] = tr
		}
		tr.lastSeen = frameIndex
		tr.points = append(tr.points, observation.Position)
		// drop oldest point
		if len(tr.points) > traces.length {
			tr.points = tr.points[1:]
		}
	}
	for id, tr := range traces.history {
		if tr.lastSeen < frameIndex-traces.horizon {
			delete(traces.history, id)
		}
	}
}

// Points returns copy of the history of given track
func (traces *Traces) Points(id string) []counter.Point {
	traces.Lock()
	defer traces.Unlock()
	tr, ok := traces.history[id]
	if !ok {
		return nil
	}
	return append([]counter.Point(nil), tr.points...)
}

// All returns copy of every track history
func (traces *Traces) All() map[string][]counter.Point {
	traces.Lock()
	defer traces.Unlock()
	all := make(map[string][]counter.Point, len(traces.history))
	for id, tr := range traces.history {
		all[id] = append([]counter.Point(nil), tr.points...)
	}
	return all
}
