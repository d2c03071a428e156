package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/LdDl/linecounter/counter"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "counts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func testSession() SessionInfo {
	return SessionInfo{
		ID:        uuid.New(),
		Source:    "parking.jsonl",
		Line:      counter.Line{Start: counter.Point{X: 0, Y: 540}, End: counter.Point{X: 1920, Y: 540}},
		Direction: counter.PositiveToNegativeIn,
		StartedAt: time.Unix(1700000000, 0),
	}
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	info := testSession()
	require.NoError(t, st.StartSession(ctx, info))

	stored, err := st.Session(ctx, info.ID)
	require.NoError(t, err)
	assert.Equal(t, info.Source, stored.Source)
	assert.Equal(t, info.Line, stored.Line)
	assert.Equal(t, counter.PositiveToNegativeIn, stored.Direction)
	assert.True(t, stored.StartedAt.Equal(info.StartedAt))
	assert.True(t, stored.FinishedAt.IsZero())

	finished := info.StartedAt.Add(time.Minute)
	require.NoError(t, st.FinishSession(ctx, info.ID, finished))
	stored, err = st.Session(ctx, info.ID)
	require.NoError(t, err)
	assert.True(t, stored.FinishedAt.Equal(finished))

	assert.Error(t, st.FinishSession(ctx, uuid.New(), finished))
}

func TestRecordCrossings(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	info := testSession()
	require.NoError(t, st.StartSession(ctx, info))

	require.NoError(t, st.RecordCrossings(ctx, info.ID, nil))
	require.NoError(t, st.RecordCrossings(ctx, info.ID, []counter.CrossingEvent[string]{
		{TrackID: "7", Direction: counter.DirectionIn, FrameIndex: 12},
		{TrackID: "9", Direction: counter.DirectionOut, FrameIndex: 12},
	}))
	require.NoError(t, st.RecordCrossings(ctx, info.ID, []counter.CrossingEvent[string]{
		{TrackID: "7", Direction: counter.DirectionOut, FrameIndex: 40},
	}))

	crossings, err := st.Crossings(ctx, info.ID)
	require.NoError(t, err)
	require.Len(t, crossings, 3)
	assert.Equal(t, "7", crossings[0].TrackID)
	assert.Equal(t, "in", crossings[0].Direction)
	assert.Equal(t, "9", crossings[1].TrackID)
	assert.Equal(t, "out", crossings[1].Direction)
	assert.Equal(t, 40, crossings[2].FrameIndex)
	assert.Equal(t, info.ID, crossings[2].SessionID)

	other, err := st.Crossings(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestCrossingRequiresSession(t *testing.T) {
	st := openTestStore(t)
	err := st.RecordCrossings(context.Background(), uuid.New(), []counter.CrossingEvent[string]{
		{TrackID: "1", Direction: counter.DirectionIn, FrameIndex: 0},
	})
	assert.Error(t, err, "foreign key must reject unknown session")
}

func TestRecordTally(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	info := testSession()
	require.NoError(t, st.StartSession(ctx, info))

	_, _, err := st.LatestTally(ctx, info.ID)
	assert.Equal(t, sql.ErrNoRows, errors.Cause(err))

	require.NoError(t, st.RecordTally(ctx, info.ID, 30, counter.Tally{In: 1}))
	require.NoError(t, st.RecordTally(ctx, info.ID, 60, counter.Tally{In: 2, Out: 1}))
	// Same frame overwrites
	require.NoError(t, st.RecordTally(ctx, info.ID, 60, counter.Tally{In: 3, Out: 1}))

	frame, tally, err := st.LatestTally(ctx, info.ID)
	require.NoError(t, err)
	assert.Equal(t, 60, frame)
	assert.Equal(t, counter.Tally{In: 3, Out: 1}, tally)
}
