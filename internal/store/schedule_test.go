package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/opcon/internal/ir"
	"github.com/roach88/opcon/internal/schedule"
	"github.com/roach88/opcon/internal/testutil"
	"github.com/roach88/opcon/internal/toem"
)

func sampleRecords() []schedule.Record {
	return []schedule.Record{
		{At: testutil.At(time.Minute), Seq: 0, Kind: schedule.KindCall, ParentID: "u-1", Method: "attack",
			Args: ir.IRArray{ir.IRString("u-2")}},
		{At: testutil.At(time.Minute), Seq: 1, Kind: schedule.KindCall, ParentID: "u-2", Method: "rest",
			Kwargs: ir.IRObject{"n": ir.IRInt(2)}},
		{At: testutil.At(time.Minute), Seq: 2, Kind: schedule.KindMemo, ParentID: "u-1", Tag: "contact",
			Data: ir.IRObject{"grid": ir.IRString("NV 123 456"), "strength": ir.IRInt(1 << 60)}},
		{At: testutil.At(2 * time.Minute), Seq: 0, Kind: schedule.KindCall, ParentID: "world", Method: "noop"},
		{At: testutil.At(3 * time.Minute), Seq: 0, Kind: schedule.KindMemo, ParentID: "u-2", Tag: "empty"},
	}
}

func TestSaveLoadSchedule_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	want := sampleRecords()

	require.NoError(t, s.SaveSchedule(ctx, "op-1", testutil.At(30*time.Second), want))

	now, got, err := s.LoadSchedule(ctx, "op-1")
	require.NoError(t, err)
	assert.True(t, now.Equal(testutil.At(30*time.Second)))
	require.Len(t, got, len(want))

	for i := range want {
		assert.True(t, want[i].At.Equal(got[i].At), "record %d time", i)
		got[i].At = want[i].At
		assert.Equal(t, want[i], got[i], "record %d", i)
	}
}

func TestSaveSchedule_Replaces(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	require.NoError(t, s.SaveSchedule(ctx, "op-1", testutil.Epoch, sampleRecords()))
	require.NoError(t, s.SaveSchedule(ctx, "op-1", testutil.At(time.Hour), sampleRecords()[:1]))

	_, got, err := s.LoadSchedule(ctx, "op-1")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	run, err := s.GetRun(ctx, "op-1")
	require.NoError(t, err)
	assert.Equal(t, 1, run.EventCount)
	assert.True(t, run.SimTime.Equal(testutil.At(time.Hour)))
}

func TestSaveSchedule_EmptyIsValid(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	require.NoError(t, s.SaveSchedule(ctx, "done", testutil.Epoch, nil))
	_, got, err := s.LoadSchedule(ctx, "done")
	require.NoError(t, err)
	assert.Empty(t, got)

	assert.Error(t, s.SaveSchedule(ctx, "", testutil.Epoch, nil))
}

func TestSaveSchedule_RejectsNull(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	bad := []schedule.Record{{At: testutil.Epoch, Kind: schedule.KindMemo, ParentID: "u-1", Tag: "x", Data: ir.IRNull{}}}
	assert.Error(t, s.SaveSchedule(ctx, "bad", testutil.Epoch, bad))

	_, err := s.GetRun(ctx, "bad")
	assert.ErrorIs(t, err, ErrRunNotFound, "failed save leaves nothing behind")
}

func TestLoadSchedule_NotFound(t *testing.T) {
	_, _, err := createTestStore(t).LoadSchedule(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestLoadSchedule_DetectsTampering(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	require.NoError(t, s.SaveSchedule(ctx, "op-1", testutil.Epoch, sampleRecords()))

	_, err := s.DB().Exec(`UPDATE scheduled_events SET method = 'rally' WHERE method = 'rest'`)
	require.NoError(t, err)

	_, _, err = s.LoadSchedule(ctx, "op-1")
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestLoadSchedule_RebuildsSchedule(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	require.NoError(t, s.SaveSchedule(ctx, "op-1", testutil.Epoch, sampleRecords()))

	_, records, err := s.LoadSchedule(ctx, "op-1")
	require.NoError(t, err)
	sched, err := schedule.FromRecords(records)
	require.NoError(t, err)

	assert.Equal(t, 5, sched.Size())
	assert.Len(t, sched.FindMemos("contact"), 1)
	first, ok := sched.First()
	require.True(t, ok)
	assert.True(t, first.Equal(testutil.At(time.Minute)))
}

func TestEventsForParent(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	require.NoError(t, s.SaveSchedule(ctx, "op-1", testutil.Epoch, sampleRecords()))

	got, err := s.EventsForParent(ctx, "op-1", "u-2")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "rest", got[0].Method)
	assert.Equal(t, "empty", got[1].Tag)
}

func TestListAndDeleteRuns(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	require.NoError(t, s.SaveSchedule(ctx, "bravo", testutil.Epoch, sampleRecords()))
	require.NoError(t, s.SaveSchedule(ctx, "alpha", testutil.Epoch, nil))

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "alpha", runs[0].Name)
	assert.Equal(t, 5, runs[1].EventCount)

	require.NoError(t, s.DeleteRun(ctx, "bravo"))
	assert.ErrorIs(t, s.DeleteRun(ctx, "bravo"), ErrRunNotFound)

	var n int
	require.NoError(t, s.DB().QueryRow(`SELECT COUNT(*) FROM scheduled_events`).Scan(&n))
	assert.Zero(t, n, "events cascade with their run")
}

func TestResolutionLog(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	a := toem.MustNew("attack", toem.WithSource(testutil.ConstSource(0)))
	require.NoError(t, a.AddConString("under fire"))
	_, err := a.ResolveWith(0.51)
	require.NoError(t, err)
	failed, _ := a.Result()

	b := toem.MustNew("buy ticket")
	_, err = b.ResolveWith(0.49)
	require.NoError(t, err)
	won, _ := b.Result()

	_, err = s.LogResolution(ctx, "op-1", testutil.At(2*time.Minute), "u-1", won)
	require.NoError(t, err)
	_, err = s.LogResolution(ctx, "op-1", testutil.At(time.Minute), "u-2", failed)
	require.NoError(t, err)
	_, err = s.LogResolution(ctx, "other", testutil.Epoch, "u-3", won)
	require.NoError(t, err)

	log, err := s.Resolutions(ctx, "op-1")
	require.NoError(t, err)
	require.Len(t, log, 2)

	assert.Equal(t, "u-2", log[0].UnitID)
	assert.True(t, log[0].SimTime.Equal(testutil.At(time.Minute)))
	assert.Equal(t, failed, log[0].Result)
	assert.Equal(t, []string{"under fire"}, log[0].Result.Blame)

	assert.Equal(t, won, log[1].Result)
	assert.True(t, log[1].Result.Success)
}
