package activity

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2024, 3, 5, 10, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedTime }

func TestRecordFansOutToSinks(t *testing.T) {
	a, b := &MemorySink{}, &MemorySink{}
	rec := NewRecorder(Options{
		Username: "ana",
		RunID:    "run-1",
		Clock:    fixedClock,
		Sinks:    []Sink{a, b},
	})

	o := rec.Record(context.Background(), Like, "https://www.facebook.com/x/posts/pfbid0a", Success, "")

	want := Outcome{
		RunID:     "run-1",
		Timestamp: fixedTime,
		Platform:  Platform,
		Username:  "ana",
		Action:    Like,
		Target:    "https://www.facebook.com/x/posts/pfbid0a",
		Status:    Success,
	}
	assert.Equal(t, want, o)
	assert.Equal(t, []Outcome{want}, a.Outcomes())
	assert.Equal(t, []Outcome{want}, b.Outcomes())
	assert.Equal(t, []Outcome{want}, rec.Outcomes())
}

func TestRecordSurvivesFailingSink(t *testing.T) {
	broken := &MemorySink{Err: errors.New("disk full")}
	ok := &MemorySink{}
	rec := NewRecorder(Options{Username: "ana", Sinks: []Sink{broken, ok}})

	rec.Record(context.Background(), Comment, "u", Failure, "not_found")

	assert.Len(t, ok.Outcomes(), 1)
	assert.Len(t, rec.Outcomes(), 1)
	assert.NotEmpty(t, rec.RunID(), "a run id is generated")
}

func TestJSONLSinkAppends(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ana_activity.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"earlier":"line"}`+"\n"), 0644))

	sink, err := NewJSONLSink(dir, "ana")
	require.NoError(t, err)
	assert.Equal(t, path, sink.Path())

	rec := NewRecorder(Options{Username: "ana", Clock: fixedClock, Sinks: []Sink{sink}})
	rec.Record(context.Background(), Like, "u1", Success, "")
	rec.Record(context.Background(), Share, "u1", Failure, "technique_failed")
	require.NoError(t, rec.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []map[string]interface{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &m))
		lines = append(lines, m)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, lines, 3)
	assert.Equal(t, "line", lines[0]["earlier"])
	assert.Equal(t, "like", lines[1]["action"])
	assert.Equal(t, "u1", lines[1]["post_url"])
	assert.Equal(t, "facebook", lines[1]["platform"])
	assert.Equal(t, "failure", lines[2]["status"])
	assert.Equal(t, "technique_failed", lines[2]["details"])
}

func TestJSONLSinkWriteAfterClose(t *testing.T) {
	sink, err := NewJSONLSink(t.TempDir(), "ana")
	require.NoError(t, err)
	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())

	assert.Error(t, sink.Write(context.Background(), Outcome{}))
}

func TestSQLiteSinkRecent(t *testing.T) {
	sink, err := NewSQLiteSink(filepath.Join(t.TempDir(), "data", "history.db"))
	require.NoError(t, err)
	defer sink.Close()

	ctx := context.Background()
	for i, action := range []Action{Like, Comment, Share} {
		require.NoError(t, sink.Write(ctx, Outcome{
			RunID:     "run-1",
			Timestamp: fixedTime.Add(time.Duration(i) * time.Minute),
			Platform:  Platform,
			Username:  "ana",
			Action:    action,
			Target:    "u1",
			Status:    Success,
		}))
	}

	recent, err := sink.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, Share, recent[0].Action)
	assert.Equal(t, Comment, recent[1].Action)
	assert.True(t, recent[0].Timestamp.Equal(fixedTime.Add(2*time.Minute)))
	assert.Equal(t, "ana", recent[0].Username)
}

func TestSQLiteSinkRecentOrdersSubSecondTimes(t *testing.T) {
	sink, err := NewSQLiteSink(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer sink.Close()

	ctx := context.Background()
	base := fixedTime.Add(5 * time.Second)
	// the later outcome is inserted first so row order cannot mask text order
	for _, o := range []Outcome{
		{RunID: "r", Timestamp: base.Add(120 * time.Millisecond), Action: Comment, Status: Success},
		{RunID: "r", Timestamp: base.Add(100 * time.Millisecond), Action: Like, Status: Success},
		{RunID: "r", Timestamp: base, Action: Share, Status: Success},
	} {
		require.NoError(t, sink.Write(ctx, o))
	}

	recent, err := sink.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, []Action{Comment, Like, Share}, []Action{recent[0].Action, recent[1].Action, recent[2].Action})
	assert.True(t, recent[1].Timestamp.Equal(base.Add(100*time.Millisecond)))
}

func TestSQLiteSinkReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	first, err := NewSQLiteSink(path)
	require.NoError(t, err)
	require.NoError(t, first.Write(context.Background(), Outcome{RunID: "r", Timestamp: fixedTime, Action: Like, Status: Failure, Detail: "not_found"}))
	require.NoError(t, first.Close())

	second, err := NewSQLiteSink(path)
	require.NoError(t, err)
	defer second.Close()

	recent, err := second.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "not_found", recent[0].Detail)
}
