package sink

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/iot-tracegen/core"
	"github.com/signalsfoundry/iot-tracegen/model"
)

func sampleTrace(id string) ClientTrace {
	loc := model.Location{Lat: 50.1, Lon: 8.6}
	return ClientTrace{
		ClientID: id,
		Broker:   "Frankfurt",
		Profile:  "hiker",
		Machine:  2,
		Trace: core.Trace{
			Actions: []model.Action{
				model.NewPing(0, loc),
				model.NewSubscribe(1, loc, "text", nil),
				model.NewPublish(2, loc, "text", nil, 42),
			},
			StartLocation: loc,
			FinalLocation: loc,
		},
	}
}

func TestClientTraceFileName(t *testing.T) {
	tr := sampleTrace("c1")
	assert.Equal(t, "Frankfurt-2_hiker_c1.csv", tr.FileName())

	tr.Broker = "New York"
	tr.Profile = "road_user"
	assert.Equal(t, "New-York-2_road-user_c1.csv", tr.FileName())
}

func TestDirSinkWritesTraceFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewDirSink(dir, DirOptions{})
	require.NoError(t, err)

	tr := sampleTrace("abc")
	require.NoError(t, s.Write(context.Background(), tr))
	require.NoError(t, s.Close())

	f, err := os.Open(filepath.Join(dir, tr.FileName()))
	require.NoError(t, err)
	defer f.Close()

	actions, err := ReadRecords(f)
	require.NoError(t, err)
	require.Len(t, actions, 3)
	assert.Equal(t, model.ActionPublish, actions[2].Kind)
	require.NotNil(t, actions[2].PayloadSize)
	assert.Equal(t, 42, *actions[2].PayloadSize)

	assert.Error(t, s.Write(context.Background(), sampleTrace("late")))
}

func TestDirSinkClean(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "old-0_x_y.csv")
	keep := filepath.Join(dir, "notes.md")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(keep, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, SummaryFile), []byte("x"), 0o644))

	_, err := NewDirSink(dir, DirOptions{Clean: true})
	require.NoError(t, err)

	assert.NoFileExists(t, stale)
	assert.NoFileExists(t, filepath.Join(dir, SummaryFile))
	assert.FileExists(t, keep)
}

func TestDirSinkRequiresDir(t *testing.T) {
	_, err := NewDirSink("  ", DirOptions{})
	assert.Error(t, err)
}

func TestDirSinkSummary(t *testing.T) {
	dir := t.TempDir()
	s, err := NewDirSink(dir, DirOptions{})
	require.NoError(t, err)

	stats := core.Stats{Pings: 4, Publishes: 2, PayloadBytes: 200}
	sum := stats.Summary(core.SummaryInput{Clients: 2, Publishers: 1, Runtime: 10e9})
	require.NoError(t, s.WriteSummary(context.Background(), []byte(`{"name":"x"}`), sum))

	raw, err := os.ReadFile(filepath.Join(dir, SummaryFile))
	require.NoError(t, err)
	text := string(raw)
	assert.True(t, strings.HasPrefix(text, "Setup:\n{\"name\":\"x\"}\n\nData set characteristics:"))
	assert.Contains(t, text, "Number of ping messages: 4")
	assert.Contains(t, text, "(100.000 bytes/message)")
}

func TestDirSinkHonoursCancelledContext(t *testing.T) {
	s, err := NewDirSink(t.TempDir(), DirOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Write(ctx, sampleTrace("c")), context.Canceled)
}

func TestMemorySink(t *testing.T) {
	m := NewMemorySink()
	ctx := context.Background()

	require.NoError(t, m.Write(ctx, sampleTrace("b")))
	require.NoError(t, m.Write(ctx, sampleTrace("a")))
	assert.Error(t, m.Write(ctx, sampleTrace("a")))

	traces := m.Traces()
	require.Len(t, traces, 2)
	assert.Equal(t, "a", traces[0].ClientID)

	_, _, ok := m.Summary()
	assert.False(t, ok)

	stats := core.Stats{Pings: 1}
	require.NoError(t, m.WriteSummary(ctx, []byte("{}"), stats.Summary(core.SummaryInput{Clients: 1})))
	sum, setup, ok := m.Summary()
	require.True(t, ok)
	assert.Equal(t, 1, sum.Pings)
	assert.Equal(t, "{}", string(setup))
	require.NoError(t, m.Close())
}
