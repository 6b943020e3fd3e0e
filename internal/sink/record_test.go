package sink

import (
	"bytes"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/iot-tracegen/model"
)

func TestFormatRecordFields(t *testing.T) {
	loc := model.Location{Lat: 48.877366, Lon: 2.359708}
	g := model.CircleDegrees(loc, 0.5)

	tests := []struct {
		name   string
		action model.Action
		want   string
	}{
		{
			name:   "ping",
			action: model.NewPing(1200, loc),
			want:   "1200;48.877366;2.359708;ping;;;",
		},
		{
			name:   "subscribe without geofence",
			action: model.NewSubscribe(5, loc, "text", nil),
			want:   "5;48.877366;2.359708;subscribe;text;;",
		},
		{
			name:   "publish circle",
			action: model.NewPublish(7, loc, "road", &g, 100),
			want:   "7;48.877366;2.359708;publish;road;BUFFER (POINT (2.359708 48.877366), 0.5);100",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, strings.Join(FormatRecord(tt.action), ";"))
		})
	}
}

func TestRecordRoundTrip(t *testing.T) {
	loc := model.Location{Lat: -33.5, Lon: 151.25}
	circle := model.Circle(loc, 12.5)
	world := model.World()
	actions := []model.Action{
		model.NewPing(0, loc),
		model.NewSubscribe(1, loc, "temperature", &circle),
		model.NewSubscribe(2, loc, "humidity", nil),
		model.NewPublish(3, loc, "temperature", &world, 130),
		model.NewPublish(4, loc, "humidity", nil, 0),
	}

	var buf bytes.Buffer
	rw := NewRecordWriter(&buf)
	require.NoError(t, rw.WriteHeader())
	for _, a := range actions {
		require.NoError(t, rw.Write(a))
	}
	require.NoError(t, rw.Flush())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, len(actions)+1)
	assert.Equal(t, "timestamp(ms);latitude;longitude;action_type;topic;geofence;payload_size", lines[0])

	got, err := ReadRecords(&buf)
	require.NoError(t, err)
	require.Len(t, got, len(actions))
	for i, a := range actions {
		assert.Equal(t, FormatRecord(a), FormatRecord(got[i]), "action %d", i)
		assert.Equal(t, a.TimestampMs, got[i].TimestampMs)
		assert.Equal(t, a.Kind, got[i].Kind)
		assert.Equal(t, a.Topic, got[i].Topic)
		assert.Equal(t, a.Location, got[i].Location)
		if a.Geofence == nil {
			assert.Nil(t, got[i].Geofence, "action %d", i)
		} else {
			require.NotNil(t, got[i].Geofence, "action %d", i)
			assert.Equal(t, a.Geofence.Shape, got[i].Geofence.Shape)
			assert.Equal(t, a.Geofence.Center, got[i].Geofence.Center)
			assert.Equal(t, a.Geofence.RadiusDegrees(), got[i].Geofence.RadiusDegrees())
		}
		if a.PayloadSize == nil {
			assert.Nil(t, got[i].PayloadSize)
		} else {
			require.NotNil(t, got[i].PayloadSize)
			assert.Equal(t, *a.PayloadSize, *got[i].PayloadSize)
		}
	}
}

func TestRecordRoundTripRandomCircles(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 5000; i++ {
		loc := model.Location{Lat: rng.Float64()*180 - 90, Lon: rng.Float64()*360 - 180}
		g := model.Circle(loc, rng.Float64()*150)
		a := model.NewPublish(int64(i), loc, "t", &g, i)

		rec := FormatRecord(a)
		parsed, err := ParseRecord(rec)
		require.NoError(t, err)
		require.Equal(t, rec, FormatRecord(parsed))
		require.Equal(t, a.Location, parsed.Location)
		require.Equal(t, g.Center, parsed.Geofence.Center)
		require.Equal(t, g.RadiusDegrees(), parsed.Geofence.RadiusDegrees())

		again, err := ParseRecord(FormatRecord(parsed))
		require.NoError(t, err)
		require.Equal(t, *parsed.Geofence, *again.Geofence)
	}
}

func TestParseRecordRejectsMalformed(t *testing.T) {
	cases := map[string][]string{
		"short":        {"1", "2"},
		"timestamp":    {"x", "1", "2", "ping", "", "", ""},
		"latitude":     {"1", "north", "2", "ping", "", "", ""},
		"kind":         {"1", "1", "2", "connect", "", "", ""},
		"geofence":     {"1", "1", "2", "subscribe", "t", "POLYGON ((0 0))", ""},
		"payload":      {"1", "1", "2", "publish", "t", "", "big"},
		"negative pay": {"1", "1", "2", "publish", "t", "", "-1"},
	}
	for name, rec := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRecord(rec)
			assert.ErrorIs(t, err, ErrMalformedRecord)
		})
	}
}

func TestReadRecordsWithoutHeader(t *testing.T) {
	got, err := ReadRecords(strings.NewReader("10;1.5;2.5;ping;;;\n"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.ActionPing, got[0].Kind)
	assert.Equal(t, int64(10), got[0].TimestampMs)
}

func TestReadRecordsWrongFieldCount(t *testing.T) {
	_, err := ReadRecords(strings.NewReader("10;1.5;2.5;ping\n"))
	assert.ErrorIs(t, err, ErrMalformedRecord)
}
