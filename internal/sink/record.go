package sink

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/signalsfoundry/iot-tracegen/model"
)

// ErrMalformedRecord is returned when a record line cannot be decoded.
var ErrMalformedRecord = errors.New("malformed action record")

// Header is the first line of every trace file.
var Header = []string{
	"timestamp(ms)",
	"latitude",
	"longitude",
	"action_type",
	"topic",
	"geofence",
	"payload_size",
}

const fieldCount = 7

// FormatRecord renders an action as record fields. Absent topic, geofence
// and payload become empty fields.
func FormatRecord(a model.Action) []string {
	rec := make([]string, fieldCount)
	rec[0] = strconv.FormatInt(a.TimestampMs, 10)
	rec[1] = strconv.FormatFloat(a.Location.Lat, 'f', -1, 64)
	rec[2] = strconv.FormatFloat(a.Location.Lon, 'f', -1, 64)
	rec[3] = string(a.Kind)
	rec[4] = a.Topic
	if a.Geofence != nil {
		rec[5] = a.Geofence.WKT()
	}
	if a.PayloadSize != nil {
		rec[6] = strconv.Itoa(*a.PayloadSize)
	}
	return rec
}

// ParseRecord inverts FormatRecord.
func ParseRecord(rec []string) (model.Action, error) {
	if len(rec) != fieldCount {
		return model.Action{}, fmt.Errorf("%w: %d fields, want %d", ErrMalformedRecord, len(rec), fieldCount)
	}
	ts, err := strconv.ParseInt(rec[0], 10, 64)
	if err != nil {
		return model.Action{}, fmt.Errorf("%w: timestamp %q", ErrMalformedRecord, rec[0])
	}
	lat, err := strconv.ParseFloat(rec[1], 64)
	if err != nil {
		return model.Action{}, fmt.Errorf("%w: latitude %q", ErrMalformedRecord, rec[1])
	}
	lon, err := strconv.ParseFloat(rec[2], 64)
	if err != nil {
		return model.Action{}, fmt.Errorf("%w: longitude %q", ErrMalformedRecord, rec[2])
	}
	kind, err := model.ParseActionKind(rec[3])
	if err != nil {
		return model.Action{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}

	a := model.Action{
		TimestampMs: ts,
		Location:    model.Location{Lat: lat, Lon: lon},
		Kind:        kind,
		Topic:       rec[4],
	}
	if s := strings.TrimSpace(rec[5]); s != "" {
		g, err := model.ParseWKT(s)
		if err != nil {
			return model.Action{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
		a.Geofence = &g
	}
	if s := strings.TrimSpace(rec[6]); s != "" {
		size, err := strconv.Atoi(s)
		if err != nil || size < 0 {
			return model.Action{}, fmt.Errorf("%w: payload size %q", ErrMalformedRecord, s)
		}
		a.PayloadSize = &size
	}
	return a, nil
}

// RecordWriter writes actions as semicolon separated records.
type RecordWriter struct {
	w *csv.Writer
}

// NewRecordWriter wraps w. Call Flush when done.
func NewRecordWriter(w io.Writer) *RecordWriter {
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	return &RecordWriter{w: cw}
}

// WriteHeader writes the column header line.
func (rw *RecordWriter) WriteHeader() error {
	return rw.w.Write(Header)
}

// Write appends one action.
func (rw *RecordWriter) Write(a model.Action) error {
	return rw.w.Write(FormatRecord(a))
}

// Flush writes buffered records and reports any write error.
func (rw *RecordWriter) Flush() error {
	rw.w.Flush()
	return rw.w.Error()
}

// ReadRecords decodes a trace file, skipping the header line if present.
func ReadRecords(r io.Reader) ([]model.Action, error) {
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.FieldsPerRecord = fieldCount
	cr.ReuseRecord = true

	var out []model.Action
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedRecord, line, err)
		}
		if line == 1 && rec[0] == Header[0] {
			continue
		}
		a, err := ParseRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, a)
	}
}
