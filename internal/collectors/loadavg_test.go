package collectors

import (
	"bytes"
	"context"
	"database/sql/driver"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gysosin/system_stats/internal/tuple"
)

type fakeSampler struct {
	samples []float64
	err     error
	asked   int
}

func (f *fakeSampler) Sample(_ context.Context, n int) ([]float64, error) {
	f.asked = n
	return f.samples, f.err
}

func debugLogger(buf *bytes.Buffer) zerolog.Logger {
	return zerolog.New(buf).Level(zerolog.DebugLevel)
}

func logLines(buf *bytes.Buffer) []string {
	out := strings.TrimSpace(buf.String())
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

func TestLoadAvgEmitsOneRow(t *testing.T) {
	var buf bytes.Buffer
	sampler := &fakeSampler{samples: []float64{0.5, 0.75, 1.0}}
	r := &LoadAvgReader{Sampler: sampler, Log: debugLogger(&buf)}

	store := tuple.NewStore()
	r.Read(context.Background(), store)

	assert.Equal(t, loadAvgSamples, sampler.asked)
	require.Equal(t, 1, store.Len())
	assert.Same(t, LoadAvgDesc, store.Desc())

	row, ok := store.Rows()[0].(LoadAvgRow)
	require.True(t, ok)
	assert.True(t, row.OneMinute.Valid)
	assert.Equal(t, 0.5, row.OneMinute.Float64)
	assert.Equal(t, 0.75, row.FiveMinutes.Float64)
	assert.False(t, row.TenMinutes.Valid)
	assert.Equal(t, 1.0, row.FifteenMinutes.Float64)

	assert.Equal(t, []driver.Value{0.5, 0.75, nil, 1.0}, row.Values())
	assert.Empty(t, logLines(&buf))
}

func TestLoadAvgNarrowsToFloat4(t *testing.T) {
	r := &LoadAvgReader{Sampler: &fakeSampler{samples: []float64{0.1, 2.2, 3.3}}, Log: zerolog.Nop()}

	store := tuple.NewStore()
	r.Read(context.Background(), store)

	require.Equal(t, 1, store.Len())
	row := store.Rows()[0].(LoadAvgRow)
	assert.Equal(t, float64(float32(0.1)), row.OneMinute.Float64)
	assert.Equal(t, float64(float32(2.2)), row.FiveMinutes.Float64)
	assert.Equal(t, float64(float32(3.3)), row.FifteenMinutes.Float64)
}

func TestLoadAvgShortSampleEmitsNothing(t *testing.T) {
	tests := []struct {
		name    string
		samples []float64
		err     error
	}{
		{"two samples", []float64{0.5, 0.75}, nil},
		{"no samples", nil, nil},
		{"four samples", []float64{1, 2, 3, 4}, nil},
		{"sampler error", nil, errors.New("sysctl failed")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			r := &LoadAvgReader{
				Sampler: &fakeSampler{samples: tt.samples, err: tt.err},
				Log:     debugLogger(&buf),
			}

			store := tuple.NewStore()
			r.Read(context.Background(), store)

			assert.Equal(t, 0, store.Len())
			lines := logLines(&buf)
			require.Len(t, lines, 1)
			assert.Contains(t, lines[0], `"level":"debug"`)
			assert.Contains(t, lines[0], "loadavg")
			assert.Contains(t, lines[0], `"table":"load_avg_info"`)
		})
	}
}

func TestLoadAvgFailureIsQuietAboveDebug(t *testing.T) {
	var buf bytes.Buffer
	r := &LoadAvgReader{
		Sampler: &fakeSampler{samples: []float64{1}},
		Log:     zerolog.New(&buf).Level(zerolog.InfoLevel),
	}

	r.Read(context.Background(), tuple.NewStore())
	assert.Empty(t, buf.String())
}

func TestNewLoadSampler(t *testing.T) {
	samples, err := NewLoadSampler().Sample(context.Background(), loadAvgSamples)
	if err != nil {
		t.Logf("load average unavailable in this environment: %v", err)
		return
	}
	assert.Len(t, samples, loadAvgSamples)
	for _, s := range samples {
		assert.GreaterOrEqual(t, s, 0.0)
	}
}
