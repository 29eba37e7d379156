package collectors

import (
	"context"
	"database/sql/driver"

	"github.com/rs/zerolog"
	"gopkg.in/guregu/null.v2"

	"github.com/gysosin/system_stats/internal/tuple"
)

const loadAvgSamples = 3

// LoadAvgDesc is the shape of the load_avg_info table.
var LoadAvgDesc = tuple.NewDesc("load_avg_info",
	tuple.Column{Name: "load_avg_one_minute", Type: tuple.Float4},
	tuple.Column{Name: "load_avg_five_minutes", Type: tuple.Float4},
	tuple.Column{Name: "load_avg_ten_minutes", Type: tuple.Float4},
	tuple.Column{Name: "load_avg_fifteen_minutes", Type: tuple.Float4},
)

// LoadAvgRow holds the kernel load averages. The kernel keeps no ten minute
// figure, so TenMinutes is always null.
type LoadAvgRow struct {
	OneMinute      null.Float `json:"load_avg_one_minute"`
	FiveMinutes    null.Float `json:"load_avg_five_minutes"`
	TenMinutes     null.Float `json:"load_avg_ten_minutes"`
	FifteenMinutes null.Float `json:"load_avg_fifteen_minutes"`
}

func (r LoadAvgRow) Values() []driver.Value {
	return []driver.Value{
		floatValue(r.OneMinute),
		floatValue(r.FiveMinutes),
		floatValue(r.TenMinutes),
		floatValue(r.FifteenMinutes),
	}
}

// LoadSampler returns up to n load average samples, most recent window
// first, the way getloadavg(3) does.
type LoadSampler interface {
	Sample(ctx context.Context, n int) ([]float64, error)
}

// LoadAvgReader emits one load_avg_info row per call.
type LoadAvgReader struct {
	Sampler LoadSampler
	Log     zerolog.Logger
}

func (r *LoadAvgReader) Desc() *tuple.Desc {
	return LoadAvgDesc
}

func (r *LoadAvgReader) Read(ctx context.Context, sink tuple.Sink) {
	samples, err := r.Sampler.Sample(ctx, loadAvgSamples)
	if err != nil || len(samples) != loadAvgSamples {
		r.Log.Debug().
			Err(err).
			Str("table", LoadAvgDesc.Name).
			Int("samples", len(samples)).
			Msg("Error while getting loadavg information from kernel")
		return
	}

	sink.PutValues(LoadAvgDesc, LoadAvgRow{
		OneMinute:      float4(samples[0]),
		FiveMinutes:    float4(samples[1]),
		TenMinutes:     null.NewFloat(0, false),
		FifteenMinutes: float4(samples[2]),
	})
}

// float4 narrows v to single precision, the column type.
func float4(v float64) null.Float {
	return null.FloatFrom(float64(float32(v)))
}

func floatValue(f null.Float) driver.Value {
	if !f.Valid {
		return nil
	}
	return f.Float64
}
