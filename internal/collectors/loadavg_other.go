//go:build !darwin && !dragonfly && !freebsd && !netbsd && !openbsd
// +build !darwin,!dragonfly,!freebsd,!netbsd,!openbsd

package collectors

import (
	"context"

	"github.com/shirou/gopsutil/v3/load"
)

type psutilSampler struct{}

// NewLoadSampler returns a sampler backed by gopsutil.
func NewLoadSampler() LoadSampler {
	return psutilSampler{}
}

func (psutilSampler) Sample(ctx context.Context, n int) ([]float64, error) {
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return nil, err
	}
	samples := []float64{avg.Load1, avg.Load5, avg.Load15}
	if n < len(samples) {
		samples = samples[:n]
	}
	return samples, nil
}
