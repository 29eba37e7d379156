//go:build !windows
// +build !windows

package collectors

import "github.com/rs/zerolog"

// Tables returns the tables this platform can serve.
func Tables(log zerolog.Logger) []Table {
	return []Table{
		&LoadAvgReader{Sampler: NewLoadSampler(), Log: log},
		&HostOSInfoReader{Log: log},
	}
}
