//go:build windows
// +build windows

package collectors

import (
	"github.com/rs/zerolog"

	"github.com/gysosin/system_stats/internal/wbem"
)

// Tables returns the tables this platform can serve.
func Tables(log zerolog.Logger) []Table {
	return []Table{
		&LoadAvgReader{Sampler: NewLoadSampler(), Log: log},
		&OSInfoReader{
			Runtime:   wbem.NewRuntime(),
			Namespace: wbem.DefaultNamespace,
			Query:     wbem.SelectOperatingSystem(),
			Log:       log,
		},
	}
}
