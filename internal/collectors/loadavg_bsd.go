//go:build darwin || dragonfly || freebsd || netbsd || openbsd
// +build darwin dragonfly freebsd netbsd openbsd

package collectors

import (
	"context"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// loadavg mirrors struct loadavg { fixpt_t ldavg[3]; long fscale; }.
type loadavg struct {
	ldavg  [3]uint32
	fscale int
}

type sysctlSampler struct{}

// NewLoadSampler reads vm.loadavg directly, which is what getloadavg(3)
// does on the BSDs.
func NewLoadSampler() LoadSampler {
	return sysctlSampler{}
}

func (sysctlSampler) Sample(_ context.Context, n int) ([]float64, error) {
	raw, err := unix.SysctlRaw("vm.loadavg")
	if err != nil {
		return nil, fmt.Errorf("sysctl vm.loadavg: %w", err)
	}
	return decodeLoadavg(raw, n)
}

func decodeLoadavg(raw []byte, n int) ([]float64, error) {
	if len(raw) < int(unsafe.Sizeof(loadavg{})) {
		return nil, fmt.Errorf("vm.loadavg: unexpected size %d", len(raw))
	}

	la := *(*loadavg)(unsafe.Pointer(&raw[0]))
	if la.fscale <= 0 {
		return nil, fmt.Errorf("vm.loadavg: invalid fscale %d", la.fscale)
	}

	if n > len(la.ldavg) {
		n = len(la.ldavg)
	}
	out := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, float64(la.ldavg[i])/float64(la.fscale))
	}
	return out, nil
}
