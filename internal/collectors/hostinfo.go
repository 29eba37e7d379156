package collectors

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/host"
	"gopkg.in/guregu/null.v2"

	"github.com/gysosin/system_stats/internal/tuple"
)

// cimDatetime is the CIM_DATETIME layout WMI uses, in UTC.
const cimDatetime = "20060102150405.000000+000"

// HostOSInfoReader fills os_info from gopsutil on systems without WMI.
// Service pack and install time have no equivalent and stay null.
type HostOSInfoReader struct {
	Log zerolog.Logger

	info  func(ctx context.Context) (*host.InfoStat, error)
	users func(ctx context.Context) ([]host.UserStat, error)
}

func (r *HostOSInfoReader) Desc() *tuple.Desc {
	return OSInfoDesc
}

func (r *HostOSInfoReader) Read(ctx context.Context, sink tuple.Sink) {
	log := r.Log.With().Str("table", OSInfoDesc.Name).Logger()

	infoFn, usersFn := r.info, r.users
	if infoFn == nil {
		infoFn = host.InfoWithContext
	}
	if usersFn == nil {
		usersFn = host.UsersWithContext
	}

	hi, err := infoFn(ctx)
	if err != nil || hi == nil {
		log.Debug().Err(err).Msg("Failed to read host information")
		return
	}

	users, err := usersFn(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("Failed to read logged in users")
	}

	row := OSInfoRow{
		Name:                    text(hi.Platform),
		Version:                 text(hi.PlatformVersion),
		BuildVersion:            text(hi.KernelVersion),
		ServicePackMajorVersion: null.NewString("", false),
		ServicePackMinorVersion: null.NewString("", false),
		HostName:                text(hi.Hostname),
		NumberOfUsers:           null.IntFrom(int64(len(users))),
		NumberOfLicensedUsers:   null.IntFrom(0),
		Architecture:            text(hi.KernelArch),
		InstallTime:             null.NewString("", false),
		BootTime:                null.NewString("", false),
	}
	if hi.BootTime > 0 {
		row.BootTime = null.StringFrom(time.Unix(int64(hi.BootTime), 0).UTC().Format(cimDatetime))
	}

	sink.PutValues(OSInfoDesc, row)
}

func text(s string) null.String {
	return null.NewString(s, s != "")
}
