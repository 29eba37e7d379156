package collectors

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"

	"github.com/rs/zerolog"
	"gopkg.in/guregu/null.v2"

	"github.com/gysosin/system_stats/internal/staged"
	"github.com/gysosin/system_stats/internal/tuple"
	"github.com/gysosin/system_stats/internal/wbem"
)

// OSInfoDesc is the shape of the os_info table.
var OSInfoDesc = tuple.NewDesc("os_info",
	tuple.Column{Name: "name", Type: tuple.Text},
	tuple.Column{Name: "version", Type: tuple.Text},
	tuple.Column{Name: "build_version", Type: tuple.Text},
	tuple.Column{Name: "servicepack_major_version", Type: tuple.Text},
	tuple.Column{Name: "servicepack_minor_version", Type: tuple.Text},
	tuple.Column{Name: "host_name", Type: tuple.Text},
	tuple.Column{Name: "number_of_users", Type: tuple.Int4},
	tuple.Column{Name: "number_of_licensed_users", Type: tuple.Int4},
	tuple.Column{Name: "os_architecture", Type: tuple.Text},
	tuple.Column{Name: "os_install_time", Type: tuple.Text},
	tuple.Column{Name: "os_boot_time", Type: tuple.Text},
)

// OSInfoRow is one operating system instance. Install and boot times are
// kept as raw CIM datetime strings.
type OSInfoRow struct {
	Name                    null.String `json:"name"`
	Version                 null.String `json:"version"`
	BuildVersion            null.String `json:"build_version"`
	ServicePackMajorVersion null.String `json:"servicepack_major_version"`
	ServicePackMinorVersion null.String `json:"servicepack_minor_version"`
	HostName                null.String `json:"host_name"`
	NumberOfUsers           null.Int    `json:"number_of_users"`
	NumberOfLicensedUsers   null.Int    `json:"number_of_licensed_users"`
	Architecture            null.String `json:"os_architecture"`
	InstallTime             null.String `json:"os_install_time"`
	BootTime                null.String `json:"os_boot_time"`
}

func (r OSInfoRow) Values() []driver.Value {
	return []driver.Value{
		stringValue(r.Name),
		stringValue(r.Version),
		stringValue(r.BuildVersion),
		stringValue(r.ServicePackMajorVersion),
		stringValue(r.ServicePackMinorVersion),
		stringValue(r.HostName),
		intValue(r.NumberOfUsers),
		intValue(r.NumberOfLicensedUsers),
		stringValue(r.Architecture),
		stringValue(r.InstallTime),
		stringValue(r.BootTime),
	}
}

// OSInfoReader fills os_info from the management interface.
type OSInfoReader struct {
	Runtime   wbem.Runtime
	Namespace string
	Query     string
	Log       zerolog.Logger
}

func (r *OSInfoReader) Desc() *tuple.Desc {
	return OSInfoDesc
}

// Read connects, runs the query and emits one row per returned object.
// Setup failures release only what earlier steps acquired.
func (r *OSInfoReader) Read(_ context.Context, sink tuple.Sink) {
	log := r.Log.With().Str("table", OSInfoDesc.Name).Logger()

	namespace := r.Namespace
	if namespace == "" {
		namespace = wbem.DefaultNamespace
	}
	query := r.Query
	if query == "" {
		query = wbem.OperatingSystemQuery
	}

	var (
		locator  wbem.Locator
		services wbem.Services
		results  wbem.Enumerator
	)
	chain := staged.New(
		staged.Step{
			Name:    "initialize COM library",
			Acquire: r.Runtime.Initialize,
			Release: r.Runtime.Uninitialize,
		},
		staged.Step{
			Name:    "initialize security",
			Acquire: r.Runtime.InitializeSecurity,
		},
		staged.Step{
			Name: "create locator",
			Acquire: func() (err error) {
				locator, err = r.Runtime.NewLocator()
				return err
			},
			Release: func() { locator.Release() },
		},
		staged.Step{
			Name: "connect " + namespace,
			Acquire: func() (err error) {
				services, err = locator.ConnectServer(namespace)
				return err
			},
			Release: func() { services.Release() },
		},
		staged.Step{
			Name: "execute query",
			Acquire: func() (err error) {
				results, err = services.ExecQuery(wbem.QueryLanguage, query)
				return err
			},
			Release: func() { results.Release() },
		},
	)

	if err := chain.Acquire(); err != nil {
		log.Debug().Err(err).Msg("Failed to read operating system information")
		return
	}
	defer chain.Release()

	for {
		obj, err := results.Next()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			log.Debug().Err(err).Msg("Failed to enumerate query results")
			return
		}

		sink.PutValues(OSInfoDesc, osInfoRow(obj, log))
		obj.Release()
	}
}

func osInfoRow(obj wbem.Object, log zerolog.Logger) OSInfoRow {
	text := func(name string) null.String {
		w, err := obj.Wide(name)
		if err != nil {
			log.Debug().Err(err).Str("property", name).Msg("Property unavailable")
		}
		return decodeWide(w)
	}
	count := func(name string) null.Int {
		n, err := obj.Int32(name)
		if err != nil {
			log.Debug().Err(err).Str("property", name).Msg("Property unavailable")
		}
		return null.IntFrom(int64(n))
	}

	return OSInfoRow{
		Name:                    text("Caption"),
		Version:                 text("Version"),
		BuildVersion:            text("BuildNumber"),
		ServicePackMajorVersion: text("ServicePackMajorVersion"),
		ServicePackMinorVersion: text("ServicePackMinorVersion"),
		HostName:                text("CSName"),
		NumberOfUsers:           count("NumberOfUsers"),
		NumberOfLicensedUsers:   count("NumberOfLicensedUsers"),
		Architecture:            text("OSArchitecture"),
		InstallTime:             text("InstallDate"),
		BootTime:                text("LastBootUpTime"),
	}
}

func stringValue(s null.String) driver.Value {
	if !s.Valid {
		return nil
	}
	return s.String
}

func intValue(i null.Int) driver.Value {
	if !i.Valid {
		return nil
	}
	return i.Int64
}
