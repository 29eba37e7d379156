// Package exporter exposes the tables as Prometheus metrics. Every scrape
// runs each table once; null fields produce no sample.
package exporter

import (
	"context"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gysosin/system_stats/internal/collectors"
)

const namespace = "system_stats"

// Collector implements prometheus.Collector over a set of tables.
type Collector struct {
	tables []collectors.Table

	tableRows     *prometheus.Desc
	loadAvg       *prometheus.Desc
	osInfo        *prometheus.Desc
	users         *prometheus.Desc
	licensedUsers *prometheus.Desc
}

// NewCollector returns a collector over tables.
func NewCollector(tables []collectors.Table) *Collector {
	return &Collector{
		tables: tables,
		tableRows: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "table_rows"),
			"Rows emitted by a table on the last scrape.",
			[]string{"table"}, nil,
		),
		loadAvg: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "load_avg"),
			"Kernel load average by window.",
			[]string{"window"}, nil,
		),
		osInfo: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "os", "info"),
			"Operating system information (labels only).",
			[]string{"name", "version", "build_version", "host_name", "os_architecture", "os_boot_time"}, nil,
		),
		users: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "os", "users"),
			"Number of user sessions.",
			[]string{"host_name"}, nil,
		),
		licensedUsers: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "os", "licensed_users"),
			"Number of licensed user sessions.",
			[]string{"host_name"}, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.tableRows
	ch <- c.loadAvg
	ch <- c.osInfo
	ch <- c.users
	ch <- c.licensedUsers
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx := context.Background()
	seen := make(labelSets)
	for _, t := range c.tables {
		store := collectors.Collect(ctx, t)
		ch <- prometheus.MustNewConstMetric(c.tableRows, prometheus.GaugeValue, float64(store.Len()), t.Desc().Name)

		for _, row := range store.Rows() {
			switch r := row.(type) {
			case collectors.LoadAvgRow:
				c.collectLoadAvg(ch, r)
			case collectors.OSInfoRow:
				c.collectOSInfo(ch, r, seen)
			}
		}
	}
}

func (c *Collector) collectLoadAvg(ch chan<- prometheus.Metric, r collectors.LoadAvgRow) {
	windows := []struct {
		label string
		valid bool
		value float64
	}{
		{"1m", r.OneMinute.Valid, r.OneMinute.Float64},
		{"5m", r.FiveMinutes.Valid, r.FiveMinutes.Float64},
		{"10m", r.TenMinutes.Valid, r.TenMinutes.Float64},
		{"15m", r.FifteenMinutes.Valid, r.FifteenMinutes.Float64},
	}
	for _, w := range windows {
		if !w.valid {
			continue
		}
		ch <- prometheus.MustNewConstMetric(c.loadAvg, prometheus.GaugeValue, w.value, w.label)
	}
}

// labelSets records the label values already sent per descriptor during one
// scrape. Several os_info rows may carry identical labels.
type labelSets map[*prometheus.Desc]map[string]struct{}

func (l labelSets) first(desc *prometheus.Desc, values ...string) bool {
	key := strings.Join(values, "\xff")
	set, ok := l[desc]
	if !ok {
		set = make(map[string]struct{})
		l[desc] = set
	}
	if _, dup := set[key]; dup {
		return false
	}
	set[key] = struct{}{}
	return true
}

func (c *Collector) collectOSInfo(ch chan<- prometheus.Metric, r collectors.OSInfoRow, seen labelSets) {
	labels := []string{
		r.Name.String,
		r.Version.String,
		r.BuildVersion.String,
		r.HostName.String,
		r.Architecture.String,
		r.BootTime.String,
	}
	if seen.first(c.osInfo, labels...) {
		ch <- prometheus.MustNewConstMetric(c.osInfo, prometheus.GaugeValue, 1, labels...)
	}
	if r.NumberOfUsers.Valid && seen.first(c.users, r.HostName.String) {
		ch <- prometheus.MustNewConstMetric(c.users, prometheus.GaugeValue, float64(r.NumberOfUsers.Int64), r.HostName.String)
	}
	if r.NumberOfLicensedUsers.Valid && seen.first(c.licensedUsers, r.HostName.String) {
		ch <- prometheus.MustNewConstMetric(c.licensedUsers, prometheus.GaugeValue, float64(r.NumberOfLicensedUsers.Int64), r.HostName.String)
	}
}
