package collectors

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/gysosin/system_stats/internal/tuple"
	"github.com/gysosin/system_stats/internal/wbem"
)

// fakeWMI counts every acquisition and release so tests can check that each
// resource is released exactly once.
type fakeWMI struct {
	failAt    string
	nextErrAt int
	objects   []map[string]any
	propErr   map[string]error

	acquired map[string]int
	released map[string]int
	events   []string

	namespace string
	language  string
	query     string
	read      map[string]int
}

func newFakeWMI(objects ...map[string]any) *fakeWMI {
	return &fakeWMI{
		objects:   objects,
		nextErrAt: -1,
		acquired:  map[string]int{},
		released:  map[string]int{},
		read:      map[string]int{},
	}
}

func (f *fakeWMI) acquire(name string) error {
	f.events = append(f.events, "acquire "+name)
	if f.failAt == name {
		return errors.New(name + " failed")
	}
	f.acquired[name]++
	return nil
}

func (f *fakeWMI) release(name string) {
	f.events = append(f.events, "release "+name)
	f.released[name]++
}

func (f *fakeWMI) Initialize() error         { return f.acquire("com") }
func (f *fakeWMI) Uninitialize()             { f.release("com") }
func (f *fakeWMI) InitializeSecurity() error { return f.acquire("security") }

func (f *fakeWMI) NewLocator() (wbem.Locator, error) {
	if err := f.acquire("locator"); err != nil {
		return nil, err
	}
	return fakeLocator{f}, nil
}

type fakeLocator struct{ f *fakeWMI }

func (l fakeLocator) ConnectServer(namespace string) (wbem.Services, error) {
	l.f.namespace = namespace
	if err := l.f.acquire("services"); err != nil {
		return nil, err
	}
	return fakeServices{l.f}, nil
}

func (l fakeLocator) Release() { l.f.release("locator") }

type fakeServices struct{ f *fakeWMI }

func (s fakeServices) ExecQuery(language, query string) (wbem.Enumerator, error) {
	s.f.language, s.f.query = language, query
	if err := s.f.acquire("results"); err != nil {
		return nil, err
	}
	return &fakeEnumerator{f: s.f}, nil
}

func (s fakeServices) Release() { s.f.release("services") }

type fakeEnumerator struct {
	f     *fakeWMI
	index int
}

func (e *fakeEnumerator) Next() (wbem.Object, error) {
	if e.index == e.f.nextErrAt {
		return nil, errors.New("enumeration failed")
	}
	if e.index >= len(e.f.objects) {
		return nil, io.EOF
	}
	obj := fakeObject{f: e.f, props: e.f.objects[e.index]}
	e.index++
	e.f.acquired["object"]++
	return obj, nil
}

func (e *fakeEnumerator) Release() { e.f.release("results") }

type fakeObject struct {
	f     *fakeWMI
	props map[string]any
}

func (o fakeObject) Wide(name string) ([]uint16, error) {
	o.f.read[name]++
	if err := o.f.propErr[name]; err != nil {
		return nil, err
	}
	s, _ := o.props[name].(string)
	return utf16.Encode([]rune(s)), nil
}

func (o fakeObject) Int32(name string) (int32, error) {
	o.f.read[name]++
	if err := o.f.propErr[name]; err != nil {
		return 0, err
	}
	n, _ := o.props[name].(int32)
	return n, nil
}

func (o fakeObject) Release() { o.f.released["object"]++ }

func windows10() map[string]any {
	return map[string]any{
		"Caption":                 "Microsoft Windows 10 Pro",
		"Version":                 "10.0.19045",
		"BuildNumber":             "19045",
		"ServicePackMajorVersion": "0",
		"ServicePackMinorVersion": "0",
		"CSName":                  "DESKTOP-01",
		"NumberOfUsers":           int32(2),
		"NumberOfLicensedUsers":   int32(0),
		"OSArchitecture":          "64-bit",
		"InstallDate":             "20230115093012.000000+060",
		"LastBootUpTime":          "20261018071500.500000+060",
	}
}

type OSInfoSuite struct {
	suite.Suite
	buf   bytes.Buffer
	store *tuple.Store
}

func (s *OSInfoSuite) SetupTest() {
	s.buf.Reset()
	s.store = tuple.NewStore()
}

func (s *OSInfoSuite) reader(f *fakeWMI) *OSInfoReader {
	return &OSInfoReader{Runtime: f, Log: debugLogger(&s.buf)}
}

func (s *OSInfoSuite) assertBalanced(f *fakeWMI) {
	for name, n := range f.acquired {
		if name == "security" {
			continue
		}
		s.Equal(n, f.released[name], "acquire/release mismatch for %s", name)
	}
	for name := range f.released {
		s.Contains(f.acquired, name, "%s released but never acquired", name)
	}
}

func (s *OSInfoSuite) TestSingleObject() {
	f := newFakeWMI(windows10())
	s.reader(f).Read(context.Background(), s.store)

	s.Require().Equal(1, s.store.Len())
	s.Same(OSInfoDesc, s.store.Desc())

	row := s.store.Rows()[0].(OSInfoRow)
	s.Equal("Microsoft Windows 10 Pro", row.Name.String)
	s.Equal("10.0.19045", row.Version.String)
	s.Equal("19045", row.BuildVersion.String)
	s.Equal("0", row.ServicePackMajorVersion.String)
	s.Equal("0", row.ServicePackMinorVersion.String)
	s.Equal("DESKTOP-01", row.HostName.String)
	s.Equal(int64(2), row.NumberOfUsers.Int64)
	s.True(row.NumberOfLicensedUsers.Valid)
	s.Equal(int64(0), row.NumberOfLicensedUsers.Int64)
	s.Equal("64-bit", row.Architecture.String)
	s.Equal("20230115093012.000000+060", row.InstallTime.String)
	s.Equal("20261018071500.500000+060", row.BootTime.String)

	s.Equal(wbem.DefaultNamespace, f.namespace)
	s.Equal(wbem.QueryLanguage, f.language)
	s.Equal(wbem.OperatingSystemQuery, f.query)
	for _, p := range wbem.OperatingSystemProperties {
		s.Equal(1, f.read[p], "property %s", p)
	}

	s.assertBalanced(f)
	s.Equal([]string{
		"acquire com", "acquire security", "acquire locator", "acquire services", "acquire results",
		"release results", "release services", "release locator", "release com",
	}, f.events)
	s.Empty(logLines(&s.buf))
}

func (s *OSInfoSuite) TestEmptyCaptionIsNull() {
	obj := windows10()
	obj["Caption"] = ""
	f := newFakeWMI(obj)

	s.reader(f).Read(context.Background(), s.store)

	s.Require().Equal(1, s.store.Len())
	row := s.store.Rows()[0].(OSInfoRow)
	s.False(row.Name.Valid)
	s.True(row.Version.Valid)
	s.Equal("10.0.19045", row.Version.String)

	values := row.Values()
	s.Nil(values[0])
	s.Equal("10.0.19045", values[1])
	s.Equal(int64(2), values[6])
}

func (s *OSInfoSuite) TestEmptyObjectKeepsCounts() {
	f := newFakeWMI(map[string]any{})
	s.reader(f).Read(context.Background(), s.store)

	s.Require().Equal(1, s.store.Len())
	values := s.store.Rows()[0].Values()
	for i, c := range OSInfoDesc.Columns {
		if c.Type == tuple.Int4 {
			s.Equal(int64(0), values[i], c.Name)
			continue
		}
		s.Nil(values[i], c.Name)
	}
}

func (s *OSInfoSuite) TestOneRowPerObject() {
	second := windows10()
	second["CSName"] = "DESKTOP-02"
	f := newFakeWMI(windows10(), second)

	s.reader(f).Read(context.Background(), s.store)

	s.Require().Equal(2, s.store.Len())
	s.Equal("DESKTOP-02", s.store.Rows()[1].(OSInfoRow).HostName.String)
	s.Equal(2, f.acquired["object"])
	s.assertBalanced(f)
}

func (s *OSInfoSuite) TestNoObjects() {
	f := newFakeWMI()
	s.reader(f).Read(context.Background(), s.store)

	s.Equal(0, s.store.Len())
	s.assertBalanced(f)
}

func (s *OSInfoSuite) TestSetupFailureReleasesEarlierSteps() {
	tests := []struct {
		failAt   string
		released []string
	}{
		{"com", nil},
		{"security", []string{"release com"}},
		{"locator", []string{"release com"}},
		{"services", []string{"release locator", "release com"}},
		{"results", []string{"release services", "release locator", "release com"}},
	}

	for _, tt := range tests {
		s.Run(tt.failAt, func() {
			s.SetupTest()
			f := newFakeWMI(windows10())
			f.failAt = tt.failAt

			s.reader(f).Read(context.Background(), s.store)

			s.Equal(0, s.store.Len())
			s.assertBalanced(f)

			var releases []string
			for _, e := range f.events {
				if len(e) > 8 && e[:8] == "release " {
					releases = append(releases, e)
				}
			}
			s.Equal(tt.released, releases)

			lines := logLines(&s.buf)
			s.Require().Len(lines, 1)
			s.Contains(lines[0], `"level":"debug"`)
			s.Contains(lines[0], tt.failAt+" failed")
		})
	}
}

func (s *OSInfoSuite) TestLocatorFailureTouchesNothingLater() {
	f := newFakeWMI(windows10())
	f.failAt = "locator"

	s.reader(f).Read(context.Background(), s.store)

	s.Equal(0, s.store.Len())
	s.Equal(1, f.released["com"])
	s.Zero(f.acquired["services"])
	s.Zero(f.acquired["results"])
	s.Zero(f.released["services"])
	s.Zero(f.released["results"])
	s.Empty(f.namespace)
	s.Empty(f.query)
}

func (s *OSInfoSuite) TestEnumerationErrorStopsAfterEmittedRows() {
	f := newFakeWMI(windows10(), windows10())
	f.nextErrAt = 1

	s.reader(f).Read(context.Background(), s.store)

	s.Equal(1, s.store.Len())
	s.assertBalanced(f)
	s.Len(logLines(&s.buf), 1)
}

func (s *OSInfoSuite) TestPropertyErrorNullsOnlyThatField() {
	f := newFakeWMI(windows10())
	f.propErr = map[string]error{"OSArchitecture": errors.New("not found")}

	s.reader(f).Read(context.Background(), s.store)

	s.Require().Equal(1, s.store.Len())
	row := s.store.Rows()[0].(OSInfoRow)
	s.False(row.Architecture.Valid)
	s.True(row.Name.Valid)
	s.Contains(s.buf.String(), "OSArchitecture")
}

func (s *OSInfoSuite) TestCustomNamespaceAndQuery() {
	f := newFakeWMI(windows10())
	r := s.reader(f)
	r.Namespace = `root\cimv2`
	r.Query = "SELECT Caption FROM Win32_OperatingSystem"

	r.Read(context.Background(), s.store)

	s.Equal(`root\cimv2`, f.namespace)
	s.Equal("SELECT Caption FROM Win32_OperatingSystem", f.query)
}

func TestOSInfoSuite(t *testing.T) {
	suite.Run(t, new(OSInfoSuite))
}

func TestDecodeWideRoundTrip(t *testing.T) {
	for _, s := range []string{
		"Microsoft Windows 11 Pro",
		"10.0.22631",
		"Windows 10 Professionnel é",
		"Windows Server 2022 数据中心",
		"emoji 🖥 host",
	} {
		got := decodeWide(utf16.Encode([]rune(s)))
		require.True(t, got.Valid, s)
		assert.Equal(t, s, got.String)
	}
}

func TestDecodeWideEmptyIsNull(t *testing.T) {
	assert.False(t, decodeWide(nil).Valid)
	assert.False(t, decodeWide([]uint16{}).Valid)
}

func TestDecodeWideDoesNotInspectContent(t *testing.T) {
	got := decodeWide([]uint16{' '})
	assert.True(t, got.Valid)
	assert.Equal(t, " ", got.String)

	zero := decodeWide([]uint16{0})
	assert.True(t, zero.Valid)
}
