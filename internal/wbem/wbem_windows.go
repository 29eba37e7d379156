//go:build windows
// +build windows

package wbem

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"unicode/utf16"
	"unsafe"

	"github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
	"github.com/yusufpapurcu/wmi"
	"golang.org/x/sys/windows"
)

const (
	sFalse      = 0x00000001
	rpcETooLate = 0x80010119

	rpcCAuthnLevelDefault   = 0
	rpcCImpLevelImpersonate = 3
	eoacNone                = 0
)

var (
	modole32                 = windows.NewLazySystemDLL("ole32.dll")
	procCoInitializeSecurity = modole32.NewProc("CoInitializeSecurity")
)

// win32_OperatingSystem lists the properties os_info reads. Only the field
// names matter; they become the WQL select list.
type win32_OperatingSystem struct {
	Caption                 string
	Version                 string
	BuildNumber             string
	ServicePackMajorVersion uint16
	ServicePackMinorVersion uint16
	CSName                  string
	NumberOfUsers           uint32
	NumberOfLicensedUsers   uint32
	OSArchitecture          string
	InstallDate             string
	LastBootUpTime          string
}

// SelectOperatingSystem returns a WQL query for Win32_OperatingSystem that
// names only the properties os_info reads.
func SelectOperatingSystem() string {
	return wmi.CreateQuery(&[]win32_OperatingSystem{}, "")
}

type comRuntime struct{}

// NewRuntime returns the COM-backed runtime.
func NewRuntime() Runtime {
	return comRuntime{}
}

// Initialize joins the multithreaded apartment. The calling goroutine stays
// on its OS thread until Uninitialize.
func (comRuntime) Initialize() error {
	runtime.LockOSThread()
	if err := ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED); err != nil {
		var oleErr *ole.OleError
		if errors.As(err, &oleErr) && oleErr.Code() == sFalse {
			// already initialized on this thread; still needs a matching uninit
			return nil
		}
		runtime.UnlockOSThread()
		return fmt.Errorf("CoInitializeEx: %w", err)
	}
	return nil
}

func (comRuntime) Uninitialize() {
	ole.CoUninitialize()
	runtime.UnlockOSThread()
}

// InitializeSecurity sets default authentication with impersonation. A
// process may only do this once, so RPC_E_TOO_LATE counts as success.
func (comRuntime) InitializeSecurity() error {
	hr, _, _ := procCoInitializeSecurity.Call(
		0,
		^uintptr(0), // cAuthSvc = -1
		0,
		0,
		rpcCAuthnLevelDefault,
		rpcCImpLevelImpersonate,
		0,
		eoacNone,
		0,
	)
	if uint32(hr) == rpcETooLate || int32(hr) >= 0 {
		return nil
	}
	return fmt.Errorf("CoInitializeSecurity: %w", ole.NewError(hr))
}

func (comRuntime) NewLocator() (Locator, error) {
	unknown, err := oleutil.CreateObject("WbemScripting.SWbemLocator")
	if err != nil {
		return nil, fmt.Errorf("create SWbemLocator: %w", err)
	}
	defer unknown.Release()

	disp, err := unknown.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		return nil, fmt.Errorf("query IDispatch: %w", err)
	}
	return &locator{disp: disp}, nil
}

type locator struct {
	disp *ole.IDispatch
}

func (l *locator) ConnectServer(namespace string) (Services, error) {
	raw, err := oleutil.CallMethod(l.disp, "ConnectServer", nil, namespace)
	if err != nil {
		return nil, fmt.Errorf("ConnectServer %s: %w", namespace, err)
	}
	return &services{raw: raw, disp: raw.ToIDispatch()}, nil
}

func (l *locator) Release() {
	l.disp.Release()
}

type services struct {
	raw  *ole.VARIANT
	disp *ole.IDispatch
}

func (s *services) ExecQuery(language, query string) (Enumerator, error) {
	raw, err := oleutil.CallMethod(s.disp, "ExecQuery", query, language)
	if err != nil {
		return nil, fmt.Errorf("ExecQuery: %w", err)
	}
	return &enumerator{raw: raw, disp: raw.ToIDispatch(), count: -1}, nil
}

func (s *services) Release() {
	_ = s.raw.Clear()
}

type enumerator struct {
	raw   *ole.VARIANT
	disp  *ole.IDispatch
	count int
	index int
}

func (e *enumerator) Next() (Object, error) {
	if e.count < 0 {
		v, err := oleutil.GetProperty(e.disp, "Count")
		if err != nil {
			return nil, fmt.Errorf("result count: %w", err)
		}
		e.count = int(v.Val)
		_ = v.Clear()
	}
	if e.index >= e.count {
		return nil, io.EOF
	}

	raw, err := oleutil.CallMethod(e.disp, "ItemIndex", e.index)
	if err != nil {
		return nil, fmt.Errorf("result %d: %w", e.index, err)
	}
	e.index++
	return &object{raw: raw, disp: raw.ToIDispatch()}, nil
}

func (e *enumerator) Release() {
	_ = e.raw.Clear()
}

type object struct {
	raw  *ole.VARIANT
	disp *ole.IDispatch
}

func (o *object) Wide(name string) ([]uint16, error) {
	v, err := oleutil.GetProperty(o.disp, name)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", name, err)
	}
	defer v.Clear()

	switch v.VT {
	case ole.VT_BSTR:
		p := *(**uint16)(unsafe.Pointer(&v.Val))
		if p == nil {
			return nil, nil
		}
		n := ole.SysStringLen((*int16)(unsafe.Pointer(p)))
		out := make([]uint16, n)
		copy(out, unsafe.Slice(p, n))
		return out, nil
	case ole.VT_NULL, ole.VT_EMPTY:
		return nil, nil
	default:
		// numeric properties such as ServicePackMajorVersion
		return utf16.Encode([]rune(fmt.Sprint(v.Value()))), nil
	}
}

func (o *object) Int32(name string) (int32, error) {
	v, err := oleutil.GetProperty(o.disp, name)
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", name, err)
	}
	defer v.Clear()
	return int32(v.Val), nil
}

func (o *object) Release() {
	_ = o.raw.Clear()
}
