// Package wbem models the pieces of the Windows management interface the
// os_info table needs: a COM runtime, a locator, a namespace connection, a
// query enumerator and the objects it yields.
package wbem

const (
	// DefaultNamespace is the namespace holding the Win32 classes.
	DefaultNamespace = `ROOT\CIMV2`
	// QueryLanguage is the only language ExecQuery accepts.
	QueryLanguage = "WQL"
)

// Runtime is the process side of the interop subsystem.
type Runtime interface {
	Initialize() error
	Uninitialize()
	InitializeSecurity() error
	NewLocator() (Locator, error)
}

// Locator hands out namespace connections.
type Locator interface {
	ConnectServer(namespace string) (Services, error)
	Release()
}

// Services is a connection to one namespace.
type Services interface {
	ExecQuery(language, query string) (Enumerator, error)
	Release()
}

// Enumerator walks query results. Next blocks until the next object is
// available and returns io.EOF once the results are exhausted.
type Enumerator interface {
	Next() (Object, error)
	Release()
}

// Object is one management object.
type Object interface {
	// Wide returns the property as UTF-16 code units, without terminator.
	// The slice is owned by the caller.
	Wide(name string) ([]uint16, error)
	Int32(name string) (int32, error)
	Release()
}
