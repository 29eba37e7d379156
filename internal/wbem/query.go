package wbem

// OperatingSystemProperties are the Win32_OperatingSystem properties read
// for the os_info table, in column order.
var OperatingSystemProperties = []string{
	"Caption",
	"Version",
	"BuildNumber",
	"ServicePackMajorVersion",
	"ServicePackMinorVersion",
	"CSName",
	"NumberOfUsers",
	"NumberOfLicensedUsers",
	"OSArchitecture",
	"InstallDate",
	"LastBootUpTime",
}

// OperatingSystemQuery selects the single operating system instance.
const OperatingSystemQuery = "SELECT * FROM Win32_OperatingSystem"
