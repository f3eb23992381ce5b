// Package privilege reports whether the process runs with administrative
// rights. appcmd refuses to read the IIS configuration without them.
package privilege

// Elevated reports whether the current process is elevated (Windows) or
// running as root (elsewhere).
func Elevated() bool {
	return elevated()
}
