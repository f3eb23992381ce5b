//go:build !windows

package config

// Non-Windows hosts have neither tool; PATH lookup lets tests and shims stand in.
func defaultNetCommand() string { return "net" }

func defaultAppcmdCommand() string { return "appcmd.exe" }
