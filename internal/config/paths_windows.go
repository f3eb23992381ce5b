//go:build windows

package config

import (
	"path/filepath"

	"golang.org/x/sys/windows"
)

func defaultNetCommand() string {
	dir, err := windows.GetSystemDirectory()
	if err != nil {
		return "net.exe"
	}
	return filepath.Join(dir, "net.exe")
}

func defaultAppcmdCommand() string {
	dir, err := windows.GetSystemDirectory()
	if err != nil {
		return "appcmd.exe"
	}
	return filepath.Join(dir, "inetsrv", "appcmd.exe")
}
