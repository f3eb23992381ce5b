//go:build !windows

package main

import (
	"context"
	"errors"
)

func isWindowsService() bool { return false }

func runAsService(_ func(context.Context) error) error {
	return errors.New("Windows service mode is not available on this platform")
}
