//go:build windows

package main

import (
	"context"
	"fmt"

	"golang.org/x/sys/windows/svc"
)

const windowsServiceName = "HealthFacade"

// isWindowsService reports whether the process was started by the Windows
// Service Control Manager.
func isWindowsService() bool {
	ok, err := svc.IsWindowsService()
	if err != nil {
		return false
	}
	return ok
}

type facadeService struct {
	serveFn func(context.Context) error
}

// runAsService runs serveFn under the Windows Service Control Manager.
// serveFn must return once its context is cancelled.
func runAsService(serveFn func(context.Context) error) error {
	return svc.Run(windowsServiceName, &facadeService{serveFn: serveFn})
}

// Execute is the SCM callback. The server runs until the SCM sends Stop or
// Shutdown, or until it fails on its own.
func (s *facadeService) Execute(args []string, r <-chan svc.ChangeRequest, changes chan<- svc.Status) (bool, uint32) {
	const accepted = svc.AcceptStop | svc.AcceptShutdown

	changes <- svc.Status{State: svc.StartPending}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- s.serveFn(ctx) }()

	changes <- svc.Status{State: svc.Running, Accepts: accepted}
	log.Info("running as Windows service")

	for {
		select {
		case err := <-errCh:
			changes <- svc.Status{State: svc.StopPending}
			if err != nil {
				log.Error("server failed", "error", err)
				return true, 1
			}
			return false, 0
		case cr := <-r:
			switch cr.Cmd {
			case svc.Interrogate:
				changes <- cr.CurrentStatus
			case svc.Stop, svc.Shutdown:
				log.Info("SCM requested stop")
				changes <- svc.Status{State: svc.StopPending}
				cancel()
				if err := <-errCh; err != nil {
					log.Error("server stopped with error", "error", err)
				}
				return false, 0
			default:
				log.Warn(fmt.Sprintf("unexpected SCM control request #%d", cr.Cmd))
			}
		}
	}
}
