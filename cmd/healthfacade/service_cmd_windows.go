//go:build windows

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/mgr"

	"github.com/thealah/rest-windows-service-health-facade/internal/privilege"
)

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Manage the healthfacade Windows service",
}

func init() {
	rootCmd.AddCommand(serviceCmd)
	serviceCmd.AddCommand(serviceInstallCmd)
	serviceCmd.AddCommand(serviceUninstallCmd)
	serviceCmd.AddCommand(serviceStartCmd)
	serviceCmd.AddCommand(serviceStopCmd)
}

// openService connects to the SCM and opens the installed service. The
// returned func releases both handles.
func openService() (*mgr.Service, func(), error) {
	m, err := mgr.Connect()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to SCM (run as Administrator): %w", err)
	}
	s, err := m.OpenService(windowsServiceName)
	if err != nil {
		m.Disconnect()
		return nil, nil, fmt.Errorf("failed to open service: %w", err)
	}
	return s, func() {
		s.Close()
		m.Disconnect()
	}, nil
}

var serviceInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install healthfacade as a Windows service",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !privilege.Elevated() {
			return errors.New("installing a service requires an elevated prompt")
		}
		exePath, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to determine executable path: %w", err)
		}

		m, err := mgr.Connect()
		if err != nil {
			return fmt.Errorf("failed to connect to SCM (run as Administrator): %w", err)
		}
		defer m.Disconnect()

		svcArgs := []string{"run"}
		if cfgFile != "" {
			abs, err := filepath.Abs(cfgFile)
			if err != nil {
				return fmt.Errorf("resolve config path: %w", err)
			}
			svcArgs = append(svcArgs, "--config", abs)
		}

		s, err := m.CreateService(windowsServiceName, exePath, mgr.Config{
			DisplayName:  "Windows Service HealthCheck REST API",
			Description:  "Reports Windows service and IIS website health over HTTP",
			StartType:    mgr.StartAutomatic,
			ErrorControl: mgr.ErrorNormal,
		}, svcArgs...)
		if err != nil {
			return fmt.Errorf("failed to create service: %w", err)
		}
		defer s.Close()

		err = s.SetRecoveryActions([]mgr.RecoveryAction{
			{Type: mgr.ServiceRestart, Delay: 5 * time.Second},
			{Type: mgr.ServiceRestart, Delay: 10 * time.Second},
			{Type: mgr.ServiceRestart, Delay: 30 * time.Second},
		}, 86400) // reset failure count after 24 h
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to set recovery actions: %v\n", err)
		}

		fmt.Printf("Service %q installed successfully.\n", windowsServiceName)
		return nil
	},
}

var serviceUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Uninstall the healthfacade Windows service",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, release, err := openService()
		if err != nil {
			return err
		}
		defer release()

		if status, err := s.Query(); err == nil && status.State != svc.Stopped {
			_, _ = s.Control(svc.Stop)
			if err := waitForState(s, svc.Stopped, 15*time.Second); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
			}
		}

		if err := s.Delete(); err != nil {
			return fmt.Errorf("failed to delete service: %w", err)
		}

		fmt.Printf("Service %q uninstalled.\n", windowsServiceName)
		return nil
	},
}

var serviceStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the healthfacade Windows service",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, release, err := openService()
		if err != nil {
			return err
		}
		defer release()

		if err := s.Start(); err != nil {
			return fmt.Errorf("failed to start service: %w", err)
		}

		fmt.Printf("Service %q started.\n", windowsServiceName)
		return nil
	},
}

var serviceStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the healthfacade Windows service",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, release, err := openService()
		if err != nil {
			return err
		}
		defer release()

		if _, err := s.Control(svc.Stop); err != nil {
			return fmt.Errorf("failed to stop service: %w", err)
		}
		if err := waitForState(s, svc.Stopped, 15*time.Second); err != nil {
			return err
		}

		fmt.Printf("Service %q stopped.\n", windowsServiceName)
		return nil
	},
}

func waitForState(s *mgr.Service, want svc.State, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		st, err := s.Query()
		if err != nil {
			return fmt.Errorf("query service: %w", err)
		}
		if st.State == want {
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	return errors.New("timed out waiting for the service to stop")
}
