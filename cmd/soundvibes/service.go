package main

import (
	"errors"
	"fmt"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// serviceConfig describes the per-user daemon unit. The installed unit runs
// "soundvibes serve", passing the config file through when one was given.
func serviceConfig(v *viper.Viper) *service.Config {
	args := []string{"serve"}
	if cfg := v.GetString("config"); cfg != "" {
		args = append(args, "--config", cfg)
	}
	return &service.Config{
		Name:        "soundvibes",
		DisplayName: "soundvibes",
		Description: "Types dictated text into the focused window",
		Arguments:   args,
		Option: service.KeyValue{
			"UserService": true,
			"Restart":     "on-failure",
		},
	}
}

func newServiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage the soundvibes user service",
		Long: `Installs and controls a per-user service (a systemd user unit on Linux)
that runs "soundvibes serve" in the graphical session.`,
		Args: cobra.NoArgs,
	}
	for _, action := range service.ControlAction {
		cmd.AddCommand(newServiceActionCmd(action))
	}
	cmd.AddCommand(newServiceStatusCmd())
	return cmd
}

func newServiceActionCmd(action string) *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:     action,
		Short:   fmt.Sprintf("%s the user service", action),
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := service.New(nil, serviceConfig(v))
			if err != nil {
				return fmt.Errorf("service: %w", err)
			}
			if err := service.Control(s, action); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "soundvibes service: %s ok\n", action)
			return nil
		},
	}
	addConfigFlag(cmd)
	return cmd
}

func newServiceStatusCmd() *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:     "status",
		Short:   "Show whether the user service is installed and running",
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := service.New(nil, serviceConfig(v))
			if err != nil {
				return fmt.Errorf("service: %w", err)
			}
			st, err := s.Status()
			if err != nil && !errors.Is(err, service.ErrNotInstalled) {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "soundvibes service (%s): %s\n", service.Platform(), serviceStatusText(st, err))
			return nil
		},
	}
	addConfigFlag(cmd)
	return cmd
}

func serviceStatusText(st service.Status, err error) string {
	if errors.Is(err, service.ErrNotInstalled) {
		return "not installed"
	}
	switch st {
	case service.StatusRunning:
		return "running"
	case service.StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
