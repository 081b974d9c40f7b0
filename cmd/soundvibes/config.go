package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/AKuederle/soundvibes/internal/inject"
	"github.com/AKuederle/soundvibes/internal/logging"
)

// bindViper wires a command's flags into a viper instance with the standard
// config file search order and SOUNDVIBES_* env var prefix.
//
// Precedence (lowest → highest): defaults → config file → SOUNDVIBES_* env vars → flags
func bindViper(cmd *cobra.Command, v *viper.Viper) error {
	configFlag, _ := cmd.Flags().GetString("config")
	if configFlag != "" {
		v.SetConfigFile(configFlag)
	} else {
		v.SetConfigName("soundvibes")
		v.SetConfigType("toml")
		v.AddConfigPath("/etc/soundvibes/")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "soundvibes"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("config: %w", err)
		}
	}

	v.SetEnvPrefix("SOUNDVIBES")
	// SOUNDVIBES_SETTLE_DELAY for --settle-delay.
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}
	return nil
}

// addLoggingFlags adds the standard logging flags to a command.
func addLoggingFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("no-background", false, "run interactively: tinter logs + debug level")
	cmd.Flags().String("log-format", "auto", "log format: auto|text|json")
	cmd.Flags().String("log-level", "", "log level: debug|info|warn|error (default: info for service, debug for interactive)")
}

// addConfigFlag adds the --config flag to a command.
func addConfigFlag(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "path to config file (overrides auto-discovery)")
}

// addSocketFlag adds the daemon --socket flag to a command.
func addSocketFlag(cmd *cobra.Command) {
	cmd.Flags().String("socket", "", "daemon socket path (default $XDG_RUNTIME_DIR/soundvibes.sock)")
}

// addEngineFlags adds the flags that configure an injection engine.
func addEngineFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("backend", "auto", "injection backend: auto|paste|ydotool|wtype|xdotool")
	f.Duration("settle-delay", inject.DefaultSettleDelay, "wait after the paste shortcut before restoring the clipboard")
	f.Duration("timeout", 0, "abort an injection after this long (0 = no limit)")
	f.Bool("logind", false, "ask systemd-logind for the session type when XDG_SESSION_TYPE is unset")
}

// setupLogging reads logging flags from viper and configures slog.
func setupLogging(v *viper.Viper) {
	interactive := v.GetBool("no-background") || logging.IsTTY(os.Stderr)
	resolveLogging(interactive, v.GetString("log-format"), v.GetString("log-level"))
}
