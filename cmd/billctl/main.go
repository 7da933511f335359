package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/garyjia/expense-capture/internal/application/listing"
	"github.com/garyjia/expense-capture/internal/domain/entity"
)

var (
	settingsViper = viper.New()
	app           *cliApp

	// newApp builds the per-invocation app from resolved settings
	newApp = newCLIApp
)

var rootCmd = &cobra.Command{
	Use:   "billctl",
	Short: "Capture, confirm and browse expense bills",
	Long: `billctl talks to a bill server. Upload a receipt or photograph one, review
what the extractor read, fix missing fields and commit. Committed bills can be
listed, searched, exported to a spreadsheet and queried in plain language.

Settings come from flags, BILLCTL_* environment variables or a .env file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := gotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}
		a, err := newApp(loadSettings(settingsViper))
		if err != nil {
			return err
		}
		app = a
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if app != nil {
			app.close()
		}
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("server", "http://localhost:8000", "bill server base URL")
	pf.String("user", entity.DefaultUserID, "user id requests act for")
	pf.Duration("timeout", 2*time.Minute, "per-request timeout")
	pf.Duration("debounce", listing.DefaultDebounce, "search debounce window for interactive listing")
	pf.String("log-level", "warn", "log level: debug, info, warn, error")
	pf.String("camera", "fswebcam", "program that writes one JPEG frame to stdout")
	pf.StringSlice("camera-args", []string{"--no-banner", "-q", "-"}, "arguments for the camera program")

	for _, name := range []string{"server", "user", "timeout", "debounce", "log-level", "camera", "camera-args"} {
		_ = settingsViper.BindPFlag(name, pf.Lookup(name))
	}
	settingsViper.SetEnvPrefix("BILLCTL")
	settingsViper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	settingsViper.AutomaticEnv()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
