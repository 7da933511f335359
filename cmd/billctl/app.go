package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/garyjia/expense-capture/internal/application/capture"
	"github.com/garyjia/expense-capture/internal/application/confirmation"
	"github.com/garyjia/expense-capture/internal/application/dispatcher"
	"github.com/garyjia/expense-capture/internal/application/port"
	"github.com/garyjia/expense-capture/internal/domain/entity"
	"github.com/garyjia/expense-capture/internal/domain/event"
	"github.com/garyjia/expense-capture/internal/infrastructure/camera"
	"github.com/garyjia/expense-capture/internal/infrastructure/external/collaborator"
	"github.com/garyjia/expense-capture/pkg/utils"
)

// settings are the resolved persistent flags
type settings struct {
	Server     string
	User       string
	Timeout    time.Duration
	Debounce   time.Duration
	LogLevel   string
	Camera     string
	CameraArgs []string
}

func loadSettings(v *viper.Viper) settings {
	return settings{
		Server:     v.GetString("server"),
		User:       v.GetString("user"),
		Timeout:    v.GetDuration("timeout"),
		Debounce:   v.GetDuration("debounce"),
		LogLevel:   v.GetString("log-level"),
		Camera:     v.GetString("camera"),
		CameraArgs: v.GetStringSlice("camera-args"),
	}
}

// collaboratorAPI is everything billctl asks of the bill server
type collaboratorAPI interface {
	port.Ingester
	port.Confirmer
	port.BillLister
	port.FileRetriever
	port.QueryAnswerer
	Export(ctx context.Context, req port.ListRequest) ([]byte, string, error)
}

// cliApp wires the client core to the HTTP collaborator for one invocation
type cliApp struct {
	settings  settings
	principal entity.Principal
	auth      entity.Authorizer
	client    collaboratorAPI
	camera    port.Camera
	events    dispatcher.Dispatcher
	logger    *zap.Logger
	log       *utils.KVLogger
}

func newCLIApp(s settings) (*cliApp, error) {
	if s.Server == "" {
		return nil, fmt.Errorf("--server is required")
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      s.LogLevel,
		OutputPath: "stderr",
		Format:     "console",
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	client := collaborator.NewClient(s.Server, s.Timeout, collaborator.WithLogger(logger))
	cam := camera.NewCommandCamera(s.Camera, s.CameraArgs, 0, logger)
	return newCLIAppWith(s, client, cam, logger), nil
}

// newCLIAppWith assembles an app around an existing collaborator and camera
func newCLIAppWith(s settings, client collaboratorAPI, cam port.Camera, logger *zap.Logger) *cliApp {
	log := utils.NewKVLogger(logger)
	events := dispatcher.NewDispatcher(dispatcher.WithLogger(log))
	for _, t := range []event.Type{
		event.TypeConfirmationRequested,
		event.TypeConfirmationCancelled,
		event.TypeBillCommitted,
	} {
		events.Subscribe(t, "log", func(ctx context.Context, evt *event.Event) error {
			logger.Info("Bill event",
				zap.String("type", string(evt.Type)),
				zap.String("bill_id", evt.BillID),
				zap.Any("payload", evt.Payload))
			return nil
		})
	}

	return &cliApp{
		settings:  s,
		principal: entity.Principal{UserID: s.User},
		// the server stays authoritative; this only rejects a blank user early
		auth:   entity.NewAllowList(s.User),
		client: client,
		camera: cam,
		events: events,
		logger: logger,
		log:    log,
	}
}

func (a *cliApp) captureHandler() *capture.Handler {
	return capture.NewHandler(a.principal, a.auth, a.client, a.camera, a.log)
}

func (a *cliApp) confirmations(release func()) *confirmation.Manager {
	return confirmation.NewManager(confirmation.Dependencies{
		Principal: a.principal,
		Confirmer: a.client,
		Publisher: a.events,
		Logger:    a.log,
		Release:   release,
	})
}

func (a *cliApp) close() {
	_ = a.events.Close()
	_ = a.logger.Sync()
}
