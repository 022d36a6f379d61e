package service

import (
	"context"

	"battery_dashboard/internal/client"
	"battery_dashboard/internal/models"
)

// Device is the remote battery/relay backend. *client.Client implements it.
type Device interface {
	GetBattery(ctx context.Context) (models.BatteryTelemetry, error)
	GetLogs(ctx context.Context) ([]client.RemoteLog, error)
	SetRelay(ctx context.Context, on bool) error
	SetMode(ctx context.Context, mode models.OperatingMode) error
	GetMode(ctx context.Context) (models.OperatingMode, error)
	SetAutoShutoff(ctx context.Context, enabled bool, threshold int) error
}

var _ Device = (*client.Client)(nil)
