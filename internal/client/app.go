package client

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/exp/slog"

	"fieldvisit/internal/config"
	"fieldvisit/internal/connectivity"
	"fieldvisit/internal/storage/sqlite"
	"fieldvisit/internal/sync"
	"fieldvisit/internal/transport"
)

// App - собранное клиентское приложение: хранилище, транспорт, сигнал сети
// и движок синхронизации.
type App struct {
	cfg     *config.Client
	log     *slog.Logger
	storage *sqlite.Storage
	monitor *connectivity.Monitor
	engine  *sync.Engine
}

// New собирает приложение из конфигурации
func New(ctx context.Context, cfg *config.Client, log *slog.Logger) (*App, error) {
	storage, err := sqlite.New(cfg.DataPath, log)
	if err != nil {
		return nil, fmt.Errorf("open local storage: %w", err)
	}

	tr := transport.New(cfg.ServerAddress, log)
	monitor := connectivity.NewMonitor(tr, time.Duration(cfg.ProbeIntervalSeconds)*time.Second, log)

	syncCfg := &sync.Config{
		Interval:            time.Duration(cfg.SyncIntervalMinutes) * time.Minute,
		LockTTL:             time.Duration(cfg.SyncLockTTLMinutes) * time.Minute,
		RemoteWinsWhenNewer: cfg.RemoteWinsWhenNewer,
	}

	// Фонового планировщика на десктопе нет - движок деградирует до таймера
	engine, err := sync.New(ctx, storage, storage.KV(), tr, monitor, nil, syncCfg, log)
	if err != nil {
		storage.Close()
		return nil, fmt.Errorf("init sync engine: %w", err)
	}

	return &App{
		cfg:     cfg,
		log:     log,
		storage: storage,
		monitor: monitor,
		engine:  engine,
	}, nil
}

// Engine возвращает движок синхронизации
func (a *App) Engine() *sync.Engine {
	return a.engine
}

// Storage возвращает локальное хранилище записей
func (a *App) Storage() *sqlite.Storage {
	return a.storage
}

// Monitor возвращает сигнал доступности сети
func (a *App) Monitor() *connectivity.Monitor {
	return a.monitor
}

// CheckConnection выполняет немедленную проверку доступности сервера
func (a *App) CheckConnection(ctx context.Context) bool {
	return a.monitor.Check(ctx)
}

// Close освобождает ресурсы приложения
func (a *App) Close() error {
	return a.storage.Close()
}
