package connectivity

import (
	"context"
	stdsync "sync"
	"time"

	"golang.org/x/exp/slog"
)

// Pinger проверяет доступность сервера
type Pinger interface {
	Ping(ctx context.Context) error
}

// Monitor - сигнал доступности сети для платформ без нативного события:
// периодически пингует сервер и уведомляет подписчиков о переходах
// online/offline.
type Monitor struct {
	pinger   Pinger
	interval time.Duration
	log      *slog.Logger

	mu     stdsync.Mutex
	online bool
	nextID int
	subs   map[int]func(online bool)
}

func NewMonitor(pinger Pinger, interval time.Duration, log *slog.Logger) *Monitor {
	return &Monitor{
		pinger:   pinger,
		interval: interval,
		log:      log,
		subs:     make(map[int]func(bool)),
	}
}

// Online возвращает последнее известное состояние сети
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe регистрирует колбэк на переходы online/offline
func (m *Monitor) Subscribe(fn func(online bool)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.subs[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// Check выполняет одну проверку доступности и рассылает уведомления при
// смене состояния
func (m *Monitor) Check(ctx context.Context) bool {
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	online := m.pinger.Ping(pingCtx) == nil
	m.setOnline(online)
	return online
}

// Start блокируется и опрашивает сервер до отмены контекста
func (m *Monitor) Start(ctx context.Context) {
	m.Check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

func (m *Monitor) setOnline(online bool) {
	m.mu.Lock()
	changed := online != m.online
	m.online = online
	var subs []func(bool)
	if changed {
		for _, fn := range m.subs {
			subs = append(subs, fn)
		}
	}
	m.mu.Unlock()

	if !changed {
		return
	}

	m.log.Info("connectivity changed", "online", online)
	for _, fn := range subs {
		fn(online)
	}
}
