package sync

import (
	"context"
	"time"

	"fieldvisit/internal/model"
)

// Ключи внешнего key-value хранилища, принадлежащие движку синхронизации
const (
	keyStats      = "syncStats"
	keyQueue      = "syncQueue"
	keyCheckpoint = "lastSyncTimestamp"
	keyLock       = "isSyncing"
)

// RecordStore - локальное хранилище записей о визитах. Хранилище владеет
// персистентностью записей; движок только читает и обновляет их.
type RecordStore interface {
	Get(ctx context.Context, id string) (*model.VisitRecord, error)
	Add(ctx context.Context, rec *model.VisitRecord) error
	Update(ctx context.Context, rec *model.VisitRecord) error
	Delete(ctx context.Context, id string) error

	// Запросы по полям, используемые движком
	Unsynced(ctx context.Context) ([]*model.VisitRecord, error)
	Conflicted(ctx context.Context) ([]*model.VisitRecord, error)
	WithSyncErrors(ctx context.Context) ([]*model.VisitRecord, error)
}

// KeyValue - персистентное key-value хранилище для syncStats, syncQueue,
// lastSyncTimestamp и isSyncing. Отдельно от хранилища записей.
type KeyValue interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Transport - сетевой транспорт до удаленного сервера
type Transport interface {
	// PushRecord отправляет целую запись одним запросом
	PushRecord(ctx context.Context, rec *model.VisitRecord) error

	// PushChunk отправляет один чанк; чанки одной записи отправляются
	// строго последовательно в порядке конвейера
	PushChunk(ctx context.Context, chunk Chunk) error

	// PullChanges возвращает записи, измененные на сервере после since
	PullChanges(ctx context.Context, since time.Time) ([]*model.VisitRecord, error)
}

// Connectivity - сигнал доступности сети
type Connectivity interface {
	Online() bool

	// Subscribe регистрирует колбэк на переходы online/offline,
	// возвращает функцию отписки
	Subscribe(fn func(online bool)) (unsubscribe func())
}

// Scheduler - опциональный механизм фоновых задач платформы.
// Отсутствие (nil) деградирует до foreground-таймера.
type Scheduler interface {
	Register(name string, task func(ctx context.Context)) error
}
