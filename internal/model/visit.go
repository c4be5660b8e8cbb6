package model

import "time"

// VisitStatus жизненный цикл визита
type VisitStatus string

const (
	StatusScheduled  VisitStatus = "scheduled"
	StatusInProgress VisitStatus = "in_progress"
	StatusCompleted  VisitStatus = "completed"
	StatusCancelled  VisitStatus = "cancelled"
)

// VisitType тип выезда
type VisitType string

const (
	TypeInspection   VisitType = "inspection"
	TypeMaintenance  VisitType = "maintenance"
	TypeInstallation VisitType = "installation"
	TypeRepair       VisitType = "repair"
)

// VisitPriority приоритет визита
type VisitPriority string

const (
	PriorityLow    VisitPriority = "low"
	PriorityNormal VisitPriority = "normal"
	PriorityHigh   VisitPriority = "high"
	PriorityUrgent VisitPriority = "urgent"
)

// VisitRecord - запись о выезде, единица синхронизации.
// Поля конфликта (ConflictDetected, ServerVersion, SyncAttempts,
// LastSyncError) заполнены только пока конфликт не разрешен.
type VisitRecord struct {
	ID          string        `json:"id"`
	ClientName  string        `json:"client_name"`
	Address     string        `json:"address"`
	ScheduledAt time.Time     `json:"scheduled_at"`
	Notes       string        `json:"notes,omitempty"`
	Status      VisitStatus   `json:"status"`
	Type        VisitType     `json:"type"`
	Priority    VisitPriority `json:"priority"`
	Photos      []Photo       `json:"photos"`
	Documents   []Document    `json:"documents"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`

	Synced           bool         `json:"synced"`
	ConflictDetected bool         `json:"conflict_detected,omitempty"`
	ServerVersion    *VisitRecord `json:"server_version,omitempty"`
	SyncAttempts     int          `json:"sync_attempts,omitempty"`
	LastSyncError    string       `json:"last_sync_error,omitempty"`
}

// Photo - фотография визита. DataURL содержит закодированное изображение
// (data:image/...;base64,...) и доминирует в размере записи. Порядок фото
// в срезе значим и сохраняется при сжатии и разбиении на чанки.
type Photo struct {
	ID        string    `json:"id"`
	DataURL   string    `json:"data_url"`
	Timestamp time.Time `json:"timestamp"`
	Notes     string    `json:"notes,omitempty"`
}

// Document - вложенный документ (акт, накладная и т.п.)
type Document struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	MimeType  string    `json:"mime_type"`
	DataURL   string    `json:"data_url"`
	Timestamp time.Time `json:"timestamp"`
}

// Clone возвращает глубокую копию записи
func (v *VisitRecord) Clone() *VisitRecord {
	if v == nil {
		return nil
	}
	c := *v
	if v.Photos != nil {
		c.Photos = make([]Photo, len(v.Photos))
		copy(c.Photos, v.Photos)
	}
	if v.Documents != nil {
		c.Documents = make([]Document, len(v.Documents))
		copy(c.Documents, v.Documents)
	}
	c.ServerVersion = v.ServerVersion.Clone()
	return &c
}
