package tracking

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const (
	RunRunning  string = "RUNNING"
	RunFinished string = "FINISHED"
	RunFailed   string = "FAILED"
)

type Experiment struct {
	Id               uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name             string    `gorm:"uniqueIndex;not null"`
	ArtifactLocation string    `gorm:"not null"`
	CreationTime     time.Time

	Runs []Run `gorm:"foreignKey:ExperimentId;constraint:OnDelete:CASCADE"`
}

type Run struct {
	Id           uuid.UUID `gorm:"type:uuid;primaryKey"`
	ExperimentId uuid.UUID `gorm:"type:uuid;index;not null"`
	Status       string    `gorm:"size:20;not null"`
	ArtifactUri  string    `gorm:"not null"`
	StartTime    time.Time
	EndTime      sql.NullTime

	Params  []Param  `gorm:"foreignKey:RunId;constraint:OnDelete:CASCADE"`
	Metrics []Metric `gorm:"foreignKey:RunId;constraint:OnDelete:CASCADE"`
}

type Param struct {
	RunId uuid.UUID `gorm:"type:uuid;primaryKey"`
	Key   string    `gorm:"primaryKey"`
	Value string    `gorm:"not null"`
}

type Metric struct {
	Id        uint      `gorm:"primaryKey;autoIncrement"`
	RunId     uuid.UUID `gorm:"type:uuid;index;not null"`
	Key       string    `gorm:"index;not null"`
	Value     float64
	Step      int64 `gorm:"default:0"`
	Timestamp int64 // unix milliseconds
}

type RegisteredModel struct {
	Name         string `gorm:"primaryKey"`
	CreationTime time.Time

	Versions []ModelVersion `gorm:"foreignKey:Name;references:Name;constraint:OnDelete:CASCADE"`
}

type ModelVersion struct {
	Id           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name         string    `gorm:"uniqueIndex:idx_model_version;not null"`
	Version      int       `gorm:"uniqueIndex:idx_model_version;not null"`
	RunId        uuid.UUID `gorm:"type:uuid"`
	Source       string    `gorm:"not null"`
	CreationTime time.Time
}

// LoggedModel records a model artifact attached to a run.
type LoggedModel struct {
	Id           uint      `gorm:"primaryKey;autoIncrement"`
	RunId        uuid.UUID `gorm:"type:uuid;index;not null"`
	ArtifactPath string    `gorm:"not null"`
	Flavor       string    `gorm:"size:50"`
	CreationTime time.Time
}
