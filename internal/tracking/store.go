// Package tracking records training runs, their parameters, metrics and
// artifacts, and keeps a registry of model versions. State lives in a SQLite
// database next to an artifact directory.
package tracking

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jayakrishnap100/california-housing-mlops/pkg/errors"
	"github.com/jayakrishnap100/california-housing-mlops/pkg/log"
)

const (
	DatabaseFile      = "tracking.db"
	ArtifactsDir      = "artifacts"
	DefaultExperiment = "Default"
)

// Tracker is the experiment tracking store.
type Tracker struct {
	db           *gorm.DB
	artifactRoot string
	experiment   *Experiment
	logger       log.Logger
}

// Open opens (creating if needed) the tracker rooted at dir: dir/tracking.db
// and dir/artifacts.
func Open(dir string) (*Tracker, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create tracking dir %s", dir)
	}
	db, err := gorm.Open(sqlite.Open(filepath.Join(dir, DatabaseFile)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "error opening tracking database")
	}
	return New(db, filepath.Join(dir, ArtifactsDir))
}

// New migrates db and returns a tracker storing artifacts under artifactRoot.
func New(db *gorm.DB, artifactRoot string) (*Tracker, error) {
	if err := GetMigrator(db).Migrate(); err != nil {
		return nil, errors.Wrap(err, "error migrating tracking database")
	}
	abs, err := filepath.Abs(artifactRoot)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve artifact root %s", artifactRoot)
	}
	return &Tracker{
		db:           db,
		artifactRoot: abs,
		logger:       log.GetLoggerWithName("tracking"),
	}, nil
}

// Close closes the database.
func (t *Tracker) Close() error {
	sqlDB, err := t.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SetExperiment selects the experiment new runs belong to, creating it if needed.
func (t *Tracker) SetExperiment(ctx context.Context, name string) (*Experiment, error) {
	if name == "" {
		return nil, errors.NewValidationError("experiment_name", "must not be empty", name)
	}

	id := uuid.New()
	var exp Experiment
	result := t.db.WithContext(ctx).
		Where(Experiment{Name: name}).
		Attrs(Experiment{
			Id:               id,
			ArtifactLocation: filepath.Join(t.artifactRoot, id.String()),
			CreationTime:     time.Now().UTC(),
		}).
		FirstOrCreate(&exp)
	if result.Error != nil {
		return nil, errors.Wrapf(result.Error, "error setting experiment %s", name)
	}
	if exp.Id == id {
		t.logger.Info("created experiment", log.ExperimentKey, name)
	}
	t.experiment = &exp
	return &exp, nil
}

// StartRun creates a RUNNING run in the current experiment, or in the
// "Default" experiment when none was set.
func (t *Tracker) StartRun(ctx context.Context) (*ActiveRun, error) {
	if t.experiment == nil {
		if _, err := t.SetExperiment(ctx, DefaultExperiment); err != nil {
			return nil, err
		}
	}

	run := Run{
		Id:           uuid.New(),
		ExperimentId: t.experiment.Id,
		Status:       RunRunning,
		StartTime:    time.Now().UTC(),
	}
	run.ArtifactUri = filepath.Join(t.experiment.ArtifactLocation, run.Id.String())

	if err := t.db.WithContext(ctx).Create(&run).Error; err != nil {
		return nil, errors.Wrap(err, "error creating run")
	}
	if err := os.MkdirAll(run.ArtifactUri, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create run artifact dir %s", run.ArtifactUri)
	}

	t.logger.Info("started run", log.RunIDKey, run.Id.String(), log.ExperimentKey, t.experiment.Name)
	return &ActiveRun{tracker: t, run: run}, nil
}

// GetRun loads a run with its params and metrics.
func (t *Tracker) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	var run Run
	if err := t.db.WithContext(ctx).Preload("Params").Preload("Metrics").First(&run, "id = ?", id).Error; err != nil {
		return nil, errors.Wrapf(err, "error getting run %s", id)
	}
	return &run, nil
}

// ListRuns returns the runs of the current experiment, oldest first.
func (t *Tracker) ListRuns(ctx context.Context) ([]Run, error) {
	if t.experiment == nil {
		return nil, errors.New("no experiment set")
	}
	var runs []Run
	if err := t.db.WithContext(ctx).Where("experiment_id = ?", t.experiment.Id).
		Order("start_time").Find(&runs).Error; err != nil {
		return nil, errors.Wrapf(err, "error listing runs of %s", t.experiment.Name)
	}
	return runs, nil
}

// ListParams returns the params of a run ordered by key.
func (t *Tracker) ListParams(ctx context.Context, runID uuid.UUID) ([]Param, error) {
	var params []Param
	if err := t.db.WithContext(ctx).Where("run_id = ?", runID).Order("key").Find(&params).Error; err != nil {
		return nil, errors.Wrapf(err, "error listing params of run %s", runID)
	}
	return params, nil
}

// ListMetrics returns the metric history of a run in logging order.
func (t *Tracker) ListMetrics(ctx context.Context, runID uuid.UUID) ([]Metric, error) {
	var metrics []Metric
	if err := t.db.WithContext(ctx).Where("run_id = ?", runID).Order("id").Find(&metrics).Error; err != nil {
		return nil, errors.Wrapf(err, "error listing metrics of run %s", runID)
	}
	return metrics, nil
}

// RegisterModel adds a new version of the registered model name pointing at source.
func (t *Tracker) RegisterModel(ctx context.Context, name string, runID uuid.UUID, source string) (*ModelVersion, error) {
	if name == "" {
		return nil, errors.NewValidationError("registered_model_name", "must not be empty", name)
	}

	var version ModelVersion
	err := t.db.WithContext(ctx).Transaction(func(txn *gorm.DB) error {
		var rm RegisteredModel
		if err := txn.Where(RegisteredModel{Name: name}).
			Attrs(RegisteredModel{CreationTime: time.Now().UTC()}).
			FirstOrCreate(&rm).Error; err != nil {
			return errors.Wrap(err, "error creating registered model")
		}

		var latest int
		if err := txn.Model(&ModelVersion{}).Where("name = ?", name).
			Select("COALESCE(MAX(version), 0)").Scan(&latest).Error; err != nil {
			return errors.Wrap(err, "error reading latest version")
		}

		version = ModelVersion{
			Id:           uuid.New(),
			Name:         name,
			Version:      latest + 1,
			RunId:        runID,
			Source:       source,
			CreationTime: time.Now().UTC(),
		}
		if err := txn.Create(&version).Error; err != nil {
			return errors.Wrap(err, "error creating model version")
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "error registering model %s", name)
	}

	t.logger.Info("registered model version",
		log.ModelNameKey, name,
		log.ModelVersionKey, version.Version,
		log.RunIDKey, runID.String(),
	)
	return &version, nil
}

// LatestVersion returns the highest version of a registered model.
func (t *Tracker) LatestVersion(ctx context.Context, name string) (*ModelVersion, error) {
	var version ModelVersion
	if err := t.db.WithContext(ctx).Where("name = ?", name).Order("version DESC").First(&version).Error; err != nil {
		return nil, errors.Wrapf(err, "error getting latest version of %s", name)
	}
	return &version, nil
}

// ListLoggedModels returns the model artifacts logged by a run.
func (t *Tracker) ListLoggedModels(ctx context.Context, runID uuid.UUID) ([]LoggedModel, error) {
	var models []LoggedModel
	if err := t.db.WithContext(ctx).Where("run_id = ?", runID).Order("id").Find(&models).Error; err != nil {
		return nil, errors.Wrapf(err, "error listing logged models of run %s", runID)
	}
	return models, nil
}
