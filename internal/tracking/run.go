package tracking

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jayakrishnap100/california-housing-mlops/pkg/errors"
	"github.com/jayakrishnap100/california-housing-mlops/pkg/log"
)

// ActiveRun is a run that has been started and not yet ended.
type ActiveRun struct {
	tracker *Tracker
	run     Run
	ended   bool
}

// ID returns the run id.
func (r *ActiveRun) ID() uuid.UUID {
	return r.run.Id
}

// ArtifactURI is the directory holding the run artifacts.
func (r *ActiveRun) ArtifactURI() string {
	return r.run.ArtifactUri
}

// LogParam records a parameter. Logging the same key again with a different
// value is an error.
func (r *ActiveRun) LogParam(ctx context.Context, key string, value interface{}) error {
	param := Param{RunId: r.run.Id, Key: key, Value: fmt.Sprint(value)}

	return r.tracker.db.WithContext(ctx).Transaction(func(txn *gorm.DB) error {
		var existing Param
		err := txn.Where("run_id = ? AND key = ?", r.run.Id, key).First(&existing).Error
		switch {
		case err == nil:
			if existing.Value != param.Value {
				return errors.NewValidationError(key, "param already logged with a different value", existing.Value)
			}
			return nil
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := txn.Create(&param).Error; err != nil {
				return errors.Wrapf(err, "error logging param %s", key)
			}
			return nil
		default:
			return errors.Wrapf(err, "error reading param %s", key)
		}
	})
}

// LogMetric appends a metric value at step 0.
func (r *ActiveRun) LogMetric(ctx context.Context, key string, value float64) error {
	return r.LogMetricStep(ctx, key, value, 0)
}

// LogMetricStep appends a metric value at the given step.
func (r *ActiveRun) LogMetricStep(ctx context.Context, key string, value float64, step int64) error {
	if err := errors.CheckScalar("LogMetric "+key, value, int(step)); err != nil {
		return err
	}
	metric := Metric{
		RunId:     r.run.Id,
		Key:       key,
		Value:     value,
		Step:      step,
		Timestamp: time.Now().UnixMilli(),
	}
	if err := r.tracker.db.WithContext(ctx).Create(&metric).Error; err != nil {
		return errors.Wrapf(err, "error logging metric %s", key)
	}
	return nil
}

// LogArtifact copies a local file or directory to artifactPath inside the run
// artifact directory. An empty artifactPath keeps the base name of localPath.
func (r *ActiveRun) LogArtifact(localPath, artifactPath string) (string, error) {
	if artifactPath == "" {
		artifactPath = filepath.Base(localPath)
	}
	dst, err := r.artifactDest(artifactPath)
	if err != nil {
		return "", err
	}
	if err := copyPath(localPath, dst); err != nil {
		return "", errors.Wrapf(err, "error logging artifact %s", localPath)
	}
	r.tracker.logger.Debug("logged artifact", log.RunIDKey, r.run.Id.String(), log.ArtifactPathKey, dst)
	return dst, nil
}

// LogModel copies a saved model directory to artifactPath and records it.
func (r *ActiveRun) LogModel(ctx context.Context, modelDir, artifactPath, flavor string) (string, error) {
	dst, err := r.LogArtifact(modelDir, artifactPath)
	if err != nil {
		return "", err
	}
	record := LoggedModel{
		RunId:        r.run.Id,
		ArtifactPath: artifactPath,
		Flavor:       flavor,
		CreationTime: time.Now().UTC(),
	}
	if err := r.tracker.db.WithContext(ctx).Create(&record).Error; err != nil {
		return "", errors.Wrap(err, "error recording logged model")
	}
	return dst, nil
}

// End sets the terminal status of the run. Ending twice is a no-op.
func (r *ActiveRun) End(ctx context.Context, status string) error {
	if r.ended {
		return nil
	}
	if status != RunFinished && status != RunFailed {
		return errors.NewValidationError("status", "must be FINISHED or FAILED", status)
	}

	end := sql.NullTime{Time: time.Now().UTC(), Valid: true}
	if err := r.tracker.db.WithContext(ctx).Model(&Run{}).Where("id = ?", r.run.Id).
		Updates(map[string]interface{}{"status": status, "end_time": end}).Error; err != nil {
		return errors.Wrapf(err, "error ending run %s", r.run.Id)
	}
	r.run.Status = status
	r.run.EndTime = end
	r.ended = true

	r.tracker.logger.Info("ended run", log.RunIDKey, r.run.Id.String(), "status", status)
	return nil
}

func (r *ActiveRun) artifactDest(artifactPath string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(artifactPath))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", errors.NewValidationError("artifact_path", "must be relative to the run artifact directory", artifactPath)
	}
	return filepath.Join(r.run.ArtifactUri, clean), nil
}

// copyPath copies a regular file or a directory tree. Symlinks are followed.
func copyPath(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return copyFile(src, dst, info.Mode().Perm())
	}
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		return copyFile(path, target, fi.Mode().Perm())
	})
}

func copyFile(src, dst string, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
