// Package modelstore persists trained models into timestamped version
// directories and maintains the "latest" pointer to the newest one.
package modelstore

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/jayakrishnap100/california-housing-mlops/internal/housing"
	"github.com/jayakrishnap100/california-housing-mlops/pkg/errors"
	"github.com/jayakrishnap100/california-housing-mlops/pkg/log"
)

const (
	LatestLink      = "latest"
	VersionPrefix   = "model_"
	TimestampLayout = "20060102_150405"
	lockFile        = ".lock"
)

// Store is a models root directory.
type Store struct {
	Root   string
	logger log.Logger
}

// New returns a store rooted at root. The directory is created on first write.
func New(root string) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve models dir %s", root)
	}
	return &Store{Root: abs, logger: log.GetLoggerWithName("modelstore")}, nil
}

// LatestPath is the path of the latest pointer.
func (s *Store) LatestPath() string {
	return filepath.Join(s.Root, LatestLink)
}

// NewVersionDir creates model_<YYYYMMDD_HHMMSS> for now. A directory created
// in the same second gets a _<n> suffix.
func (s *Store) NewVersionDir(now time.Time) (string, error) {
	if err := os.MkdirAll(s.Root, 0o755); err != nil {
		return "", errors.Wrapf(err, "create models dir %s", s.Root)
	}

	base := filepath.Join(s.Root, VersionPrefix+now.Format(TimestampLayout))
	dir := base
	for n := 1; ; n++ {
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return dir, nil
		}
		if !os.IsExist(err) {
			return "", errors.Wrapf(err, "create version dir %s", dir)
		}
		dir = fmt.Sprintf("%s_%d", base, n)
	}
}

// Save writes m into versionDir.
func (s *Store) Save(versionDir string, m *housing.HousePriceModel, meta Metadata) (string, error) {
	path, err := Save(versionDir, m, meta)
	if err != nil {
		return "", err
	}
	s.logger.Info("saved model", log.ArtifactPathKey, path)
	return path, nil
}

// UpdateLatest repoints latest to versionDir. The new link is created under a
// temporary name and renamed over the old one, so latest always resolves.
func (s *Store) UpdateLatest(versionDir string) (string, error) {
	abs, err := filepath.Abs(versionDir)
	if err != nil {
		return "", errors.Wrapf(err, "resolve version dir %s", versionDir)
	}
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		return "", errors.NewValidationError("version_dir", "must be an existing directory", versionDir)
	}
	target, err := filepath.Rel(s.Root, abs)
	if err != nil {
		return "", errors.Wrapf(err, "relativize %s", abs)
	}

	lock := flock.New(filepath.Join(s.Root, lockFile))
	if err := lock.Lock(); err != nil {
		return "", errors.Wrap(err, "lock models dir")
	}
	defer lock.Unlock()

	latest := s.LatestPath()
	if info, err := os.Lstat(latest); err == nil && info.Mode()&os.ModeSymlink == 0 {
		s.logger.Warn("replacing non-symlink latest entry", log.ArtifactPathKey, latest)
		if err := os.RemoveAll(latest); err != nil {
			return "", errors.Wrapf(err, "remove %s", latest)
		}
	}

	tmp := filepath.Join(s.Root, fmt.Sprintf(".%s.%d.tmp", LatestLink, os.Getpid()))
	_ = os.Remove(tmp)
	if err := os.Symlink(target, tmp); err != nil {
		return "", errors.Wrap(err, "create latest link")
	}
	if err := os.Rename(tmp, latest); err != nil {
		_ = os.Remove(tmp)
		return "", errors.Wrap(err, "replace latest link")
	}

	s.logger.Info("updated latest model pointer", log.ArtifactPathKey, target)
	return latest, nil
}

// ResolveLatest returns the version directory latest points to.
func (s *Store) ResolveLatest() (string, error) {
	latest := s.LatestPath()
	target, err := os.Readlink(latest)
	if err != nil {
		return "", errors.NewDataError(latest, errors.Wrap(errors.ErrModelUnavailable, err.Error()))
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(s.Root, target)
	}
	if _, err := os.Stat(target); err != nil {
		return "", errors.NewDataError(latest, errors.Wrap(errors.ErrModelUnavailable, err.Error()))
	}
	return target, nil
}

// LoadLatest loads the model latest points to.
func (s *Store) LoadLatest() (*housing.HousePriceModel, string, error) {
	dir, err := s.ResolveLatest()
	if err != nil {
		return nil, "", err
	}
	m, err := Load(dir)
	if err != nil {
		return nil, "", err
	}
	s.logger.Info("loaded latest model", log.ArtifactPathKey, dir, log.TreesKey, m.NEstimators)
	return m, dir, nil
}

// Discard removes a version directory left by a failed run. It refuses to
// remove the directory latest points to.
func (s *Store) Discard(versionDir string) error {
	if versionDir == "" {
		return nil
	}
	if current, err := s.ResolveLatest(); err == nil && sameDir(current, versionDir) {
		return errors.NewValidationError("version_dir", "is referenced by latest", versionDir)
	}
	if err := os.RemoveAll(versionDir); err != nil {
		return errors.Wrapf(err, "remove %s", versionDir)
	}
	s.logger.Warn("discarded version dir", log.ArtifactPathKey, versionDir)
	return nil
}

func sameDir(a, b string) bool {
	ai, err := os.Stat(a)
	if err != nil {
		return false
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ai, bi)
}
