package datasets

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gocarina/gocsv"

	scigoErrors "github.com/jayakrishnap100/california-housing-mlops/pkg/errors"
	"github.com/jayakrishnap100/california-housing-mlops/pkg/log"
)

const (
	// DefaultArchiveURL is the StatLib California housing archive mirror.
	DefaultArchiveURL = "https://ndownloader.figshare.com/files/5976036"

	archiveName = "cal_housing.tgz"
	dataMember  = "cal_housing.data"

	// DataHomeEnv overrides the cache directory.
	DataHomeEnv = "HOUSING_DATA_HOME"
)

// calHousingRecord is one line of cal_housing.data, in file order.
type calHousingRecord struct {
	Longitude        float64 `csv:"longitude"`
	Latitude         float64 `csv:"latitude"`
	HousingMedianAge float64 `csv:"housingMedianAge"`
	TotalRooms       float64 `csv:"totalRooms"`
	TotalBedrooms    float64 `csv:"totalBedrooms"`
	Population       float64 `csv:"population"`
	Households       float64 `csv:"households"`
	MedianIncome     float64 `csv:"medianIncome"`
	MedianHouseValue float64 `csv:"medianHouseValue"`
}

// features derives the model features in FeatureNames order.
func (r *calHousingRecord) features() []float64 {
	return []float64{
		r.MedianIncome,
		r.HousingMedianAge,
		r.TotalRooms / r.Households,
		r.TotalBedrooms / r.Households,
		r.Population,
		r.Population / r.Households,
		r.Latitude,
		r.Longitude,
	}
}

func (r *calHousingRecord) target() float64 {
	return r.MedianHouseValue / 100000.0
}

// CaliforniaHousing downloads and caches the 1990 census California housing table.
type CaliforniaHousing struct {
	// DataHome is the cache directory for the downloaded archive.
	DataHome string

	// URL is the archive location.
	URL string

	// DownloadIfMissing allows network access when the archive is not cached.
	DownloadIfMissing bool

	client *resty.Client
}

// DefaultDataHome returns $HOUSING_DATA_HOME or ~/scikit_learn_data.
func DefaultDataHome() string {
	if home := os.Getenv(DataHomeEnv); home != "" {
		return home
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, "scikit_learn_data")
	}
	return "scikit_learn_data"
}

// NewCaliforniaHousing creates a loader caching under dataHome. An empty
// dataHome selects DefaultDataHome.
func NewCaliforniaHousing(dataHome string) *CaliforniaHousing {
	if dataHome == "" {
		dataHome = DefaultDataHome()
	}
	return &CaliforniaHousing{
		DataHome:          dataHome,
		URL:               DefaultArchiveURL,
		DownloadIfMissing: true,
		client: resty.New().
			SetTimeout(5 * time.Minute).
			SetRetryCount(3).
			SetRetryWaitTime(2 * time.Second),
	}
}

// ArchivePath is the cached archive location.
func (c *CaliforniaHousing) ArchivePath() string {
	return filepath.Join(c.DataHome, archiveName)
}

// Load returns the 20640 x 8 table with target PRICE.
func (c *CaliforniaHousing) Load(ctx context.Context) (*Table, error) {
	logger := log.GetLoggerWithName("datasets").With(log.SourceKey, "california_housing")

	path := c.ArchivePath()
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) || !c.DownloadIfMissing {
			return nil, scigoErrors.NewDataError(path, err)
		}
		logger.Info("Downloading dataset", "url", c.URL, log.ArtifactPathKey, path)
		if err := c.download(ctx, path); err != nil {
			return nil, err
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, scigoErrors.NewDataError(path, err)
	}
	defer f.Close()

	t, err := ParseArchive(f)
	if err != nil {
		return nil, scigoErrors.NewDataError(path, err)
	}
	logger.Info("Dataset loaded", log.SamplesKey, t.Rows(), log.FeaturesKey, len(t.FeatureNames))
	return t, nil
}

func (c *CaliforniaHousing) download(ctx context.Context, path string) error {
	if err := os.MkdirAll(c.DataHome, 0o755); err != nil {
		return scigoErrors.NewDataError(c.DataHome, err)
	}

	tmp := path + ".part"
	res, err := c.client.R().
		SetContext(ctx).
		SetOutput(tmp).
		Get(c.URL)
	if err != nil {
		os.Remove(tmp)
		return scigoErrors.NewDataError(c.URL, err)
	}
	if !res.IsSuccess() {
		os.Remove(tmp)
		return scigoErrors.NewDataError(c.URL, scigoErrors.Newf("unexpected status %d", res.StatusCode()))
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return scigoErrors.NewDataError(path, err)
	}
	return nil
}

// ParseArchive reads cal_housing.data out of a gzip compressed tar stream.
func ParseArchive(r io.Reader) (*Table, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, scigoErrors.Wrap(err, "open gzip stream")
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil, scigoErrors.Newf("%s not found in archive", dataMember)
		}
		if err != nil {
			return nil, scigoErrors.Wrap(err, "read tar entry")
		}
		if hdr.Typeflag == tar.TypeReg && strings.HasSuffix(hdr.Name, dataMember) {
			return ParseData(tr)
		}
	}
}

// ParseData parses the headerless comma separated cal_housing.data format.
func ParseData(r io.Reader) (*Table, error) {
	var records []*calHousingRecord
	if err := gocsv.UnmarshalWithoutHeaders(r, &records); err != nil {
		return nil, scigoErrors.Wrap(err, "parse cal_housing.data")
	}

	rows := make([][]float64, len(records))
	target := make([]float64, len(records))
	for i, rec := range records {
		if rec.Households == 0 {
			return nil, scigoErrors.NewValueError("ParseData", "row with zero households")
		}
		rows[i] = rec.features()
		target[i] = rec.target()
	}
	return NewTable(FeatureNames, TargetName, rows, target)
}
