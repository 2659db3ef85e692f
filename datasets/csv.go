package datasets

import (
	"context"
	"io"
	"os"

	"github.com/gocarina/gocsv"

	scigoErrors "github.com/jayakrishnap100/california-housing-mlops/pkg/errors"
)

// housingRow is one row of a headered CSV with the model features and PRICE.
type housingRow struct {
	MedInc     float64 `csv:"MedInc"`
	HouseAge   float64 `csv:"HouseAge"`
	AveRooms   float64 `csv:"AveRooms"`
	AveBedrms  float64 `csv:"AveBedrms"`
	Population float64 `csv:"Population"`
	AveOccup   float64 `csv:"AveOccup"`
	Latitude   float64 `csv:"Latitude"`
	Longitude  float64 `csv:"Longitude"`
	Price      float64 `csv:"PRICE"`
}

func (r *housingRow) features() []float64 {
	return []float64{r.MedInc, r.HouseAge, r.AveRooms, r.AveBedrms, r.Population, r.AveOccup, r.Latitude, r.Longitude}
}

// CSVLoader reads a headered CSV file with the FeatureNames columns and PRICE.
type CSVLoader struct {
	Path string
}

// NewCSVLoader creates a loader for path.
func NewCSVLoader(path string) *CSVLoader {
	return &CSVLoader{Path: path}
}

// Load parses the file. Column order in the file does not matter.
func (l *CSVLoader) Load(_ context.Context) (*Table, error) {
	f, err := os.Open(l.Path)
	if err != nil {
		return nil, scigoErrors.NewDataError(l.Path, err)
	}
	defer f.Close()

	t, err := ReadCSV(f)
	if err != nil {
		return nil, scigoErrors.NewDataError(l.Path, err)
	}
	return t, nil
}

// ReadCSV parses the headered CSV format written by WriteCSV.
func ReadCSV(r io.Reader) (*Table, error) {
	var records []*housingRow
	if err := gocsv.Unmarshal(r, &records); err != nil {
		return nil, scigoErrors.Wrap(err, "parse housing csv")
	}

	rows := make([][]float64, len(records))
	target := make([]float64, len(records))
	for i, rec := range records {
		rows[i] = rec.features()
		target[i] = rec.Price
	}
	return NewTable(FeatureNames, TargetName, rows, target)
}

// WriteCSV writes t with a header row. t must use FeatureNames.
func WriteCSV(w io.Writer, t *Table) error {
	if len(t.FeatureNames) != len(FeatureNames) {
		return scigoErrors.NewDimensionError("WriteCSV", len(FeatureNames), len(t.FeatureNames), 1)
	}
	for i, name := range t.FeatureNames {
		if name != FeatureNames[i] {
			return scigoErrors.NewValidationError("feature_names", "must match the housing schema", t.FeatureNames)
		}
	}

	records := make([]*housingRow, t.Rows())
	for i := range records {
		x := t.Row(i)
		records[i] = &housingRow{
			MedInc: x[0], HouseAge: x[1], AveRooms: x[2], AveBedrms: x[3],
			Population: x[4], AveOccup: x[5], Latitude: x[6], Longitude: x[7],
			Price: t.Y.AtVec(i),
		}
	}
	return gocsv.Marshal(records, w)
}
