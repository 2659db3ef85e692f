package model_selection

import (
	"sort"
	"testing"

	"gonum.org/v1/gonum/mat"

	scigoErrors "github.com/jayakrishnap100/california-housing-mlops/pkg/errors"
)

func rangeData(n int) (*mat.Dense, *mat.VecDense) {
	X := mat.NewDense(n, 2, nil)
	y := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		X.SetRow(i, []float64{float64(i), float64(-i)})
		y.SetVec(i, float64(i))
	}
	return X, y
}

func TestTrainTestSplit_Sizes(t *testing.T) {
	tests := []struct {
		name      string
		n         int
		testSize  float64
		wantTest  int
		wantTrain int
	}{
		{"california housing", 20640, 0.2, 4128, 16512},
		{"ten rows", 10, 0.2, 2, 8},
		{"rounds up", 11, 0.2, 3, 8},
		{"half", 7, 0.5, 4, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			X, y := rangeData(tt.n)
			XTrain, XTest, yTrain, yTest, err := TrainTestSplit(X, y, tt.testSize, 42)
			if err != nil {
				t.Fatalf("TrainTestSplit() error = %v", err)
			}
			if r, _ := XTest.Dims(); r != tt.wantTest || yTest.Len() != tt.wantTest {
				t.Errorf("test rows = %d/%d, want %d", r, yTest.Len(), tt.wantTest)
			}
			if r, _ := XTrain.Dims(); r != tt.wantTrain || yTrain.Len() != tt.wantTrain {
				t.Errorf("train rows = %d/%d, want %d", r, yTrain.Len(), tt.wantTrain)
			}
		})
	}
}

func TestTrainTestSplit_DisjointAndExhaustive(t *testing.T) {
	X, y := rangeData(101)
	XTrain, XTest, yTrain, yTest, err := TrainTestSplit(X, y, 0.2, 42)
	if err != nil {
		t.Fatalf("TrainTestSplit() error = %v", err)
	}

	var seen []int
	collect := func(Xp *mat.Dense, yp *mat.VecDense) {
		r, _ := Xp.Dims()
		for i := 0; i < r; i++ {
			id := int(Xp.At(i, 0))
			if yp.AtVec(i) != float64(id) || Xp.At(i, 1) != float64(-id) {
				t.Fatalf("row %d lost its pairing: X=%v y=%v", i, mat.Row(nil, i, Xp), yp.AtVec(i))
			}
			seen = append(seen, id)
		}
	}
	collect(XTrain, yTrain)
	collect(XTest, yTest)

	sort.Ints(seen)
	if len(seen) != 101 {
		t.Fatalf("got %d rows, want 101", len(seen))
	}
	for i, v := range seen {
		if v != i {
			t.Fatalf("row %d missing or duplicated", i)
		}
	}
}

func TestTrainTestSplit_Deterministic(t *testing.T) {
	X, y := rangeData(50)
	_, a, _, _, err := TrainTestSplit(X, y, 0.2, 42)
	if err != nil {
		t.Fatal(err)
	}
	_, b, _, _, _ := TrainTestSplit(X, y, 0.2, 42)
	if !mat.Equal(a, b) {
		t.Error("same seed produced different splits")
	}

	_, c, _, _, _ := TrainTestSplit(X, y, 0.2, 7)
	if mat.Equal(a, c) {
		t.Error("different seeds produced the same split")
	}
}

func TestTrainTestSplit_InvalidTestSize(t *testing.T) {
	X, y := rangeData(10)
	for _, size := range []float64{0, 1, -0.1, 1.5} {
		_, _, _, _, err := TrainTestSplit(X, y, size, 42)
		var ve *scigoErrors.ValidationError
		if !scigoErrors.As(err, &ve) {
			t.Errorf("testSize=%v: expected ValidationError, got %v", size, err)
		}
	}
}

func TestTrainTestSplit_TooFewRows(t *testing.T) {
	X, y := rangeData(1)
	if _, _, _, _, err := TrainTestSplit(X, y, 0.2, 42); err == nil {
		t.Error("expected error when a partition would be empty")
	}

	X2, _ := rangeData(5)
	if _, _, _, _, err := TrainTestSplit(X2, mat.NewVecDense(4, nil), 0.2, 42); err == nil {
		t.Error("expected dimension error")
	}
}
