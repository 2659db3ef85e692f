package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with original error",
			op:      "Fit",
			kind:    "invalid input",
			err:     fmt.Errorf("test error"),
			wantMsg: "housing: Fit: invalid input: test error",
		},
		{
			name:    "without original error",
			op:      "Predict",
			kind:    "not fitted",
			err:     nil,
			wantMsg: "housing: Predict: not fitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)

			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}

			formatted := fmt.Sprintf("%+v", err)
			if !strings.Contains(formatted, "errors_test.go") {
				t.Error("Expected stack trace to contain test file name")
			}

			var modelErr *ModelError
			if !As(err, &modelErr) {
				t.Error("Error should be castable to *ModelError")
			}
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("Predict", 8, 5, 1)

	want := "housing: Predict: dimension mismatch on axis 1 (features). Expected 8, got 5"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var dimErr *DimensionError
	if !As(err, &dimErr) {
		t.Fatal("Error should be castable to *DimensionError")
	}
	if dimErr.Expected != 8 || dimErr.Got != 5 {
		t.Errorf("unexpected fields: %+v", dimErr)
	}
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("RandomForestRegressor", "Predict")

	want := "housing: RandomForestRegressor: this model is not fitted yet. Call Fit() before using Predict()"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var notFittedErr *NotFittedError
	if !As(err, &notFittedErr) {
		t.Error("Error should be castable to *NotFittedError")
	}
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("test_size", "must be in the open interval (0, 1)", 1.5)

	want := "housing: validation failed for parameter 'test_size': must be in the open interval (0, 1) (got: 1.5)"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var valErr *ValidationError
	if !As(err, &valErr) {
		t.Error("Error should be castable to *ValidationError")
	}
}

func TestNewInputShapeError(t *testing.T) {
	err := NewInputShapeError("prediction", []int{1, 8}, []int{1, 5})

	want := "housing: input shape mismatch in prediction phase. Expected shape [1 8], got [1 5]"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}
}

func TestUndefinedMetricWarning(t *testing.T) {
	w := NewUndefinedMetricWarning("r2_score", "constant target", 0)

	if !strings.Contains(w.Error(), "'r2_score' is ill-defined") {
		t.Errorf("unexpected message: %s", w.Error())
	}

	var got error
	SetZerologWarnFunc(func(warning error) { got = warning })
	defer SetZerologWarnFunc(nil)

	Warn(w)
	if got != w {
		t.Errorf("Warn did not reach the installed sink, got %v", got)
	}
}

func TestWrapfAndIs(t *testing.T) {
	wrapped := Wrapf(ErrEmptyData, "in %s: expected %d, got %d", "Fit", 10, 0)

	if !Is(wrapped, ErrEmptyData) {
		t.Error("Expected Is(wrapped, ErrEmptyData) to be true")
	}

	expectedMsg := "in Fit: expected 10, got 0"
	if !strings.Contains(wrapped.Error(), expectedMsg) {
		t.Errorf("Expected wrapped error to contain %q", expectedMsg)
	}
}

func TestErrorChaining(t *testing.T) {
	err1 := fmt.Errorf("base error")
	err2 := Wrap(err1, "wrapped once")
	err3 := NewModelError("Operation", "failed", err2)

	if !strings.Contains(err3.Error(), "base error") {
		t.Error("Expected error chain to contain base error")
	}

	formatted := fmt.Sprintf("%+v", err3)
	if !strings.Contains(formatted, "errors_test.go") {
		t.Error("Expected detailed error to contain stack trace")
	}
}

func TestCheckNumericalStability(t *testing.T) {
	if err := CheckNumericalStability("target", []float64{1, 2, 3}, 0); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	nan := []float64{1, 0}
	nan[1] = nan[1] / nan[1]
	err := CheckNumericalStability("target", nan, 3)
	var instErr *NumericalInstabilityError
	if !As(err, &instErr) {
		t.Fatalf("expected NumericalInstabilityError, got %v", err)
	}
	if instErr.Iteration != 3 {
		t.Errorf("Iteration = %d, want 3", instErr.Iteration)
	}
}

func TestNewDataError(t *testing.T) {
	cause := New("connection refused")
	err := NewDataError("https://example.invalid/cal_housing.tgz", cause)

	var de *DataError
	if !As(err, &de) {
		t.Fatalf("expected DataError, got %T", err)
	}
	if de.Source != "https://example.invalid/cal_housing.tgz" {
		t.Errorf("Source = %q", de.Source)
	}
	if !Is(err, cause) {
		t.Error("DataError should unwrap to its cause")
	}
}
