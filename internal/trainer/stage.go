package trainer

import "fmt"

// Stage is a step of a training run. Stages advance strictly in order.
type Stage int

const (
	StageStart Stage = iota
	StageDataLoaded
	StageSplit
	StageFit
	StageEvaluated
	StagePersisted
	StageDone
)

var stageNames = [...]string{
	StageStart:      "START",
	StageDataLoaded: "DATA_LOADED",
	StageSplit:      "SPLIT",
	StageFit:        "FIT",
	StageEvaluated:  "EVALUATED",
	StagePersisted:  "PERSISTED",
	StageDone:       "DONE",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

// StageError is returned by Run. Stage is the last stage reached before the failure.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("training aborted after %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
