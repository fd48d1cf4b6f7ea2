package pipeline

import "fmt"

// Stage is a step of the commit-prove-verify pipeline. Stages are only ever reached in order.
type Stage int

const (
	StagePending Stage = iota
	StageEncoded
	StageHashed
	StageWitnessComputed
	StageProved
	StageLocallyVerified
	StageHashSubmitted
	StageProofSubmitted
	StageRecorded
)

var stageNames = [...]string{
	StagePending:         "Pending",
	StageEncoded:         "Encoded",
	StageHashed:          "Hashed",
	StageWitnessComputed: "WitnessComputed",
	StageProved:          "Proved",
	StageLocallyVerified: "LocallyVerified",
	StageHashSubmitted:   "HashSubmitted",
	StageProofSubmitted:  "ProofSubmitted",
	StageRecorded:        "Recorded",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

// MarshalText lets stages appear by name in JSON reports
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// StageError carries the stage a run was trying to reach when it failed
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("failed at %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
