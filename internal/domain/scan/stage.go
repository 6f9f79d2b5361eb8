package scan

import "fmt"

// Stage identifies where in the pipeline a job currently is, or where it
// failed. Stages run strictly in order; only one is in flight per job.
type Stage string

const (
	StageUpload  Stage = "upload"
	StageExtract Stage = "extract"
	StageAnalyze Stage = "analyze"
	StagePersist Stage = "persist"
)

// StageError attributes a pipeline failure to a specific stage. RecordID is
// set when a record was already created before the failure; that record stays
// pending and is not retried.
type StageError struct {
	Stage    Stage
	RecordID string
	Err      error
}

func (e *StageError) Error() string {
	if e.RecordID != "" {
		return fmt.Sprintf("%s stage failed (record %s left pending): %v", e.Stage, e.RecordID, e.Err)
	}
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
