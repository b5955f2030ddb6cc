package pipeline

import "fmt"

// StageOutcome classifies how a pipeline stage ended
type StageOutcome int

const (
	// StageOk means the stage produced its output
	StageOk StageOutcome = iota

	// StageSoftFail means the stage failed but processing continues
	// without its output (e.g. audio synthesis unavailable)
	StageSoftFail

	// StageHardFail means the stage failed in a way that ends the run.
	// Retryable hard failures get redelivered; permanent ones fail the
	// job immediately.
	StageHardFail
)

// StageResult carries a stage's outcome and failure detail
type StageResult struct {
	Outcome   StageOutcome
	Err       error
	Permanent bool // Only meaningful for hard failures
}

// Ok returns a successful stage result
func Ok() StageResult {
	return StageResult{Outcome: StageOk}
}

// SoftFail returns a continue-without-output result
func SoftFail(err error) StageResult {
	return StageResult{Outcome: StageSoftFail, Err: err}
}

// HardFail returns a retryable run-ending result
func HardFail(err error) StageResult {
	return StageResult{Outcome: StageHardFail, Err: err}
}

// PermanentFail returns a run-ending result that must not be retried,
// such as a document with no extractable text.
func PermanentFail(err error) StageResult {
	return StageResult{Outcome: StageHardFail, Err: err, Permanent: true}
}

func (r StageResult) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

func (r StageResult) String() string {
	switch r.Outcome {
	case StageOk:
		return "ok"
	case StageSoftFail:
		return fmt.Sprintf("soft failure: %v", r.Err)
	case StageHardFail:
		if r.Permanent {
			return fmt.Sprintf("permanent failure: %v", r.Err)
		}
		return fmt.Sprintf("hard failure: %v", r.Err)
	default:
		return "unknown"
	}
}
