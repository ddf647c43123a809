package services

import (
	"math"

	"trainhub/backend/models"
)

// Verdict is the three-valued outcome of a KPI evaluation. MANUAL-mode
// challenges yield VerdictPendingManualReview rather than a pass/fail.
type Verdict string

const (
	VerdictApproved            Verdict = "APPROVED"
	VerdictRejected            Verdict = "REJECTED"
	VerdictPendingManualReview Verdict = "PENDING_MANUAL_REVIEW"
)

// KPIMeasures are the measured inputs of one attempt.
type KPIMeasures struct {
	TotalOperations int
	CalculatedMPU   float64
	ErrorsCount     int
}

// CriterionResult is the per-KPI breakdown of an evaluation.
type CriterionResult struct {
	Name     string  `json:"name"` // volume, mpu, errors
	Enabled  bool    `json:"enabled"`
	Passed   bool    `json:"passed"`
	Measured float64 `json:"measured"`
	Target   float64 `json:"target"`
}

// KPIEvaluation is the aggregate result of evaluating one attempt
// against one challenge's KPI configuration.
type KPIEvaluation struct {
	Verdict     Verdict           `json:"verdict"`
	MPUVsTarget float64           `json:"mpu_vs_target"`
	Criteria    []CriterionResult `json:"criteria"`
}

// CalculateMPU returns minutes per unit of work, rounded to 2 decimals.
// Zero or negative operations mean no work was done and resolve to 0.0
// rather than an error, keeping the evaluator total.
func CalculateMPU(timeMinutes float64, operations int) float64 {
	if operations <= 0 {
		return 0.0
	}
	return round2(timeMinutes / float64(operations))
}

// MPUVersusTarget returns the attempt's MPU as a percentage of the
// target. MPU is lower-is-better, so the ratio exceeds 100 when the
// attempt beat the target. Resolves to 0.0 when no work was done.
func MPUVersusTarget(calculatedMPU, targetMPU float64) float64 {
	if calculatedMPU <= 0 {
		return 0.0
	}
	return round2((targetMPU / calculatedMPU) * 100)
}

// CalculateApproval reports whether the measured MPU meets the target,
// together with the percentage comparison.
func CalculateApproval(calculatedMPU, targetMPU float64) (bool, float64) {
	approved := calculatedMPU > 0 && calculatedMPU <= targetMPU
	return approved, MPUVersusTarget(calculatedMPU, targetMPU)
}

// EvaluateKPI applies a challenge's KPI configuration to the measured
// values of one attempt. Disabled criteria pass vacuously; the overall
// verdict is the AND of the enabled ones. Pure function, no side
// effects; callers clamp malformed inputs before handing them in.
func EvaluateKPI(challenge *models.Challenge, measures KPIMeasures) KPIEvaluation {
	volumePassed := !challenge.UseVolumeKPI ||
		measures.TotalOperations >= challenge.OperationsRequired
	mpuPassed := !challenge.UseMPUKPI ||
		(measures.CalculatedMPU > 0 && measures.CalculatedMPU <= challenge.TargetMPU)
	errorsPassed := !challenge.UseErrorsKPI ||
		measures.ErrorsCount <= challenge.MaxErrors

	criteria := []CriterionResult{
		{
			Name:     "volume",
			Enabled:  challenge.UseVolumeKPI,
			Passed:   volumePassed,
			Measured: float64(measures.TotalOperations),
			Target:   float64(challenge.OperationsRequired),
		},
		{
			Name:     "mpu",
			Enabled:  challenge.UseMPUKPI,
			Passed:   mpuPassed,
			Measured: measures.CalculatedMPU,
			Target:   challenge.TargetMPU,
		},
		{
			Name:     "errors",
			Enabled:  challenge.UseErrorsKPI,
			Passed:   errorsPassed,
			Measured: float64(measures.ErrorsCount),
			Target:   float64(challenge.MaxErrors),
		},
	}

	evaluation := KPIEvaluation{
		MPUVsTarget: MPUVersusTarget(measures.CalculatedMPU, challenge.TargetMPU),
		Criteria:    criteria,
	}

	if challenge.KPIMode == models.KPIModeManual {
		evaluation.Verdict = VerdictPendingManualReview
		return evaluation
	}

	if volumePassed && mpuPassed && errorsPassed {
		evaluation.Verdict = VerdictApproved
	} else {
		evaluation.Verdict = VerdictRejected
	}
	return evaluation
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
