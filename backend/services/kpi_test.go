package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"trainhub/backend/models"
)

func TestCalculateMPU(t *testing.T) {
	assert.Equal(t, 0.0, CalculateMPU(30, 0))
	assert.Equal(t, 0.0, CalculateMPU(30, -5))
	assert.Equal(t, 0.5, CalculateMPU(30, 60))
	assert.Equal(t, 0.33, CalculateMPU(10, 30))
}

func TestCalculateMPUMonotonicity(t *testing.T) {
	// For fixed time, MPU never decreases as operations shrink toward 1.
	const timeMinutes = 45.0
	previous := CalculateMPU(timeMinutes, 100)
	for operations := 99; operations >= 1; operations-- {
		current := CalculateMPU(timeMinutes, operations)
		assert.GreaterOrEqual(t, current, previous, "operations=%d", operations)
		previous = current
	}
}

func TestCalculateApproval(t *testing.T) {
	approved, pct := CalculateApproval(0.1, 0.2)
	assert.True(t, approved)
	assert.Equal(t, 200.0, pct)

	approved, pct = CalculateApproval(0.3, 0.2)
	assert.False(t, approved)
	assert.Equal(t, 66.67, pct)

	// No work done resolves to 0, never an error.
	approved, pct = CalculateApproval(0, 0.2)
	assert.False(t, approved)
	assert.Equal(t, 0.0, pct)
}

func TestEvaluateKPIANDSemantics(t *testing.T) {
	challenge := &models.Challenge{
		KPIMode:      models.KPIModeAuto,
		UseErrorsKPI: true,
		MaxErrors:    3,
	}

	// Volume and MPU are disabled, so zero work still approves as long
	// as the error budget holds.
	evaluation := EvaluateKPI(challenge, KPIMeasures{TotalOperations: 0, CalculatedMPU: 0, ErrorsCount: 2})
	assert.Equal(t, VerdictApproved, evaluation.Verdict)

	evaluation = EvaluateKPI(challenge, KPIMeasures{TotalOperations: 0, CalculatedMPU: 0, ErrorsCount: 4})
	assert.Equal(t, VerdictRejected, evaluation.Verdict)
}

func TestEvaluateKPIAllCriteria(t *testing.T) {
	challenge := &models.Challenge{
		KPIMode:            models.KPIModeAuto,
		UseVolumeKPI:       true,
		UseMPUKPI:          true,
		UseErrorsKPI:       true,
		OperationsRequired: 50,
		TargetMPU:          0.5,
		MaxErrors:          2,
	}

	evaluation := EvaluateKPI(challenge, KPIMeasures{TotalOperations: 60, CalculatedMPU: 0.4, ErrorsCount: 1})
	assert.Equal(t, VerdictApproved, evaluation.Verdict)
	for _, criterion := range evaluation.Criteria {
		assert.True(t, criterion.Passed, criterion.Name)
	}

	// One failed criterion rejects the attempt.
	evaluation = EvaluateKPI(challenge, KPIMeasures{TotalOperations: 60, CalculatedMPU: 0.6, ErrorsCount: 1})
	assert.Equal(t, VerdictRejected, evaluation.Verdict)

	// Zero MPU means no work was done, which fails the enabled MPU KPI.
	evaluation = EvaluateKPI(challenge, KPIMeasures{TotalOperations: 60, CalculatedMPU: 0, ErrorsCount: 0})
	assert.Equal(t, VerdictRejected, evaluation.Verdict)
}

func TestEvaluateKPIManualMode(t *testing.T) {
	challenge := &models.Challenge{
		KPIMode:            models.KPIModeManual,
		UseVolumeKPI:       true,
		UseMPUKPI:          true,
		UseErrorsKPI:       true,
		OperationsRequired: 1,
		TargetMPU:          10,
		MaxErrors:          100,
	}

	// Even a clearly passing attempt stays undetermined.
	evaluation := EvaluateKPI(challenge, KPIMeasures{TotalOperations: 500, CalculatedMPU: 0.1, ErrorsCount: 0})
	assert.Equal(t, VerdictPendingManualReview, evaluation.Verdict)

	// And so does a clearly failing one.
	evaluation = EvaluateKPI(challenge, KPIMeasures{TotalOperations: 0, CalculatedMPU: 0, ErrorsCount: 999})
	assert.Equal(t, VerdictPendingManualReview, evaluation.Verdict)
}

func TestMPUVersusTarget(t *testing.T) {
	assert.Equal(t, 0.0, MPUVersusTarget(0, 0.5))
	assert.Equal(t, 100.0, MPUVersusTarget(0.5, 0.5))
	// Lower-is-better: beating the target pushes the ratio past 100.
	assert.Equal(t, 250.0, MPUVersusTarget(0.2, 0.5))
}
