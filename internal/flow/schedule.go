package flow

import (
	"errors"
	"fmt"
)

// ErrInvalidSchedule marks time-vector parameters that cannot yield a
// valid frame-pair plan. Schedule errors are fatal to a run and are
// surfaced before any frame is read.
var ErrInvalidSchedule = errors.New("flow: invalid schedule")

// FramePair identifies the two source frames of one processing job.
type FramePair struct {
	A int
	B int
}

// PairPlan is the ordered sequence of frame pairs a run processes.
type PairPlan []FramePair

// PlanPairs derives the frame-pair plan from the four time-vector
// parameters. Pair i is (startingFrame + i*shift, startingFrame +
// i*shift + step). frameCount is the frame source's known length; the
// last referenced frame index must fall inside it.
func PlanPairs(startingFrame, step, shift, totalPairs, frameCount int) (PairPlan, error) {
	if startingFrame < 0 {
		return nil, fmt.Errorf("%w: starting frame %d is negative", ErrInvalidSchedule, startingFrame)
	}
	if step < 1 {
		return nil, fmt.Errorf("%w: step %d, must be >= 1", ErrInvalidSchedule, step)
	}
	if shift < 1 {
		return nil, fmt.Errorf("%w: shift %d, must be >= 1", ErrInvalidSchedule, shift)
	}
	if totalPairs < 1 {
		return nil, fmt.Errorf("%w: total pairs %d, must be >= 1", ErrInvalidSchedule, totalPairs)
	}
	lastFrame := startingFrame + (totalPairs-1)*shift + step
	if lastFrame >= frameCount {
		return nil, fmt.Errorf("%w: plan needs frame %d but source has %d frames",
			ErrInvalidSchedule, lastFrame, frameCount)
	}

	plan := make(PairPlan, totalPairs)
	for i := 0; i < totalPairs; i++ {
		a := startingFrame + i*shift
		plan[i] = FramePair{A: a, B: a + step}
	}
	return plan, nil
}

// SequentialPlan is the step=1, shift=1 preset: consecutive overlapping
// pairs, the default for well-lit footage.
func SequentialPlan(startingFrame, totalPairs, frameCount int) (PairPlan, error) {
	return PlanPairs(startingFrame, 1, 1, totalPairs, frameCount)
}

// LargeDisplacementPlan is the step>1, shift=1 preset used when
// per-frame motion is too small to resolve reliably.
func LargeDisplacementPlan(startingFrame, step, totalPairs, frameCount int) (PairPlan, error) {
	return PlanPairs(startingFrame, step, 1, totalPairs, frameCount)
}

// IndependentPlan is the step=shift preset: non-overlapping pairs,
// giving statistically independent velocity fields.
func IndependentPlan(startingFrame, step, totalPairs, frameCount int) (PairPlan, error) {
	return PlanPairs(startingFrame, step, step, totalPairs, frameCount)
}
