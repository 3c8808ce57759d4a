package engine

import "math"

// ShouldRecordPoint is the threshold filter: it decides whether a newly
// sampled value is significant enough, and far enough in time from the
// previously recorded point, to become a curve point. It is the single dedup
// mechanism protecting curves from noise and redundant points, and it is
// mode-agnostic: Touch, Latch and Write all apply it identically once they
// are live.
//
// priorValue is NaN and priorTime is -Inf when the session has not recorded
// anything yet; a missing prior always counts as changed, so the first
// sample of a session is recorded regardless of magnitude.
func ShouldRecordPoint(priorValue, newValue, priorTime, newTime, valueThreshold, minTimeBetween float64) bool {
	valueChanged := math.IsNaN(priorValue) || math.Abs(newValue-priorValue) >= valueThreshold
	timeOk := newTime-priorTime >= minTimeBetween
	return valueChanged && timeOk
}
