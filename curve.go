package automat

import (
	"math"
	"slices"
)

// Curve is the ordered sequence of automation points for one parameter. The
// points are kept sorted by time and there is at most one point per time.
// The zero value is an empty curve, ready to use.
type Curve []Point

// Copy returns a deep copy of the curve, so that mutating one does not
// affect the other.
func (c Curve) Copy() Curve {
	if c == nil {
		return nil
	}
	ret := make(Curve, len(c))
	copy(ret, c)
	return ret
}

// AddPoint inserts a point at the given time, keeping the curve sorted. If a
// point already exists at exactly that time, it is replaced. Returns the
// inserted point.
func (c *Curve) AddPoint(time, value float64, kind CurveKind) Point {
	p := Point{Time: time, Value: value, Kind: kind}
	i, found := c.search(time)
	if found {
		(*c)[i] = p
		return p
	}
	*c = slices.Insert(*c, i, p)
	return p
}

// RemoveRange removes every point with start <= Time <= end and returns how
// many were removed. Pass math.Inf(1) as end to remove everything from start
// to the end of the timeline.
func (c *Curve) RemoveRange(start, end float64) int {
	i, _ := c.search(start)
	j := i
	for j < len(*c) && (*c)[j].Time <= end {
		j++
	}
	removed := j - i
	*c = slices.Delete(*c, i, j)
	return removed
}

// RemoveAt removes the point closest to time if it is within tolerance of
// it. Returns whether a point was removed.
func (c *Curve) RemoveAt(time, tolerance float64) bool {
	best := -1
	bestDist := math.Inf(1)
	i, _ := c.search(time - tolerance)
	for ; i < len(*c) && (*c)[i].Time <= time+tolerance; i++ {
		if d := math.Abs((*c)[i].Time - time); d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return false
	}
	*c = slices.Delete(*c, best, best+1)
	return true
}

// Value evaluates the curve at the given time. Before the first point the
// curve holds the first value, after the last point the last value. ok is
// false only when the curve is empty.
func (c Curve) Value(time float64) (value float64, ok bool) {
	if len(c) == 0 {
		return 0, false
	}
	i, found := c.search(time)
	if found {
		return c[i].Value, true
	}
	if i == 0 {
		return c[0].Value, true
	}
	if i == len(c) {
		return c[len(c)-1].Value, true
	}
	prev, next := c[i-1], c[i]
	if prev.Kind == Step || next.Time == prev.Time {
		return prev.Value, true
	}
	t := (time - prev.Time) / (next.Time - prev.Time)
	return prev.Value + t*(next.Value-prev.Value), true
}

// search returns the index of the first point with Time >= time, and whether
// a point exists at exactly that time.
func (c Curve) search(time float64) (index int, found bool) {
	return slices.BinarySearchFunc(c, time, func(p Point, t float64) int {
		switch {
		case p.Time < t:
			return -1
		case p.Time > t:
			return 1
		}
		return 0
	})
}
