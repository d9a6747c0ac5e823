package indicators

// SMA returns the simple average of the last period values ending at index
// end (inclusive). ok is false when fewer than period values are available.
func SMA(values []float64, end, period int) (avg float64, ok bool) {
	if period <= 0 || end >= len(values) || end-period+1 < 0 {
		return 0, false
	}
	sum := 0.0
	for i := end - period + 1; i <= end; i++ {
		sum += values[i]
	}
	return sum / float64(period), true
}

// Cross is the direction of a fast/slow line crossing on the latest bar.
type Cross int

const (
	NoCross Cross = iota
	BullishCross
	BearishCross
)

// CheckCrossover compares the previous and current fast/slow values.
// Touching on the previous bar and separating now counts as a cross.
func CheckCrossover(prevFast, prevSlow, currFast, currSlow float64) Cross {
	switch {
	case prevFast <= prevSlow && currFast > currSlow:
		return BullishCross
	case prevFast >= prevSlow && currFast < currSlow:
		return BearishCross
	default:
		return NoCross
	}
}
