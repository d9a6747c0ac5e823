package indicators

// EMAService provides exponential smoothing for the oscillators.
type EMAService struct{}

// NewEMAService creates a new EMA service instance
func NewEMAService() *EMAService {
	return &EMAService{}
}

// Wilder computes Wilder's smoothed average (alpha = 1/period), seeded
// with the SMA of the first period values. Indices before period-1 are
// left at zero.
func (s *EMAService) Wilder(values []float64, period int) []float64 {
	if !s.validateInputs(values, period) {
		return nil
	}
	return s.smooth(values, period, 1.0/float64(period))
}

func (s *EMAService) smooth(values []float64, period int, multiplier float64) []float64 {
	out := make([]float64, len(values))
	out[period-1] = s.calculateInitialSMA(values, period)
	for i := period; i < len(values); i++ {
		out[i] = s.calculatePoint(values[i], out[i-1], multiplier)
	}
	return out
}

// Private helper methods

func (s *EMAService) validateInputs(prices []float64, period int) bool {
	if len(prices) == 0 || period <= 0 || len(prices) < period {
		return false
	}
	return true
}

func (s *EMAService) calculateInitialSMA(prices []float64, period int) float64 {
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += prices[i]
	}
	return sum / float64(period)
}

func (s *EMAService) calculatePoint(price, prevEMA, multiplier float64) float64 {
	return (price-prevEMA)*multiplier + prevEMA
}
