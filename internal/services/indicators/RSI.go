package indicators

import "math"

type RSIService struct {
	ema *EMAService
}

func NewRSIService() *RSIService {
	return &RSIService{
		ema: NewEMAService(),
	}
}

// Last returns Wilder's RSI at the final price. ok is false with fewer than
// period+1 prices.
func (s *RSIService) Last(prices []float64, period int) (rsi float64, ok bool) {
	if period <= 0 || len(prices) < period+1 {
		return 0, false
	}

	gains := make([]float64, len(prices)-1)
	losses := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			gains[i-1] = change
		} else {
			losses[i-1] = math.Abs(change)
		}
	}

	avgGain := s.ema.Wilder(gains, period)
	avgLoss := s.ema.Wilder(losses, period)
	last := len(gains) - 1
	return rsiFrom(avgGain[last], avgLoss[last]), true
}

func rsiFrom(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}
