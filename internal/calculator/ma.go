package calculator

import "math"

// nanSeries returns a slice of n NaN values.
func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// CalculateEMA computes an exponential moving average with alpha = 2/(span+1),
// seeded with the first valid value. Output is NaN until span valid values
// have been observed.
func CalculateEMA(values []float64, span int) []float64 {
	if span <= 0 {
		return nanSeries(len(values))
	}
	return ewm(values, 2.0/float64(span+1), span)
}

// ewm is a recursive exponentially weighted mean (no bias adjustment).
// Leading NaN values are skipped; an interior NaN carries the previous mean.
func ewm(values []float64, alpha float64, minPeriods int) []float64 {
	out := nanSeries(len(values))
	var mean float64
	seen := 0
	for i, v := range values {
		if math.IsNaN(v) {
			if seen >= minPeriods {
				out[i] = mean
			}
			continue
		}
		if seen == 0 {
			mean = v
		} else {
			mean = (1-alpha)*mean + alpha*v
		}
		seen++
		if seen >= minPeriods {
			out[i] = mean
		}
	}
	return out
}

// CalculateSMA computes a rolling simple moving average over period values.
func CalculateSMA(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 {
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// CalculateStdDev computes a rolling population standard deviation.
func CalculateStdDev(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 {
		return out
	}
	for i := period - 1; i < len(values); i++ {
		window := values[i-period+1 : i+1]
		var mean float64
		for _, v := range window {
			mean += v
		}
		mean /= float64(period)
		var variance float64
		for _, v := range window {
			d := v - mean
			variance += d * d
		}
		out[i] = math.Sqrt(variance / float64(period))
	}
	return out
}
