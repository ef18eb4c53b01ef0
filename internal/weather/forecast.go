package weather

// SamplesPerDay is how many forecast entries the provider returns per day:
// the series comes at 3-hour intervals.
const SamplesPerDay = 8

// DeriveDaily downsamples the raw forecast series to one entry per day by
// fixed-stride selection: it keeps the elements at indices 0, stride,
// 2*stride, ... in order. It does not group or average by calendar day.
// An empty series yields an empty result; a stride below 1 is treated as 1.
func DeriveDaily(series []ForecastSample, stride int) []ForecastSample {
	if len(series) == 0 {
		return nil
	}
	if stride < 1 {
		stride = 1
	}

	daily := make([]ForecastSample, 0, (len(series)+stride-1)/stride)
	for i := 0; i < len(series); i += stride {
		daily = append(daily, series[i])
	}
	return daily
}
