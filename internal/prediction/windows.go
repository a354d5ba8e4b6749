package prediction

import "rainbowcast/internal/types"

// FindPeakWindows scans an ascending-hour probability sequence and returns
// every maximal run of consecutive points at or above threshold, in order of
// start hour. Windows never overlap. A single qualifying point is a window of
// duration 1. Single forward pass; no per-window rescans.
func FindPeakWindows(points []types.HourlyPoint, threshold float64) []types.ForecastWindow {
	var windows []types.ForecastWindow

	var open *types.ForecastWindow
	var sum float64
	var count int

	for _, pt := range points {
		if pt.Probability >= threshold {
			if open == nil {
				open = &types.ForecastWindow{
					StartHour:      pt.Hour,
					EndHour:        pt.Hour,
					MaxProbability: pt.Probability,
				}
				sum = pt.Probability
				count = 1
				continue
			}
			open.EndHour = pt.Hour
			if pt.Probability > open.MaxProbability {
				open.MaxProbability = pt.Probability
			}
			sum += pt.Probability
			count++
			continue
		}
		if open != nil {
			windows = append(windows, sealWindow(open, sum, count))
			open = nil
		}
	}
	if open != nil {
		windows = append(windows, sealWindow(open, sum, count))
	}

	return windows
}

func sealWindow(w *types.ForecastWindow, sum float64, count int) types.ForecastWindow {
	w.AvgProbability = sum / float64(count)
	w.DurationHours = w.EndHour - w.StartHour + 1
	return *w
}
