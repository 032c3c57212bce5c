// Package view holds the display consumers. Each one decodes the window it is
// handed on a refresh tick and keeps the derived data for whatever draws it.
package view

import (
	"math"
	"strconv"

	"sleepywoodpecker/rp-scan-windows/internal/store"
)

// Stats summarizes one channel of one window.
type Stats struct {
	Samples int
	Min     float64
	Max     float64
	Mean    float64
	RMS     float64
}

func summarize(series store.ChannelSeries) Stats {
	if len(series) == 0 {
		return Stats{}
	}

	s := Stats{Samples: len(series), Min: math.Inf(1), Max: math.Inf(-1)}
	var sum, sumSq float64
	for _, v := range series {
		s.Min = min(s.Min, v)
		s.Max = max(s.Max, v)
		sum += v
		sumSq += v * v
	}
	n := float64(len(series))
	s.Mean = sum / n
	s.RMS = math.Sqrt(sumSq / n)
	return s
}

func channelLabel(channel int) string {
	return strconv.Itoa(channel)
}
