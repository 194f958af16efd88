package health

import (
	"math"
	"sort"
	"time"

	"github.com/Arunosaur/ninaivalaigal-sub001/errors"
)

// ResponseTimeStats summarizes response times over a trend window.
type ResponseTimeStats struct {
	MeanMS   float64 `json:"mean_ms"`
	MedianMS float64 `json:"median_ms"`
	StdevMS  float64 `json:"stdev_ms"`
	MinMS    float64 `json:"min_ms"`
	MaxMS    float64 `json:"max_ms"`
}

// HourlyBucket aggregates observations for one clock hour.
type HourlyBucket struct {
	Hour              time.Time `json:"hour"`
	TotalChecks       int       `json:"total_checks"`
	SuccessRate       float64   `json:"success_rate"`
	AvgResponseTimeMS float64   `json:"avg_response_time_ms"`
}

// Trends is the trend report for one provider over a lookback window.
type Trends struct {
	ProviderName string            `json:"provider_name"`
	Hours        int               `json:"hours"`
	TotalChecks  int               `json:"total_checks"`
	SuccessRate  float64           `json:"success_rate"`
	ResponseTime ResponseTimeStats `json:"response_time"`
	Hourly       []HourlyBucket    `json:"hourly"`
}

// GetHealthTrends computes response-time statistics and hourly buckets over
// the last `hours` hours of observations for a provider.
func (m *Monitor) GetHealthTrends(providerName string, hours int) (Trends, error) {
	if hours <= 0 {
		hours = 24
	}

	m.mu.RLock()
	all, ok := m.metrics[providerName]
	var window []Metric
	if ok {
		cutoff := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
		for _, metric := range all {
			if !metric.Timestamp.Before(cutoff) {
				window = append(window, metric)
			}
		}
	}
	m.mu.RUnlock()

	if !ok {
		return Trends{}, errors.WrapNotFound(errors.ErrProviderNotFound, "HealthMonitor", "GetHealthTrends", "provider lookup")
	}

	trends := Trends{
		ProviderName: providerName,
		Hours:        hours,
		TotalChecks:  len(window),
	}
	if len(window) == 0 {
		return trends, nil
	}

	times := make([]float64, 0, len(window))
	buckets := make(map[time.Time]*HourlyBucket)
	var successes int
	for _, metric := range window {
		times = append(times, metric.ResponseTimeMS)
		if metric.Success {
			successes++
		}

		hour := metric.Timestamp.Truncate(time.Hour)
		bucket, ok := buckets[hour]
		if !ok {
			bucket = &HourlyBucket{Hour: hour}
			buckets[hour] = bucket
		}
		bucket.TotalChecks++
		bucket.AvgResponseTimeMS += metric.ResponseTimeMS
		if metric.Success {
			bucket.SuccessRate++
		}
	}

	trends.SuccessRate = float64(successes) / float64(len(window)) * 100
	trends.ResponseTime = computeStats(times)

	trends.Hourly = make([]HourlyBucket, 0, len(buckets))
	for _, bucket := range buckets {
		bucket.SuccessRate = bucket.SuccessRate / float64(bucket.TotalChecks) * 100
		bucket.AvgResponseTimeMS /= float64(bucket.TotalChecks)
		trends.Hourly = append(trends.Hourly, *bucket)
	}
	sort.Slice(trends.Hourly, func(i, j int) bool {
		return trends.Hourly[i].Hour.Before(trends.Hourly[j].Hour)
	})

	return trends, nil
}

func computeStats(values []float64) ResponseTimeStats {
	if len(values) == 0 {
		return ResponseTimeStats{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(len(sorted))

	var variance float64
	for _, v := range sorted {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(sorted))

	var median float64
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		median = (sorted[mid-1] + sorted[mid]) / 2
	} else {
		median = sorted[mid]
	}

	return ResponseTimeStats{
		MeanMS:   mean,
		MedianMS: median,
		StdevMS:  math.Sqrt(variance),
		MinMS:    sorted[0],
		MaxMS:    sorted[len(sorted)-1],
	}
}
