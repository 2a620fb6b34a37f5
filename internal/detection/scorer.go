// Decoyshield - Deception-Based Intrusion Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/decoyshield

package detection

import "math"

// Scorer turns a batch of pointer events into a verdict. The bool result is
// false when the batch carries too little timing data to judge.
//
// Implementations must be safe for concurrent use.
type Scorer interface {
	Score(batch EventBatch) (AnomalyVerdict, bool)
}

// ThresholdConfig holds the bounds used by ThresholdScorer.
type ThresholdConfig struct {
	// MinBatch is the minimum batch length that can be flagged.
	MinBatch int `json:"min_batch"`

	// MaxStddevMs is the exclusive upper bound on delta standard deviation.
	MaxStddevMs float64 `json:"max_stddev_ms"`

	// MinMeanMs and MaxMeanMs bound the mean delta, inclusive.
	MinMeanMs float64 `json:"min_mean_ms"`
	MaxMeanMs float64 `json:"max_mean_ms"`
}

// DefaultThresholdConfig returns the standard regular-timing bounds.
func DefaultThresholdConfig() ThresholdConfig {
	return ThresholdConfig{
		MinBatch:    40,
		MaxStddevMs: 6,
		MinMeanMs:   20,
		MaxMeanMs:   80,
	}
}

// ThresholdScorer flags batches whose inter-event timing is suspiciously
// regular. It holds no mutable state.
type ThresholdScorer struct {
	cfg ThresholdConfig
}

// NewThresholdScorer creates a scorer. Zero fields fall back to defaults.
func NewThresholdScorer(cfg ThresholdConfig) *ThresholdScorer {
	def := DefaultThresholdConfig()
	if cfg.MinBatch <= 0 {
		cfg.MinBatch = def.MinBatch
	}
	if cfg.MaxStddevMs <= 0 {
		cfg.MaxStddevMs = def.MaxStddevMs
	}
	if cfg.MaxMeanMs <= 0 {
		cfg.MinMeanMs = def.MinMeanMs
		cfg.MaxMeanMs = def.MaxMeanMs
	}
	return &ThresholdScorer{cfg: cfg}
}

// Config returns the active thresholds.
func (s *ThresholdScorer) Config() ThresholdConfig {
	return s.cfg
}

// Score implements Scorer.
func (s *ThresholdScorer) Score(batch EventBatch) (AnomalyVerdict, bool) {
	epochs := timestamped(batch)
	if len(epochs) < 2 {
		return AnomalyVerdict{}, false
	}

	mean, stddev := deltaStats(epochs)

	verdict := AnomalyVerdict{
		MeanDeltaMs:   mean,
		StddevDeltaMs: stddev,
		SampleSize:    len(epochs),
	}
	if len(batch) >= s.cfg.MinBatch &&
		stddev < s.cfg.MaxStddevMs &&
		mean >= s.cfg.MinMeanMs && mean <= s.cfg.MaxMeanMs {
		verdict.IsAnomalous = true
		verdict.Score = AnomalyScore
	}
	return verdict, true
}

func timestamped(batch EventBatch) []int64 {
	epochs := make([]int64, 0, len(batch))
	for i := range batch {
		if batch[i].EpochMillis != nil {
			epochs = append(epochs, *batch[i].EpochMillis)
		}
	}
	return epochs
}

// deltaStats returns the mean and population standard deviation of the
// consecutive differences of epochs. Zero and negative deltas are kept.
func deltaStats(epochs []int64) (mean, stddev float64) {
	n := float64(len(epochs) - 1)

	var sum float64
	for i := 1; i < len(epochs); i++ {
		sum += float64(epochs[i] - epochs[i-1])
	}
	mean = sum / n

	var variance float64
	for i := 1; i < len(epochs); i++ {
		d := float64(epochs[i]-epochs[i-1]) - mean
		variance += d * d
	}
	variance /= n

	return mean, math.Sqrt(variance)
}
