package amd

import (
	"sync"
	"time"
)

// PerformanceMetrics summarises a detector's decisions over its lifetime
type PerformanceMetrics struct {
	TotalDetections int64 `json:"total_detections"`
	// Accuracy is 1 - (FalsePositives+FalseNegatives)/LabelledDetections, 0 until feedback arrives
	Accuracy float64 `json:"accuracy"`
	// AverageDetectionTime is in milliseconds and is the two-point average (previous+latest)/2
	AverageDetectionTime float64 `json:"average_detection_time"`
	FalsePositives       int64   `json:"false_positives"`
	FalseNegatives       int64   `json:"false_negatives"`
	LabelledDetections   int64   `json:"labelled_detections"`
}

// FalsePositiveRate is the share of labelled calls wrongly flagged as machines
func (p PerformanceMetrics) FalsePositiveRate() float64 {
	if p.LabelledDetections == 0 {
		return 0
	}
	return float64(p.FalsePositives) / float64(p.LabelledDetections)
}

// MetricsStore owns a detector's PerformanceMetrics
type MetricsStore struct {
	mutex   sync.Mutex
	metrics PerformanceMetrics
}

// NewMetricsStore creates an empty store
func NewMetricsStore() *MetricsStore {
	return &MetricsStore{}
}

// RecordDetection counts a completed detection and folds in its latency
func (s *MetricsStore) RecordDetection(elapsed time.Duration) {
	ms := float64(elapsed) / float64(time.Millisecond)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.metrics.TotalDetections++
	s.metrics.AverageDetectionTime = (s.metrics.AverageDetectionTime + ms) / 2
}

// RecordFeedback compares a decision with the ground truth reported later
func (s *MetricsStore) RecordFeedback(predictedMachine, actualMachine bool) PerformanceMetrics {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.metrics.LabelledDetections++
	switch {
	case predictedMachine && !actualMachine:
		s.metrics.FalsePositives++
	case !predictedMachine && actualMachine:
		s.metrics.FalseNegatives++
	}
	errorsSeen := float64(s.metrics.FalsePositives + s.metrics.FalseNegatives)
	s.metrics.Accuracy = 1 - errorsSeen/float64(s.metrics.LabelledDetections)
	return s.metrics
}

// Snapshot returns a copy of the current metrics
func (s *MetricsStore) Snapshot() PerformanceMetrics {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.metrics
}

// Reset clears all counters
func (s *MetricsStore) Reset() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.metrics = PerformanceMetrics{}
}
