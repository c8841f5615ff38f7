package logging

// ProgressSampler suppresses repetitive progress logs while preserving signal
// when the attempt or the percentage bucket changes.
type ProgressSampler struct {
	bucketSize  float64
	lastAttempt int
	lastBucket  int
}

// NewProgressSampler constructs a sampler that emits when the percent crosses
// bucket boundaries (default 10%) or when a new attempt starts.
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 10
	}
	return &ProgressSampler{bucketSize: bucketSize, lastBucket: -1}
}

// ShouldLog reports whether a progress event should be logged. Percent can be
// negative to indicate an unknown total, in which case only attempt changes
// are reported.
func (s *ProgressSampler) ShouldLog(percent float64, attempt int) bool {
	if s == nil {
		return true
	}
	emit := false
	if attempt != s.lastAttempt {
		s.lastAttempt = attempt
		s.lastBucket = -1
		emit = true
	}
	if percent >= 0 {
		bucket := int(percent / s.bucketSize)
		if percent >= 100 {
			bucket = int(100 / s.bucketSize)
		}
		if bucket > s.lastBucket {
			s.lastBucket = bucket
			emit = true
		}
	}
	return emit
}

// Reset clears the sampler state (e.g. when a new task starts).
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastAttempt = 0
	s.lastBucket = -1
}
