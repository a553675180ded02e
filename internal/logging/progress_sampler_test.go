package logging

import "testing"

func TestNewProgressSampler(t *testing.T) {
	tests := []struct {
		name       string
		bucketSize float64
		wantSize   float64
	}{
		{"default bucket size for zero", 0, 5},
		{"default bucket size for negative", -1, 5},
		{"custom bucket size", 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewProgressSampler(tt.bucketSize)
			if s.bucketSize != tt.wantSize {
				t.Errorf("bucketSize = %v, want %v", s.bucketSize, tt.wantSize)
			}
			if s.lastBucket != -1 {
				t.Errorf("lastBucket = %d, want -1", s.lastBucket)
			}
		})
	}
}

func TestProgressSamplerNilAlwaysEmits(t *testing.T) {
	var s *ProgressSampler
	if !s.ShouldEmit(50, "active") {
		t.Error("nil sampler should always emit")
	}
}

func TestProgressSamplerStateChange(t *testing.T) {
	s := NewProgressSampler(5)
	if !s.ShouldEmit(-1, "waiting") {
		t.Error("first state should emit")
	}
	if s.ShouldEmit(-1, "waiting") {
		t.Error("same state without percent should not emit")
	}
	if !s.ShouldEmit(-1, "active") {
		t.Error("state change should emit")
	}
}

func TestProgressSamplerBuckets(t *testing.T) {
	s := NewProgressSampler(10)
	if !s.ShouldEmit(0, "active") {
		t.Error("first update should emit")
	}
	if s.ShouldEmit(4, "active") {
		t.Error("same bucket should not emit")
	}
	if !s.ShouldEmit(12, "active") {
		t.Error("next bucket should emit")
	}
	if s.ShouldEmit(11, "active") {
		t.Error("lower percent should not emit")
	}
	if !s.ShouldEmit(100, "active") {
		t.Error("completion should emit")
	}
}
