package congestion

import (
	"testing"
	"time"
)

func TestCalculateBufferbloatFactor(t *testing.T) {
	cases := []struct {
		name          string
		avgRTT        time.Duration
		minRTT        time.Duration
		wantNonNeg    bool
		wantZeroExact bool
	}{
		{"no queueing", 50 * time.Millisecond, 50 * time.Millisecond, true, true},
		{"bloated", 150 * time.Millisecond, 50 * time.Millisecond, true, false},
		{"zero min rtt", 50 * time.Millisecond, 0, false, true},
		{"avg below min", 40 * time.Millisecond, 50 * time.Millisecond, false, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := CalculateBufferbloatFactor(c.avgRTT, c.minRTT)
			if got < 0 {
				t.Fatalf("bufferbloat factor must never be negative, got %f", got)
			}
			if c.wantZeroExact && got != 0 {
				t.Fatalf("expected exactly 0, got %f", got)
			}
			if !c.wantZeroExact && got == 0 {
				t.Fatalf("expected a positive bufferbloat factor, got 0")
			}
		})
	}

	if got := CalculateBufferbloatFactor(150*time.Millisecond, 50*time.Millisecond); got != 2.0 {
		t.Fatalf("expected bufferbloat factor 2.0 for 3x RTT, got %f", got)
	}
}

func TestCalculateStabilityIndex(t *testing.T) {
	if got := CalculateStabilityIndex(100, 0); got != 0 {
		t.Fatalf("expected 0 when rtt delta is 0, got %f", got)
	}
	if got := CalculateStabilityIndex(-200, 10); got != 20 {
		t.Fatalf("expected absolute value 20, got %f", got)
	}
}

func TestJainFairnessIndex(t *testing.T) {
	if got := JainFairnessIndex(nil); got != 0 {
		t.Fatalf("expected 0 for empty input, got %f", got)
	}
	if got := JainFairnessIndex([]float64{42}); got != 1.0 {
		t.Fatalf("expected 1.0 for a single flow, got %f", got)
	}
	// Equal throughputs: perfectly fair.
	if got := JainFairnessIndex([]float64{100, 100, 100}); got != 1.0 {
		t.Fatalf("expected 1.0 for equal throughputs, got %f", got)
	}
	// One flow starving another: fairness index drops below 1.
	got := JainFairnessIndex([]float64{100, 1})
	if got >= 1.0 || got <= 0 {
		t.Fatalf("expected fairness index in (0,1) for unequal throughputs, got %f", got)
	}
}

func TestCalculateRTTPercentiles(t *testing.T) {
	p50, p95, p99 := CalculateRTTPercentiles(nil)
	if p50 != 0 || p95 != 0 || p99 != 0 {
		t.Fatalf("expected zero percentiles for empty input, got %v %v %v", p50, p95, p99)
	}

	samples := make([]time.Duration, 100)
	for i := range samples {
		samples[i] = time.Duration(i+1) * time.Millisecond
	}
	p50, p95, p99 = CalculateRTTPercentiles(samples)
	if p50 > p95 || p95 > p99 {
		t.Fatalf("percentiles must be ordered: p50=%v p95=%v p99=%v", p50, p95, p99)
	}
	if p50 < 45*time.Millisecond || p50 > 55*time.Millisecond {
		t.Fatalf("p50 of 1..100ms should be near 50ms, got %v", p50)
	}
}

func TestCalculateJitter(t *testing.T) {
	if got := CalculateJitter(nil); got != 0 {
		t.Fatalf("expected 0 jitter for empty input, got %v", got)
	}
	constant := []time.Duration{20 * time.Millisecond, 20 * time.Millisecond, 20 * time.Millisecond}
	if got := CalculateJitter(constant); got != 0 {
		t.Fatalf("expected 0 jitter for constant samples, got %v", got)
	}
	varying := []time.Duration{10 * time.Millisecond, 30 * time.Millisecond}
	if got := CalculateJitter(varying); got <= 0 {
		t.Fatalf("expected positive jitter for varying samples, got %v", got)
	}
}

func TestCalculateGoodput(t *testing.T) {
	if got := CalculateGoodput(1000, 0, 0); got != 0 {
		t.Fatalf("expected 0 goodput for zero duration, got %f", got)
	}
	if got := CalculateGoodput(1000, 200, time.Second); got != 800 {
		t.Fatalf("expected 800 B/s goodput, got %f", got)
	}
	// Retransmits exceeding acked bytes clamp to zero, never negative.
	if got := CalculateGoodput(100, 200, time.Second); got != 0 {
		t.Fatalf("expected goodput clamped to 0, got %f", got)
	}
}

func TestCalculateRetransmissionRate(t *testing.T) {
	if got := CalculateRetransmissionRate(10, 0); got != 0 {
		t.Fatalf("expected 0 rate when nothing was sent, got %f", got)
	}
	if got := CalculateRetransmissionRate(25, 100); got != 0.25 {
		t.Fatalf("expected rate 0.25, got %f", got)
	}
}

func TestCalculateRecoveryTime(t *testing.T) {
	loss := time.Now()
	recovered := loss.Add(150 * time.Millisecond)
	if got := CalculateRecoveryTime(loss, recovered); got != 150*time.Millisecond {
		t.Fatalf("expected 150ms recovery time, got %v", got)
	}
	if got := CalculateRecoveryTime(recovered, loss); got != 0 {
		t.Fatalf("expected 0 for recovery before loss, got %v", got)
	}
}

func TestCalculateLossRecoveryEfficiency(t *testing.T) {
	if got := CalculateLossRecoveryEfficiency(5, 0); got != 1.0 {
		t.Fatalf("expected 1.0 when nothing was lost, got %f", got)
	}
	if got := CalculateLossRecoveryEfficiency(5, 10); got != 0.5 {
		t.Fatalf("expected 0.5, got %f", got)
	}
	// More recovered than lost caps at 1.0.
	if got := CalculateLossRecoveryEfficiency(20, 10); got != 1.0 {
		t.Fatalf("expected efficiency capped at 1.0, got %f", got)
	}
}
