package timeutil

import (
	"testing"
	"time"
)

func TestRealClock_Now(t *testing.T) {
	clock := RealClock{}
	before := time.Now()
	now := clock.Now()
	after := time.Now()

	if now.Before(before) || now.After(after) {
		t.Errorf("Now() = %v, expected between %v and %v", now, before, after)
	}
}

func TestRealClock_Since(t *testing.T) {
	clock := RealClock{}
	past := time.Now().Add(-time.Second)
	d := clock.Since(past)

	if d < time.Second {
		t.Errorf("Since() returned %v, expected >= 1s", d)
	}
}

func TestRealClock_NewTicker(t *testing.T) {
	clock := RealClock{}
	ticker := clock.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	select {
	case <-ticker.C():
		// Ticker fired as expected
	case <-time.After(100 * time.Millisecond):
		t.Error("ticker did not fire")
	}
}

func TestMockClock_Now(t *testing.T) {
	fixedTime := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	clock := NewMockClock(fixedTime)
	now := clock.Now()

	if !now.Equal(fixedTime) {
		t.Errorf("got %v, want %v", now, fixedTime)
	}
}

func TestMockClock_Set(t *testing.T) {
	clock := NewMockClock(time.Time{})
	newTime := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	clock.Set(newTime)

	if !clock.Now().Equal(newTime) {
		t.Errorf("got %v, want %v", clock.Now(), newTime)
	}
}

func TestMockClock_Advance(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)
	clock.Advance(time.Hour)
	expected := start.Add(time.Hour)

	if !clock.Now().Equal(expected) {
		t.Errorf("got %v, want %v", clock.Now(), expected)
	}
}

func TestMockClock_Since(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := NewMockClock(now)
	past := now.Add(-5 * time.Minute)
	d := clock.Since(past)

	if d != 5*time.Minute {
		t.Errorf("got %v, want 5m", d)
	}
}

func TestMockClock_Sleep(t *testing.T) {
	clock := NewMockClock(time.Now())
	clock.Sleep(time.Second)
	clock.Sleep(2 * time.Second)
	sleeps := clock.Sleeps()

	if len(sleeps) != 2 {
		t.Fatalf("got %d sleeps, want 2", len(sleeps))
	}

	if sleeps[0] != time.Second {
		t.Errorf("first sleep: got %v, want 1s", sleeps[0])
	}

	if sleeps[1] != 2*time.Second {
		t.Errorf("second sleep: got %v, want 2s", sleeps[1])
	}
}

func TestMockClock_Ticker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)
	ticker := clock.NewTicker(time.Minute)

	// Ticker should not tick yet
	select {
	case <-ticker.C():
		t.Error("ticker fired too early")
	default:
	}

	// Advance to first tick
	clock.Advance(time.Minute)

	select {
	case <-ticker.C():
		// Expected
	default:
		t.Error("ticker did not fire after first interval")
	}
}

func TestMockClock_Ticker_Stop(t *testing.T) {
	clock := NewMockClock(time.Now())
	ticker := clock.NewTicker(time.Second)
	ticker.Stop()
	clock.Advance(5 * time.Second)

	select {
	case <-ticker.C():
		t.Error("stopped ticker should not tick")
	default:
		// Expected
	}
}

func TestMockClock_Ticker_DropsBackedUpTicks(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)
	ticker := clock.NewTicker(time.Second)

	// Three intervals pass without a reader; only one tick is buffered.
	clock.Advance(3 * time.Second)

	fired := 0
	for {
		select {
		case <-ticker.C():
			fired++
			continue
		default:
		}
		break
	}
	if fired != 1 {
		t.Errorf("got %d buffered ticks, want 1", fired)
	}

	// The schedule kept moving, so the next advance fires again.
	clock.Advance(time.Second)
	select {
	case <-ticker.C():
		// Expected
	default:
		t.Error("ticker did not resume after dropped ticks")
	}
}
