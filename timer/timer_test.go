package timer

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedule_OneShot(t *testing.T) {
	m := NewManager()
	defer m.Stop()

	var fired int32
	m.Schedule(50*time.Millisecond, 0, func() { atomic.AddInt32(&fired, 1) })

	time.Sleep(400 * time.Millisecond)
	if got := atomic.LoadInt32(&fired); got != 1 {
		t.Errorf("expected one-shot task to fire once, fired %d times", got)
	}
}

func TestSchedule_Interval(t *testing.T) {
	m := NewManager()
	defer m.Stop()

	var fired int32
	m.Schedule(0, 100*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })

	time.Sleep(550 * time.Millisecond)
	if got := atomic.LoadInt32(&fired); got < 3 {
		t.Errorf("expected repeating task to fire at least 3 times, fired %d times", got)
	}
}

func TestCancel(t *testing.T) {
	m := NewManager()
	defer m.Stop()

	var fired int32
	id := m.Schedule(200*time.Millisecond, 0, func() { atomic.AddInt32(&fired, 1) })
	m.Cancel(id)

	time.Sleep(400 * time.Millisecond)
	if got := atomic.LoadInt32(&fired); got != 0 {
		t.Errorf("cancelled task fired %d times", got)
	}
}
