package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManual_AdvanceFiresDueTasks(t *testing.T) {
	m := NewManual(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	fired := false
	m.Schedule(5*time.Second, func() { fired = true })

	m.Advance(4 * time.Second)
	assert.False(t, fired)

	m.Advance(time.Second)
	assert.True(t, fired)
	assert.Equal(t, 0, m.Pending())
}

func TestManual_FiresInDeadlineOrder(t *testing.T) {
	m := NewManual(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	var order []string
	m.Schedule(10*time.Second, func() { order = append(order, "late") })
	m.Schedule(5*time.Second, func() { order = append(order, "early") })

	m.Advance(time.Minute)

	assert.Equal(t, []string{"early", "late"}, order)
}

func TestManual_TiesFireInSchedulingOrder(t *testing.T) {
	m := NewManual(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	var order []string
	m.Schedule(5*time.Second, func() { order = append(order, "first") })
	m.Schedule(5*time.Second, func() { order = append(order, "second") })

	m.Advance(5 * time.Second)

	assert.Equal(t, []string{"first", "second"}, order)
}

func TestManual_CancelPreventsFiring(t *testing.T) {
	m := NewManual(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	fired := false
	task := m.Schedule(5*time.Second, func() { fired = true })

	assert.True(t, task.Cancel())
	m.Advance(time.Minute)

	assert.False(t, fired)
	assert.Equal(t, 0, m.Pending())
}

func TestManual_CancelAfterFireReportsFalse(t *testing.T) {
	m := NewManual(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	task := m.Schedule(time.Second, func() {})

	m.Advance(time.Second)

	assert.False(t, task.Cancel())
}

func TestManual_NowTracksAdvance(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewManual(start)

	m.Advance(90 * time.Second)

	assert.Equal(t, start.Add(90*time.Second), m.Now())
}

func TestRealScheduler_FiresAndCancels(t *testing.T) {
	s := New()
	fired := make(chan struct{})

	s.Schedule(time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("scheduled callback never fired")
	}

	task := s.Schedule(time.Hour, func() { t.Error("cancelled callback fired") })
	require.True(t, task.Cancel())
}
