package timer_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tomaslejdung/goview/pkg/timer"
)

func receive(t *testing.T, c <-chan string, within time.Duration) string {
	t.Helper()
	select {
	case v := <-c:
		return v
	case <-time.After(within):
		t.Fatal("timed out waiting for payload")
		return ""
	}
}

func TestOnceDeliversExactlyOnce(t *testing.T) {
	tm := timer.New[string](time.Millisecond)
	defer tm.Stop()

	tm.Once("relayout", 5*time.Millisecond)
	require.Equal(t, "relayout", receive(t, tm.C(), time.Second))

	select {
	case v := <-tm.C():
		t.Fatalf("unexpected second delivery %q", v)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestRepeatKeepsDelivering(t *testing.T) {
	tm := timer.New[string](time.Millisecond)
	defer tm.Stop()

	tm.Repeat("tick", 2*time.Millisecond)
	for i := 0; i < 5; i++ {
		require.Equal(t, "tick", receive(t, tm.C(), time.Second))
	}
}

func TestMixedEntriesKeepTheirPayloads(t *testing.T) {
	tm := timer.New[string](time.Millisecond)
	defer tm.Stop()

	tm.Repeat("interact", time.Millisecond)
	tm.Once("stats", 50*time.Millisecond)

	var sawStats bool
	deadline := time.After(time.Second)
	for !sawStats {
		select {
		case v := <-tm.C():
			switch v {
			case "interact":
			case "stats":
				sawStats = true
			default:
				t.Fatalf("unknown payload %q", v)
			}
		case <-deadline:
			t.Fatal("one-shot never fired")
		}
	}
}

func TestStopTerminatesDelivery(t *testing.T) {
	tm := timer.New[string](time.Millisecond)
	tm.Repeat("tick", time.Millisecond)
	receive(t, tm.C(), time.Second)

	tm.Stop()

	// Drain anything buffered before the stop; nothing new may arrive.
	for {
		select {
		case <-tm.C():
			continue
		case <-time.After(10 * time.Millisecond):
		}
		break
	}

	select {
	case <-tm.C():
		t.Fatal("delivery after Stop")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestRegisterAfterStopDoesNotBlock(t *testing.T) {
	tm := timer.New[string](time.Millisecond)
	tm.Stop()

	done := make(chan struct{})
	go func() {
		tm.Once("late", time.Millisecond)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Once blocked after Stop")
	}
}
