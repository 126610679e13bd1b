package loadlib

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestTimeoutController_ArmTwice(t *testing.T) {
	tc := NewTimeoutController(newManualTimers())
	id := uuid.New()
	if err := tc.Arm(id, time.Second, func(uint64) {}); err != nil {
		t.Fatal(err)
	}
	if err := tc.Arm(id, time.Second, func(uint64) {}); !errors.Is(err, ErrTimerArmed) {
		t.Fatalf("expected ErrTimerArmed, got %v", err)
	}
}

func TestTimeoutController_FireAndDisarm(t *testing.T) {
	timers := newManualTimers()
	tc := NewTimeoutController(timers)
	id := uuid.New()
	var fired []uint64
	tc.Arm(id, time.Second, func(gen uint64) { fired = append(fired, gen) })

	if !tc.Disarm(id) {
		t.Fatal("expected disarm")
	}
	timers.Advance(time.Second)
	if len(fired) != 0 {
		t.Fatal("disarmed timer fired")
	}

	tc.Arm(id, time.Second, func(gen uint64) { fired = append(fired, gen) })
	timers.Advance(time.Second)
	if len(fired) != 1 {
		t.Fatalf("expected one fire, got %d", len(fired))
	}
	if !tc.Fired(id, fired[0]) {
		t.Fatal("expected current generation accepted")
	}
	if tc.Len() != 0 {
		t.Fatal("fired entry should be consumed")
	}
}

func TestTimeoutController_StaleFire(t *testing.T) {
	tc := NewTimeoutController(newManualTimers())
	id := uuid.New()
	var gens []uint64
	tc.Arm(id, time.Second, func(gen uint64) { gens = append(gens, gen) })
	tc.Disarm(id)
	tc.Arm(id, time.Second, func(uint64) {})
	// a fire from the first arming raced the disarm
	if tc.Fired(id, 1) {
		t.Fatal("stale generation accepted")
	}
	if tc.Len() != 1 {
		t.Fatal("current timer must stay armed")
	}
	tc.DisarmAll()
	if tc.Len() != 0 {
		t.Fatal("expected all disarmed")
	}
}
