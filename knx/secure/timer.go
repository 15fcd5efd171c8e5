package secure

import (
	"math/rand/v2"
	"time"
)

// Role is a Secure routing timer's place in the group: the node whose
// timer the rest of the group has synchronized to, or a node tracking
// someone else's.
type Role int

const (
	RoleUndetermined Role = iota
	RoleTimekeeper
	RoleFollower
)

// Tolerances are the delay-window derivatives of a configured
// latency_ms, per the periodic/update notify schedule.
type Tolerances struct {
	SyncLatency         time.Duration
	MinKeeperPeriodic   time.Duration
	MaxKeeperPeriodic   time.Duration
	MinFollowerPeriodic time.Duration
	MaxFollowerPeriodic time.Duration
	MinKeeperUpdate     time.Duration
	MaxKeeperUpdate     time.Duration
	MinFollowerUpdate   time.Duration
	MaxFollowerUpdate   time.Duration
}

// DeriveTolerances computes the full set of delay windows from a
// configured latency tolerance.
func DeriveTolerances(latency time.Duration) Tolerances {
	sync := latency / 10

	minKeeperPeriodic := 10 * time.Second
	maxKeeperPeriodic := minKeeperPeriodic + 3*sync
	minFollowerPeriodic := maxKeeperPeriodic + sync
	maxFollowerPeriodic := minFollowerPeriodic + 10*sync

	minKeeperUpdate := 100 * time.Millisecond
	maxKeeperUpdate := minKeeperUpdate + sync
	minFollowerUpdate := maxKeeperUpdate + sync
	maxFollowerUpdate := minFollowerUpdate + 10*sync

	return Tolerances{
		SyncLatency:         sync,
		MinKeeperPeriodic:   minKeeperPeriodic,
		MaxKeeperPeriodic:   maxKeeperPeriodic,
		MinFollowerPeriodic: minFollowerPeriodic,
		MaxFollowerPeriodic: maxFollowerPeriodic,
		MinKeeperUpdate:     minKeeperUpdate,
		MaxKeeperUpdate:     maxKeeperUpdate,
		MinFollowerUpdate:   minFollowerUpdate,
		MaxFollowerUpdate:   maxFollowerUpdate,
	}
}

// PendingUpdate names the stale sender an update notify is being sent
// to re-synchronize.
type PendingUpdate struct {
	MessageTag uint16
	Serial     [6]byte
}

// TimerState is one node's view of the shared group timer: a
// monotonic clock plus the role/tolerance/pending-update fields the
// event table in §4.9 drives.
type TimerState struct {
	Latency     time.Duration
	Tolerances  Tolerances
	Role        Role
	Offset      time.Duration // added to monotonic_ms to get T(t)
	Pending     *PendingUpdate
}

// NewTimerState builds a TimerState for the given latency tolerance,
// starting with no role assigned (set by the bootstrap handshake).
func NewTimerState(latency time.Duration) *TimerState {
	return &TimerState{Latency: latency, Tolerances: DeriveTolerances(latency)}
}

// Now returns the node's current view of the shared timer given a
// monotonic reading.
func (s *TimerState) Now(monotonic time.Duration) time.Duration {
	return monotonic + s.Offset
}

// Outcome is the action NextAction determines a received timer value
// should cause.
type Outcome int

const (
	OutcomeUpdateAndFollow Outcome = iota
	OutcomeAcceptAndReschedule
	OutcomeAcceptNoReschedule
	OutcomeDiscardAndPushUpdate
)

// Evaluate implements the event table in §4.9: given the locally-held
// timer value and one just received (both as durations since an
// arbitrary epoch), decide how the frame should be handled and how
// the local state should change.
func (s *TimerState) Evaluate(localNow, received time.Duration) Outcome {
	syncTol := s.Tolerances.SyncLatency
	latencyTol := s.Latency

	switch {
	case received > localNow:
		s.Offset += received - localNow
		s.Role = RoleFollower
		return OutcomeUpdateAndFollow
	case received > localNow-syncTol:
		return OutcomeAcceptAndReschedule
	case received > localNow-latencyTol:
		return OutcomeAcceptNoReschedule
	default:
		return OutcomeDiscardAndPushUpdate
	}
}

// SetPendingUpdate records the stale sender an update TimerNotify
// should target, unless one is already pending — callers check
// HasPendingUpdate first so a burst of stale frames from the same
// sender only schedules one notify.
func (s *TimerState) SetPendingUpdate(tag uint16, serial [6]byte) {
	if s.Pending != nil {
		return
	}
	s.Pending = &PendingUpdate{MessageTag: tag, Serial: serial}
}

// ClearPendingUpdate marks the pending update notify as sent.
func (s *TimerState) ClearPendingUpdate() {
	s.Pending = nil
}

// NextPeriodicDelay returns a randomized delay within the periodic
// notify window for the node's current role.
func (s *TimerState) NextPeriodicDelay() time.Duration {
	if s.Role == RoleTimekeeper {
		return randBetween(s.Tolerances.MinKeeperPeriodic, s.Tolerances.MaxKeeperPeriodic)
	}
	return randBetween(s.Tolerances.MinFollowerPeriodic, s.Tolerances.MaxFollowerPeriodic)
}

// NextUpdateDelay returns a randomized delay within the update notify
// window for the node's current role.
func (s *TimerState) NextUpdateDelay() time.Duration {
	if s.Role == RoleTimekeeper {
		return randBetween(s.Tolerances.MinKeeperUpdate, s.Tolerances.MaxKeeperUpdate)
	}
	return randBetween(s.Tolerances.MinFollowerUpdate, s.Tolerances.MaxFollowerUpdate)
}

// BootstrapWait is how long a node waits for a competing TimerNotify
// bearing its own message_tag before assuming the timekeeper role.
func (s *TimerState) BootstrapWait() time.Duration {
	return s.Tolerances.MaxFollowerUpdate + 2*s.Latency
}

func randBetween(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int64N(int64(max-min)))
}
