package master

import "time"

// initialKillDelay and maxKillDelay bound the ALRM escalation ladder:
// start at 50ms, double each rung, escalate to SIGKILL once doubling
// would exceed 1s.
const (
	initialKillDelay = 50 * time.Millisecond
	maxKillDelay     = 1000 * time.Millisecond
)

// nextKillDelay advances the escalating terminate-timeout ladder. cur==0
// means "no escalation has started yet" and returns the first delay with
// escalateToKill=false; once doubling cur would exceed maxKillDelay, the
// next step signals the caller to send SIGKILL instead of re-arming the
// timer, stepping through a {50, 100, 200, 400, 800}ms-then-KILL
// boundary property.
func nextKillDelay(cur time.Duration) (next time.Duration, escalateToKill bool) {
	if cur == 0 {
		return initialKillDelay, false
	}
	doubled := cur * 2
	if doubled > maxKillDelay {
		return cur, true
	}
	return doubled, false
}
