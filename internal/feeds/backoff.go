// Package feeds holds the long-running adapter tasks that connect to an
// upstream market-data source and emit normalized domain.MarketData onto the
// market bus. Reconnect/backoff is grounded on the upstream adapters this
// spec was distilled from (adapters/binance.rs, adapters/polymarket_ws.rs):
// exponential backoff from 1s to 30s, doubling per failed attempt, reset to
// 1s on a clean session. The teacher's own ws_client.go instead sleeps a
// fixed 5s between reconnects; this project needs the richer backoff the
// spec requires, so the shape below generalizes the teacher's retry loop
// rather than reusing it verbatim.
package feeds

import "time"

const (
	minBackoff = 1 * time.Second
	maxBackoff = 30 * time.Second
)

// backoff tracks the current reconnect delay for one adapter session loop.
type backoff struct {
	current time.Duration
}

func newBackoff() *backoff {
	return &backoff{current: minBackoff}
}

// next returns the delay to sleep before the next reconnect attempt and
// doubles the delay for next time, capped at maxBackoff.
func (b *backoff) next() time.Duration {
	d := b.current
	b.current *= 2
	if b.current > maxBackoff {
		b.current = maxBackoff
	}
	return d
}

// reset returns the delay to the minimum, called after a clean session.
func (b *backoff) reset() {
	b.current = minBackoff
}
