package session

import (
	"context"
	"time"
)

// keepaliveInterval and keepaliveDeadline implement the liveness rule: PING
// at least once every 5 seconds, die after three consecutive misses.
const (
	keepaliveInterval = 5 * time.Second
	keepaliveDeadline = 5 * time.Second
)

// RunKeepalive drives the PING timer and miss-counting for s until ctx
// is cancelled or the session dies from missed pongs. send is called to
// actually emit a PING packet on the wire; RunKeepalive only owns
// timing and death detection, not encoding. Grounded on
// ingest/muxer.go's ticker-driven health-check goroutines
// (ingesterStateUpdateInterval's periodic-tick idiom).
func RunKeepalive(ctx context.Context, s *Session, send func() error) error {
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.Done():
			return nil
		case <-ticker.C:
			if s.CheckKeepaliveTimeout(keepaliveDeadline) {
				s.log.Warn("peer missed three consecutive keepalives, closing session")
				return s.Close()
			}
			if !s.AllowPing() {
				continue
			}
			if err := send(); err != nil {
				return err
			}
			s.RecordPingSent()
		}
	}
}
