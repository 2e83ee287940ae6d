package consensus

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrPollFailed is a sentinel a Poller may wrap to indicate this
// participant simply didn't answer this round.
var ErrPollFailed = errors.New("consensus: participant poll failed")

// Poller fetches a fresh measurement for one participant, returning
// the updated Participant to report into the ring. It's expected to
// make one request over that participant's transport and respect ctx.
type Poller func(ctx context.Context, id uuid.UUID) (Participant, error)

// RunRound polls every known participant concurrently via poll,
// reporting each success into the ring as it arrives, and returns once
// rc's deadline expires or every participant has reported — whichever
// comes first. A participant whose poll errors simply doesn't report
// this round; it isn't treated as a group-wide failure.
func RunRound(ctx context.Context, r *Ring, rc *RoundCollector, poll Poller) int {
	ids := make([]uuid.UUID, 0)
	for _, p := range r.Participants() {
		ids = append(ids, p.ID)
	}

	reports := make(chan struct{}, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			p, err := poll(gctx, id)
			if err != nil {
				return nil
			}
			r.Report(p)
			select {
			case reports <- struct{}{}:
			default:
			}
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		g.Wait()
		close(done)
	}()

	got := rc.CollectRound(ctx, len(ids), reports)
	select {
	case <-done:
	default:
	}
	return got
}
