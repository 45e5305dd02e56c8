package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/finsight-ai/finsight/pkg/models"
)

// Subscription is a finite stream of events for one job. The channel
// returned by Events is closed after a complete/error event is delivered,
// when the subscription context is cancelled, or on Close.
type Subscription struct {
	events chan models.Event
	cancel context.CancelFunc
	once   sync.Once
}

// Events returns the event channel. Events arrive in publish order;
// history is replayed before live messages, deduplicated by
// (type, timestamp).
func (s *Subscription) Events() <-chan models.Event {
	return s.events
}

// Close terminates the subscription. It is safe to call multiple times
// and after the channel has already closed.
func (s *Subscription) Close() {
	s.once.Do(s.cancel)
}

// Subscribe opens a subscription for a job's events.
//
// The live channel is subscribed BEFORE history is read, closing the race
// window between replay and new publishes: anything published in between
// appears in both and is dropped from the live stream by its dedup key.
func (p *Publisher) Subscribe(ctx context.Context, jobID string) (*Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)

	pubsub := p.rdb.Subscribe(subCtx, Channel(jobID))
	// Wait for the SUBSCRIBE confirmation so the replay below cannot
	// outrun the subscription itself.
	if _, err := pubsub.Receive(subCtx); err != nil {
		_ = pubsub.Close()
		cancel()
		return nil, err
	}

	sub := &Subscription{
		events: make(chan models.Event, 16),
		cancel: cancel,
	}

	go func() {
		defer close(sub.events)
		defer func() { _ = pubsub.Close() }()
		defer cancel()

		seen := make(map[string]struct{})

		history, err := p.rdb.LRange(subCtx, HistoryKey(jobID), 0, -1).Result()
		if err != nil {
			slog.Warn("Failed to read event history for replay", "job_id", jobID, "error", err)
		}
		for _, entry := range history {
			var ev models.Event
			if err := json.Unmarshal([]byte(entry), &ev); err != nil {
				continue
			}
			key := ev.DedupKey()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			if !sub.deliver(subCtx, ev) {
				return
			}
			if IsTerminal(ev.Type) {
				return
			}
		}

		live := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-live:
				if !ok {
					return
				}
				var ev models.Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					slog.Warn("Skipping undecodable live event", "job_id", jobID, "error", err)
					continue
				}
				key := ev.DedupKey()
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				if !sub.deliver(subCtx, ev) {
					return
				}
				if IsTerminal(ev.Type) {
					return
				}
			}
		}
	}()

	return sub, nil
}

// deliver sends one event, giving up if the subscription is cancelled.
func (s *Subscription) deliver(ctx context.Context, ev models.Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
