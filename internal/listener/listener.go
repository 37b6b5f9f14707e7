package listener

import (
	"context"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/dougwithseismic/dotoro-ads-sub008/internal/observability"
	"github.com/dougwithseismic/dotoro-ads-sub008/internal/storage"
)

// Refresher reloads whatever state a notification invalidates.
type Refresher interface {
	Refresh(ctx context.Context) error
}

type RefreshFunc func(ctx context.Context) error

func (f RefreshFunc) Refresh(ctx context.Context) error { return f(ctx) }

const debounceWindow = 200 * time.Millisecond

// ListenAndRefresh blocks until ctx is done, calling r after each burst of
// notifications on channel. A lost connection is reacquired with jittered
// backoff, and r runs once after every reconnect to catch missed changes.
func ListenAndRefresh(ctx context.Context, st *storage.Store, r Refresher, channel string, baseBackoff time.Duration) {
	if channel == "" {
		channel = st.ListenChannel()
	}
	first := true
	for {
		err := listen(ctx, st, r, channel, !first)
		first = false
		if ctx.Err() != nil {
			log.Info().Msg("listener stopped")
			return
		}
		backoff := jitter(baseBackoff)
		log.Error().Err(err).Str("channel", channel).Dur("retry_in", backoff).Msg("listen connection lost")
		select {
		case <-ctx.Done():
			log.Info().Msg("listener stopped")
			return
		case <-time.After(backoff):
		}
	}
}

func listen(ctx context.Context, st *storage.Store, r Refresher, channel string, resync bool) error {
	conn, err := st.PgxPool().Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err = conn.Exec(ctx, listenSQL(channel)); err != nil {
		return err
	}
	log.Info().Str("channel", channel).Msg("listening for DB changes")
	if resync {
		refresh(ctx, r, "reconnect")
	}

	var waitErr error
	events := make(chan string)
	go func() {
		defer close(events)
		for {
			ntf, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				waitErr = err
				return
			}
			select {
			case events <- ntf.Payload:
			case <-ctx.Done():
				waitErr = ctx.Err()
				return
			}
		}
	}()

	coalesce(ctx, events, debounceWindow, func(reason string) { refresh(ctx, r, reason) })
	for range events {
	}
	return waitErr
}

func listenSQL(channel string) string {
	return "LISTEN " + pgx.Identifier{channel}.Sanitize()
}

func refresh(ctx context.Context, r Refresher, reason string) {
	log.Info().Str("reason", reason).Msg("db change; refreshing rules")
	if err := r.Refresh(ctx); err != nil {
		observability.RuleSnapshotRefreshes.WithLabelValues("error").Inc()
		log.Error().Err(err).Msg("refresh rules error")
		return
	}
	observability.RuleSnapshotRefreshes.WithLabelValues("ok").Inc()
}

// coalesce calls fn once per burst of events, window after the first event
// of the burst. Every event is followed by at least one call: an event that
// arrives while fn runs starts the next burst. It returns when events is
// closed or ctx is done.
func coalesce(ctx context.Context, events <-chan string, window time.Duration, fn func(reason string)) {
	var (
		fire   <-chan time.Time
		reason string
	)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			reason = ev
			if fire == nil {
				fire = time.After(window)
			}
		case <-fire:
			fire = nil
			fn(reason)
		}
	}
}

func jitter(base time.Duration) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	factor := 0.5 + rand.Float64() // 0.5x-1.5x
	return time.Duration(float64(base) * factor)
}
