package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mark3748/sla-engine-go/internal/sla"
)

// Tick re-evaluates every open timer: running timers past due
// transition to Breached, then each chain attached to a running or
// breached timer fires any levels whose trigger instant has arrived.
// One timer's error never aborts the others; it is logged and the
// timer retried on the next tick.
func (e *Engine) Tick(ctx context.Context, now time.Time) {
	cal := e.cal.Load()
	if cal == nil {
		return
	}
	for _, id := range e.timerIDs() {
		err := e.withTimer(id, func(t *sla.Timer, ch *sla.Chain) error {
			if t.CheckBreach(now) {
				breachesTotal.WithLabelValues(string(t.Target.Metric)).Inc()
				log.Warn().Str("ticket", t.TicketID).Str("metric", string(t.Target.Metric)).
					Time("due", t.Due).Msg("SLA breached")
				if err := e.store.UpdateTimer(ctx, t); err != nil {
					return err
				}
			}
			if t.State != sla.StateRunning && t.State != sla.StateBreached {
				return nil
			}
			firings, err := ch.Due(cal, t.Due, t.Target.AppliesCalendar, now)
			if err != nil {
				return err
			}
			for _, f := range firings {
				// Record durably first; a crash between the mark and the
				// sink loses at most the delivery, never the at-most-once
				// guarantee.
				fresh, err := e.store.MarkFired(ctx, t.ID, f.Level.ID, now)
				if err != nil {
					return err
				}
				if !fresh {
					ch.MarkFired(f.Level.ID)
					continue
				}
				ch.MarkFired(f.Level.ID)
				escalationsTotal.Inc()
				ev := Event{
					TimerID:  t.ID,
					TicketID: t.TicketID,
					Metric:   t.Target.Metric,
					LevelID:  f.Level.ID,
					Order:    f.Level.Order,
					Target:   f.Level.Target,
					FiredAt:  now,
				}
				if e.sink != nil {
					if err := e.sink.Fire(ctx, ev); err != nil {
						log.Error().Err(err).Str("timer", t.ID).Int("level", f.Level.Order).Msg("escalation sink")
					}
				}
			}
			return nil
		})
		if err != nil {
			tickErrors.Inc()
			log.Error().Err(err).Str("timer", id).Msg("tick")
		}
	}
}
