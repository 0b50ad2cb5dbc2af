// Package events streams escalation firings to clients using
// Server-Sent Events, polling the fired-level ledger so every firing is
// observable even by clients that connect after the fact.
package events

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	apppkg "github.com/mark3748/sla-engine-go/cmd/api/app"
)

// Envelope is the standardized event payload sent to clients.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type firedEvent struct {
	TimerID  string    `json:"timer_id"`
	TicketID string    `json:"ticket_id"`
	Metric   string    `json:"metric"`
	LevelID  string    `json:"level_id"`
	Order    int       `json:"order"`
	Target   string    `json:"target"`
	FiredAt  time.Time `json:"fired_at"`
}

// Stream broadcasts escalation events using Server-Sent Events. It
// supports resuming from the Last-Event-ID header (timer_id:level_id)
// and emits periodic heartbeat comments to keep connections alive.
func Stream(a *apppkg.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.DB == nil {
			c.Status(http.StatusOK)
			return
		}
		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Header().Set("X-Content-Type-Options", "nosniff")

		flusher, ok := c.Writer.(http.Flusher)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}

		ctx := c.Request.Context()

		last := time.Time{}
		if id := c.GetHeader("Last-Event-ID"); id != "" {
			if parts := strings.SplitN(id, ":", 2); len(parts) == 2 {
				_ = a.DB.QueryRow(ctx, `select fired_at from sla_fired_levels where timer_id=$1 and level_id=$2`,
					parts[0], parts[1]).Scan(&last)
			}
		}

		// Send all firings newer than the provided time.
		send := func(since time.Time) time.Time {
			rows, err := a.DB.Query(ctx, `select f.timer_id::text, t.ticket_id, t.metric,
                               f.level_id::text, l.level_order, l.target, f.fired_at
                        from sla_fired_levels f
                        join sla_timers t on t.id = f.timer_id
                        join sla_timer_levels l on l.timer_id = f.timer_id and l.id = f.level_id
                        where f.fired_at > $1 order by f.fired_at asc`, since)
			if err != nil {
				return since
			}
			defer rows.Close()
			for rows.Next() {
				var ev firedEvent
				if err := rows.Scan(&ev.TimerID, &ev.TicketID, &ev.Metric,
					&ev.LevelID, &ev.Order, &ev.Target, &ev.FiredAt); err != nil {
					continue
				}
				data, _ := json.Marshal(ev)
				b, _ := json.Marshal(Envelope{Type: "escalation", Data: data})
				fmt.Fprintf(c.Writer, "id: %s:%s\n", ev.TimerID, ev.LevelID)
				fmt.Fprint(c.Writer, "event: escalation\n")
				fmt.Fprintf(c.Writer, "data: %s\n\n", b)
				flusher.Flush()
				since = ev.FiredAt
			}
			return since
		}

		last = send(last)

		poll := time.NewTicker(time.Second)
		heart := time.NewTicker(25 * time.Second)
		defer poll.Stop()
		defer heart.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-poll.C:
				last = send(last)
			case <-heart.C:
				fmt.Fprint(c.Writer, ": heartbeat\n\n")
				flusher.Flush()
			}
		}
	}
}
