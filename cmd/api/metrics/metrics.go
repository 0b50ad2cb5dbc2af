// Package metrics serves SLA attainment statistics derived from closed
// timers, alongside the process-level Prometheus endpoint wired in main.
package metrics

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apppkg "github.com/mark3748/sla-engine-go/cmd/api/app"
)

// Attainment returns per-metric SLA attainment over closed timers.
func Attainment(a *apppkg.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		rows, err := a.DB.Query(ctx, `
               select metric,
                       count(*) filter (where state = 'met') as met,
                       count(*) as total
               from sla_timers
               where state in ('met', 'missed', 'breached')
               group by metric
       `)
		if err != nil {
			apppkg.AbortError(c, http.StatusInternalServerError, "internal", "attainment query", nil)
			return
		}
		defer rows.Close()
		type stat struct {
			Metric     string  `json:"metric"`
			Met        int     `json:"met"`
			Total      int     `json:"total"`
			Attainment float64 `json:"attainment"`
		}
		out := []stat{}
		for rows.Next() {
			var s stat
			if err := rows.Scan(&s.Metric, &s.Met, &s.Total); err != nil {
				continue
			}
			if s.Total > 0 {
				s.Attainment = float64(s.Met) / float64(s.Total)
			}
			out = append(out, s)
		}
		c.JSON(http.StatusOK, out)
	}
}

// AvgConsumed returns the average consumed business time in
// milliseconds over closed timers.
func AvgConsumed(a *apppkg.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var avg sql.NullFloat64
		err := a.DB.QueryRow(ctx, `
               select avg(consumed_ms)
               from sla_timers
               where state in ('met', 'missed', 'breached') and consumed_ms > 0
       `).Scan(&avg)
		if err != nil {
			apppkg.AbortError(c, http.StatusInternalServerError, "internal", "consumed query", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"avg_consumed_ms": avg.Float64})
	}
}

// EscalationVolume returns escalation firing counts per day for the
// last 30 days.
func EscalationVolume(a *apppkg.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		rows, err := a.DB.Query(ctx, `
               select date_trunc('day', fired_at)::date as day, count(*)
               from sla_fired_levels
               group by day
               order by day desc
               limit 30
       `)
		if err != nil {
			apppkg.AbortError(c, http.StatusInternalServerError, "internal", "volume query", nil)
			return
		}
		defer rows.Close()
		type dayCount struct {
			Day   time.Time `json:"day"`
			Count int       `json:"count"`
		}
		out := []dayCount{}
		for rows.Next() {
			var dc dayCount
			if err := rows.Scan(&dc.Day, &dc.Count); err == nil {
				out = append(out, dc)
			}
		}
		c.JSON(http.StatusOK, out)
	}
}
