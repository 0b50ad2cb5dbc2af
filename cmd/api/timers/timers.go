// Package timers exposes the SLA timer lifecycle over HTTP. Each
// handler maps a ticket lifecycle event onto the engine; the engine
// owns locking and persistence.
package timers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apppkg "github.com/mark3748/sla-engine-go/cmd/api/app"
	"github.com/mark3748/sla-engine-go/internal/engine"
	slapkg "github.com/mark3748/sla-engine-go/internal/sla"
)

type createTimerReq struct {
	TicketID  string         `json:"ticket_id" binding:"required"`
	Target    slapkg.Target  `json:"target" binding:"required"`
	Levels    []slapkg.Level `json:"levels"`
	StartedAt time.Time      `json:"started_at"`
}

// Create starts a new SLA timer with its escalation chain.
func Create(a *apppkg.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in createTimerReq
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": apppkg.FieldErrors(err)})
			return
		}
		if in.StartedAt.IsZero() {
			in.StartedAt = time.Now()
		}
		levels := in.Levels
		if levels == nil {
			levels = slapkg.DefaultLevels()
		}
		for i := range levels {
			if levels[i].ID == "" {
				levels[i].ID = uuid.NewString()
			}
		}
		id, err := a.Eng.StartSLA(c.Request.Context(), in.TicketID, in.Target, levels, in.StartedAt)
		if err != nil {
			writeEngineError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": id})
	}
}

// Get returns a timer's state and due timestamp. The due field is
// omitted while the timer is paused.
func Get(a *apppkg.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		state, due, err := a.Eng.DueTimestamp(c.Param("id"))
		if err != nil {
			writeEngineError(c, err)
			return
		}
		out := gin.H{"state": state}
		if !due.IsZero() {
			out["due_at"] = due
		}
		c.JSON(http.StatusOK, out)
	}
}

// Pause freezes a timer while its ticket is on hold.
func Pause(a *apppkg.App) gin.HandlerFunc {
	return lifecycle(a, func(c *gin.Context, id string) error {
		return a.Eng.PauseSLA(c.Request.Context(), id, time.Now())
	})
}

// Resume restarts a paused timer against its remaining duration.
func Resume(a *apppkg.App) gin.HandlerFunc {
	return lifecycle(a, func(c *gin.Context, id string) error {
		return a.Eng.ResumeSLA(c.Request.Context(), id, time.Now())
	})
}

// Complete records the qualifying action for a timer's metric.
func Complete(a *apppkg.App) gin.HandlerFunc {
	return lifecycle(a, func(c *gin.Context, id string) error {
		return a.Eng.CompleteSLA(c.Request.Context(), id, time.Now())
	})
}

// Cancel stops a timer without recording an outcome.
func Cancel(a *apppkg.App) gin.HandlerFunc {
	return lifecycle(a, func(c *gin.Context, id string) error {
		return a.Eng.CancelSLA(c.Request.Context(), id, time.Now())
	})
}

func lifecycle(a *apppkg.App, fn func(c *gin.Context, id string) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := fn(c, c.Param("id")); err != nil {
			writeEngineError(c, err)
			return
		}
		state, due, err := a.Eng.DueTimestamp(c.Param("id"))
		if err != nil {
			writeEngineError(c, err)
			return
		}
		out := gin.H{"state": state}
		if !due.IsZero() {
			out["due_at"] = due
		}
		c.JSON(http.StatusOK, out)
	}
}

func writeEngineError(c *gin.Context, err error) {
	var se *slapkg.StateError
	var ve *slapkg.ValidationError
	switch {
	case errors.Is(err, engine.ErrTimerNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "timer not found"})
	case errors.Is(err, engine.ErrNoCalendar):
		c.JSON(http.StatusConflict, gin.H{"error": "no calendar configured"})
	case errors.As(err, &se):
		c.JSON(http.StatusConflict, gin.H{"error": se.Error()})
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error()})
	default:
		apppkg.AbortError(c, http.StatusInternalServerError, "internal", err.Error(), nil)
	}
}
