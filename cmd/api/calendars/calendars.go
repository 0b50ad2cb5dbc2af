// Package calendars exposes the operational-hours configuration over
// HTTP. A PUT publishes a new immutable calendar version; running
// timers are re-based by the engine as part of the same call.
package calendars

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apppkg "github.com/mark3748/sla-engine-go/cmd/api/app"
	calpkg "github.com/mark3748/sla-engine-go/internal/calendar"
)

// Get returns the current calendar version.
func Get(a *apppkg.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		cal := a.Eng.Calendar()
		if cal == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no calendar configured"})
			return
		}
		c.JSON(http.StatusOK, cal)
	}
}

// Put validates and publishes a new calendar configuration.
func Put(a *apppkg.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var cfg calpkg.Config
		if err := c.ShouldBindJSON(&cfg); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		cal, err := a.Eng.PutCalendar(c.Request.Context(), cfg)
		if err != nil {
			var ve *calpkg.ValidationError
			if errors.As(err, &ve) {
				c.JSON(http.StatusBadRequest, gin.H{"errors": map[string]string{ve.Field: ve.Msg}})
				return
			}
			apppkg.AbortError(c, http.StatusInternalServerError, "internal", err.Error(), nil)
			return
		}
		c.JSON(http.StatusOK, cal)
	}
}
