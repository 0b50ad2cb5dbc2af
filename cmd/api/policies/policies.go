// Package policies serves SLA policy definitions: response and
// resolution targets plus the escalation level template applied to new
// timers.
package policies

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apppkg "github.com/mark3748/sla-engine-go/cmd/api/app"
	slapkg "github.com/mark3748/sla-engine-go/internal/sla"
)

// List returns SLA policies with their escalation levels.
func List(a *apppkg.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		pols, err := slapkg.ListPolicies(c.Request.Context(), a.DB)
		if err != nil {
			apppkg.AbortError(c, http.StatusInternalServerError, "internal", err.Error(), nil)
			return
		}
		c.JSON(http.StatusOK, pols)
	}
}

type createPolicyReq struct {
	Name             string         `json:"name" binding:"required"`
	Priority         int            `json:"priority"`
	Response         slapkg.Span    `json:"response"`
	Resolution       slapkg.Span    `json:"resolution"`
	OperationalHours bool           `json:"operational_hours"`
	Levels           []slapkg.Level `json:"escalation_levels"`
}

// Create stores a new SLA policy. When no escalation levels are given
// the default four-tier template is used.
func Create(a *apppkg.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in createPolicyReq
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": apppkg.FieldErrors(err)})
			return
		}
		p := slapkg.Policy{
			Name:             in.Name,
			Priority:         in.Priority,
			Response:         in.Response,
			Resolution:       in.Resolution,
			OperationalHours: in.OperationalHours,
			Levels:           in.Levels,
		}
		if p.Levels == nil {
			p.Levels = slapkg.DefaultLevels()
		}
		if err := slapkg.InsertPolicy(c.Request.Context(), a.DB, &p); err != nil {
			var ve *slapkg.ValidationError
			if errors.As(err, &ve) {
				c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error()})
				return
			}
			apppkg.AbortError(c, http.StatusInternalServerError, "internal", err.Error(), nil)
			return
		}
		c.JSON(http.StatusCreated, p)
	}
}
