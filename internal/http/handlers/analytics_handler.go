// Analytics HTTP handlers.
//
// Endpoints for the session's interaction tracker:
//   - POST   /analytics/events  (click or scroll)
//   - GET    /analytics         (snapshot)
//   - DELETE /analytics         (reset)
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/talesofaneria/storefront/internal/analytics"
	"github.com/talesofaneria/storefront/internal/http/middleware"
)

// AnalyticsEventRequest is the JSON payload of an interaction event.
type AnalyticsEventRequest struct {
	// Type is "click" or "scroll".
	Type string `json:"type" binding:"required" example:"click"`
	// Target names the clicked element (click only).
	Target string `json:"target" example:"hero-shop-button"`
	// Depth is the scroll depth in percent (scroll only).
	Depth int `json:"depth" example:"60"`
}

// AnalyticsEventResponse reports the effect of an event.
type AnalyticsEventResponse struct {
	Type       string `json:"type"`
	Count      int    `json:"count,omitempty"`
	Milestones []int  `json:"milestones,omitempty"`
}

// TrackEvent godoc
// @ID          trackEvent
// @Summary     Record a click or scroll event
// @Tags        Analytics
// @Accept      json
// @Produce     json
// @Param       X-Session-ID  header  string  false "Session ID (issued and echoed when absent)"
// @Param       body          body    handlers.AnalyticsEventRequest  true  "Event"
// @Success     202  {object} handlers.AnalyticsEventResponse
// @Failure     400  {object} handlers.ErrorResponse
// @Router      /analytics/events [post]
func (h *Handlers) TrackEvent(c *gin.Context) {
	var req AnalyticsEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	tr := h.cartSvc.Tracker(c.Request.Context(), middleware.SessionFrom(c))

	switch strings.ToLower(strings.TrimSpace(req.Type)) {
	case "click":
		n, err := tr.TrackClick(req.Target)
		if errors.Is(err, analytics.ErrEmptyTarget) {
			fail(c, http.StatusBadRequest, ErrCodeInvalidEvent, "click events need a target")
			return
		}
		ok(c, http.StatusAccepted, AnalyticsEventResponse{Type: "click", Count: n})
	case "scroll":
		ok(c, http.StatusAccepted, AnalyticsEventResponse{Type: "scroll", Milestones: tr.TrackScroll(req.Depth)})
	default:
		fail(c, http.StatusBadRequest, ErrCodeInvalidEvent, "type must be click or scroll")
	}
}

// AnalyticsSnapshot godoc
// @ID          analyticsSnapshot
// @Summary     Get the session's interaction counters
// @Tags        Analytics
// @Produce     json
// @Param       X-Session-ID  header  string  false "Session ID (issued and echoed when absent)"
// @Success     200  {object} analytics.Snapshot
// @Router      /analytics [get]
func (h *Handlers) AnalyticsSnapshot(c *gin.Context) {
	ok(c, http.StatusOK, h.cartSvc.Tracker(c.Request.Context(), middleware.SessionFrom(c)).Snapshot())
}

// ResetAnalytics godoc
// @ID          resetAnalytics
// @Summary     Reset the session's interaction counters
// @Tags        Analytics
// @Param       X-Session-ID  header  string  false "Session ID (issued and echoed when absent)"
// @Success     204  {string} string "No Content"
// @Router      /analytics [delete]
func (h *Handlers) ResetAnalytics(c *gin.Context) {
	h.cartSvc.Tracker(c.Request.Context(), middleware.SessionFrom(c)).Reset()
	noContent(c)
}
