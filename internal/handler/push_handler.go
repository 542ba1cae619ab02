package handler

import (
	"io"

	"github.com/gin-gonic/gin"

	"github.com/hwlab/labtrack-api/internal/service"
	appErrors "github.com/hwlab/labtrack-api/pkg/errors"
	"github.com/hwlab/labtrack-api/pkg/response"
)

// PushHandler streams change notifications to tutors over server-sent
// events.
type PushHandler struct {
	notifier *service.NotifierService
}

// NewPushHandler constructs PushHandler.
func NewPushHandler(notifier *service.NotifierService) *PushHandler {
	return &PushHandler{notifier: notifier}
}

// Stream godoc
// @Summary Subscribe to change notifications of a year
// @Tags Push
// @Produce text/event-stream
// @Param year path int true "Year"
// @Success 200 {string} string "event stream"
// @Router /years/{year}/push [get]
func (h *PushHandler) Stream(c *gin.Context) {
	year, err := yearParam(c)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid year"))
		return
	}

	principal := principalFromContext(c)
	if principal == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := principal.EnsureTutorFor(year); err != nil {
		response.Error(c, err)
		return
	}

	events, cancel, err := h.notifier.Subscribe(year)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "push notifications are disabled"))
		return
	}
	defer cancel()

	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	clientGone := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-clientGone:
			return false
		case event, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(event.Topic, event)
			return true
		}
	})
}
