package handlers

import (
	"github.com/gin-gonic/gin"

	"rentalcore/internal/domain/rental"
	"rentalcore/internal/infrastructure/http/v1/dto"
)

// AdminHandler exposes maintenance operations normally run by the worker.
type AdminHandler struct {
	*BaseHandler
	service *rental.Service
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(base *BaseHandler, service *rental.Service) *AdminHandler {
	return &AdminHandler{BaseHandler: base, service: service}
}

// SweepRequest optionally pins the sweep date; it defaults to today.
type SweepRequest struct {
	Date *dto.Date `json:"date"`
}

// SweepOverdue handles POST /admin/sweep-overdue.
func (h *AdminHandler) SweepOverdue(c *gin.Context) {
	var req SweepRequest
	if !h.BindOptionalJSON(c, &req) {
		return
	}
	today := h.service.Today()
	if req.Date != nil {
		today = req.Date.Time
	}

	ctx := c.Request.Context()
	flagged, err := h.service.SweepOverdue(ctx, today)
	if err != nil {
		h.Error(c, err)
		return
	}
	reminders, err := h.service.QueueReminders(ctx, today)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.SweepResponse{Date: dto.NewDate(today), Flagged: flagged, Reminders: reminders})
}
