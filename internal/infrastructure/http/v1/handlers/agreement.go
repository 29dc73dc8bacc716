package handlers

import (
	"github.com/gin-gonic/gin"

	"rentalcore/internal/core/id"
	"rentalcore/internal/domain"
	"rentalcore/internal/domain/rental"
	"rentalcore/internal/infrastructure/http/v1/dto"
)

const historyLimit = 100

// AgreementHandler handles rental agreement endpoints.
type AgreementHandler struct {
	*BaseHandler
	service *rental.Service
	history domain.AuditReader
}

// NewAgreementHandler creates a new agreement handler.
func NewAgreementHandler(base *BaseHandler, service *rental.Service, history domain.AuditReader) *AgreementHandler {
	return &AgreementHandler{BaseHandler: base, service: service, history: history}
}

// Create handles POST /agreements.
func (h *AgreementHandler) Create(c *gin.Context) {
	var req dto.CreateAgreementRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	a, err := h.service.CreateAgreement(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromAgreement(a))
}

// Get handles GET /agreements/:id.
func (h *AgreementHandler) Get(c *gin.Context) {
	agreementID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	a, err := h.service.Get(c.Request.Context(), agreementID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromAgreement(a))
}

// List handles GET /agreements.
func (h *AgreementHandler) List(c *gin.Context) {
	var q dto.AgreementListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	filter, err := q.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.MapList(result, dto.FromAgreement))
}

// Balance handles GET /agreements/:id/balance.
func (h *AgreementHandler) Balance(c *gin.Context) {
	agreementID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	a, err := h.service.Get(c.Request.Context(), agreementID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromBalance(a, h.service.Today()))
}

// QuoteReturn handles GET /agreements/:id/return-quote.
func (h *AgreementHandler) QuoteReturn(c *gin.Context) {
	agreementID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var q dto.ReturnQuoteQuery
	if !h.BindQuery(c, &q) {
		return
	}
	returnDate, err := q.ToDate()
	if err != nil {
		h.Error(c, err)
		return
	}

	quote, err := h.service.QuoteReturn(c.Request.Context(), agreementID, returnDate)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromReturnQuote(agreementID, quote))
}

// AddItem handles POST /agreements/:id/items.
func (h *AgreementHandler) AddItem(c *gin.Context) {
	agreementID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.ItemRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	if _, err := h.service.AddItem(c.Request.Context(), agreementID, in); err != nil {
		h.Error(c, err)
		return
	}
	h.respondAgreement(c, agreementID, true)
}

// UpdateItem handles PATCH /agreements/:id/items/:itemId.
func (h *AgreementHandler) UpdateItem(c *gin.Context) {
	agreementID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	itemID, ok := h.ParamID(c, "itemId")
	if !ok {
		return
	}
	var req dto.UpdateItemRequest
	if !h.BindJSON(c, &req) {
		return
	}

	if _, err := h.service.UpdateItemQuantity(c.Request.Context(), agreementID, itemID, req.Quantity); err != nil {
		h.Error(c, err)
		return
	}
	h.respondAgreement(c, agreementID, false)
}

// RemoveItem handles DELETE /agreements/:id/items/:itemId.
func (h *AgreementHandler) RemoveItem(c *gin.Context) {
	agreementID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	itemID, ok := h.ParamID(c, "itemId")
	if !ok {
		return
	}

	a, err := h.service.RemoveItem(c.Request.Context(), agreementID, itemID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromAgreement(a))
}

// UpdateTerms handles PATCH /agreements/:id/terms.
func (h *AgreementHandler) UpdateTerms(c *gin.Context) {
	agreementID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateTermsRequest
	if !h.BindJSON(c, &req) {
		return
	}

	a, err := h.service.UpdateTerms(c.Request.Context(), agreementID, req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromAgreement(a))
}

// RecordPayment handles POST /agreements/:id/payments.
func (h *AgreementHandler) RecordPayment(c *gin.Context) {
	agreementID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.PaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	p, err := h.service.RecordPayment(c.Request.Context(), agreementID, req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromPayment(p))
}

// ListPayments handles GET /agreements/:id/payments.
func (h *AgreementHandler) ListPayments(c *gin.Context) {
	agreementID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	payments, err := h.service.ListPayments(c.Request.Context(), agreementID)
	if err != nil {
		h.Error(c, err)
		return
	}
	items := make([]dto.PaymentResponse, len(payments))
	for i, p := range payments {
		items[i] = dto.FromPayment(p)
	}
	h.OK(c, gin.H{"items": items})
}

// Return handles POST /agreements/:id/return.
func (h *AgreementHandler) Return(c *gin.Context) {
	agreementID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.ReturnRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	a, err := h.service.ProcessReturn(c.Request.Context(), agreementID, in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromAgreement(a))
}

// Cancel handles POST /agreements/:id/cancel.
func (h *AgreementHandler) Cancel(c *gin.Context) {
	agreementID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.CancelRequest
	if !h.BindOptionalJSON(c, &req) {
		return
	}

	a, err := h.service.CancelAgreement(c.Request.Context(), agreementID, req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromAgreement(a))
}

// IssueInvoice handles POST /agreements/:id/invoice.
func (h *AgreementHandler) IssueInvoice(c *gin.Context) {
	agreementID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	inv, err := h.service.IssueInvoice(c.Request.Context(), agreementID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromInvoice(inv))
}

// Invoice handles GET /agreements/:id/invoice.
func (h *AgreementHandler) Invoice(c *gin.Context) {
	agreementID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	inv, err := h.service.Invoice(c.Request.Context(), agreementID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromInvoice(inv))
}

// History handles GET /agreements/:id/history.
func (h *AgreementHandler) History(c *gin.Context) {
	agreementID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	if _, err := h.service.Get(c.Request.Context(), agreementID); err != nil {
		h.Error(c, err)
		return
	}

	entries, err := h.history.History(c.Request.Context(), rental.AggregateType, agreementID, historyLimit)
	if err != nil {
		h.Error(c, err)
		return
	}
	if entries == nil {
		entries = []domain.AuditHistoryEntry{}
	}
	h.OK(c, dto.HistoryResponse{Items: entries})
}

func (h *AgreementHandler) respondAgreement(c *gin.Context, agreementID id.ID, created bool) {
	a, err := h.service.Get(c.Request.Context(), agreementID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if created {
		h.Created(c, dto.FromAgreement(a))
		return
	}
	h.OK(c, dto.FromAgreement(a))
}
