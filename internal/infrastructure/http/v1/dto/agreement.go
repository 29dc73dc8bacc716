package dto

import (
	"time"

	"rentalcore/internal/core/apperror"
	"rentalcore/internal/core/id"
	"rentalcore/internal/core/types"
	"rentalcore/internal/domain"
	"rentalcore/internal/domain/catalogs/product"
	"rentalcore/internal/domain/invoice"
	"rentalcore/internal/domain/payment"
	"rentalcore/internal/domain/rental"
)

// --- Requests ---

// ItemRequest is one product line of a new agreement.
type ItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

// ToInput converts the request to service input.
func (r *ItemRequest) ToInput() (rental.ItemInput, error) {
	productID, err := parseID(r.ProductID, "productId")
	if err != nil {
		return rental.ItemInput{}, err
	}
	return rental.ItemInput{ProductID: productID, Quantity: r.Quantity}, nil
}

// CreateAgreementRequest is the request body for creating an agreement.
type CreateAgreementRequest struct {
	CustomerID         string         `json:"customerId" binding:"required"`
	StartDate          Date           `json:"startDate"`
	ExpectedReturnDate Date           `json:"expectedReturnDate"`
	Discount           *types.Money   `json:"discount"`
	ApplyVAT           *bool          `json:"applyVat"`
	AdvancePayment     types.Money    `json:"advancePayment"`
	AdvanceMethod      payment.Method `json:"advanceMethod"`
	Notes              string         `json:"notes"`
	Items              []ItemRequest  `json:"items" binding:"required,min=1,dive"`
}

// ToInput converts the request to service input.
func (r *CreateAgreementRequest) ToInput() (rental.CreateInput, error) {
	customerID, err := parseID(r.CustomerID, "customerId")
	if err != nil {
		return rental.CreateInput{}, err
	}
	in := rental.CreateInput{
		CustomerID:         customerID,
		StartDate:          r.StartDate.Time,
		ExpectedReturnDate: r.ExpectedReturnDate.Time,
		Discount:           r.Discount,
		ApplyVAT:           r.ApplyVAT,
		AdvancePayment:     r.AdvancePayment,
		AdvanceMethod:      r.AdvanceMethod,
		Notes:              r.Notes,
		Items:              make([]rental.ItemInput, 0, len(r.Items)),
	}
	for i := range r.Items {
		item, err := r.Items[i].ToInput()
		if err != nil {
			return in, err
		}
		in.Items = append(in.Items, item)
	}
	return in, nil
}

// UpdateItemRequest changes the quantity of an item.
type UpdateItemRequest struct {
	Quantity int `json:"quantity" binding:"required,min=1"`
}

// UpdateTermsRequest changes agreement terms. Omitted fields are kept.
type UpdateTermsRequest struct {
	Discount           *types.Money `json:"discount"`
	ApplyVAT           *bool        `json:"applyVat"`
	ExpectedReturnDate *Date        `json:"expectedReturnDate"`
}

// ToInput converts the request to service input.
func (r *UpdateTermsRequest) ToInput() rental.TermsInput {
	in := rental.TermsInput{Discount: r.Discount, ApplyVAT: r.ApplyVAT}
	if r.ExpectedReturnDate != nil {
		t := r.ExpectedReturnDate.Time
		in.ExpectedReturnDate = &t
	}
	return in
}

// PaymentRequest is the request body for recording a payment.
type PaymentRequest struct {
	Amount types.Money    `json:"amount"`
	Date   *Date          `json:"date"`
	Method payment.Method `json:"method"`
	Notes  string         `json:"notes"`
}

// ToInput converts the request to service input.
func (r *PaymentRequest) ToInput() rental.PaymentInput {
	in := rental.PaymentInput{Amount: r.Amount, Method: r.Method, Notes: r.Notes}
	if r.Date != nil {
		in.Date = r.Date.Time
	}
	return in
}

// ItemReturnRequest records the state of one returned item.
type ItemReturnRequest struct {
	ItemID    string            `json:"itemId" binding:"required"`
	Condition product.Condition `json:"condition"`
	Notes     string            `json:"notes"`
}

// ReturnRequest is the request body for processing a return.
type ReturnRequest struct {
	ReturnDate      Date                `json:"returnDate"`
	AmountCollected types.Money         `json:"amountCollected"`
	Method          payment.Method      `json:"method"`
	Notes           string              `json:"notes"`
	Items           []ItemReturnRequest `json:"items" binding:"dive"`
}

// ToInput converts the request to service input.
func (r *ReturnRequest) ToInput() (rental.ReturnInput, error) {
	in := rental.ReturnInput{
		ReturnDate:      r.ReturnDate.Time,
		AmountCollected: r.AmountCollected,
		Method:          r.Method,
		Notes:           r.Notes,
	}
	if len(r.Items) > 0 {
		in.Items = make(map[id.ID]rental.ItemReturn, len(r.Items))
	}
	for _, item := range r.Items {
		itemID, err := parseID(item.ItemID, "itemId")
		if err != nil {
			return in, err
		}
		in.Items[itemID] = rental.ItemReturn{Condition: item.Condition, Notes: item.Notes}
	}
	return in, nil
}

// ReturnQuoteQuery carries the prospective return date.
type ReturnQuoteQuery struct {
	ReturnDate string `form:"returnDate" binding:"required"`
}

// ToDate parses the return date.
func (q ReturnQuoteQuery) ToDate() (time.Time, error) {
	d, err := types.ParseDate(q.ReturnDate)
	if err != nil {
		return time.Time{}, apperror.NewValidation("returnDate must be YYYY-MM-DD").
			WithDetail("field", "returnDate").
			WithDetail("value", q.ReturnDate)
	}
	return d, nil
}

// CancelRequest is the request body for cancelling an agreement.
type CancelRequest struct {
	Reason string `json:"reason"`
}

// AgreementListQuery adds agreement filters to ListQuery.
type AgreementListQuery struct {
	ListQuery
	Status     rental.Status `form:"status" binding:"omitempty,oneof=active overdue returned cancelled"`
	CustomerID string        `form:"customerId"`
}

// ToFilter converts the query to an agreement filter.
func (q AgreementListQuery) ToFilter() (rental.ListFilter, error) {
	f := rental.ListFilter{ListFilter: q.ListQuery.ToFilter()}
	if q.Status != "" {
		status := q.Status
		f.Status = &status
	}
	if q.CustomerID != "" {
		customerID, err := parseID(q.CustomerID, "customerId")
		if err != nil {
			return f, err
		}
		f.CustomerID = &customerID
	}
	return f, nil
}

// --- Responses ---

// ItemResponse is one agreement item.
type ItemResponse struct {
	ID               string  `json:"id"`
	ProductID        string  `json:"productId"`
	Quantity         int     `json:"quantity"`
	RentalPrice      string  `json:"rentalPrice"`
	TotalPrice       string  `json:"totalPrice"`
	Outsourced       bool    `json:"outsourced"`
	ReturnedQuantity int     `json:"returnedQuantity"`
	ReturnCondition  *string `json:"returnCondition,omitempty"`
	ReturnNotes      *string `json:"returnNotes,omitempty"`
}

// FromItem creates response DTO; days is the agreement's billable days.
func FromItem(i rental.Item, days int) ItemResponse {
	return ItemResponse{
		ID:               i.ID.String(),
		ProductID:        i.ProductID.String(),
		Quantity:         i.Quantity,
		RentalPrice:      Money(i.RentalPrice),
		TotalPrice:       Money(i.TotalPrice(days)),
		Outsourced:       i.Outsourced,
		ReturnedQuantity: i.ReturnedQuantity,
		ReturnCondition:  i.ReturnCondition,
		ReturnNotes:      i.ReturnNotes,
	}
}

// AgreementResponse is the response body for an agreement.
type AgreementResponse struct {
	ID                 string         `json:"id"`
	Number             string         `json:"number"`
	CustomerID         string         `json:"customerId"`
	StartDate          Date           `json:"startDate"`
	ExpectedReturnDate Date           `json:"expectedReturnDate"`
	ActualReturnDate   *Date          `json:"actualReturnDate,omitempty"`
	RentalDays         int            `json:"rentalDays"`
	Discount           string         `json:"discount"`
	ApplyVAT           bool           `json:"applyVat"`
	AdvancePayment     string         `json:"advancePayment"`
	Subtotal           string         `json:"subtotal"`
	DiscountAmount     string         `json:"discountAmount"`
	VAT                string         `json:"vat"`
	Total              string         `json:"total"`
	PaidAmount         string         `json:"paidAmount"`
	BalanceDue         string         `json:"balanceDue"`
	Status             rental.Status  `json:"status"`
	WasLate            bool           `json:"wasLate"`
	Notes              string         `json:"notes,omitempty"`
	Items              []ItemResponse `json:"items,omitempty"`
	Version            int            `json:"version"`
	CreatedAt          time.Time      `json:"createdAt"`
	UpdatedAt          time.Time      `json:"updatedAt"`
}

// FromAgreement creates response DTO from domain entity.
func FromAgreement(a *rental.Agreement) AgreementResponse {
	days := a.RentalDays()
	resp := AgreementResponse{
		ID:                 a.ID.String(),
		Number:             a.Number,
		CustomerID:         a.CustomerID.String(),
		StartDate:          NewDate(a.StartDate),
		ExpectedReturnDate: NewDate(a.ExpectedReturnDate),
		ActualReturnDate:   DatePtr(a.ActualReturnDate),
		RentalDays:         days,
		Discount:           Money(a.Discount),
		ApplyVAT:           a.ApplyVAT,
		AdvancePayment:     Money(a.AdvancePayment),
		Subtotal:           Money(a.Subtotal),
		DiscountAmount:     Money(a.DiscountAmount),
		VAT:                Money(a.VAT),
		Total:              Money(a.Total),
		PaidAmount:         Money(a.PaidAmount),
		BalanceDue:         Money(a.BalanceDue),
		Status:             a.Status,
		WasLate:            a.WasLate,
		Notes:              a.Notes,
		Version:            a.Version,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
	for _, item := range a.Items {
		resp.Items = append(resp.Items, FromItem(item, days))
	}
	return resp
}

// BalanceResponse is the balance view of an agreement.
type BalanceResponse struct {
	AgreementID string        `json:"agreementId"`
	Total       string        `json:"total"`
	PaidAmount  string        `json:"paidAmount"`
	BalanceDue  string        `json:"balanceDue"`
	Status      rental.Status `json:"status"`
	IsOverdue   bool          `json:"isOverdue"`
}

// FromBalance builds the balance view; today decides IsOverdue.
func FromBalance(a *rental.Agreement, today time.Time) BalanceResponse {
	return BalanceResponse{
		AgreementID: a.ID.String(),
		Total:       Money(a.Total),
		PaidAmount:  Money(a.PaidAmount),
		BalanceDue:  Money(a.BalanceDue),
		Status:      a.Status,
		IsOverdue:   a.IsOverdue(today),
	}
}

// ReturnQuoteResponse prices a prospective return.
type ReturnQuoteResponse struct {
	AgreementID      string `json:"agreementId"`
	ReturnDate       Date   `json:"returnDate"`
	RentalDays       int    `json:"rentalDays"`
	WasLate          bool   `json:"wasLate"`
	Subtotal         string `json:"subtotal"`
	DiscountAmount   string `json:"discountAmount"`
	VAT              string `json:"vat"`
	Total            string `json:"total"`
	PaidAmount       string `json:"paidAmount"`
	BalanceDue       string `json:"balanceDue"`
	AdditionalCharge string `json:"additionalCharge"`
}

// FromReturnQuote builds the quote view.
func FromReturnQuote(agreementID id.ID, q rental.ReturnQuote) ReturnQuoteResponse {
	return ReturnQuoteResponse{
		AgreementID:      agreementID.String(),
		ReturnDate:       NewDate(q.ReturnDate),
		RentalDays:       q.RentalDays,
		WasLate:          q.WasLate,
		Subtotal:         Money(q.Subtotal),
		DiscountAmount:   Money(q.DiscountAmount),
		VAT:              Money(q.VAT),
		Total:            Money(q.Total),
		PaidAmount:       Money(q.PaidAmount),
		BalanceDue:       Money(q.BalanceDue),
		AdditionalCharge: Money(q.AdditionalCharge),
	}
}

// PaymentResponse is one payment.
type PaymentResponse struct {
	ID            string         `json:"id"`
	AgreementID   string         `json:"agreementId"`
	Amount        string         `json:"amount"`
	PaymentDate   Date           `json:"paymentDate"`
	Method        payment.Method `json:"method"`
	ReceiptNumber string         `json:"receiptNumber"`
	Notes         string         `json:"notes,omitempty"`
	ProcessedBy   string         `json:"processedBy,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// FromPayment creates response DTO from domain entity.
func FromPayment(p *payment.Payment) PaymentResponse {
	return PaymentResponse{
		ID:            p.ID.String(),
		AgreementID:   p.AgreementID.String(),
		Amount:        Money(p.Amount),
		PaymentDate:   NewDate(p.PaymentDate),
		Method:        p.Method,
		ReceiptNumber: p.ReceiptNumber,
		Notes:         p.Notes,
		ProcessedBy:   p.ProcessedBy,
		CreatedAt:     p.CreatedAt,
	}
}

// InvoiceResponse is the invoice of an agreement.
type InvoiceResponse struct {
	ID            string                `json:"id"`
	AgreementID   string                `json:"agreementId"`
	InvoiceNumber string                `json:"invoiceNumber"`
	IssueDate     Date                  `json:"issueDate"`
	DueDate       Date                  `json:"dueDate"`
	TotalAmount   string                `json:"totalAmount"`
	PaidAmount    string                `json:"paidAmount"`
	BalanceDue    string                `json:"balanceDue"`
	PaymentStatus invoice.PaymentStatus `json:"paymentStatus"`
}

// FromInvoice creates response DTO from domain entity.
func FromInvoice(inv *invoice.Invoice) InvoiceResponse {
	return InvoiceResponse{
		ID:            inv.ID.String(),
		AgreementID:   inv.AgreementID.String(),
		InvoiceNumber: inv.Number,
		IssueDate:     NewDate(inv.IssueDate),
		DueDate:       NewDate(inv.DueDate),
		TotalAmount:   Money(inv.TotalAmount),
		PaidAmount:    Money(inv.PaidAmount),
		BalanceDue:    Money(inv.BalanceDue()),
		PaymentStatus: inv.PaymentStatus,
	}
}

// HistoryResponse lists audit entries, newest first.
type HistoryResponse struct {
	Items []domain.AuditHistoryEntry `json:"items"`
}

// SweepResponse reports the result of an overdue sweep.
type SweepResponse struct {
	Date      Date `json:"date"`
	Flagged   int  `json:"flagged"`
	Reminders int  `json:"reminders"`
}

func parseID(s, field string) (id.ID, error) {
	v, err := id.Parse(s)
	if err != nil {
		return id.Nil(), apperror.NewValidation("invalid "+field).
			WithDetail("field", field).
			WithDetail("value", s)
	}
	return v, nil
}
