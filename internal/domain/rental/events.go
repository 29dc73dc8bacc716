package rental

import (
	"time"

	"rentalcore/internal/core/id"
	"rentalcore/internal/core/types"
)

// AggregateType names agreements in events and audit entries.
const AggregateType = "rental_agreement"

// Event types written to the outbox.
const (
	EventAgreementCreated   = "AgreementCreated"
	EventAgreementReturned  = "AgreementReturned"
	EventAgreementCancelled = "AgreementCancelled"
	EventAgreementOverdue   = "AgreementOverdue"
	EventPaymentRecorded    = "PaymentRecorded"
	EventInvoiceIssued      = "InvoiceIssued"
	EventReminderDue        = "ReminderDue"
)

// AgreementEvent is the payload of agreement lifecycle events.
type AgreementEvent struct {
	AgreementID        id.ID       `json:"agreementId"`
	Number             string      `json:"number"`
	CustomerID         id.ID       `json:"customerId"`
	Status             Status      `json:"status"`
	ExpectedReturnDate time.Time   `json:"expectedReturnDate"`
	ActualReturnDate   *time.Time  `json:"actualReturnDate,omitempty"`
	WasLate            bool        `json:"wasLate"`
	Total              types.Money `json:"total"`
	BalanceDue         types.Money `json:"balanceDue"`
}

func agreementEvent(a *Agreement) AgreementEvent {
	return AgreementEvent{
		AgreementID:        a.ID,
		Number:             a.Number,
		CustomerID:         a.CustomerID,
		Status:             a.Status,
		ExpectedReturnDate: a.ExpectedReturnDate,
		ActualReturnDate:   a.ActualReturnDate,
		WasLate:            a.WasLate,
		Total:              a.Total,
		BalanceDue:         a.BalanceDue,
	}
}

// PaymentEvent is the payload of PaymentRecorded.
type PaymentEvent struct {
	AgreementID   id.ID       `json:"agreementId"`
	PaymentID     id.ID       `json:"paymentId"`
	ReceiptNumber string      `json:"receiptNumber"`
	Amount        types.Money `json:"amount"`
	BalanceDue    types.Money `json:"balanceDue"`
}

// ReminderEvent is the payload of ReminderDue. Delivery (email, SMS) is done
// by whoever consumes the outbox.
type ReminderEvent struct {
	AgreementID        id.ID       `json:"agreementId"`
	Number             string      `json:"number"`
	CustomerID         id.ID       `json:"customerId"`
	ExpectedReturnDate time.Time   `json:"expectedReturnDate"`
	Overdue            bool        `json:"overdue"`
	BalanceDue         types.Money `json:"balanceDue"`
}
