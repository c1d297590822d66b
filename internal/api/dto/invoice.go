package dto

import (
	"context"
	"strings"
	"time"

	"github.com/invoicely/invoicely/internal/domain/client"
	"github.com/invoicely/invoicely/internal/domain/invoice"
	"github.com/invoicely/invoicely/internal/domain/payment"
	ierr "github.com/invoicely/invoicely/internal/errors"
	"github.com/invoicely/invoicely/internal/types"
	"github.com/invoicely/invoicely/internal/validator"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// LineItemRequest is one unpriced row of an invoice form
type LineItemRequest struct {
	Description string          `json:"description" validate:"required"`
	Quantity    decimal.Decimal `json:"quantity" validate:"decimal_gte0"`
	Rate        decimal.Decimal `json:"rate" validate:"decimal_gte0"`
}

// InvoiceDetailsRequest holds the fields shared by invoice create and edit
type InvoiceDetailsRequest struct {
	InvoiceNumber string             `json:"invoice_number" validate:"required"`
	InvoiceDate   time.Time          `json:"invoice_date" validate:"required"`
	DueDate       time.Time          `json:"due_date" validate:"required"`
	Currency      string             `json:"currency,omitempty"`
	Category      string             `json:"category,omitempty"`
	TaxRate       decimal.Decimal    `json:"tax_rate" validate:"decimal_gte0"`
	DiscountType  types.DiscountType `json:"discount_type,omitempty"`
	DiscountValue decimal.Decimal    `json:"discount_value" validate:"decimal_gte0"`
	Note          string             `json:"note,omitempty"`
	Terms         string             `json:"terms,omitempty"`

	Client  ClientRequest     `json:"client" validate:"required"`
	Company *CompanyRequest   `json:"company,omitempty"`
	Items   []LineItemRequest `json:"items" validate:"required,min=1,dive"`
}

func (r *InvoiceDetailsRequest) normalize(defaultCurrency string) {
	r.InvoiceNumber = strings.TrimSpace(r.InvoiceNumber)
	if r.Currency == "" {
		r.Currency = defaultCurrency
	}
	if r.DiscountType == "" {
		r.DiscountType = types.DiscountTypeAmount
	}
}

func (r *InvoiceDetailsRequest) validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if err := r.DiscountType.Validate(); err != nil {
		return err
	}
	if r.DueDate.Before(r.InvoiceDate) {
		return ierr.NewError("due date before invoice date").
			WithHint("Due date cannot be before the invoice date").
			WithReportableDetails(map[string]any{
				"invoice_date": r.InvoiceDate,
				"due_date":     r.DueDate,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// ItemInputs converts the submitted rows into calculator input
func (r *InvoiceDetailsRequest) ItemInputs() []invoice.ItemInput {
	return lo.Map(r.Items, func(item LineItemRequest, _ int) invoice.ItemInput {
		return invoice.ItemInput{
			Description: strings.TrimSpace(item.Description),
			Quantity:    item.Quantity,
			Rate:        item.Rate,
		}
	})
}

// Calculate runs the totals calculator over the request
func (r *InvoiceDetailsRequest) Calculate() (*invoice.Calculation, error) {
	return invoice.Calculate(r.ItemInputs(), r.TaxRate, r.DiscountType, r.DiscountValue)
}

// applyDetails copies the editable invoice columns onto inv
func (r *InvoiceDetailsRequest) applyDetails(inv *invoice.Invoice) {
	inv.InvoiceNumber = r.InvoiceNumber
	inv.InvoiceDate = r.InvoiceDate.UTC()
	inv.DueDate = r.DueDate.UTC()
	inv.Currency = strings.ToUpper(r.Currency)
	inv.Category = r.Category
	inv.TaxRate = r.TaxRate
	inv.DiscountType = r.DiscountType
	inv.DiscountValue = r.DiscountValue
	inv.Note = r.Note
	inv.Terms = r.Terms
}

// CreateInvoiceRequest creates an invoice together with its client and optional company
type CreateInvoiceRequest struct {
	InvoiceDetailsRequest
	// Status may only be DRAFT (default) or SENT at creation
	Status types.InvoiceStatus `json:"status,omitempty" validate:"omitempty,oneof=DRAFT SENT"`
}

func (r *CreateInvoiceRequest) Validate(defaultCurrency string) error {
	r.normalize(defaultCurrency)
	if r.Status == "" {
		r.Status = types.InvoiceStatusDraft
	}
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	return r.validate()
}

// ToInvoice builds the invoice row. Totals, line items and the client link are set by the caller.
func (r *CreateInvoiceRequest) ToInvoice(ctx context.Context, adminSignature *string) *invoice.Invoice {
	inv := &invoice.Invoice{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE),
		AmountPaid:     decimal.Zero,
		Status:         r.Status,
		AdminSignature: adminSignature,
		BaseModel:      types.GetDefaultBaseModel(ctx),
	}
	r.applyDetails(inv)
	return inv
}

// UpdateInvoiceRequest replaces every editable field of an invoice and its line items
type UpdateInvoiceRequest struct {
	InvoiceDetailsRequest
}

func (r *UpdateInvoiceRequest) Validate(defaultCurrency string) error {
	r.normalize(defaultCurrency)
	return r.validate()
}

// ApplyTo overwrites the editable columns of inv; ledger fields are left alone
func (r *UpdateInvoiceRequest) ApplyTo(ctx context.Context, inv *invoice.Invoice) {
	r.applyDetails(inv)
	inv.UpdatedBy = types.GetUserID(ctx)
}

// UpdateInvoiceStatusRequest requests a manual status change
type UpdateInvoiceStatusRequest struct {
	Status types.InvoiceStatus `json:"status" validate:"required"`
}

func (r *UpdateInvoiceStatusRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	return r.Status.Validate()
}

// SubmitSignatureRequest carries a signature image, usually a data URL
type SubmitSignatureRequest struct {
	Signature string `json:"signature" validate:"required"`
}

func (r *SubmitSignatureRequest) Validate() error {
	r.Signature = strings.TrimSpace(r.Signature)
	return validator.ValidateRequest(r)
}

// LineItemResponse is a priced invoice row
type LineItemResponse struct {
	*invoice.LineItem
}

// InvoiceResponse is an invoice with its items and parties
type InvoiceResponse struct {
	*invoice.Invoice
	Client  *ClientResponse  `json:"client,omitempty"`
	Company *CompanyResponse `json:"company,omitempty"`
}

// NewInvoiceResponse wraps an invoice; the client and company are optional
func NewInvoiceResponse(inv *invoice.Invoice, c *client.Client, co *client.Company) *InvoiceResponse {
	resp := &InvoiceResponse{Invoice: inv}
	if c != nil {
		resp.Client = &ClientResponse{Client: c}
	}
	if co != nil {
		resp.Company = &CompanyResponse{Company: co}
	}
	return resp
}

// ListInvoicesResponse is a page of invoices
type ListInvoicesResponse = types.ListResponse[*InvoiceResponse]

// SweepResponse reports the outcome of an overdue sweep
type SweepResponse struct {
	Updated int       `json:"updated"`
	RanAt   time.Time `json:"ran_at"`
}

// SendInvoiceResponse reports a delivered share link email
type SendInvoiceResponse struct {
	InvoiceID string              `json:"invoice_id"`
	Status    types.InvoiceStatus `json:"status"`
	ShareLink string              `json:"share_link"`
	MessageID string              `json:"message_id,omitempty"`
}

// PublicInvoiceResponse is the unauthenticated view of an invoice. It omits
// audit columns and the staff members who created or changed the invoice.
type PublicInvoiceResponse struct {
	ID             string              `json:"id"`
	InvoiceNumber  string              `json:"invoice_number"`
	InvoiceDate    time.Time           `json:"invoice_date"`
	DueDate        time.Time           `json:"due_date"`
	Currency       string              `json:"currency"`
	Category       string              `json:"category,omitempty"`
	Subtotal       decimal.Decimal     `json:"subtotal"`
	TaxRate        decimal.Decimal     `json:"tax_rate"`
	TaxAmount      decimal.Decimal     `json:"tax_amount"`
	DiscountType   types.DiscountType  `json:"discount_type"`
	DiscountValue  decimal.Decimal     `json:"discount_value"`
	Total          decimal.Decimal     `json:"total"`
	AmountPaid     decimal.Decimal     `json:"amount_paid"`
	BalanceAmount  decimal.Decimal     `json:"balance_amount"`
	Status         types.InvoiceStatus `json:"status"`
	Note           string              `json:"note,omitempty"`
	Terms          string              `json:"terms,omitempty"`
	IsSigned       bool                `json:"is_signed"`
	Signature      *string             `json:"signature,omitempty"`
	SignedAt       *time.Time          `json:"signed_at,omitempty"`
	AdminSignature *string             `json:"admin_signature,omitempty"`

	Items    []PublicLineItem      `json:"items"`
	Payments PublicPaymentsSummary `json:"payments"`
	Client   PublicParty           `json:"client"`
	Company  *PublicParty          `json:"company,omitempty"`
}

type PublicLineItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Rate        decimal.Decimal `json:"rate"`
	Amount      decimal.Decimal `json:"amount"`
}

type PublicPaymentsSummary struct {
	Count         int             `json:"count"`
	TotalPaid     decimal.Decimal `json:"total_paid"`
	LastPaymentAt *time.Time      `json:"last_payment_at,omitempty"`
}

type PublicParty struct {
	Name    string  `json:"name"`
	Email   *string `json:"email,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Address *string `json:"address,omitempty"`
	Project *string `json:"project,omitempty"`
}

// NewPublicInvoiceResponse builds the public view from the invoice, its parties and payments
func NewPublicInvoiceResponse(inv *invoice.Invoice, c *client.Client, co *client.Company, payments []*payment.Payment) *PublicInvoiceResponse {
	resp := &PublicInvoiceResponse{
		ID:             inv.ID,
		InvoiceNumber:  inv.InvoiceNumber,
		InvoiceDate:    inv.InvoiceDate,
		DueDate:        inv.DueDate,
		Currency:       inv.Currency,
		Category:       inv.Category,
		Subtotal:       inv.Subtotal,
		TaxRate:        inv.TaxRate,
		TaxAmount:      inv.TaxAmount,
		DiscountType:   inv.DiscountType,
		DiscountValue:  inv.DiscountValue,
		Total:          inv.Total,
		AmountPaid:     inv.AmountPaid,
		BalanceAmount:  inv.BalanceAmount,
		Status:         inv.Status,
		Note:           inv.Note,
		Terms:          inv.Terms,
		IsSigned:       inv.IsSigned,
		Signature:      inv.Signature,
		SignedAt:       inv.SignedAt,
		AdminSignature: inv.AdminSignature,
		Items: lo.Map(inv.LineItems, func(li *invoice.LineItem, _ int) PublicLineItem {
			return PublicLineItem{
				Description: li.Description,
				Quantity:    li.Quantity,
				Rate:        li.Rate,
				Amount:      li.Amount,
			}
		}),
		Payments: PublicPaymentsSummary{
			Count:     len(payments),
			TotalPaid: decimal.Zero,
		},
	}

	for _, p := range payments {
		resp.Payments.TotalPaid = resp.Payments.TotalPaid.Add(p.Amount)
		if resp.Payments.LastPaymentAt == nil || p.PaymentDate.After(*resp.Payments.LastPaymentAt) {
			resp.Payments.LastPaymentAt = lo.ToPtr(p.PaymentDate)
		}
	}

	if c != nil {
		resp.Client = PublicParty{
			Name:    c.Name,
			Email:   lo.EmptyableToPtr(c.Email),
			Phone:   lo.EmptyableToPtr(c.Phone),
			Address: lo.EmptyableToPtr(c.Address),
		}
	}
	if co != nil {
		resp.Company = &PublicParty{
			Name:    co.Name,
			Email:   co.Email,
			Phone:   co.Phone,
			Address: co.Address,
			Project: co.Project,
		}
	}
	return resp
}
