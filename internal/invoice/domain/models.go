package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// SequenceInvoice names the system-wide counter row backing invoice numbers.
const SequenceInvoice = "invoice"

type SourceType string

const (
	SourcePurchase           SourceType = "purchase"
	SourceSubscriptionCharge SourceType = "subscription_charge"
)

func (s SourceType) Valid() bool {
	return s == SourcePurchase || s == SourceSubscriptionCharge
}

type InvoiceStatus string

const (
	InvoiceStatusIssued    InvoiceStatus = "ISSUED"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

// Invoice is immutable once issued apart from its status timestamps.
type Invoice struct {
	ID              snowflake.ID    `gorm:"primaryKey" json:"id"`
	InvoiceNumber   int64           `gorm:"not null;uniqueIndex" json:"invoice_number"`
	DisplayNumber   string          `gorm:"type:text;not null" json:"display_number"`
	UserID          snowflake.ID    `gorm:"not null;index" json:"user_id"`
	SourceType      SourceType      `gorm:"type:text;not null;uniqueIndex:ux_invoices_source,priority:1" json:"source_type"`
	SourceID        snowflake.ID    `gorm:"not null;uniqueIndex:ux_invoices_source,priority:2" json:"source_id"`
	Status          InvoiceStatus   `gorm:"type:text;not null" json:"status"`
	Currency        string          `gorm:"type:text;not null" json:"currency"`
	SubtotalCents   int64           `gorm:"not null" json:"subtotal_cents"`
	TaxRate         decimal.Decimal `gorm:"type:numeric(7,4);not null" json:"tax_rate"`
	TaxCents        int64           `gorm:"not null" json:"tax_cents"`
	TotalCents      int64           `gorm:"not null" json:"total_cents"`
	BillingSnapshot datatypes.JSON  `gorm:"type:jsonb;not null" json:"billing_snapshot"`
	IssuedAt        time.Time       `gorm:"not null" json:"issued_at"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
	CancelledAt     *time.Time      `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"not null" json:"updated_at"`

	LineItems []LineItem `gorm:"-" json:"line_items,omitempty"`
	Document  *Document  `gorm:"-" json:"document,omitempty"`
}

func (Invoice) TableName() string { return "invoices" }

// Billing decodes the billing snapshot taken at issue time.
func (i Invoice) Billing() (BillingSnapshot, error) {
	var snapshot BillingSnapshot
	if len(i.BillingSnapshot) == 0 {
		return snapshot, nil
	}
	err := json.Unmarshal(i.BillingSnapshot, &snapshot)
	return snapshot, err
}

type LineItem struct {
	ID             snowflake.ID    `gorm:"primaryKey" json:"id"`
	InvoiceID      snowflake.ID    `gorm:"not null;uniqueIndex:ux_invoice_line_items_position,priority:1" json:"invoice_id"`
	Position       int             `gorm:"not null;uniqueIndex:ux_invoice_line_items_position,priority:2" json:"position"`
	Description    string          `gorm:"type:text;not null" json:"description"`
	Quantity       int64           `gorm:"not null" json:"quantity"`
	UnitPriceCents int64           `gorm:"not null" json:"unit_price_cents"`
	TaxRate        decimal.Decimal `gorm:"type:numeric(7,4);not null" json:"tax_rate"`
	TotalCents     int64           `gorm:"not null" json:"total_cents"`
	CreatedAt      time.Time       `gorm:"not null" json:"created_at"`
}

func (LineItem) TableName() string { return "invoice_line_items" }

type Sequence struct {
	Name      string    `gorm:"type:text;primaryKey" json:"name"`
	LastValue int64     `gorm:"not null" json:"last_value"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Sequence) TableName() string { return "invoice_sequences" }

// Document references the rendered copy of an invoice.
type Document struct {
	InvoiceID  snowflake.ID `gorm:"primaryKey" json:"invoice_id"`
	Location   string       `gorm:"type:text;not null" json:"location"`
	RenderedAt time.Time    `gorm:"not null" json:"rendered_at"`
}

func (Document) TableName() string { return "invoice_documents" }

// BillingSnapshot is the billing profile as it read when the invoice was issued.
type BillingSnapshot struct {
	LegalName    string `json:"legal_name,omitempty"`
	Email        string `json:"email,omitempty"`
	AddressLine1 string `json:"address_line1,omitempty"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city,omitempty"`
	PostalCode   string `json:"postal_code,omitempty"`
	Region       string `json:"region,omitempty"`
	Country      string `json:"country,omitempty"`
	TaxID        string `json:"tax_id,omitempty"`
}
