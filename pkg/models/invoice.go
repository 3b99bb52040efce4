package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceLineStatus records whether an invoice line has been consumed by a PO match.
type InvoiceLineStatus string

const (
	InvoiceLineUnmatched InvoiceLineStatus = "Unmatched"
	InvoiceLineMatched   InvoiceLineStatus = "Matched"
)

type Invoice struct {
	// Core identifiers
	ID        int64  // Database identifier (0 until persisted)
	Org       string // Resolved supplier/trading name; part of the identity key
	FileName  string // Source object name in the invoice channel
	InvoiceNo string // Human-readable invoice number; part of the identity key

	// References to the other documents of the trading relationship
	PONumber    string // Purchase order number printed on the invoice (not enforced)
	GRNNumber   string // Goods received note reference, if printed
	PaymentTerm string
	VATNumber   string

	// Parties
	Supplier Party
	Customer Party
	Bank     BankAccount

	// Dates
	InvoiceDate *time.Time
	DueDate     *time.Time
	ReceivedAt  time.Time // When the file was ingested

	// Amounts (exact decimal arithmetic)
	SubTotal decimal.Decimal
	TaxTotal decimal.Decimal
	Total    decimal.Decimal
	Currency string // 1-3 character code or symbol

	Lines []InvoiceLine

	// Status, mutated only by the matching engine
	IsProcessed bool
	IsApproved  bool

	ArchiveURI string
}

type InvoiceLine struct {
	ID                int64
	ItemCode          string
	Description       string
	Quantity          decimal.Decimal
	UnitPrice         decimal.Decimal
	VATPct            decimal.Decimal
	Amount            decimal.Decimal
	UnitPriceCurrency string
	MatchedStatus     InvoiceLineStatus
}
