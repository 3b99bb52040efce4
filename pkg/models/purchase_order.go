package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MatchStatus is the header-level reconciliation state of a purchase order.
type MatchStatus string

const (
	MatchPending          MatchStatus = "Pending"
	MatchPartiallyMatched MatchStatus = "PartiallyMatched"
	MatchMatched          MatchStatus = "Matched"
	MatchException        MatchStatus = "Exception"
)

// LineStatus is the reconciliation state of a single purchase order line.
type LineStatus string

const (
	LinePending   LineStatus = "Pending"
	LineMatched   LineStatus = "Matched"
	LineException LineStatus = "Exception"
)

// PurchaseOrder is identified by (Org, PONumber).
type PurchaseOrder struct {
	ID       int64
	Org      string
	FileName string
	PONumber string

	PODate       *time.Time
	DeliveryDate *time.Time
	ReceivedAt   time.Time

	Supplier Supplier
	Customer Party
	Bank     BankAccount

	Lines []POLine

	SubTotal   decimal.Decimal
	VATValue   decimal.Decimal
	TotalValue decimal.Decimal
	Currency   string

	MatchStatus MatchStatus
	IsProcessed bool

	ArchiveURI string
}

// POLine carries the ordered quantity and price the invoice and GRN are checked against.
// ExceptionReason is always set when LineStatus is LineException. A Pending
// line may also carry the reason it is still waiting; Matched lines never do.
type POLine struct {
	ID                int64
	ItemCode          string
	Description       string
	QuantityOrdered   decimal.Decimal
	UnitPrice         decimal.Decimal
	TotalAmount       decimal.Decimal
	UnitPriceCurrency string
	LineStatus        LineStatus
	ExceptionReason   *string
}

// ExceptionLine is a purchase order line that needs operator attention.
type ExceptionLine struct {
	Org      string
	PONumber string
	ItemCode string
	Status   LineStatus
	Reason   string
}
