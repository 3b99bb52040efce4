package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// GRN is a goods received note, identified by (Org, GRNNumber).
type GRN struct {
	ID        int64
	Org       string
	FileName  string
	GRNNumber string
	PONumber  string

	GRNDate    *time.Time
	ReceivedAt time.Time

	Supplier Party
	Customer Party

	Lines []GRNLine

	IsProcessed bool
	ArchiveURI  string
}

type GRNLine struct {
	ID               int64
	ItemCode         string
	Description      string
	QuantityOrdered  decimal.Decimal
	QuantityReceived decimal.Decimal
	UnitPrice        decimal.Decimal
	Remarks          string
	MatchedStatus    InvoiceLineStatus
}
