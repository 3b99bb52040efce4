package models

import (
	"fmt"
	"strings"
	"time"
)

// Channel is the logical inbound channel a file arrives on.
type Channel string

const (
	ChannelInvoice       Channel = "invoice"
	ChannelPurchaseOrder Channel = "purchaseorder"
	ChannelGRN           Channel = "grndata"
)

// Channels lists every inbound channel in polling order.
var Channels = []Channel{ChannelPurchaseOrder, ChannelInvoice, ChannelGRN}

// ParseChannel converts a user supplied channel name.
func ParseChannel(s string) (Channel, error) {
	switch c := Channel(strings.ToLower(strings.TrimSpace(s))); c {
	case ChannelInvoice, ChannelPurchaseOrder, ChannelGRN:
		return c, nil
	default:
		return "", fmt.Errorf("unknown channel %q (want invoice, purchaseorder or grndata)", s)
	}
}

// Document is the normalized result of extraction. Exactly one of
// Invoice, PurchaseOrder or GRN is set, matching Channel.
type Document struct {
	Channel       Channel
	FileName      string
	Invoice       *Invoice
	PurchaseOrder *PurchaseOrder
	GRN           *GRN
}

// Org returns the identity org of the wrapped document.
func (d *Document) Org() string {
	switch {
	case d.Invoice != nil:
		return d.Invoice.Org
	case d.PurchaseOrder != nil:
		return d.PurchaseOrder.Org
	case d.GRN != nil:
		return d.GRN.Org
	}
	return ""
}

// Number returns the document number half of the identity key.
func (d *Document) Number() string {
	switch {
	case d.Invoice != nil:
		return d.Invoice.InvoiceNo
	case d.PurchaseOrder != nil:
		return d.PurchaseOrder.PONumber
	case d.GRN != nil:
		return d.GRN.GRNNumber
	}
	return ""
}

func (d *Document) Supplier() Party {
	switch {
	case d.Invoice != nil:
		return d.Invoice.Supplier
	case d.PurchaseOrder != nil:
		return d.PurchaseOrder.Supplier.Party
	case d.GRN != nil:
		return d.GRN.Supplier
	}
	return Party{}
}

func (d *Document) Customer() Party {
	switch {
	case d.Invoice != nil:
		return d.Invoice.Customer
	case d.PurchaseOrder != nil:
		return d.PurchaseOrder.Customer
	case d.GRN != nil:
		return d.GRN.Customer
	}
	return Party{}
}

// Bank returns the bank details; GRNs carry none.
func (d *Document) Bank() BankAccount {
	switch {
	case d.Invoice != nil:
		return d.Invoice.Bank
	case d.PurchaseOrder != nil:
		return d.PurchaseOrder.Bank
	}
	return BankAccount{}
}

// Audit reason codes for files routed away from the primary tables.
const (
	ReasonDuplicate       = "duplicate"
	ReasonNotPDF          = "not_pdf"
	ReasonCorruptPDF      = "corrupt_pdf"
	ReasonInvalidFileType = "invalid_file_type"
	ReasonUnresolvedOrg   = "unresolved_org"
	ReasonMalformed       = "malformed"
)

// FileAudit is the audit row written for duplicate and invalid files.
type FileAudit struct {
	FileName   string
	Channel    Channel
	ReasonCode string
	ArchiveURI string
	CreatedAt  time.Time
}
