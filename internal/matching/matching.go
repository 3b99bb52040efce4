// Package matching reconciles purchase orders against invoices and, for
// suppliers that require it, goods received notes.
//
// A cycle selects every Pending or PartiallyMatched purchase order, resolves
// the supplier's matching policy and evaluates each line against the invoice
// and GRN lines that reference the same (org, po number, item code). The
// whole order is evaluated before anything is written, and each order is
// written in a single ApplyResult call.
package matching

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"docrecon/pkg/models"
)

// Reasons recorded on lines that cannot be evaluated yet.
const (
	ReasonAwaitingInvoice    = "Invoice not yet received"
	ReasonAwaitingInvoiceGRN = "Invoice/GRN not yet received"
)

// ErrCycleInProgress is returned when a cycle is requested while another is running.
var ErrCycleInProgress = errors.New("matching cycle already in progress")

var hundred = decimal.NewFromInt(100)

// InvoiceLineRef is an invoice line together with the invoice it belongs to.
type InvoiceLineRef struct {
	InvoiceID int64
	InvoiceNo string
	Line      models.InvoiceLine
}

// GRNLineRef is a GRN line together with the GRN it belongs to.
type GRNLineRef struct {
	GRNID     int64
	GRNNumber string
	Line      models.GRNLine
}

// Store is the persistence the engine reads candidates from and writes results to.
type Store interface {
	CandidatePurchaseOrders(ctx context.Context) ([]models.PurchaseOrder, error)
	// SupplierPolicy returns nil when the supplier has no configured policy.
	SupplierPolicy(ctx context.Context, supplierID int64) (*models.MatchingPolicy, error)
	InvoiceLines(ctx context.Context, org, poNumber, itemCode string) ([]InvoiceLineRef, error)
	GRNLines(ctx context.Context, org, poNumber, itemCode string) ([]GRNLineRef, error)
	// ApplyResult persists one evaluated purchase order atomically.
	ApplyResult(ctx context.Context, result POResult) error
}

// LineOutcome is the evaluation of one purchase order line.
type LineOutcome struct {
	Status models.LineStatus
	Reason *string

	// Contributing lines, populated only when Status is LineMatched.
	InvoiceLines []InvoiceLineRef
	GRNLines     []GRNLineRef
}

type LineResult struct {
	POLineID int64
	ItemCode string
	LineOutcome
}

// POResult is everything a cycle writes for one purchase order.
type POResult struct {
	PurchaseOrderID int64
	Org             string
	PONumber        string
	Lines           []LineResult
	Status          models.MatchStatus
	IsProcessed     bool
}

// ResolvePolicy returns the supplier policy when configured, else defaults.
func ResolvePolicy(supplier *models.MatchingPolicy, defaults models.MatchingPolicy) models.MatchingPolicy {
	if supplier != nil {
		return *supplier
	}
	return defaults
}

// ReconcileLine evaluates one purchase order line against the invoice lines
// and, under 3-way matching, the GRN lines that carry its item code.
//
// The quantity compared with the ordered quantity is the GRN received total
// under 3-way matching and the invoiced total otherwise. The invoice price is
// the unweighted mean of the invoice unit prices. Both tolerances are inclusive.
func ReconcileLine(po models.POLine, invoices []InvoiceLineRef, grns []GRNLineRef, policy models.MatchingPolicy) LineOutcome {
	if len(invoices) == 0 || (policy.Is3WayMatching && len(grns) == 0) {
		reason := ReasonAwaitingInvoice
		if policy.Is3WayMatching {
			reason = ReasonAwaitingInvoiceGRN
		}
		return LineOutcome{Status: models.LinePending, Reason: &reason}
	}

	invoiceQty := decimal.Zero
	priceSum := decimal.Zero
	for _, l := range invoices {
		invoiceQty = invoiceQty.Add(l.Line.Quantity)
		priceSum = priceSum.Add(l.Line.UnitPrice)
	}
	invoicePrice := priceSum.Div(decimal.NewFromInt(int64(len(invoices))))

	comparisonQty := invoiceQty
	grnQty := decimal.Zero
	if policy.Is3WayMatching {
		for _, l := range grns {
			grnQty = grnQty.Add(l.Line.QuantityReceived)
		}
		comparisonQty = grnQty
	}

	qtyTolerance := po.QuantityOrdered.Mul(policy.QuantityVariancePct).Div(hundred)
	qtyOk := po.QuantityOrdered.Sub(comparisonQty).Abs().LessThanOrEqual(qtyTolerance)
	priceOk := po.UnitPrice.Sub(invoicePrice).Abs().LessThanOrEqual(policy.PriceVarianceAbsolute)

	if qtyOk && priceOk {
		out := LineOutcome{Status: models.LineMatched, InvoiceLines: invoices}
		if policy.Is3WayMatching {
			out.GRNLines = grns
		}
		return out
	}

	var reasons []string
	if !qtyOk {
		if policy.Is3WayMatching {
			reasons = append(reasons, fmt.Sprintf(
				"Received %s units against %s ordered for %s (invoiced %s, tolerance %s%%)",
				grnQty, po.QuantityOrdered, po.ItemCode, invoiceQty, policy.QuantityVariancePct))
		} else {
			reasons = append(reasons, fmt.Sprintf(
				"Invoiced %s units against %s ordered for %s (tolerance %s%%)",
				invoiceQty, po.QuantityOrdered, po.ItemCode, policy.QuantityVariancePct))
		}
	}
	if !priceOk {
		reasons = append(reasons, fmt.Sprintf(
			"%s units charged at %s should have been %s for %s (tolerance %s)",
			invoiceQty, invoicePrice.Round(4), po.UnitPrice, po.ItemCode, policy.PriceVarianceAbsolute))
	}
	reason := strings.Join(reasons, "; ") + " (" + auditFigures(po, invoiceQty, invoicePrice, grnQty, policy) + ")"
	return LineOutcome{Status: models.LineException, Reason: &reason}
}

// auditFigures lists the quantities and prices every exception is judged on.
func auditFigures(po models.POLine, invoiceQty, invoicePrice, grnQty decimal.Decimal, policy models.MatchingPolicy) string {
	figures := fmt.Sprintf("ordered %s at %s, invoiced %s at %s",
		po.QuantityOrdered, po.UnitPrice, invoiceQty, invoicePrice.Round(4))
	if policy.Is3WayMatching {
		figures += fmt.Sprintf(", received %s", grnQty)
	}
	return figures
}

// DeriveStatus computes a purchase order status from its line statuses.
// Exception dominates Pending, which dominates Matched. An order without
// lines stays Pending.
func DeriveStatus(lines []models.LineStatus) models.MatchStatus {
	if len(lines) == 0 {
		return models.MatchPending
	}

	pending := false
	for _, s := range lines {
		switch s {
		case models.LineException:
			return models.MatchException
		case models.LineMatched:
		default:
			pending = true
		}
	}
	if pending {
		return models.MatchPartiallyMatched
	}
	return models.MatchMatched
}
