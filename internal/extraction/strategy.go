// Package extraction maps raw analysis results onto the normalized document
// model. Layout knowledge lives in Strategy implementations; the Registry
// picks one per document and enforces the invariants every strategy shares.
package extraction

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"docrecon/internal/logger"
	"docrecon/pkg/models"
)

// Strategy extracts one document kind for one family of layouts.
type Strategy interface {
	Name() string
	Channel() models.Channel
	// Matches reports whether the strategy recognises the layout.
	Matches(result *models.AnalyzeResult) bool
	Extract(fileName string, result *models.AnalyzeResult) (*models.Document, error)
}

// Registry holds strategies in registration order. Register vendor specific
// strategies before the generic ones so they are tried first.
type Registry struct {
	strategies []Strategy
	log        zerolog.Logger
}

func NewRegistry() *Registry {
	return &Registry{log: logger.WithComponent("extraction")}
}

// DefaultRegistry returns a registry with the generic strategy of every channel.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(GenericPurchaseOrder{})
	r.Register(GenericInvoice{})
	r.Register(GenericGRN{})
	return r
}

func (r *Registry) Register(s Strategy) {
	r.strategies = append(r.strategies, s)
}

// Extract maps result onto a Document for the given channel.
func (r *Registry) Extract(channel models.Channel, fileName string, result *models.AnalyzeResult) (*models.Document, error) {
	const op = "Extract"

	if result == nil {
		return nil, WrapExtractionError(op, "", NewValidationError("result", nil, "analysis result is empty"), fileName)
	}

	if kind, ok := DetectKind(result.FullText); ok && kind != channel {
		return nil, WrapExtractionError(op, "", ErrInvalidFileType,
			fmt.Sprintf("%s titled as %s but arrived on %s", fileName, kind, channel))
	}

	for _, s := range r.strategies {
		if s.Channel() != channel || !s.Matches(result) {
			continue
		}

		r.log.Debug().
			Str("file", fileName).
			Str("strategy", s.Name()).
			Msg("Extracting document")

		doc, err := s.Extract(fileName, result)
		if err != nil {
			return nil, WrapExtractionError(op, s.Name(), err, fileName)
		}
		if err := finalize(doc); err != nil {
			return nil, WrapExtractionError(op, s.Name(), err, fileName)
		}
		return doc, nil
	}

	return nil, WrapExtractionError(op, "", ErrNoStrategy, fmt.Sprintf("channel %s", channel))
}

// finalize enforces the shared post-conditions: a resolved org, a document
// number and non-negative line quantities and prices.
func finalize(doc *models.Document) error {
	if doc == nil {
		return NewValidationError("document", nil, "strategy returned no document")
	}

	switch {
	case doc.Invoice != nil:
		inv := doc.Invoice
		inv.Org = strings.TrimSpace(inv.Org)
		inv.InvoiceNo = strings.TrimSpace(inv.InvoiceNo)
		for i := range inv.Lines {
			l := &inv.Lines[i]
			l.Quantity = nonNegative(l.Quantity)
			l.UnitPrice = nonNegative(l.UnitPrice)
			l.MatchedStatus = models.InvoiceLineUnmatched
		}
	case doc.PurchaseOrder != nil:
		po := doc.PurchaseOrder
		po.Org = strings.TrimSpace(po.Org)
		po.PONumber = strings.TrimSpace(po.PONumber)
		po.MatchStatus = models.MatchPending
		for i := range po.Lines {
			l := &po.Lines[i]
			l.QuantityOrdered = nonNegative(l.QuantityOrdered)
			l.UnitPrice = nonNegative(l.UnitPrice)
			l.LineStatus = models.LinePending
			l.ExceptionReason = nil
		}
	case doc.GRN != nil:
		grn := doc.GRN
		grn.Org = strings.TrimSpace(grn.Org)
		grn.GRNNumber = strings.TrimSpace(grn.GRNNumber)
		for i := range grn.Lines {
			l := &grn.Lines[i]
			l.QuantityOrdered = nonNegative(l.QuantityOrdered)
			l.QuantityReceived = nonNegative(l.QuantityReceived)
			l.UnitPrice = nonNegative(l.UnitPrice)
			l.MatchedStatus = models.InvoiceLineUnmatched
		}
	default:
		return NewValidationError("document", nil, "strategy returned an empty document")
	}

	if doc.Org() == "" {
		return ErrUnresolvableOrg
	}
	if doc.Number() == "" {
		return ErrMissingDocumentNumber
	}
	return nil
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
