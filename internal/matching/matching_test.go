package matching

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrecon/pkg/models"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func twoWay() models.MatchingPolicy {
	return models.MatchingPolicy{QuantityVariancePct: d("5"), PriceVarianceAbsolute: d("0.50")}
}

func threeWay() models.MatchingPolicy {
	p := twoWay()
	p.Is3WayMatching = true
	return p
}

func invLine(qty, price string) InvoiceLineRef {
	return InvoiceLineRef{InvoiceID: 1, Line: models.InvoiceLine{ItemCode: "X1", Quantity: d(qty), UnitPrice: d(price)}}
}

func grnLine(received string) GRNLineRef {
	return GRNLineRef{GRNID: 1, Line: models.GRNLine{ItemCode: "X1", QuantityReceived: d(received)}}
}

func poLine(qty, price string) models.POLine {
	return models.POLine{ItemCode: "X1", QuantityOrdered: d(qty), UnitPrice: d(price), LineStatus: models.LinePending}
}

func TestReconcileLineToleranceBoundary(t *testing.T) {
	tests := []struct {
		name string
		qty  string
		want models.LineStatus
	}{
		{"exact", "100", models.LineMatched},
		{"upper boundary inclusive", "105", models.LineMatched},
		{"lower boundary inclusive", "95", models.LineMatched},
		{"just above", "105.01", models.LineException},
		{"just below", "94.99", models.LineException},
	}

	for _, tt := range tests {
		t.Run(tt.name+" 2-way", func(t *testing.T) {
			out := ReconcileLine(poLine("100", "5.00"), []InvoiceLineRef{invLine(tt.qty, "5.00")}, nil, twoWay())
			assert.Equal(t, tt.want, out.Status)
		})
		t.Run(tt.name+" 3-way", func(t *testing.T) {
			out := ReconcileLine(poLine("100", "5.00"),
				[]InvoiceLineRef{invLine("100", "5.00")},
				[]GRNLineRef{grnLine(tt.qty)}, threeWay())
			assert.Equal(t, tt.want, out.Status)
		})
	}
}

func TestReconcileLinePriceTolerance(t *testing.T) {
	tests := []struct {
		price string
		want  models.LineStatus
	}{
		{"5.50", models.LineMatched},
		{"4.50", models.LineMatched},
		{"5.51", models.LineException},
		{"4.49", models.LineException},
	}

	for _, tt := range tests {
		t.Run(tt.price, func(t *testing.T) {
			out := ReconcileLine(poLine("10", "5.00"), []InvoiceLineRef{invLine("10", tt.price)}, nil, twoWay())
			assert.Equal(t, tt.want, out.Status)
		})
	}
}

func TestReconcileLineAggregation(t *testing.T) {
	// Quantities sum to 10; the unweighted mean price is (4.00+6.00)/2 = 5.00
	// even though a quantity weighted mean would be 4.20.
	invoices := []InvoiceLineRef{invLine("9", "4.00"), invLine("1", "6.00")}
	out := ReconcileLine(poLine("10", "5.00"), invoices, nil, twoWay())
	assert.Equal(t, models.LineMatched, out.Status)
	assert.Nil(t, out.Reason)
	assert.Len(t, out.InvoiceLines, 2)
	assert.Empty(t, out.GRNLines)

	grns := []GRNLineRef{grnLine("6"), grnLine("4")}
	out = ReconcileLine(poLine("10", "5.00"), invoices, grns, threeWay())
	assert.Equal(t, models.LineMatched, out.Status)
	assert.Len(t, out.GRNLines, 2)
}

func TestReconcileLineThreeWayIgnoresInvoiceQuantity(t *testing.T) {
	out := ReconcileLine(poLine("10", "5.00"),
		[]InvoiceLineRef{invLine("50", "5.00")},
		[]GRNLineRef{grnLine("10")}, threeWay())
	assert.Equal(t, models.LineMatched, out.Status)
}

func TestReconcileLineMissingData(t *testing.T) {
	out := ReconcileLine(poLine("10", "5.00"), nil, nil, twoWay())
	assert.Equal(t, models.LinePending, out.Status)
	require.NotNil(t, out.Reason)
	assert.Equal(t, ReasonAwaitingInvoice, *out.Reason)

	out = ReconcileLine(poLine("10", "5.00"), []InvoiceLineRef{invLine("10", "5.00")}, nil, threeWay())
	assert.Equal(t, models.LinePending, out.Status)
	require.NotNil(t, out.Reason)
	assert.Equal(t, ReasonAwaitingInvoiceGRN, *out.Reason)

	out = ReconcileLine(poLine("10", "5.00"), nil, []GRNLineRef{grnLine("10")}, threeWay())
	assert.Equal(t, models.LinePending, out.Status)
	assert.Equal(t, ReasonAwaitingInvoiceGRN, *out.Reason)
}

func TestReconcileLineExceptionReason(t *testing.T) {
	out := ReconcileLine(poLine("100", "5.00"),
		[]InvoiceLineRef{invLine("100", "6.00")},
		[]GRNLineRef{grnLine("80")}, threeWay())

	assert.Equal(t, models.LineException, out.Status)
	require.NotNil(t, out.Reason)
	assert.Contains(t, *out.Reason, "Received 80 units against 100 ordered for X1")
	assert.Contains(t, *out.Reason, "charged at 6 should have been 5 for X1")
	assert.Empty(t, out.InvoiceLines)
}

func TestReconcileLineExceptionReasonCarriesAllFigures(t *testing.T) {
	// Quantity failure under 2-way still reports both prices.
	out := ReconcileLine(poLine("10", "5.00"), []InvoiceLineRef{invLine("20", "5.00")}, nil, twoWay())
	require.NotNil(t, out.Reason)
	assert.Contains(t, *out.Reason, "Invoiced 20 units against 10 ordered for X1")
	assert.Contains(t, *out.Reason, "(ordered 10 at 5, invoiced 20 at 5)")

	// Price failure under 3-way still reports the received quantity.
	out = ReconcileLine(poLine("10", "5.00"),
		[]InvoiceLineRef{invLine("10", "7.00")},
		[]GRNLineRef{grnLine("10")}, threeWay())
	require.NotNil(t, out.Reason)
	assert.NotContains(t, *out.Reason, "Received 10 units")
	assert.Contains(t, *out.Reason, "(ordered 10 at 5, invoiced 10 at 7, received 10)")
}

func TestReconcileLineZeroOrderedQuantity(t *testing.T) {
	out := ReconcileLine(poLine("0", "5.00"), []InvoiceLineRef{invLine("0", "5.00")}, nil, twoWay())
	assert.Equal(t, models.LineMatched, out.Status)

	out = ReconcileLine(poLine("0", "5.00"), []InvoiceLineRef{invLine("1", "5.00")}, nil, twoWay())
	assert.Equal(t, models.LineException, out.Status)
}

func TestDeriveStatus(t *testing.T) {
	m, p, e := models.LineMatched, models.LinePending, models.LineException

	tests := []struct {
		name  string
		lines []models.LineStatus
		want  models.MatchStatus
	}{
		{"all matched", []models.LineStatus{m, m}, models.MatchMatched},
		{"matched exception pending", []models.LineStatus{m, e, p}, models.MatchException},
		{"pending exception matched", []models.LineStatus{p, e, m}, models.MatchException},
		{"exception first", []models.LineStatus{e, p, m}, models.MatchException},
		{"pending and matched", []models.LineStatus{m, p}, models.MatchPartiallyMatched},
		{"all pending", []models.LineStatus{p}, models.MatchPartiallyMatched},
		{"no lines", nil, models.MatchPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(tt.lines))
		})
	}
}

func TestResolvePolicy(t *testing.T) {
	defaults := twoWay()
	assert.Equal(t, defaults, ResolvePolicy(nil, defaults))

	custom := models.MatchingPolicy{Is3WayMatching: true, QuantityVariancePct: d("0"), PriceVarianceAbsolute: d("0")}
	assert.Equal(t, custom, ResolvePolicy(&custom, defaults))
}
