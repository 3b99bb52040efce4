package extraction

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrecon/pkg/models"
)

func table(rows ...[]string) models.Table {
	var t models.Table
	for r, row := range rows {
		for c, content := range row {
			t.Cells = append(t.Cells, models.TableCell{RowIndex: r, ColumnIndex: c, Content: content})
		}
	}
	return t
}

func text(lines ...string) string {
	return strings.Join(lines, "\n")
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestExtractInvoice(t *testing.T) {
	result := &models.AnalyzeResult{
		FullText: text(
			"INVOICE",
			"Acme Ltd",
			"1 High Street, Leeds",
			"Bill To",
			"Globex Corp",
			"10 Market Road",
			"Invoice No: INV-1",
			"Invoice Date: 15/01/2024",
			"PO Number: PO-100",
			"Subtotal: £250.00",
			"VAT Total: £50.00",
			"Total Amount Due: £300.00",
			"Bank: Barclays",
			"Sort Code: 20-00-00",
			"Account Number: 12345678",
		),
		Tables: []models.Table{table(
			[]string{"Item Code", "Description", "Qty", "Unit Price", "Amount"},
			[]string{"WID-1", "Widget", "10", "£25.00", "£250.00"},
		)},
	}

	doc, err := DefaultRegistry().Extract(models.ChannelInvoice, "inv-1.pdf", result)
	require.NoError(t, err)
	require.NotNil(t, doc.Invoice)

	inv := doc.Invoice
	assert.Equal(t, "Acme Ltd", inv.Org)
	assert.Equal(t, "Acme Ltd", inv.Supplier.Name)
	assert.Equal(t, "Globex Corp", inv.Customer.Name)
	assert.Equal(t, "10 Market Road", inv.Customer.Address)
	assert.Equal(t, "INV-1", inv.InvoiceNo)
	assert.Equal(t, "PO-100", inv.PONumber)
	require.NotNil(t, inv.InvoiceDate)
	assert.Equal(t, "2024-01-15", inv.InvoiceDate.Format("2006-01-02"))
	assert.True(t, dec("250").Equal(inv.SubTotal))
	assert.True(t, dec("50").Equal(inv.TaxTotal))
	assert.True(t, dec("300").Equal(inv.Total))
	assert.Equal(t, "£", inv.Currency)

	assert.Equal(t, "Barclays", inv.Bank.Name)
	assert.Equal(t, "20-00-00", inv.Bank.SortCode)
	assert.Equal(t, "12345678", inv.Bank.AccountNumber)

	require.Len(t, inv.Lines, 1)
	line := inv.Lines[0]
	assert.Equal(t, "WID-1", line.ItemCode)
	assert.Equal(t, "Widget", line.Description)
	assert.True(t, dec("10").Equal(line.Quantity))
	assert.True(t, dec("25").Equal(line.UnitPrice))
	assert.True(t, dec("250").Equal(line.Amount))
	assert.Equal(t, "£", line.UnitPriceCurrency)
	assert.Equal(t, models.InvoiceLineUnmatched, line.MatchedStatus)

	assert.Equal(t, "Acme Ltd", doc.Org())
	assert.Equal(t, "INV-1", doc.Number())
}

func TestExtractPurchaseOrderFromKeyValueTable(t *testing.T) {
	result := &models.AnalyzeResult{
		FullText: text(
			"PURCHASE ORDER",
			"Supplier: Acme Ltd",
			"Email: sales@acme.example",
			"Buyer: Globex Corp",
		),
		Tables: []models.Table{
			table(
				[]string{"PO No", "PO Date"},
				[]string{"PO-100", "10/01/2024"},
			),
			table(
				[]string{"Description", "Qty", "Unit Price", "Total"},
				[]string{"WID-1 Widget", "100", "2.50", "250.00"},
				[]string{"", "", "", ""},
			),
		},
	}

	doc, err := DefaultRegistry().Extract(models.ChannelPurchaseOrder, "po-100.pdf", result)
	require.NoError(t, err)
	require.NotNil(t, doc.PurchaseOrder)

	po := doc.PurchaseOrder
	assert.Equal(t, "Acme Ltd", po.Org)
	assert.Equal(t, "sales@acme.example", po.Supplier.Email)
	assert.Equal(t, "Globex Corp", po.Customer.Name)
	assert.Equal(t, "PO-100", po.PONumber)
	require.NotNil(t, po.PODate)
	assert.Equal(t, "2024-01-10", po.PODate.Format("2006-01-02"))
	assert.Equal(t, models.MatchPending, po.MatchStatus)

	require.Len(t, po.Lines, 1)
	assert.Equal(t, "WID-1", po.Lines[0].ItemCode)
	assert.Equal(t, "Widget", po.Lines[0].Description)
	assert.True(t, dec("100").Equal(po.Lines[0].QuantityOrdered))
	assert.True(t, dec("2.5").Equal(po.Lines[0].UnitPrice))
	assert.Equal(t, models.LinePending, po.Lines[0].LineStatus)
	assert.Nil(t, po.Lines[0].ExceptionReason)
}

func TestExtractGRN(t *testing.T) {
	result := &models.AnalyzeResult{
		FullText: text(
			"GOODS RECEIVED NOTE",
			"Supplier: Acme Ltd",
			"Receiver: Globex Corp",
			"GRN No: GRN-7",
			"Related PO No: PO-100",
			"Received Date: 12/01/2024",
		),
		Tables: []models.Table{table(
			[]string{"Item Code", "Description", "Qty Ordered", "Qty Received", "Remarks"},
			[]string{"WID-1", "Widget", "100", "98", "2 damaged"},
		)},
	}

	doc, err := DefaultRegistry().Extract(models.ChannelGRN, "grn-7.pdf", result)
	require.NoError(t, err)
	require.NotNil(t, doc.GRN)

	grn := doc.GRN
	assert.Equal(t, "Acme Ltd", grn.Org)
	assert.Equal(t, "Globex Corp", grn.Customer.Name)
	assert.Equal(t, "GRN-7", grn.GRNNumber)
	assert.Equal(t, "PO-100", grn.PONumber)
	require.NotNil(t, grn.GRNDate)

	require.Len(t, grn.Lines, 1)
	assert.Equal(t, "WID-1", grn.Lines[0].ItemCode)
	assert.True(t, dec("100").Equal(grn.Lines[0].QuantityOrdered))
	assert.True(t, dec("98").Equal(grn.Lines[0].QuantityReceived))
	assert.Equal(t, "2 damaged", grn.Lines[0].Remarks)
}

func TestExtractRejections(t *testing.T) {
	tests := []struct {
		name    string
		channel models.Channel
		text    string
		want    error
	}{
		{
			name:    "purchase order on invoice channel",
			channel: models.ChannelInvoice,
			text:    text("PURCHASE ORDER", "Supplier: Acme Ltd", "PO No: PO-1"),
			want:    ErrInvalidFileType,
		},
		{
			name:    "invoice on grn channel",
			channel: models.ChannelGRN,
			text:    text("Tax Invoice", "Supplier: Acme Ltd", "Invoice No: INV-1"),
			want:    ErrInvalidFileType,
		},
		{
			name:    "no supplier",
			channel: models.ChannelInvoice,
			text:    text("INVOICE", "Bill To", "Globex Corp", "Invoice No: INV-9"),
			want:    ErrUnresolvableOrg,
		},
		{
			name:    "no number",
			channel: models.ChannelInvoice,
			text:    text("INVOICE", "Acme Ltd", "Bill To", "Globex Corp"),
			want:    ErrMissingDocumentNumber,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DefaultRegistry().Extract(tt.channel, "x.pdf", &models.AnalyzeResult{FullText: tt.text})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var extractionErr *ExtractionError
			assert.ErrorAs(t, err, &extractionErr)
		})
	}
}

func TestExtractClampsNegativeQuantities(t *testing.T) {
	result := &models.AnalyzeResult{
		FullText: text("Supplier: Acme Ltd", "Invoice No: INV-2"),
		Tables: []models.Table{table(
			[]string{"Description", "Qty", "Unit Price"},
			[]string{"Credit", "-5", "-1.00"},
		)},
	}

	doc, err := DefaultRegistry().Extract(models.ChannelInvoice, "inv-2.pdf", result)
	require.NoError(t, err)
	require.Len(t, doc.Invoice.Lines, 1)
	assert.True(t, doc.Invoice.Lines[0].Quantity.IsZero())
	assert.True(t, doc.Invoice.Lines[0].UnitPrice.IsZero())
}

type globexInvoice struct{}

func (globexInvoice) Name() string            { return "globex-invoice" }
func (globexInvoice) Channel() models.Channel { return models.ChannelInvoice }
func (globexInvoice) Matches(r *models.AnalyzeResult) bool {
	return strings.Contains(r.FullText, "GLOBEX FORMAT")
}
func (globexInvoice) Extract(fileName string, r *models.AnalyzeResult) (*models.Document, error) {
	return &models.Document{
		Channel:  models.ChannelInvoice,
		FileName: fileName,
		Invoice:  &models.Invoice{Org: " Globex ", InvoiceNo: "G-1", FileName: fileName},
	}, nil
}

func TestRegistryPrefersEarlierStrategies(t *testing.T) {
	r := NewRegistry()
	r.Register(globexInvoice{})
	r.Register(GenericInvoice{})

	doc, err := r.Extract(models.ChannelInvoice, "g.pdf", &models.AnalyzeResult{FullText: "GLOBEX FORMAT"})
	require.NoError(t, err)
	assert.Equal(t, "Globex", doc.Invoice.Org)
	assert.Equal(t, "G-1", doc.Invoice.InvoiceNo)

	doc, err = r.Extract(models.ChannelInvoice, "a.pdf", &models.AnalyzeResult{FullText: text("Supplier: Acme Ltd", "Invoice No: A-1")})
	require.NoError(t, err)
	assert.Equal(t, "Acme Ltd", doc.Invoice.Org)
}

func TestRegistryWithoutStrategy(t *testing.T) {
	_, err := NewRegistry().Extract(models.ChannelGRN, "x.pdf", &models.AnalyzeResult{FullText: "GRN No: 1"})
	assert.ErrorIs(t, err, ErrNoStrategy)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in       string
		want     string
		currency string
	}{
		{"£1,234.56", "1234.56", "£"},
		{"1.234,56 EUR", "1234.56", "EUR"},
		{"$ 99.5", "99.5", "$"},
		{"(12.00)", "-12", ""},
		{"-3", "-3", ""},
		{"1,5", "1.5", ""},
		{"1,234", "1234", ""},
		{"1.234.567", "1234567", ""},
		{"105.01", "105.01", ""},
		{"", "0", ""},
		{"n/a", "0", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, currency := ParseAmount(tt.in)
			assert.True(t, dec(tt.want).Equal(got), "got %s", got)
			if tt.currency != "" {
				assert.Equal(t, tt.currency, currency)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	for _, in := range []string{"15/01/2024", "2024-01-15", "15 Jan 2024", "15.01.2024", "January 15, 2024"} {
		got := ParseDate(in)
		require.NotNil(t, got, in)
		assert.Equal(t, "2024-01-15", got.Format("2006-01-02"), in)
	}
	assert.Nil(t, ParseDate("soon"))
	assert.Nil(t, ParseDate(""))
}

func TestItemCodeFromDescription(t *testing.T) {
	tests := []struct {
		in, code, rest string
	}{
		{"WID-001 Blue widget", "WID-001", "Blue widget"},
		{"AB1234 Bolt", "AB1234", "Bolt"},
		{"Blue widget", "", "Blue widget"},
		{"  ", "", ""},
	}
	for _, tt := range tests {
		code, rest := ItemCodeFromDescription(tt.in)
		assert.Equal(t, tt.code, code, tt.in)
		assert.Equal(t, tt.rest, rest, tt.in)
	}
}

func TestDetectKind(t *testing.T) {
	tests := []struct {
		text string
		kind models.Channel
		ok   bool
	}{
		{"Tax Invoice\nAcme", models.ChannelInvoice, true},
		{"Invoice No: 5\nPurchase Order\n", models.ChannelPurchaseOrder, true},
		{"Acme\n  GOODS   RECEIPT NOTE ", models.ChannelGRN, true},
		{"PO Number: 1\nInvoice Date: 2024-01-01", "", false},
	}
	for _, tt := range tests {
		kind, ok := DetectKind(tt.text)
		assert.Equal(t, tt.ok, ok, tt.text)
		assert.Equal(t, tt.kind, kind, tt.text)
	}
}

func TestHeadingPatternIsCompiledOnce(t *testing.T) {
	first := headingPattern("Bill To")
	assert.Same(t, first, headingPattern("Bill To"))
	assert.Same(t, labelPattern("Invoice No"), labelPattern("Invoice No"))

	m := first.FindStringSubmatch("BILL TO: Acme Ltd")
	require.Len(t, m, 2)
	assert.Equal(t, "Acme Ltd", m[1])
	assert.True(t, headingPattern("PO Number").MatchString("PO Number"))
	assert.False(t, headingPattern("Bill To").MatchString("Billing address"))
}
