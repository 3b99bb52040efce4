package extraction

import (
	"strings"
	"time"

	"docrecon/pkg/models"
)

// GenericInvoice extracts invoices laid out with labelled header fields and a
// description/quantity line table. It accepts any layout.
type GenericInvoice struct{}

func (GenericInvoice) Name() string { return "generic-invoice" }
func (GenericInvoice) Channel() models.Channel { return models.ChannelInvoice }
func (GenericInvoice) Matches(result *models.AnalyzeResult) bool { return true }

func (GenericInvoice) Extract(fileName string, result *models.AnalyzeResult) (*models.Document, error) {
	v := newView(result)

	inv := &models.Invoice{
		FileName:    fileName,
		InvoiceNo:   v.identifier(invoiceNumberKeys...),
		PONumber:    v.identifier(poNumberKeys...),
		GRNNumber:   v.identifier(grnNumberKeys...),
		PaymentTerm: v.value(paymentTermKeys...),
		VATNumber:   v.value(vatNumberKeys...),
		InvoiceDate: ParseDate(v.value(invoiceDateKeys...)),
		DueDate:     ParseDate(v.value(dueDateKeys...)),
		ReceivedAt:  time.Now().UTC(),
		Bank:        v.bank(),
	}

	if supplier, ok := v.party(supplierBlockLabel...); ok {
		inv.Supplier = supplier
	}
	if name := v.value(supplierNameKeys...); name != "" {
		inv.Supplier.Name = name
	}
	if inv.Supplier.Name == "" {
		inv.Supplier.Name = v.leadingName("bill to")
	}
	if inv.Supplier.TaxID == "" {
		inv.Supplier.TaxID = inv.VATNumber
	}

	if customer, ok := v.party(customerBlockLabel...); ok {
		inv.Customer = customer
	}
	if name := v.value(customerNameKeys...); name != "" {
		inv.Customer.Name = name
	}

	inv.Org = inv.Supplier.Name

	var currency string
	inv.SubTotal, currency = v.amount(subTotalKeys...)
	inv.TaxTotal, _ = v.amount(taxTotalKeys...)
	total, totalCurrency := v.amount(totalKeys...)
	inv.Total = total
	inv.Currency = firstNonEmpty(strings.ToUpper(v.value(currencyKeys...)), totalCurrency, currency)

	for _, t := range v.lineTables() {
		inv.Lines = append(inv.Lines, invoiceLines(t)...)
	}

	return &models.Document{Channel: models.ChannelInvoice, FileName: fileName, Invoice: inv}, nil
}

func invoiceLines(t lineTable) []models.InvoiceLine {
	var (
		codeCol   = t.column([]string{"code", "sku"})
		descCol   = t.column([]string{"description", "item"}, "code")
		qtyCol    = t.column([]string{"qty", "quantity"})
		priceCol  = t.column([]string{"unit", "price", "rate"}, "total", "qty", "vat", "tax")
		vatCol    = t.column([]string{"vat %", "vat%", "tax %", "tax%", "vat rate", "tax rate"})
		amountCol = t.column([]string{"amount", "total", "net"}, "unit", "vat", "tax")
	)

	var lines []models.InvoiceLine
	for _, row := range t.rows {
		if isBlankRow(row) {
			continue
		}
		code, desc := codeAndDescription(cell(row, codeCol), cell(row, descCol))
		if desc == "" {
			continue
		}
		qty, _ := ParseAmount(cell(row, qtyCol))
		price, priceCurrency := ParseAmount(cell(row, priceCol))
		vat, _ := ParseAmount(cell(row, vatCol))
		amount, amountCurrency := ParseAmount(cell(row, amountCol))

		lines = append(lines, models.InvoiceLine{
			ItemCode:          code,
			Description:       desc,
			Quantity:          qty,
			UnitPrice:         price,
			VATPct:            vat,
			Amount:            amount,
			UnitPriceCurrency: firstNonEmpty(priceCurrency, amountCurrency),
		})
	}
	return lines
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
