package extraction

import (
	"strings"
	"time"

	"docrecon/pkg/models"
)

// GenericPurchaseOrder extracts purchase orders with a Supplier/Buyer header,
// PO number and date (labelled or in a key/value table) and a line table.
type GenericPurchaseOrder struct{}

func (GenericPurchaseOrder) Name() string { return "generic-purchase-order" }
func (GenericPurchaseOrder) Channel() models.Channel { return models.ChannelPurchaseOrder }
func (GenericPurchaseOrder) Matches(result *models.AnalyzeResult) bool { return true }

func (GenericPurchaseOrder) Extract(fileName string, result *models.AnalyzeResult) (*models.Document, error) {
	v := newView(result)

	po := &models.PurchaseOrder{
		FileName:     fileName,
		PONumber:     v.identifier(poNumberKeys...),
		PODate:       ParseDate(v.value(poDateKeys...)),
		DeliveryDate: ParseDate(v.value(deliveryDateKeys...)),
		ReceivedAt:   time.Now().UTC(),
		Bank:         v.bank(),
		MatchStatus:  models.MatchPending,
	}

	if supplier, ok := v.party(supplierBlockLabel...); ok {
		po.Supplier.Party = supplier
	}
	if name := v.value(supplierNameKeys...); name != "" {
		po.Supplier.Name = name
	}
	if po.Supplier.TaxID == "" {
		po.Supplier.TaxID = v.value(vatNumberKeys...)
	}
	if customer, ok := v.party(customerBlockLabel...); ok {
		po.Customer = customer
	}
	if name := v.value(customerNameKeys...); name != "" {
		po.Customer.Name = name
	}

	po.Org = po.Supplier.Name

	var currency string
	po.SubTotal, currency = v.amount(subTotalKeys...)
	po.VATValue, _ = v.amount(taxTotalKeys...)
	total, totalCurrency := v.amount(totalKeys...)
	po.TotalValue = total
	po.Currency = firstNonEmpty(strings.ToUpper(v.value(currencyKeys...)), totalCurrency, currency)

	for _, t := range v.lineTables() {
		po.Lines = append(po.Lines, purchaseOrderLines(t)...)
	}

	return &models.Document{Channel: models.ChannelPurchaseOrder, FileName: fileName, PurchaseOrder: po}, nil
}

func purchaseOrderLines(t lineTable) []models.POLine {
	var (
		codeCol   = t.column([]string{"code", "sku"})
		descCol   = t.column([]string{"description", "item"}, "code")
		qtyCol    = t.column([]string{"qty", "quantity"})
		priceCol  = t.column([]string{"unit", "price", "rate"}, "total", "qty", "vat", "tax")
		amountCol = t.column([]string{"amount", "total", "net"}, "unit", "vat", "tax")
	)

	var lines []models.POLine
	for _, row := range t.rows {
		if isBlankRow(row) {
			continue
		}
		code, desc := codeAndDescription(cell(row, codeCol), cell(row, descCol))
		if desc == "" && code == "" {
			continue
		}
		qty, _ := ParseAmount(cell(row, qtyCol))
		price, priceCurrency := ParseAmount(cell(row, priceCol))
		amount, amountCurrency := ParseAmount(cell(row, amountCol))
		if amount.IsZero() {
			amount = qty.Mul(price)
		}

		lines = append(lines, models.POLine{
			ItemCode:          code,
			Description:       desc,
			QuantityOrdered:   qty,
			UnitPrice:         price,
			TotalAmount:       amount,
			UnitPriceCurrency: firstNonEmpty(priceCurrency, amountCurrency),
			LineStatus:        models.LinePending,
		})
	}
	return lines
}
