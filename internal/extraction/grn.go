package extraction

import (
	"time"

	"docrecon/pkg/models"
)

// GenericGRN extracts goods received notes with a Supplier/Receiver header,
// GRN and PO references and an ordered/received quantity table.
type GenericGRN struct{}

func (GenericGRN) Name() string { return "generic-grn" }
func (GenericGRN) Channel() models.Channel { return models.ChannelGRN }
func (GenericGRN) Matches(result *models.AnalyzeResult) bool { return true }

func (GenericGRN) Extract(fileName string, result *models.AnalyzeResult) (*models.Document, error) {
	v := newView(result)

	grn := &models.GRN{
		FileName:   fileName,
		GRNNumber:  v.identifier(grnNumberKeys...),
		PONumber:   v.identifier(poNumberKeys...),
		GRNDate:    ParseDate(v.value(grnDateKeys...)),
		ReceivedAt: time.Now().UTC(),
	}

	if supplier, ok := v.party(supplierBlockLabel...); ok {
		grn.Supplier = supplier
	}
	if name := v.value(supplierNameKeys...); name != "" {
		grn.Supplier.Name = name
	}
	if receiver, ok := v.party(receiverBlockLabel...); ok {
		grn.Customer = receiver
	}
	if name := v.value(customerNameKeys...); name != "" {
		grn.Customer.Name = name
	}

	grn.Org = grn.Supplier.Name

	for _, t := range v.lineTables() {
		grn.Lines = append(grn.Lines, grnLines(t)...)
	}

	return &models.Document{Channel: models.ChannelGRN, FileName: fileName, GRN: grn}, nil
}

func grnLines(t lineTable) []models.GRNLine {
	var (
		codeCol     = t.column([]string{"code", "sku"})
		descCol     = t.column([]string{"description", "item"}, "code")
		orderedCol  = t.column([]string{"ordered"})
		receivedCol = t.column([]string{"received", "delivered", "accepted"})
		priceCol    = t.column([]string{"unit", "price", "rate"}, "total", "qty", "vat", "tax")
		remarksCol  = t.column([]string{"remark", "comment", "condition", "note"})
	)
	if receivedCol < 0 {
		receivedCol = t.column([]string{"qty", "quantity"}, "ordered")
	}

	var lines []models.GRNLine
	for _, row := range t.rows {
		if isBlankRow(row) {
			continue
		}
		code, desc := codeAndDescription(cell(row, codeCol), cell(row, descCol))
		if desc == "" && code == "" {
			continue
		}
		ordered, _ := ParseAmount(cell(row, orderedCol))
		received, _ := ParseAmount(cell(row, receivedCol))
		price, _ := ParseAmount(cell(row, priceCol))

		lines = append(lines, models.GRNLine{
			ItemCode:         code,
			Description:      desc,
			QuantityOrdered:  ordered,
			QuantityReceived: received,
			UnitPrice:        price,
			Remarks:          cell(row, remarksCol),
		})
	}
	return lines
}
