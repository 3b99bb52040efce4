package extraction

import (
	"regexp"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"docrecon/pkg/models"
)

var (
	emailPattern   = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern   = regexp.MustCompile(`(?i)(?:tel|phone|mobile)[.:\s]*(\+?\d[\d\s\-()]{6,}\d)`)
	websitePattern = regexp.MustCompile(`(?i)\b((?:https?://)?www\.[a-z0-9.\-]+\.[a-z]{2,}\S*)`)
	vatPattern     = regexp.MustCompile(`(?i)(?:vat|gst|tax)\s*(?:reg(?:istration)?\.?\s*)?(?:no\.?|number|id|#)?\s*[:\s]\s*([A-Z]{0,3}[0-9][A-Z0-9 ]{4,})`)

	bankNamePattern  = regexp.MustCompile(`(?im)bank(?:\s*name)?\s*:[ \t]*([A-Za-z&'.\- ]+?)[ \t]*(?:sort|account|iban|swift|$)`)
	branchPattern    = regexp.MustCompile(`(?im)branch\s*(?:name)?\s*:[ \t]*([^\n]+?)[ \t]*$`)
	sortCodePattern  = regexp.MustCompile(`(?i)sort\s*code\s*[:\s]\s*(\d{2}[\- ]?\d{2}[\- ]?\d{2})`)
	accountPattern   = regexp.MustCompile(`(?i)account\s*(?:number|no\.?)?\s*[:\s]\s*(\d{6,})`)
	ibanPattern      = regexp.MustCompile(`(?i)iban\s*[:\s]\s*([A-Z]{2}\d{2}(?:[ ]?[A-Z0-9]{4}){2,7}(?:[ ]?[A-Z0-9]{1,3})?)`)
	swiftPattern     = regexp.MustCompile(`(?i)\b(?:swift(?:/bic)?|bic)\s*(?:code)?\s*[:\s]\s*([A-Z]{6}[A-Z0-9]{2}(?:[A-Z0-9]{3})?)\b`)
	payTermsPattern  = regexp.MustCompile(`(?is)please\s+make\s+payment\s*(.+?)(?:\.\s*thank\s+you|$)`)
	valueCutPattern  = regexp.MustCompile(`\s{2,}|\t|\s+[A-Za-z][A-Za-z .]{0,20}:\s`)
	sectionHeading   = regexp.MustCompile(`(?i)^(bill\s*to|ship\s*to|deliver\s*to|invoice\s*to|buyer|supplier|vendor|receiver|received\s*by|customer|from|line|item|description|qty|sub\s*total|total|bank|po\s*(no|number)|invoice\s*(no|number|date)|grn\s*(no|number|date)|payment|notes?)\b`)
	partyDetailLabel = regexp.MustCompile(`(?i)^(tel|phone|mobile|fax|email|e-mail|web|website|vat|gst|company|reg)`)
)

// Field keys: snake_case keys are Document AI entity types, spaced keys are
// printed labels (matched against form fields, key/value tables and text).
var (
	invoiceNumberKeys  = []string{"invoice_id", "invoice no", "invoice number", "invoice num"}
	poNumberKeys       = []string{"purchase_order", "po no", "po number", "purchase order no", "purchase order number", "related po no", "your order no", "order no", "order number"}
	grnNumberKeys      = []string{"grn no", "grn number", "grn ref", "goods received note no", "goods receipt no", "receipt no"}
	invoiceDateKeys    = []string{"invoice_date", "invoice date", "tax point", "date"}
	dueDateKeys        = []string{"due_date", "due date", "payment due"}
	poDateKeys         = []string{"po date", "order date", "purchase order date", "date"}
	deliveryDateKeys   = []string{"delivery_date", "delivery date", "required by", "deliver by"}
	grnDateKeys        = []string{"grn date", "received date", "receipt date", "date received", "date"}
	paymentTermKeys    = []string{"payment_terms", "payment terms", "terms"}
	vatNumberKeys      = []string{"supplier_tax_id", "vat no", "vat number", "vat reg no", "vat registration no"}
	currencyKeys       = []string{"currency"}
	subTotalKeys       = []string{"net_amount", "subtotal", "sub total", "net total", "total net"}
	taxTotalKeys       = []string{"total_tax_amount", "vat total", "total vat", "vat amount", "tax total", "total tax"}
	totalKeys          = []string{"total_amount", "total amount due", "amount due", "grand total", "invoice total", "total"}
	supplierNameKeys   = []string{"supplier_name", "vendor_name"}
	customerNameKeys   = []string{"receiver_name", "customer_name", "buyer_name"}
	supplierBlockLabel = []string{"supplier", "vendor", "from"}
	customerBlockLabel = []string{"bill to", "invoice to", "buyer", "customer"}
	receiverBlockLabel = []string{"receiver", "received by", "deliver to", "buyer", "customer"}
)

// view bundles the lookups every generic strategy performs over an analysis result.
type view struct {
	result *models.AnalyzeResult
	lines  []string
	kv     map[string]string
}

func newView(result *models.AnalyzeResult) view {
	v := view{result: result, kv: make(map[string]string)}
	for _, line := range strings.Split(result.FullText, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			v.lines = append(v.lines, line)
		}
	}
	for _, t := range result.Tables {
		v.collectKeyValues(t.Rows())
	}
	return v
}

// collectKeyValues reads header information laid out as tables: two column
// label/value rows, or a header row of labels over a single value row.
func (v view) collectKeyValues(rows [][]string) {
	if len(rows) == 0 || isLineTable(rows[0]) {
		return
	}
	if len(rows) == 2 {
		for i, label := range rows[0] {
			if i < len(rows[1]) {
				v.putKV(label, rows[1][i])
			}
		}
	}
	for _, row := range rows {
		if len(row) == 2 {
			v.putKV(row[0], row[1])
		}
	}
}

func (v view) putKV(label, value string) {
	label = normalizeLabel(label)
	value = strings.TrimSpace(value)
	if label == "" || value == "" {
		return
	}
	if _, ok := v.kv[label]; !ok {
		v.kv[label] = value
	}
}

func normalizeLabel(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	label = strings.TrimRight(label, ":.# ")
	return strings.Join(strings.Fields(label), " ")
}

// value returns the first key found, trying analyzer fields, key/value
// tables and finally "Label: value" lines of the full text.
func (v view) value(keys ...string) string {
	for _, k := range keys {
		if s := v.result.Field(k); s != "" {
			return s
		}
		if s, ok := v.kv[k]; ok {
			return s
		}
	}
	for _, k := range keys {
		if strings.Contains(k, "_") {
			continue
		}
		if s := labelled(v.result.FullText, k); s != "" {
			return s
		}
	}
	return ""
}

// identifier returns the first token of a value; document numbers never contain spaces.
func (v view) identifier(keys ...string) string {
	return firstToken(v.value(keys...))
}

func (v view) amount(keys ...string) (decimal.Decimal, string) {
	return ParseAmount(v.value(keys...))
}

var patternCache sync.Map

// cachedPattern compiles expr once per process.
func cachedPattern(expr string) *regexp.Regexp {
	if re, ok := patternCache.Load(expr); ok {
		return re.(*regexp.Regexp)
	}
	re, _ := patternCache.LoadOrStore(expr, regexp.MustCompile(expr))
	return re.(*regexp.Regexp)
}

// labelPattern matches a label at the start of a line or of a column, that
// is after a tab or a run of spaces.
func labelPattern(label string) *regexp.Regexp {
	words := strings.Fields(label)
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	return cachedPattern(`(?im)(?:^|[ \t]{2,}|\t)[ \t]*` + strings.Join(words, `\.?[ \t]*`) + `\b\.?[ \t]*[:#]?[ \t]*([^\n]+)`)
}

// headingPattern matches a line that starts with label, optionally followed
// by a colon and the rest of the line.
func headingPattern(label string) *regexp.Regexp {
	return cachedPattern(`(?i)^` + strings.ReplaceAll(regexp.QuoteMeta(label), " ", `\s*`) + `\b\s*:?\s*(.*)$`)
}

// labelled finds "Label: value" on a single line and returns the value up to
// the next label or column gap.
func labelled(text, label string) string {
	m := labelPattern(label).FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	value := strings.TrimLeft(m[1], ":# \t")
	if loc := valueCutPattern.FindStringIndex(value); loc != nil {
		value = value[:loc[0]]
	}
	return strings.TrimSpace(strings.TrimRight(strings.TrimSpace(value), ",;"))
}

func firstToken(s string) string {
	if f := strings.Fields(s); len(f) > 0 {
		return strings.TrimRight(f[0], ",;.")
	}
	return ""
}

// party reads the block that follows one of labels: the name on the label
// line (or the next line), then address lines and contact details until the
// next section heading.
func (v view) party(labels ...string) (models.Party, bool) {
	for _, label := range labels {
		re := headingPattern(label)
		for i, line := range v.lines {
			m := re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			block := v.lines[i+1:]
			if len(block) > 8 {
				block = block[:8]
			}
			name := strings.TrimSpace(m[1])
			if name == "" {
				if len(block) == 0 {
					continue
				}
				name, block = block[0], block[1:]
			}
			return parseParty(name, block), true
		}
	}
	return models.Party{}, false
}

func parseParty(name string, block []string) models.Party {
	p := models.Party{Name: strings.TrimSpace(name)}
	var address []string
	for _, line := range block {
		if sectionHeading.MatchString(line) {
			break
		}
		switch {
		case emailPattern.MatchString(line):
			if p.Email == "" {
				p.Email = emailPattern.FindString(line)
			}
		case phonePattern.MatchString(line):
			if p.Phone == "" {
				p.Phone = strings.TrimSpace(phonePattern.FindStringSubmatch(line)[1])
			}
		case vatPattern.MatchString(line):
			if p.TaxID == "" {
				p.TaxID = strings.TrimSpace(vatPattern.FindStringSubmatch(line)[1])
			}
		case websitePattern.MatchString(line):
			if p.Website == "" {
				p.Website = websitePattern.FindString(line)
			}
		case partyDetailLabel.MatchString(line):
		default:
			address = append(address, line)
		}
	}
	p.Address = strings.Join(address, ", ")
	return p
}

// leadingName returns the first line before stopLabel that is not a title,
// used when a document prints its issuer without a label.
func (v view) leadingName(stopLabel string) string {
	stop := headingPattern(stopLabel)
	for _, line := range v.lines {
		if stop.MatchString(line) {
			break
		}
		if _, isTitle := DetectKind(line); isTitle {
			continue
		}
		if strings.Contains(line, ":") || emailPattern.MatchString(line) {
			continue
		}
		return line
	}
	return ""
}

func (v view) bank() models.BankAccount {
	text := v.result.FullText
	b := models.BankAccount{
		Name:          submatch(bankNamePattern, text),
		Branch:        submatch(branchPattern, text),
		AccountNumber: submatch(accountPattern, text),
		SortCode:      submatch(sortCodePattern, text),
		IBAN:          strings.ReplaceAll(submatch(ibanPattern, text), " ", ""),
		BranchCode:    submatch(swiftPattern, text),
		PaymentTerms:  strings.Join(strings.Fields(submatch(payTermsPattern, text)), " "),
	}
	if b.IBAN == "" {
		b.IBAN = strings.ReplaceAll(v.result.Field("supplier_iban"), " ", "")
	}
	return b
}

func submatch(re *regexp.Regexp, text string) string {
	if m := re.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// lineTable is a detected line item table with resolved column positions.
type lineTable struct {
	header []string
	rows   [][]string
}

func isLineTable(header []string) bool {
	hasDesc, hasQty := false, false
	for _, h := range header {
		h = strings.ToLower(h)
		hasDesc = hasDesc || strings.Contains(h, "description") || strings.Contains(h, "item")
		hasQty = hasQty || strings.Contains(h, "qty") || strings.Contains(h, "quantity") || strings.Contains(h, "received")
	}
	return hasDesc && hasQty
}

// lineTables returns every table whose header row names a description and a quantity.
func (v view) lineTables() []lineTable {
	var tables []lineTable
	for _, t := range v.result.Tables {
		rows := t.Rows()
		if len(rows) < 2 || !isLineTable(rows[0]) {
			continue
		}
		header := make([]string, len(rows[0]))
		for i, h := range rows[0] {
			header[i] = strings.ToLower(strings.Join(strings.Fields(h), " "))
		}
		tables = append(tables, lineTable{header: header, rows: rows[1:]})
	}
	return tables
}

// column returns the index of the first header containing any of include and
// none of exclude, or -1.
func (t lineTable) column(include []string, exclude ...string) int {
	for i, h := range t.header {
		if containsAny(h, exclude...) {
			continue
		}
		if containsAny(h, include...) {
			return i
		}
	}
	return -1
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// codeAndDescription resolves the item code, falling back to a code embedded
// at the start of the description.
func codeAndDescription(code, desc string) (string, string) {
	if code != "" {
		return code, desc
	}
	return ItemCodeFromDescription(desc)
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
