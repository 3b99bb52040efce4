package extraction

import (
	"regexp"
	"strings"

	"docrecon/pkg/models"
)

// titleScanLines bounds how far down the page a title is looked for.
const titleScanLines = 15

var titlePatterns = []struct {
	kind    models.Channel
	pattern *regexp.Regexp
}{
	{models.ChannelGRN, regexp.MustCompile(`(?i)^(goods\s+rece(ived|ipt)\s+note|goods\s+receipt|grn)$`)},
	{models.ChannelPurchaseOrder, regexp.MustCompile(`(?i)^purchase\s+order$`)},
	{models.ChannelInvoice, regexp.MustCompile(`(?i)^((tax|vat|commercial|sales)\s+)?invoice$`)},
}

// DetectKind looks for a document title among the first lines of the text.
// A title is a line consisting of the document kind alone ("PURCHASE ORDER",
// "Tax Invoice", "Goods Received Note"); labelled references such as
// "PO Number: 100" never count. ok is false when no title is found.
func DetectKind(fullText string) (kind models.Channel, ok bool) {
	lines := strings.Split(fullText, "\n")
	if len(lines) > titleScanLines {
		lines = lines[:titleScanLines]
	}

	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}
		for _, tp := range titlePatterns {
			if tp.pattern.MatchString(line) {
				return tp.kind, true
			}
		}
	}
	return "", false
}
