package models

import "github.com/shopspring/decimal"

// Party is a supplier or customer. Parties are keyed by exact Name.
type Party struct {
	ID      int64
	Name    string
	Address string
	Phone   string
	Email   string
	Website string
	TaxID   string // VAT / GSTIN
}

// Supplier is a Party that may carry its own matching policy.
type Supplier struct {
	Party
	Policy *MatchingPolicy // nil when the supplier has no configured policy
}

// BankAccount is keyed by (Name, AccountNumber).
type BankAccount struct {
	ID            int64
	Name          string
	Branch        string
	AccountNumber string
	SortCode      string
	IBAN          string
	BranchCode    string // SWIFT/BIC
	PaymentTerms  string
}

// IsZero reports whether no bank details were extracted.
func (b BankAccount) IsZero() bool {
	return b.Name == "" && b.AccountNumber == "" && b.IBAN == ""
}

// MatchingPolicy drives the tolerances used when reconciling a supplier's purchase orders.
type MatchingPolicy struct {
	Is3WayMatching        bool
	QuantityVariancePct   decimal.Decimal // percent of the ordered quantity
	PriceVarianceAbsolute decimal.Decimal // absolute unit price difference
}
