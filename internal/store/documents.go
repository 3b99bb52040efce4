package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"docrecon/pkg/models"
)

// Upsert stores a new document with its parties, bank and lines in one
// transaction and returns the header ID. It returns ErrDuplicate, and writes
// nothing, when a document with the same (org, number) already exists.
func (r *Repository) Upsert(ctx context.Context, doc *models.Document) (int64, error) {
	if doc == nil {
		return 0, fmt.Errorf("upsert: document is nil")
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var id int64
	switch {
	case doc.Invoice != nil:
		id, err = insertInvoice(ctx, tx, doc.Invoice)
	case doc.PurchaseOrder != nil:
		id, err = insertPurchaseOrder(ctx, tx, doc.PurchaseOrder)
	case doc.GRN != nil:
		id, err = insertGRN(ctx, tx, doc.GRN)
	default:
		return 0, fmt.Errorf("upsert %s: document has no content", doc.FileName)
	}
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			return 0, err
		}
		return 0, fmt.Errorf("upsert %s %s/%s: %w", doc.Channel, doc.Org(), doc.Number(), err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit %s %s/%s: %w", doc.Channel, doc.Org(), doc.Number(), err)
	}

	r.log.Info().
		Str("channel", string(doc.Channel)).
		Str("org", doc.Org()).
		Str("number", doc.Number()).
		Int64("id", id).
		Msg("Stored document")
	return id, nil
}

func duplicateError(kind, org, number string) error {
	return fmt.Errorf("%w: %s %s/%s", ErrDuplicate, kind, org, number)
}

func exists(ctx context.Context, tx pgx.Tx, query, org, number string) (bool, error) {
	var found bool
	if err := tx.QueryRow(ctx, query, org, number).Scan(&found); err != nil {
		return false, fmt.Errorf("identity lookup: %w", err)
	}
	return found, nil
}

// getOrInsertParty returns the ID of the party with p.Name in table,
// inserting it first when missing. An unnamed party yields nil.
func getOrInsertParty(ctx context.Context, tx pgx.Tx, table string, p models.Party) (*int64, error) {
	if p.Name == "" {
		return nil, nil
	}

	var id int64
	err := tx.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO %s (name, address, phone, email, website, tax_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`, table),
		p.Name, p.Address, p.Phone, p.Email, p.Website, p.TaxID,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("get or insert %s %q: %w", table, p.Name, err)
	}
	return &id, nil
}

func getOrInsertBank(ctx context.Context, tx pgx.Tx, b models.BankAccount) (*int64, error) {
	if b.IsZero() {
		return nil, nil
	}

	var id int64
	err := tx.QueryRow(ctx, `
		INSERT INTO banks (name, branch, account_number, sort_code, iban, branch_code, payment_terms)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (name, account_number) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`,
		b.Name, b.Branch, b.AccountNumber, b.SortCode, b.IBAN, b.BranchCode, b.PaymentTerms,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("get or insert bank %q: %w", b.Name, err)
	}
	return &id, nil
}

func receivedAt(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}

func insertInvoice(ctx context.Context, tx pgx.Tx, inv *models.Invoice) (int64, error) {
	dup, err := exists(ctx, tx,
		`SELECT EXISTS (SELECT 1 FROM invoices WHERE org = $1 AND invoice_no = $2)`,
		inv.Org, inv.InvoiceNo)
	if err != nil {
		return 0, err
	}
	if dup {
		return 0, duplicateError("invoice", inv.Org, inv.InvoiceNo)
	}

	supplierID, err := getOrInsertParty(ctx, tx, "suppliers", inv.Supplier)
	if err != nil {
		return 0, err
	}
	customerID, err := getOrInsertParty(ctx, tx, "customers", inv.Customer)
	if err != nil {
		return 0, err
	}
	bankID, err := getOrInsertBank(ctx, tx, inv.Bank)
	if err != nil {
		return 0, err
	}

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO invoices (org, file_name, invoice_no, invoice_date, due_date, po_number,
		                      grn_number, payment_term, vat_number, supplier_id, customer_id, bank_id,
		                      sub_total, tax_total, total, currency, archive_uri, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (org, invoice_no) DO NOTHING
		RETURNING id`,
		inv.Org, inv.FileName, inv.InvoiceNo, inv.InvoiceDate, inv.DueDate, inv.PONumber,
		inv.GRNNumber, inv.PaymentTerm, inv.VATNumber, supplierID, customerID, bankID,
		inv.SubTotal, inv.TaxTotal, inv.Total, inv.Currency, inv.ArchiveURI, receivedAt(inv.ReceivedAt),
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, duplicateError("invoice", inv.Org, inv.InvoiceNo)
	}
	if err != nil {
		return 0, fmt.Errorf("insert invoice header: %w", err)
	}

	for i, l := range inv.Lines {
		_, err := tx.Exec(ctx, `
			INSERT INTO invoice_lines (invoice_id, line_no, item_code, description, quantity,
			                           unit_price, vat_pct, amount, unit_price_currency, matched_status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			id, i+1, l.ItemCode, l.Description, l.Quantity,
			l.UnitPrice, l.VATPct, l.Amount, l.UnitPriceCurrency, string(models.InvoiceLineUnmatched),
		)
		if err != nil {
			return 0, fmt.Errorf("insert invoice line %d: %w", i+1, err)
		}
	}

	inv.ID = id
	return id, nil
}

func insertPurchaseOrder(ctx context.Context, tx pgx.Tx, po *models.PurchaseOrder) (int64, error) {
	dup, err := exists(ctx, tx,
		`SELECT EXISTS (SELECT 1 FROM purchase_orders WHERE org = $1 AND po_number = $2)`,
		po.Org, po.PONumber)
	if err != nil {
		return 0, err
	}
	if dup {
		return 0, duplicateError("purchase order", po.Org, po.PONumber)
	}

	supplierID, err := getOrInsertParty(ctx, tx, "suppliers", po.Supplier.Party)
	if err != nil {
		return 0, err
	}
	customerID, err := getOrInsertParty(ctx, tx, "customers", po.Customer)
	if err != nil {
		return 0, err
	}
	bankID, err := getOrInsertBank(ctx, tx, po.Bank)
	if err != nil {
		return 0, err
	}

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO purchase_orders (org, file_name, po_number, po_date, delivery_date,
		                             supplier_id, customer_id, bank_id, sub_total, vat_value,
		                             total_value, currency, match_status, archive_uri, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (org, po_number) DO NOTHING
		RETURNING id`,
		po.Org, po.FileName, po.PONumber, po.PODate, po.DeliveryDate,
		supplierID, customerID, bankID, po.SubTotal, po.VATValue,
		po.TotalValue, po.Currency, string(models.MatchPending), po.ArchiveURI, receivedAt(po.ReceivedAt),
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, duplicateError("purchase order", po.Org, po.PONumber)
	}
	if err != nil {
		return 0, fmt.Errorf("insert purchase order header: %w", err)
	}

	for i, l := range po.Lines {
		_, err := tx.Exec(ctx, `
			INSERT INTO po_lines (purchase_order_id, line_no, item_code, description, quantity_ordered,
			                      unit_price, total_amount, unit_price_currency, line_status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			id, i+1, l.ItemCode, l.Description, l.QuantityOrdered,
			l.UnitPrice, l.TotalAmount, l.UnitPriceCurrency, string(models.LinePending),
		)
		if err != nil {
			return 0, fmt.Errorf("insert purchase order line %d: %w", i+1, err)
		}
	}

	po.ID = id
	return id, nil
}

func insertGRN(ctx context.Context, tx pgx.Tx, grn *models.GRN) (int64, error) {
	dup, err := exists(ctx, tx,
		`SELECT EXISTS (SELECT 1 FROM grns WHERE org = $1 AND grn_number = $2)`,
		grn.Org, grn.GRNNumber)
	if err != nil {
		return 0, err
	}
	if dup {
		return 0, duplicateError("GRN", grn.Org, grn.GRNNumber)
	}

	supplierID, err := getOrInsertParty(ctx, tx, "suppliers", grn.Supplier)
	if err != nil {
		return 0, err
	}
	customerID, err := getOrInsertParty(ctx, tx, "customers", grn.Customer)
	if err != nil {
		return 0, err
	}

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO grns (org, file_name, grn_number, grn_date, po_number,
		                  supplier_id, customer_id, archive_uri, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (org, grn_number) DO NOTHING
		RETURNING id`,
		grn.Org, grn.FileName, grn.GRNNumber, grn.GRNDate, grn.PONumber,
		supplierID, customerID, grn.ArchiveURI, receivedAt(grn.ReceivedAt),
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, duplicateError("GRN", grn.Org, grn.GRNNumber)
	}
	if err != nil {
		return 0, fmt.Errorf("insert GRN header: %w", err)
	}

	for i, l := range grn.Lines {
		_, err := tx.Exec(ctx, `
			INSERT INTO grn_lines (grn_id, line_no, item_code, description, quantity_ordered,
			                       quantity_received, unit_price, remarks, matched_status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			id, i+1, l.ItemCode, l.Description, l.QuantityOrdered,
			l.QuantityReceived, l.UnitPrice, l.Remarks, string(models.InvoiceLineUnmatched),
		)
		if err != nil {
			return 0, fmt.Errorf("insert GRN line %d: %w", i+1, err)
		}
	}

	grn.ID = id
	return id, nil
}

// headerTable returns the header table of channel and its number column.
func headerTable(channel models.Channel) (table, numberColumn string, err error) {
	switch channel {
	case models.ChannelInvoice:
		return "invoices", "invoice_no", nil
	case models.ChannelPurchaseOrder:
		return "purchase_orders", "po_number", nil
	case models.ChannelGRN:
		return "grns", "grn_number", nil
	default:
		return "", "", fmt.Errorf("unknown channel %q", channel)
	}
}

// SetArchiveURI records where the source file of a stored document was archived.
func (r *Repository) SetArchiveURI(ctx context.Context, channel models.Channel, id int64, uri string) error {
	table, _, err := headerTable(channel)
	if err != nil {
		return fmt.Errorf("set archive uri: %w", err)
	}

	tag, err := r.pool.Exec(ctx, fmt.Sprintf(`UPDATE %s SET archive_uri = $2 WHERE id = $1`, table), id, uri)
	if err != nil {
		return fmt.Errorf("set archive uri on %s %d: %w", table, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set archive uri: %s %d not found", table, id)
	}
	return nil
}

// UnarchivedDocument finds a stored document with the identity (org, number)
// that came from fileName and has no archive location yet. That is a file
// whose archive step failed after the document was committed.
func (r *Repository) UnarchivedDocument(ctx context.Context, channel models.Channel, org, number, fileName string) (int64, bool, error) {
	table, numberColumn, err := headerTable(channel)
	if err != nil {
		return 0, false, fmt.Errorf("unarchived document: %w", err)
	}

	var id int64
	err = r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT id FROM %s
		WHERE org = $1 AND %s = $2 AND file_name = $3 AND archive_uri = ''`, table, numberColumn),
		org, number, fileName,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("look up unarchived %s %s/%s: %w", table, org, number, err)
	}
	return id, true, nil
}

// RecordFileAudit stores the audit row of a file that was not persisted.
func (r *Repository) RecordFileAudit(ctx context.Context, audit models.FileAudit) error {
	createdAt := audit.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO file_audit (file_name, channel, reason_code, archive_uri, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		audit.FileName, string(audit.Channel), audit.ReasonCode, audit.ArchiveURI, createdAt,
	)
	if err != nil {
		return fmt.Errorf("record file audit for %s: %w", audit.FileName, err)
	}
	return nil
}

// SetSupplierPolicy configures the matching policy of a supplier, creating
// the supplier when it has not been seen on a document yet.
func (r *Repository) SetSupplierPolicy(ctx context.Context, supplierName string, policy models.MatchingPolicy) error {
	if supplierName == "" {
		return fmt.Errorf("set supplier policy: supplier name is empty")
	}
	if policy.QuantityVariancePct.IsNegative() || policy.PriceVarianceAbsolute.IsNegative() {
		return fmt.Errorf("set supplier policy: tolerances must not be negative")
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO suppliers (name, is_3way_matching, qty_variance_pct, price_variance_abs)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE
		SET is_3way_matching   = EXCLUDED.is_3way_matching,
		    qty_variance_pct   = EXCLUDED.qty_variance_pct,
		    price_variance_abs = EXCLUDED.price_variance_abs`,
		supplierName, policy.Is3WayMatching, policy.QuantityVariancePct, policy.PriceVarianceAbsolute,
	)
	if err != nil {
		return fmt.Errorf("set policy for supplier %q: %w", supplierName, err)
	}

	r.log.Info().
		Str("supplier", supplierName).
		Bool("three_way", policy.Is3WayMatching).
		Str("qty_variance_pct", policy.QuantityVariancePct.String()).
		Str("price_variance_abs", policy.PriceVarianceAbsolute.String()).
		Msg("Supplier matching policy updated")
	return nil
}
