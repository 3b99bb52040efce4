package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"docrecon/internal/matching"
	"docrecon/pkg/models"
)

// CandidatePurchaseOrders returns every Pending or PartiallyMatched purchase
// order with its lines, oldest first.
func (r *Repository) CandidatePurchaseOrders(ctx context.Context) ([]models.PurchaseOrder, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT po.id, po.org, po.file_name, po.po_number, COALESCE(po.supplier_id, 0),
		       COALESCE(s.name, ''), po.match_status, po.is_processed, po.archive_uri, po.received_at
		FROM purchase_orders po
		LEFT JOIN suppliers s ON s.id = po.supplier_id
		WHERE po.match_status IN ('Pending', 'PartiallyMatched')
		ORDER BY po.id`)
	if err != nil {
		return nil, fmt.Errorf("query candidate purchase orders: %w", err)
	}
	defer rows.Close()

	var pos []models.PurchaseOrder
	index := make(map[int64]int)
	for rows.Next() {
		var po models.PurchaseOrder
		var status string
		if err := rows.Scan(
			&po.ID, &po.Org, &po.FileName, &po.PONumber, &po.Supplier.ID,
			&po.Supplier.Name, &status, &po.IsProcessed, &po.ArchiveURI, &po.ReceivedAt,
		); err != nil {
			return nil, fmt.Errorf("scan purchase order: %w", err)
		}
		po.MatchStatus = models.MatchStatus(status)
		index[po.ID] = len(pos)
		pos = append(pos, po)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read purchase orders: %w", err)
	}
	if len(pos) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(pos))
	for _, po := range pos {
		ids = append(ids, po.ID)
	}

	lineRows, err := r.pool.Query(ctx, `
		SELECT id, purchase_order_id, item_code, description, quantity_ordered, unit_price,
		       total_amount, unit_price_currency, line_status, exception_reason
		FROM po_lines
		WHERE purchase_order_id = ANY($1)
		ORDER BY purchase_order_id, line_no`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("query purchase order lines: %w", err)
	}
	defer lineRows.Close()

	for lineRows.Next() {
		var l models.POLine
		var poID int64
		var status string
		if err := lineRows.Scan(
			&l.ID, &poID, &l.ItemCode, &l.Description, &l.QuantityOrdered, &l.UnitPrice,
			&l.TotalAmount, &l.UnitPriceCurrency, &status, &l.ExceptionReason,
		); err != nil {
			return nil, fmt.Errorf("scan purchase order line: %w", err)
		}
		l.LineStatus = models.LineStatus(status)
		if i, ok := index[poID]; ok {
			pos[i].Lines = append(pos[i].Lines, l)
		}
	}
	if err := lineRows.Err(); err != nil {
		return nil, fmt.Errorf("read purchase order lines: %w", err)
	}

	return pos, nil
}

// SupplierPolicy returns nil when the supplier has no configured policy.
func (r *Repository) SupplierPolicy(ctx context.Context, supplierID int64) (*models.MatchingPolicy, error) {
	var (
		threeWay *bool
		qtyPct   decimal.NullDecimal
		priceAbs decimal.NullDecimal
	)
	err := r.pool.QueryRow(ctx, `
		SELECT is_3way_matching, qty_variance_pct, price_variance_abs
		FROM suppliers
		WHERE id = $1`,
		supplierID,
	).Scan(&threeWay, &qtyPct, &priceAbs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load policy for supplier %d: %w", supplierID, err)
	}
	if threeWay == nil || !qtyPct.Valid || !priceAbs.Valid {
		return nil, nil
	}

	return &models.MatchingPolicy{
		Is3WayMatching:        *threeWay,
		QuantityVariancePct:   qtyPct.Decimal,
		PriceVarianceAbsolute: priceAbs.Decimal,
	}, nil
}

// InvoiceLines returns the lines with itemCode on invoices of org that
// reference poNumber. Item codes compare case-insensitively.
func (r *Repository) InvoiceLines(ctx context.Context, org, poNumber, itemCode string) ([]matching.InvoiceLineRef, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT il.id, il.invoice_id, i.invoice_no, il.item_code, il.description, il.quantity,
		       il.unit_price, il.vat_pct, il.amount, il.unit_price_currency, il.matched_status
		FROM invoice_lines il
		JOIN invoices i ON i.id = il.invoice_id
		WHERE i.org = $1 AND i.po_number = $2 AND lower(il.item_code) = lower($3)
		ORDER BY il.id`,
		org, poNumber, itemCode,
	)
	if err != nil {
		return nil, fmt.Errorf("query invoice lines for %s/%s: %w", poNumber, itemCode, err)
	}
	defer rows.Close()

	var refs []matching.InvoiceLineRef
	for rows.Next() {
		var ref matching.InvoiceLineRef
		var status string
		l := &ref.Line
		if err := rows.Scan(
			&l.ID, &ref.InvoiceID, &ref.InvoiceNo, &l.ItemCode, &l.Description, &l.Quantity,
			&l.UnitPrice, &l.VATPct, &l.Amount, &l.UnitPriceCurrency, &status,
		); err != nil {
			return nil, fmt.Errorf("scan invoice line: %w", err)
		}
		l.MatchedStatus = models.InvoiceLineStatus(status)
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// GRNLines returns the lines with itemCode on GRNs of org that reference poNumber.
func (r *Repository) GRNLines(ctx context.Context, org, poNumber, itemCode string) ([]matching.GRNLineRef, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT gl.id, gl.grn_id, g.grn_number, gl.item_code, gl.description, gl.quantity_ordered,
		       gl.quantity_received, gl.unit_price, gl.remarks, gl.matched_status
		FROM grn_lines gl
		JOIN grns g ON g.id = gl.grn_id
		WHERE g.org = $1 AND g.po_number = $2 AND lower(gl.item_code) = lower($3)
		ORDER BY gl.id`,
		org, poNumber, itemCode,
	)
	if err != nil {
		return nil, fmt.Errorf("query GRN lines for %s/%s: %w", poNumber, itemCode, err)
	}
	defer rows.Close()

	var refs []matching.GRNLineRef
	for rows.Next() {
		var ref matching.GRNLineRef
		var status string
		l := &ref.Line
		if err := rows.Scan(
			&l.ID, &ref.GRNID, &ref.GRNNumber, &l.ItemCode, &l.Description, &l.QuantityOrdered,
			&l.QuantityReceived, &l.UnitPrice, &l.Remarks, &status,
		); err != nil {
			return nil, fmt.Errorf("scan GRN line: %w", err)
		}
		l.MatchedStatus = models.InvoiceLineStatus(status)
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// ApplyResult writes one evaluated purchase order in a single transaction:
// line statuses, contributing invoice and GRN lines, the headers those lines
// complete, and the order status.
func (r *Repository) ApplyResult(ctx context.Context, result matching.POResult) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var invoiceLineIDs, grnLineIDs []int64
	for _, l := range result.Lines {
		_, err := tx.Exec(ctx, `
			UPDATE po_lines
			SET line_status = $3, exception_reason = $4
			WHERE id = $1 AND purchase_order_id = $2`,
			l.POLineID, result.PurchaseOrderID, string(l.Status), l.Reason,
		)
		if err != nil {
			return fmt.Errorf("update purchase order line %d: %w", l.POLineID, err)
		}
		for _, ref := range l.InvoiceLines {
			invoiceLineIDs = append(invoiceLineIDs, ref.Line.ID)
		}
		for _, ref := range l.GRNLines {
			grnLineIDs = append(grnLineIDs, ref.Line.ID)
		}
	}

	if len(invoiceLineIDs) > 0 {
		if _, err := tx.Exec(ctx, `
			UPDATE invoice_lines SET matched_status = 'Matched' WHERE id = ANY($1)`,
			invoiceLineIDs,
		); err != nil {
			return fmt.Errorf("mark invoice lines matched: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			UPDATE invoices i
			SET is_processed = TRUE, is_approved = TRUE
			WHERE i.id IN (SELECT invoice_id FROM invoice_lines WHERE id = ANY($1))
			  AND NOT EXISTS (
			      SELECT 1 FROM invoice_lines il
			      WHERE il.invoice_id = i.id AND il.matched_status <> 'Matched')`,
			invoiceLineIDs,
		); err != nil {
			return fmt.Errorf("complete invoices: %w", err)
		}
	}

	if len(grnLineIDs) > 0 {
		if _, err := tx.Exec(ctx, `
			UPDATE grn_lines SET matched_status = 'Matched' WHERE id = ANY($1)`,
			grnLineIDs,
		); err != nil {
			return fmt.Errorf("mark GRN lines matched: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			UPDATE grns g
			SET is_processed = TRUE
			WHERE g.id IN (SELECT grn_id FROM grn_lines WHERE id = ANY($1))
			  AND NOT EXISTS (
			      SELECT 1 FROM grn_lines gl
			      WHERE gl.grn_id = g.id AND gl.matched_status <> 'Matched')`,
			grnLineIDs,
		); err != nil {
			return fmt.Errorf("complete GRNs: %w", err)
		}
	}

	tag, err := tx.Exec(ctx, `
		UPDATE purchase_orders
		SET match_status = $2, is_processed = is_processed OR $3
		WHERE id = $1`,
		result.PurchaseOrderID, string(result.Status), result.IsProcessed,
	)
	if err != nil {
		return fmt.Errorf("update purchase order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("purchase order %d not found", result.PurchaseOrderID)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit purchase order %s: %w", result.PONumber, err)
	}
	return nil
}

// ExceptionLines returns every purchase order line currently in Exception.
func (r *Repository) ExceptionLines(ctx context.Context) ([]models.ExceptionLine, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT po.org, po.po_number, l.item_code, l.line_status, COALESCE(l.exception_reason, '')
		FROM po_lines l
		JOIN purchase_orders po ON po.id = l.purchase_order_id
		WHERE l.line_status = 'Exception'
		ORDER BY po.org, po.po_number, l.line_no`)
	if err != nil {
		return nil, fmt.Errorf("query exception lines: %w", err)
	}
	defer rows.Close()

	var lines []models.ExceptionLine
	for rows.Next() {
		var l models.ExceptionLine
		var status string
		if err := rows.Scan(&l.Org, &l.PONumber, &l.ItemCode, &status, &l.Reason); err != nil {
			return nil, fmt.Errorf("scan exception line: %w", err)
		}
		l.Status = models.LineStatus(status)
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

var _ matching.Store = (*Repository)(nil)
