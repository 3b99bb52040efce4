package store

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrecon/internal/matching"
	"docrecon/pkg/models"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	_ = godotenv.Load("../../.env")

	// Integration tests truncate every table, so they only run against a
	// dedicated database.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	pool, err := NewPool(ctx, dbURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, Migrate(ctx, pool))
	require.NoError(t, Migrate(ctx, pool), "schema must be re-appliable")

	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE file_audit, grn_lines, grns, invoice_lines, invoices,
		               po_lines, purchase_orders, banks, customers, suppliers
		RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	return pool
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func acmeInvoice(org, number string) *models.Document {
	return &models.Document{
		Channel:  models.ChannelInvoice,
		FileName: number + ".pdf",
		Invoice: &models.Invoice{
			Org:       org,
			InvoiceNo: number,
			PONumber:  "PO-100",
			Supplier:  models.Party{Name: org},
			Customer:  models.Party{Name: "Buyer Ltd"},
			Bank:      models.BankAccount{Name: "First Bank", AccountNumber: "12345678"},
			Total:     d("50.00"),
			Currency:  "GBP",
			Lines: []models.InvoiceLine{
				{ItemCode: "X1", Quantity: d("10"), UnitPrice: d("5.00"), Amount: d("50.00")},
			},
		},
	}
}

func acmePurchaseOrder() *models.Document {
	return &models.Document{
		Channel:  models.ChannelPurchaseOrder,
		FileName: "po-100.pdf",
		PurchaseOrder: &models.PurchaseOrder{
			Org:      "Acme",
			PONumber: "PO-100",
			Supplier: models.Supplier{Party: models.Party{Name: "Acme"}},
			Lines: []models.POLine{
				{ItemCode: "X1", QuantityOrdered: d("10"), UnitPrice: d("5.00"), TotalAmount: d("50.00")},
			},
		},
	}
}

func TestUpsertDeduplicates(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewRepository(pool)

	id, err := repo.Upsert(ctx, acmeInvoice("Acme", "INV-1"))
	require.NoError(t, err)
	assert.NotZero(t, id)

	again := acmeInvoice("Acme", "INV-1")
	again.Invoice.Total = d("999")
	_, err = repo.Upsert(ctx, again)
	assert.True(t, errors.Is(err, ErrDuplicate))

	// Same number, different org.
	otherID, err := repo.Upsert(ctx, acmeInvoice("Globex", "INV-1"))
	require.NoError(t, err)
	assert.NotEqual(t, id, otherID)

	var count int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM invoices WHERE invoice_no = 'INV-1'`).Scan(&count))
	assert.Equal(t, 2, count)

	var total decimal.Decimal
	require.NoError(t, pool.QueryRow(ctx, `SELECT total FROM invoices WHERE id = $1`, id).Scan(&total))
	assert.True(t, total.Equal(d("50")), "duplicate must not overwrite the first record")

	var banks, customers int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM banks`).Scan(&banks))
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM customers`).Scan(&customers))
	assert.Equal(t, 1, banks)
	assert.Equal(t, 1, customers)
}

func TestArchiveURIAndAudit(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewRepository(pool)

	id, err := repo.Upsert(ctx, acmePurchaseOrder())
	require.NoError(t, err)
	require.NoError(t, repo.SetArchiveURI(ctx, models.ChannelPurchaseOrder, id, "file:///archive/po.pdf"))
	assert.Error(t, repo.SetArchiveURI(ctx, models.ChannelGRN, id, "file:///nowhere"))

	require.NoError(t, repo.RecordFileAudit(ctx, models.FileAudit{
		FileName:   "scan.png",
		Channel:    models.ChannelInvoice,
		ReasonCode: models.ReasonNotPDF,
		ArchiveURI: "file:///archive/invoice/invalid/scan.png",
	}))

	var reason string
	require.NoError(t, pool.QueryRow(ctx, `SELECT reason_code FROM file_audit`).Scan(&reason))
	assert.Equal(t, models.ReasonNotPDF, reason)
}

func TestMatchingRoundTrip(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewRepository(pool)

	_, err := repo.Upsert(ctx, acmePurchaseOrder())
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, acmeInvoice("Acme", "INV-1"))
	require.NoError(t, err)

	require.NoError(t, repo.SetSupplierPolicy(ctx, "Acme", models.MatchingPolicy{
		QuantityVariancePct:   d("5"),
		PriceVarianceAbsolute: d("0.50"),
	}))

	engine := matching.NewEngine(repo, models.MatchingPolicy{Is3WayMatching: true})
	report, err := engine.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Matched)

	var poStatus string
	var poProcessed, invProcessed, invApproved bool
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT match_status, is_processed FROM purchase_orders WHERE po_number = 'PO-100'`,
	).Scan(&poStatus, &poProcessed))
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT is_processed, is_approved FROM invoices WHERE invoice_no = 'INV-1'`,
	).Scan(&invProcessed, &invApproved))

	assert.Equal(t, string(models.MatchMatched), poStatus)
	assert.True(t, poProcessed)
	assert.True(t, invProcessed)
	assert.True(t, invApproved)

	candidates, err := repo.CandidatePurchaseOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, candidates)

	exceptions, err := repo.ExceptionLines(ctx)
	require.NoError(t, err)
	assert.Empty(t, exceptions)
}

func TestSupplierPolicyUnconfigured(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewRepository(pool)

	_, err := repo.Upsert(ctx, acmePurchaseOrder())
	require.NoError(t, err)

	pos, err := repo.CandidatePurchaseOrders(ctx)
	require.NoError(t, err)
	require.Len(t, pos, 1)
	require.Len(t, pos[0].Lines, 1)

	policy, err := repo.SupplierPolicy(ctx, pos[0].Supplier.ID)
	require.NoError(t, err)
	assert.Nil(t, policy)

	assert.Error(t, repo.SetSupplierPolicy(ctx, "Acme", models.MatchingPolicy{QuantityVariancePct: d("-1")}))
}

func TestUnarchivedDocument(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewRepository(pool)

	doc := acmeInvoice("Acme", "INV-1")
	doc.Invoice.FileName = doc.FileName
	id, err := repo.Upsert(ctx, doc)
	require.NoError(t, err)

	got, ok, err := repo.UnarchivedDocument(ctx, models.ChannelInvoice, "Acme", "INV-1", "INV-1.pdf")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, id, got)

	_, ok, err = repo.UnarchivedDocument(ctx, models.ChannelInvoice, "Acme", "INV-1", "other.pdf")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.SetArchiveURI(ctx, models.ChannelInvoice, id, "file:///archive/inv.pdf"))
	_, ok, err = repo.UnarchivedDocument(ctx, models.ChannelInvoice, "Acme", "INV-1", "INV-1.pdf")
	require.NoError(t, err)
	assert.False(t, ok)
}
