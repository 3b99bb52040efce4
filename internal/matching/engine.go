package matching

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"docrecon/internal/logger"
	"docrecon/pkg/models"
)

// CycleReport summarises one matching cycle.
type CycleReport struct {
	RunID            string
	StartedAt        time.Time
	Duration         time.Duration
	Candidates       int
	Matched          int
	PartiallyMatched int
	Exceptions       int
	Failed           int
}

// Engine runs matching cycles. At most one cycle runs at a time per Engine.
type Engine struct {
	store    Store
	defaults models.MatchingPolicy
	mu       sync.Mutex
	now      func() time.Time
}

// NewEngine returns an engine that falls back to defaults for suppliers
// without a configured policy.
func NewEngine(store Store, defaults models.MatchingPolicy) *Engine {
	return &Engine{
		store:    store,
		defaults: defaults,
		now:      time.Now,
	}
}

// RunCycle evaluates every candidate purchase order once. A failure on one
// order is logged and counted without stopping the cycle. It returns
// ErrCycleInProgress if another cycle holds the run-lock.
func (e *Engine) RunCycle(ctx context.Context) (CycleReport, error) {
	if !e.mu.TryLock() {
		return CycleReport{}, ErrCycleInProgress
	}
	defer e.mu.Unlock()

	report := CycleReport{
		RunID:     uuid.NewString(),
		StartedAt: e.now(),
	}
	log := logger.WithRunID("matching", report.RunID)

	candidates, err := e.store.CandidatePurchaseOrders(ctx)
	if err != nil {
		return report, fmt.Errorf("load candidate purchase orders: %w", err)
	}
	report.Candidates = len(candidates)

	log.Info().Int("candidates", len(candidates)).Msg("Starting matching cycle")

	for i := range candidates {
		if err := ctx.Err(); err != nil {
			report.Duration = e.now().Sub(report.StartedAt)
			return report, err
		}

		po := &candidates[i]
		result, err := e.evaluate(ctx, po)
		if err == nil {
			err = e.store.ApplyResult(ctx, result)
		}
		if err != nil {
			report.Failed++
			log.Error().
				Err(err).
				Str("org", po.Org).
				Str("po_number", po.PONumber).
				Msg("Failed to reconcile purchase order")
			continue
		}

		switch result.Status {
		case models.MatchMatched:
			report.Matched++
		case models.MatchException:
			report.Exceptions++
		default:
			report.PartiallyMatched++
		}

		log.Debug().
			Str("org", po.Org).
			Str("po_number", po.PONumber).
			Str("status", string(result.Status)).
			Msg("Reconciled purchase order")
	}

	report.Duration = e.now().Sub(report.StartedAt)
	log.Info().
		Int("matched", report.Matched).
		Int("partially_matched", report.PartiallyMatched).
		Int("exceptions", report.Exceptions).
		Int("failed", report.Failed).
		Dur("duration", report.Duration).
		Msg("Matching cycle complete")

	return report, nil
}

// evaluate computes the full result for one purchase order without writing.
func (e *Engine) evaluate(ctx context.Context, po *models.PurchaseOrder) (POResult, error) {
	var supplierPolicy *models.MatchingPolicy
	if po.Supplier.ID != 0 {
		p, err := e.store.SupplierPolicy(ctx, po.Supplier.ID)
		if err != nil {
			return POResult{}, fmt.Errorf("load policy for supplier %q: %w", po.Supplier.Name, err)
		}
		supplierPolicy = p
	}
	policy := ResolvePolicy(supplierPolicy, e.defaults)

	result := POResult{
		PurchaseOrderID: po.ID,
		Org:             po.Org,
		PONumber:        po.PONumber,
		Lines:           make([]LineResult, 0, len(po.Lines)),
	}
	statuses := make([]models.LineStatus, 0, len(po.Lines))

	for _, line := range po.Lines {
		lr := LineResult{POLineID: line.ID, ItemCode: line.ItemCode}

		switch {
		case line.ItemCode == "":
			lr.LineOutcome = LineOutcome{Status: line.LineStatus, Reason: line.ExceptionReason}
			if lr.Status == "" {
				lr.Status = models.LinePending
			}
		default:
			invoices, err := e.store.InvoiceLines(ctx, po.Org, po.PONumber, line.ItemCode)
			if err != nil {
				return POResult{}, fmt.Errorf("load invoice lines for %s: %w", line.ItemCode, err)
			}
			var grns []GRNLineRef
			if policy.Is3WayMatching {
				grns, err = e.store.GRNLines(ctx, po.Org, po.PONumber, line.ItemCode)
				if err != nil {
					return POResult{}, fmt.Errorf("load GRN lines for %s: %w", line.ItemCode, err)
				}
			}
			lr.LineOutcome = ReconcileLine(line, invoices, grns, policy)
		}

		result.Lines = append(result.Lines, lr)
		statuses = append(statuses, lr.Status)
	}

	result.Status = DeriveStatus(statuses)
	result.IsProcessed = result.Status == models.MatchMatched
	return result, nil
}
