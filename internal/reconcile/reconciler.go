// Package reconcile compares the local property mirror with the ledger contract.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/rentchain-properties/pkg/db/models"
	"github.com/angelmondragon/rentchain-properties/pkg/ledger"
	"github.com/angelmondragon/rentchain-properties/pkg/logger"
	"github.com/angelmondragon/rentchain-properties/pkg/metrics"
)

const (
	JobName = "ledger-reconcile"

	defaultBatchSize    = 100
	defaultPendingGrace = 30 * time.Minute
	maxLedgerFailures   = 5
)

// Drifted field labels.
const (
	FieldRent      = "rent_amount"
	FieldDeposit   = "security_deposit"
	FieldAvailable = "is_available"
	FieldActive    = "is_active"
	FieldMissing   = "missing"
)

type propertyStore interface {
	ListSynced(ctx context.Context, afterLedgerID int64, limit int) ([]models.Property, error)
	MarkSyncFailed(ctx context.Context, id uuid.UUID) error
	DeleteStalePending(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)
}

type ledgerReader interface {
	GetProperty(ctx context.Context, propertyID int64) (*ledger.Property, error)
	PropertyCount(ctx context.Context) (int64, error)
}

type Params struct {
	Store        propertyStore
	Ledger       ledgerReader
	Metrics      *metrics.ReconcileMetrics
	Logger       *logger.Logger
	BatchSize    int
	PendingGrace time.Duration
}

// Report summarises one reconciliation pass.
type Report struct {
	Checked       int
	Drifted       []Drift
	PendingPurged int
	LedgerCounter int64
}

// Drift is one property whose mirrored fields disagree with the contract.
type Drift struct {
	PropertyID uuid.UUID
	LedgerID   int64
	Fields     []string
}

type Reconciler struct {
	store   propertyStore
	ledger  ledgerReader
	metrics *metrics.ReconcileMetrics
	logg    *logger.Logger
	batch   int
	grace   time.Duration
	now     func() time.Time
}

func New(p Params) (*Reconciler, error) {
	if p.Store == nil {
		return nil, fmt.Errorf("property store required")
	}
	if p.Ledger == nil {
		return nil, fmt.Errorf("ledger client required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if p.BatchSize <= 0 {
		p.BatchSize = defaultBatchSize
	}
	if p.PendingGrace <= 0 {
		p.PendingGrace = defaultPendingGrace
	}
	return &Reconciler{
		store:   p.Store,
		ledger:  p.Ledger,
		metrics: p.Metrics,
		logg:    p.Logger,
		batch:   p.BatchSize,
		grace:   p.PendingGrace,
		now:     time.Now,
	}, nil
}

func (r *Reconciler) Name() string { return JobName }

// Run performs one pass and is what the cron service schedules.
func (r *Reconciler) Run(ctx context.Context) error {
	report, err := r.Reconcile(ctx)
	ctx = r.logg.WithFields(ctx, map[string]any{
		"checked":        report.Checked,
		"drifted":        len(report.Drifted),
		"pending_purged": report.PendingPurged,
		"ledger_counter": report.LedgerCounter,
	})
	if err != nil {
		return err
	}
	r.logg.Info(ctx, "ledger reconcile pass complete")
	return nil
}

// Reconcile walks every synced property and flags drift, then purges stale pending rows.
// Per-property ledger errors are collected and the walk continues; it aborts once too
// many calls failed in a row since the node is then most likely unreachable.
func (r *Reconciler) Reconcile(ctx context.Context) (Report, error) {
	var (
		report Report
		errs   error
	)

	if count, err := r.ledger.PropertyCount(ctx); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("read property counter: %w", err))
	} else {
		report.LedgerCounter = count
		r.metrics.SetLedgerCounter(count)
	}

	if err := r.walkSynced(ctx, &report); err != nil {
		errs = multierr.Append(errs, err)
	}

	purged, err := r.store.DeleteStalePending(ctx, r.now().UTC().Add(-r.grace))
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("purge stale pending: %w", err))
	} else if len(purged) > 0 {
		report.PendingPurged = len(purged)
		r.metrics.AddPendingPurged(len(purged))
		r.logg.Warn(r.logg.WithField(ctx, "property_ids", purged), "removed pending listings that never reached the ledger")
	}

	return report, errs
}

func (r *Reconciler) walkSynced(ctx context.Context, report *Report) error {
	var (
		errs        error
		after       int64
		consecutive int
	)
	for {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		page, err := r.store.ListSynced(ctx, after, r.batch)
		if err != nil {
			return multierr.Append(errs, fmt.Errorf("list synced after %d: %w", after, err))
		}
		for i := range page {
			p := &page[i]
			after = *p.LedgerID
			drift, err := r.check(ctx, p)
			if err != nil {
				errs = multierr.Append(errs, err)
				consecutive++
				if consecutive >= maxLedgerFailures {
					return multierr.Append(errs, errors.New("too many consecutive ledger failures; aborting pass"))
				}
				continue
			}
			consecutive = 0
			report.Checked++
			if drift != nil {
				report.Drifted = append(report.Drifted, *drift)
			}
		}
		if len(page) < r.batch {
			return errs
		}
	}
}

func (r *Reconciler) check(ctx context.Context, p *models.Property) (*Drift, error) {
	ledgerID := *p.LedgerID
	ctx = r.logg.WithPropertyID(r.logg.WithLedgerID(ctx, ledgerID), p.ID.String())

	onChain, err := r.ledger.GetProperty(ctx, ledgerID)
	if err != nil {
		return nil, fmt.Errorf("get ledger property %d: %w", ledgerID, err)
	}

	fields := Compare(p, onChain)
	if len(fields) == 0 {
		return nil, nil
	}
	for _, f := range fields {
		r.metrics.IncDrift(f)
	}
	if err := r.store.MarkSyncFailed(ctx, p.ID); err != nil {
		return nil, fmt.Errorf("mark property %s sync_failed: %w", p.ID, err)
	}
	r.logg.Warn(r.logg.WithField(ctx, "drifted_fields", fields), "property drifted from ledger")
	return &Drift{PropertyID: p.ID, LedgerID: ledgerID, Fields: fields}, nil
}

// Compare lists the mirrored fields where the local row and the contract disagree. A
// contract record with id 0 means the listing does not exist on chain.
func Compare(p *models.Property, onChain *ledger.Property) []string {
	if onChain == nil || onChain.ID == 0 {
		return []string{FieldMissing}
	}
	var fields []string
	if p.RentAmount != onChain.RentPerMonth {
		fields = append(fields, FieldRent)
	}
	if p.SecurityDeposit != onChain.SecurityDeposit {
		fields = append(fields, FieldDeposit)
	}
	if p.IsAvailable != onChain.IsAvailable {
		fields = append(fields, FieldAvailable)
	}
	if p.IsActive != onChain.IsActive {
		fields = append(fields, FieldActive)
	}
	return fields
}
