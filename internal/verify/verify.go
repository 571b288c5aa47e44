package verify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"jerseysync/internal/mailer"
	"jerseysync/internal/metrics"
	"jerseysync/internal/models"
	"jerseysync/internal/retry"
)

// OrderStore is the worksheet surface the engine needs. The sheet is the
// system of record; the engine never caches rows across operations.
type OrderStore interface {
	Orders(ctx context.Context) ([]models.Order, error)
	MarkContacted(ctx context.Context, id models.OrderIdentity, date time.Time) error
}

// DraftCreator creates the outbound confirmation draft.
type DraftCreator interface {
	CreateDraft(ctx context.Context, msg mailer.Message) (string, error)
}

// NoParentEmailError means an order has no parent email to write to.
// The order stays pending; a human has to fix the sheet.
type NoParentEmailError struct {
	Name string
}

func (e *NoParentEmailError) Error() string {
	return fmt.Sprintf("no parent email found for order: %s", e.Name)
}

// Verifier drives the contact workflow: find orders that have never been
// contacted, draft a confirmation email for each, and record the contact
// date in the sheet. Processing is idempotent against re-runs because
// membership in the pending set is derived from the sheet itself.
type Verifier struct {
	store  OrderStore
	drafts DraftCreator
	logger *zerolog.Logger
	now    func() time.Time
}

func NewVerifier(store OrderStore, drafts DraftCreator, logger *zerolog.Logger) *Verifier {
	return &Verifier{store: store, drafts: drafts, logger: logger, now: time.Now}
}

// Pending returns the orders awaiting first contact, in sheet row order.
// Rows are read fresh on every call. A row is pending when it has a full
// name, is not the trailing template row, has neither a contacted nor a
// confirmed mark, and carries at least one parent email. Rows that match
// except for the missing email are logged and dropped, not failed.
func (v *Verifier) Pending(ctx context.Context) ([]models.Order, error) {
	orders, err := v.store.Orders(ctx)
	if err != nil {
		return nil, err
	}

	var pending []models.Order
	var skipped []int
	for _, o := range orders {
		if o.IsSentinelTrailer() || !o.HasIdentity() {
			skipped = append(skipped, o.Row)
			continue
		}
		if o.Contacted.Done || o.Confirmed.Done {
			continue
		}
		if len(o.ParentEmails()) == 0 {
			v.logger.Warn().Str("order", o.FullName()).Int("row", o.Row).Msg("no parent email on pending order, skipping")
			continue
		}
		pending = append(pending, o)
	}

	if len(skipped) > 0 {
		v.logger.Debug().Ints("rows", skipped).Msg("skipping rows without identity")
	}
	v.logger.Info().Int("total", len(orders)).Int("pending", len(pending)).Msg("pending orders computed")
	return pending, nil
}

// NextPending returns the first pending order, or nil when there is none.
func (v *Verifier) NextPending(ctx context.Context) (*models.Order, error) {
	pending, err := v.Pending(ctx)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, nil
	}
	return &pending[0], nil
}

// MarkProcessed records today's date in the order's Contacted cell. The
// row is re-located by name at write time, so edits between read and
// write move the mark with the row.
func (v *Verifier) MarkProcessed(ctx context.Context, order *models.Order) error {
	if err := v.store.MarkContacted(ctx, order.Identity(), v.now()); err != nil {
		return fmt.Errorf("mark %s contacted: %w", order.FullName(), err)
	}
	metrics.IncOrderMarked()
	return nil
}

// Result is one processed order.
type Result struct {
	Order   models.Order
	DraftID string
}

// ProcessNext drafts and marks the next pending order. Returns nil when
// nothing is pending. The draft is created first; only after it exists is
// the sheet marked. If the mark fails the draft stays in the mailbox and
// the order stays pending, so the next run drafts a duplicate — that
// inconsistency is logged here and resolved by a human, never
// automatically.
func (v *Verifier) ProcessNext(ctx context.Context) (*Result, error) {
	order, err := v.NextPending(ctx)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, nil
	}
	return v.process(ctx, order)
}

func (v *Verifier) process(ctx context.Context, order *models.Order) (*Result, error) {
	msg, err := BuildEmail(order)
	if err != nil {
		return nil, err
	}

	draftID, err := v.drafts.CreateDraft(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("draft for %s: %w", order.FullName(), err)
	}

	if err := v.MarkProcessed(ctx, order); err != nil {
		v.logger.Error().Err(err).
			Str("order", order.FullName()).
			Str("draft_id", draftID).
			Msg("draft created but sheet mark failed; order remains pending and will be drafted again")
		return nil, err
	}

	v.logger.Info().Str("order", order.FullName()).Str("draft_id", draftID).Msg("order processed")
	return &Result{Order: *order, DraftID: draftID}, nil
}

// BatchResult summarizes a ProcessBatch run.
type BatchResult struct {
	Processed []Result
	// RateLimited is set when the batch stopped early on quota exhaustion.
	RateLimited bool
}

// ProcessBatch processes up to n pending orders serially. Cancellation is
// honored between orders, never between an order's draft and its mark.
// Quota exhaustion stops the batch and is reported on the result along
// with ErrRateLimitExceeded; orders already processed stay processed.
func (v *Verifier) ProcessBatch(ctx context.Context, n int) (*BatchResult, error) {
	res := &BatchResult{}
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		r, err := v.ProcessNext(ctx)
		if err != nil {
			if errors.Is(err, retry.ErrRateLimitExceeded) {
				res.RateLimited = true
				v.logger.Warn().Int("processed", len(res.Processed)).Msg("rate limit exhausted, pausing batch")
				return res, fmt.Errorf("batch paused after %d orders: %w", len(res.Processed), retry.ErrRateLimitExceeded)
			}
			return res, err
		}
		if r == nil {
			break
		}
		res.Processed = append(res.Processed, *r)
	}

	v.logger.Info().Int("processed", len(res.Processed)).Msg("batch finished")
	return res, nil
}
