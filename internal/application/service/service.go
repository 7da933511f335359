// Package service holds the server side use cases: ingesting documents and
// manual bills, committing confirmations, listing, exporting, retrieving
// stored originals and answering natural-language questions.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/expense-capture/internal/application/port"
	"github.com/garyjia/expense-capture/internal/domain/entity"
	"github.com/garyjia/expense-capture/internal/domain/event"
	"github.com/garyjia/expense-capture/internal/domain/validation"
)

// ErrInvalidQuery is returned for a blank or unanswerable question
var ErrInvalidQuery = errors.New("invalid query")

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Publisher delivers domain events to in-process subscribers
type Publisher interface {
	Dispatch(ctx context.Context, evt *event.Event) error
}

// base carries the collaborators every service shares
type base struct {
	auth      entity.Authorizer
	publisher Publisher
	logger    Logger
	now       func() time.Time
}

func newBase(auth entity.Authorizer, publisher Publisher, logger Logger) base {
	if auth == nil {
		auth = entity.NewAllowList()
	}
	return base{
		auth:      auth,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (b *base) authorize(userID string) error {
	if err := b.auth.Authorize(entity.Principal{UserID: userID}); err != nil {
		b.logError("Rejected request", err, "user_id", userID)
		return err
	}
	return nil
}

// publish delivers an event. Subscriber failures are logged, never returned.
func (b *base) publish(ctx context.Context, evt *event.Event) {
	if b.publisher == nil {
		return
	}
	if err := b.publisher.Dispatch(ctx, evt); err != nil {
		b.logError("Failed to publish event", err, "type", evt.Type.String(), "bill_id", evt.BillID)
	}
}

func (b *base) logInfo(msg string, keysAndValues ...interface{}) {
	if b.logger != nil {
		b.logger.Info(msg, keysAndValues...)
	}
}

func (b *base) logError(msg string, err error, keysAndValues ...interface{}) {
	if b.logger != nil {
		b.logger.Error(msg, append([]interface{}{"error", err}, keysAndValues...)...)
	}
}

// committer inserts a bill and claims its stored file in one transaction
type committer struct {
	bills     port.BillRepository
	files     port.StoredFileRepository
	txManager port.TransactionManager
}

func (c committer) commit(ctx context.Context, bill *entity.Bill, at time.Time) error {
	return c.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := c.bills.Create(txCtx, bill); err != nil {
			return err
		}
		if bill.FilePath == "" {
			return nil
		}
		if err := c.files.Claim(txCtx, bill.FilePath, bill.ID, at); err != nil {
			return fmt.Errorf("failed to claim file: %w", err)
		}
		return nil
	})
}

// prepareDraft normalizes a user approved draft and enforces the commit rules
func prepareDraft(d entity.Draft) (entity.Draft, error) {
	out := d.Normalized()
	out.Vendor = strings.TrimSpace(out.Vendor)

	date, err := entity.NormalizeBillDate(out.BillDate)
	if err != nil {
		return out, fmt.Errorf("%w: %v", port.ErrInvalidRequest, err)
	}
	out.BillDate = date

	if result := validation.Validate(out); !result.OK() {
		return out, fmt.Errorf("%w: %s", port.ErrInvalidRequest, describe(result))
	}
	return out, nil
}

func describe(result validation.Result) string {
	parts := make([]string, 0, len(result.Errors))
	for _, f := range []entity.Field{
		entity.FieldVendor,
		entity.FieldBillDate,
		entity.FieldTotalAmount,
		entity.FieldPaymentMethod,
		entity.FieldItems,
	} {
		if msg, ok := result.Errors[f]; ok {
			parts = append(parts, fmt.Sprintf("%s: %s", f, msg))
		}
	}
	return strings.Join(parts, "; ")
}

func newBillID() string {
	return uuid.NewString()
}
