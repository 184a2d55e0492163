package orders

import (
	"context"
	"errors"
	"log/slog"

	"gorm.io/gorm"

	"shirly.shop/app/internal/modules/inventory"
)

type AdminService struct {
	db     *gorm.DB
	repo   *Repo
	sink   EventSink
	logger *slog.Logger
}

func NewAdminService(db *gorm.DB, sink EventSink, logger *slog.Logger) *AdminService {
	if sink == nil {
		sink = nopSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminService{db: db, repo: NewRepo(db), sink: sink, logger: logger}
}

type TransitionInput struct {
	OrderID     string
	ActorUserID string // admin user id
	Action      string // ship|deliver|cancel
	Note        string

	// ship only
	Carrier        string
	TrackingNumber string
}

func (s *AdminService) List(ctx context.Context, in AdminListParams) (AdminListResult, error) {
	return s.repo.AdminList(ctx, in)
}

func (s *AdminService) Detail(ctx context.Context, orderID string) (AdminDetail, error) {
	return s.repo.AdminGetDetail(ctx, orderID)
}

func (s *AdminService) Transition(ctx context.Context, in TransitionInput) (Order, error) {
	if in.OrderID == "" || in.ActorUserID == "" || in.Action == "" {
		return Order{}, ErrNotActionable
	}
	if in.Action == ActionExpire {
		return Order{}, ErrInvalidTransition
	}

	var ch StatusChange
	err := inventory.WithTxRetry(ctx, s.db, 3, func(tx *gorm.DB) error {
		var err error
		ch, err = applyInTx(ctx, tx, transition{
			OrderID:        in.OrderID,
			Actor:          in.ActorUserID,
			Action:         in.Action,
			Note:           in.Note,
			Carrier:        in.Carrier,
			TrackingNumber: in.TrackingNumber,
		})
		return err
	})
	if err != nil {
		return Order{}, err
	}

	s.logger.InfoContext(ctx, "order transitioned",
		"order_id", ch.Order.ID, "action", in.Action, "from", ch.From, "to", ch.To, "actor", in.ActorUserID)
	s.sink.OrderStatusChanged(ctx, ch)
	return ch.Order, nil
}

type BulkResult struct {
	OrderID string
	Status  string
	Err     error
}

// BulkTransition applies the same action to each order independently; one failure
// does not roll back the others.
func (s *AdminService) BulkTransition(ctx context.Context, ids []string, action, actor, note string) []BulkResult {
	seen := make(map[string]struct{}, len(ids))
	out := make([]BulkResult, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		if err := ctx.Err(); err != nil {
			out = append(out, BulkResult{OrderID: id, Err: err})
			continue
		}
		o, err := s.Transition(ctx, TransitionInput{OrderID: id, ActorUserID: actor, Action: action, Note: note})
		out = append(out, BulkResult{OrderID: id, Status: o.Status, Err: err})
	}
	return out
}

// PublicError maps transition failures to short messages for bulk results.
func PublicError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "order not found"
	case errors.Is(err, ErrInvalidTransition):
		return "action not allowed in current status"
	case errors.Is(err, ErrNotActionable):
		return "order not actionable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "request cancelled"
	default:
		return "internal error"
	}
}
