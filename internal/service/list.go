package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/liiist/liiist/internal/action"
	"github.com/liiist/liiist/internal/metrics"
	"github.com/liiist/liiist/internal/model"
	"github.com/liiist/liiist/internal/optimizer"
	"github.com/liiist/liiist/internal/repository"
)

// List messages.
const (
	MsgListNotFound      = "List not found"
	MsgProductNotFound   = "Product not found"
	MsgCalculationFailed = "Calculation failed. Please try again later."
)

// ListStore persists shopping lists.
type ListStore interface {
	SaveList(ctx context.Context, list *model.ShoppingList) error
	GetList(ctx context.Context, userID, id string) (*model.ShoppingList, error)
	ListLists(ctx context.Context, userID string) ([]*model.ShoppingList, error)
}

// Optimizer runs a price calculation for a list.
type Optimizer interface {
	Calculate(ctx context.Context, req optimizer.Request, accessToken string) (json.RawMessage, error)
}

// ListService holds the shopping-list actions. Every action requires a
// signed-in user.
type ListService struct {
	store     ListStore
	optimizer Optimizer
	metrics   metrics.Recorder
	logger    *slog.Logger
	now       func() time.Time

	save      action.Action
	all       action.Action
	adjust    action.Action
	calculate action.Action
}

// NewListService creates a ListService. opt may be nil when no optimizer
// is configured; Calculate then fails with a business error.
func NewListService(store ListStore, opt Optimizer, recorder metrics.Recorder, logger *slog.Logger) *ListService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &ListService{
		store:     store,
		optimizer: opt,
		metrics:   recorder,
		logger:    logger.With("component", "lists"),
		now:       time.Now,
	}
	s.save = action.ValidatedWithUser(ListSchema, s.doSave)
	s.all = action.ValidatedWithUser(Empty, s.doAll)
	s.adjust = action.ValidatedWithUser(AdjustSchema, s.doAdjust)
	s.calculate = action.ValidatedWithUser(ListRefSchema, s.doCalculate)
	return s
}

// Save creates or replaces one of the caller's lists.
func (s *ListService) Save(ctx context.Context, req *action.Request) action.Result {
	return s.save(ctx, req)
}

// All returns the caller's lists, most recently updated first.
func (s *ListService) All(ctx context.Context, req *action.Request) action.Result {
	return s.all(ctx, req)
}

// Adjust applies a single edit (mode toggle or quantity step) to a saved list.
func (s *ListService) Adjust(ctx context.Context, req *action.Request) action.Result {
	return s.adjust(ctx, req)
}

// Calculate sends a saved list to the optimizer with the caller's access
// token and returns the optimizer's response unchanged.
func (s *ListService) Calculate(ctx context.Context, req *action.Request) action.Result {
	return s.calculate(ctx, req)
}

func (s *ListService) doSave(ctx context.Context, in ListForm, _ *action.Request, user *model.User) action.Result {
	now := s.now().UTC()
	products := in.Products
	if products == nil {
		products = []model.Product{}
	}
	list := &model.ShoppingList{
		ID:          in.ID,
		UserID:      user.ID,
		Name:        in.Name,
		Products:    products,
		BudgetCents: in.Budget,
		Mode:        in.Mode,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if existing, err := s.store.GetList(ctx, user.ID, in.ID); err == nil {
		list.CreatedAt = existing.CreatedAt
	} else if !errors.Is(err, repository.ErrListNotFound) {
		return action.Fault(err)
	}

	if err := s.store.SaveList(ctx, list); err != nil {
		if errors.Is(err, repository.ErrListNotFound) {
			return action.Fail(MsgListNotFound)
		}
		return action.Fault(err)
	}
	s.metrics.IncListSaved()
	return action.OK(list)
}

func (s *ListService) doAll(ctx context.Context, _ struct{}, _ *action.Request, user *model.User) action.Result {
	lists, err := s.store.ListLists(ctx, user.ID)
	if err != nil {
		return action.Fault(err)
	}
	if lists == nil {
		lists = []*model.ShoppingList{}
	}
	return action.OK(lists)
}

func (s *ListService) doAdjust(ctx context.Context, in AdjustForm, _ *action.Request, user *model.User) action.Result {
	list, err := s.store.GetList(ctx, user.ID, in.ID)
	if err != nil {
		if errors.Is(err, repository.ErrListNotFound) {
			return action.Fail(MsgListNotFound)
		}
		return action.Fault(err)
	}

	switch in.Op {
	case OpToggleMode:
		list.ToggleMode()
	case OpIncrease:
		err = list.IncreaseQuantity(in.Index)
	case OpDecrease:
		err = list.DecreaseQuantity(in.Index)
	}
	if errors.Is(err, model.ErrProductIndex) {
		return action.Fail(MsgProductNotFound)
	}

	list.UpdatedAt = s.now().UTC()
	if err := s.store.SaveList(ctx, list); err != nil {
		if errors.Is(err, repository.ErrListNotFound) {
			return action.Fail(MsgListNotFound)
		}
		return action.Fault(err)
	}
	s.metrics.IncListSaved()
	return action.OK(list)
}

func (s *ListService) doCalculate(ctx context.Context, in ListRefForm, req *action.Request, user *model.User) action.Result {
	list, err := s.store.GetList(ctx, user.ID, in.ID)
	if err != nil {
		if errors.Is(err, repository.ErrListNotFound) {
			return action.Fail(MsgListNotFound)
		}
		return action.Fault(err)
	}

	if s.optimizer == nil {
		s.logger.Warn("calculation requested without an optimizer", "list_id", list.ID)
		return action.Fail(MsgCalculationFailed)
	}

	// The wrapper already resolved the session; the slot returns it from cache.
	sess, err := req.Session.Get(ctx)
	if err != nil {
		return action.Fault(err)
	}
	if sess == nil {
		return action.Unauthorized()
	}

	payload := optimizer.Request{
		ListID:   list.ID,
		Title:    list.Name,
		Products: make([]optimizer.Product, 0, len(list.Products)),
		Budget:   list.Budget(),
		Mode:     string(list.Mode),
	}
	for _, p := range list.Products {
		payload.Products = append(payload.Products, optimizer.Product{Name: p.Name, Quantity: p.Quantity})
	}

	out, err := s.optimizer.Calculate(ctx, payload, sess.Tokens.AccessToken)
	if err != nil {
		var statusErr *optimizer.StatusError
		switch {
		case errors.Is(err, optimizer.ErrNotConfigured),
			errors.Is(err, optimizer.ErrUnavailable),
			errors.As(err, &statusErr):
			s.logger.Warn("calculation failed", "list_id", list.ID, "error", err)
			return action.Fail(MsgCalculationFailed)
		default:
			return action.Fault(err)
		}
	}
	return action.OK(out)
}
