package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/logging"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/metrics"
	"github.com/andreasstove999/ecommerce-system/services/storefront-service-go/internal/user"
)

type ProductReader interface {
	Get(ctx context.Context, productID string) (catalog.Product, error)
	GetMany(ctx context.Context, productIDs []string) (map[string]catalog.Product, error)
}

type Service struct {
	repo     Repository
	products ProductReader
	users    user.Directory
	cache    Cache
	logger   *zap.Logger
	metrics  *metrics.Metrics

	sfg singleflight.Group
}

func NewService(repo Repository, products ProductReader, users user.Directory, cache Cache, logger *zap.Logger, m *metrics.Metrics) *Service {
	if cache == nil {
		cache = NopCache{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:     repo,
		products: products,
		users:    users,
		cache:    cache,
		logger:   logger,
		metrics:  m,
	}
}

type AddRequest struct {
	UserID    string
	ProductID string
	Quantity  int
	Weight    float64
}

// AddItem adds quantity to the (product, weight) line, creating it if needed.
// Stock is not checked here; it is enforced at checkout and on adjustment.
func (s *Service) AddItem(ctx context.Context, req AddRequest) (Line, bool, error) {
	var missing []string
	if req.UserID == "" {
		missing = append(missing, "userId")
	}
	if req.ProductID == "" {
		missing = append(missing, "productId")
	}
	if len(missing) > 0 {
		return Line{}, false, apperr.MissingFields(missing...)
	}
	if req.Quantity < 1 {
		return Line{}, false, apperr.Validation("quantity must be at least 1", "quantity")
	}
	if req.Weight <= 0 {
		return Line{}, false, apperr.Validation("weight must be positive", "weight")
	}

	if _, err := s.products.Get(ctx, req.ProductID); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return Line{}, false, apperr.NotFound("product not found", err)
		}
		return Line{}, false, err
	}
	if _, err := s.users.Get(ctx, req.UserID); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return Line{}, false, apperr.NotFound("user not found", err)
		}
		return Line{}, false, err
	}

	line, merged, err := s.repo.Add(ctx, req.UserID, req.ProductID, req.Quantity, req.Weight)
	if err != nil {
		return Line{}, false, err
	}
	s.Invalidate(ctx, req.UserID)
	return line, merged, nil
}

func (s *Service) RemoveItem(ctx context.Context, userID, lineID string) error {
	if err := requireIDs(userID, lineID); err != nil {
		return err
	}
	if err := s.repo.Remove(ctx, userID, lineID); err != nil {
		if errors.Is(err, ErrLineNotFound) {
			return apperr.NotFound("cart item not found", err)
		}
		return err
	}
	s.Invalidate(ctx, userID)
	return nil
}

// AdjustQuantity applies adj to the line, keeping the quantity within [1, stock].
func (s *Service) AdjustQuantity(ctx context.Context, userID, lineID string, adj Adjustment) (Line, error) {
	if err := requireIDs(userID, lineID); err != nil {
		return Line{}, err
	}

	line, stock, err := s.repo.LineWithStock(ctx, userID, lineID)
	switch {
	case errors.Is(err, ErrLineNotFound):
		return Line{}, apperr.NotFound("cart item not found", err)
	case errors.Is(err, ErrProductMissing):
		return Line{}, apperr.NotFound("product not found", err)
	case err != nil:
		return Line{}, err
	}

	next, err := ApplyAdjustment(line.Quantity, stock, adj)
	if err != nil {
		return Line{}, err
	}

	updated, err := s.repo.SetQuantity(ctx, userID, lineID, next)
	if err != nil {
		if errors.Is(err, ErrLineNotFound) {
			return Line{}, apperr.NotFound("cart item not found", err)
		}
		return Line{}, err
	}
	s.Invalidate(ctx, userID)
	return updated, nil
}

// ApplyAdjustment returns the new quantity for a line currently at current
// units against stock available units.
func ApplyAdjustment(current, stock int, adj Adjustment) (int, error) {
	var next int
	switch {
	case adj.Action == ActionIncrease:
		next = current + 1
	case adj.Action == ActionDecrease:
		next = current - 1
	case adj.Action == "" && adj.Value != 0:
		next = adj.Value
	default:
		return 0, apperr.Validation("invalid action or newQuantity", "action", "newQuantity")
	}

	if next > stock {
		return 0, apperr.Validation(fmt.Sprintf("only %d items left in stock", stock), "quantity")
	}
	if next < 1 {
		return 0, apperr.Validation("quantity cannot be less than 1", "quantity")
	}
	return next, nil
}

// List returns the user's cart joined with current product data. Only the
// lines are cached; products are read on every call and lines whose product
// no longer exists are dropped. Concurrent misses for one user share a
// single load.
func (s *Service) List(ctx context.Context, userID string) ([]Item, error) {
	if userID == "" {
		return nil, apperr.MissingFields("userId")
	}

	// The shared load must not fail for every waiter when the first caller goes away.
	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := s.sfg.Do(userID, func() (any, error) {
		return s.lines(loadCtx, userID)
	})
	if err != nil {
		return nil, err
	}
	return s.withProducts(ctx, v.([]Line))
}

func (s *Service) lines(ctx context.Context, userID string) ([]Line, error) {
	log := logging.FromContext(ctx, s.logger)

	lines, gen, err := s.cache.Get(ctx, userID)
	if err == nil {
		s.metrics.CartCacheLookup("hit")
		return lines, nil
	}
	miss := errors.Is(err, ErrCacheMiss)
	if miss {
		s.metrics.CartCacheLookup("miss")
	} else {
		s.metrics.CartCacheLookup("error")
		log.Warn("cart cache get failed", zap.String("user_id", userID), zap.Error(err))
	}

	lines, err = s.repo.Lines(ctx, userID)
	if err != nil {
		return nil, err
	}
	if miss {
		if err := s.cache.Set(ctx, userID, gen, lines); err != nil {
			log.Warn("cart cache set failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return lines, nil
}

func (s *Service) withProducts(ctx context.Context, lines []Line) ([]Item, error) {
	items := make([]Item, 0, len(lines))
	if len(lines) == 0 {
		return items, nil
	}

	ids := make([]string, 0, len(lines))
	seen := make(map[string]bool, len(lines))
	for _, l := range lines {
		if !seen[l.ProductID] {
			seen[l.ProductID] = true
			ids = append(ids, l.ProductID)
		}
	}
	products, err := s.products.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load cart products: %w", err)
	}

	for _, l := range lines {
		p, ok := products[l.ProductID]
		if !ok {
			continue
		}
		images := p.Images
		if images == nil {
			images = []string{}
		}
		items = append(items, Item{
			CartID:    l.ID,
			ProductID: p.ID,
			Title:     p.Title,
			Price:     p.Price,
			Images:    images,
			Stock:     p.Quantity,
			Quantity:  l.Quantity,
			Weight:    l.Weight,
		})
	}
	return items, nil
}

// Invalidate drops the cached cart. Failures are logged; the entry expires anyway.
func (s *Service) Invalidate(ctx context.Context, userID string) {
	if err := s.cache.Delete(ctx, userID); err != nil {
		logging.FromContext(ctx, s.logger).Warn("cart cache delete failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func requireIDs(userID, lineID string) error {
	var missing []string
	if userID == "" {
		missing = append(missing, "userId")
	}
	if lineID == "" {
		missing = append(missing, "cartItemId")
	}
	if len(missing) > 0 {
		return apperr.MissingFields(missing...)
	}
	if _, err := uuid.Parse(lineID); err != nil {
		return apperr.Validation("invalid cart item id", "cartItemId")
	}
	return nil
}
