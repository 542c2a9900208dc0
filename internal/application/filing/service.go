package filing

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/gstfiling/backend/internal/domain/filing"
)

// DateBoundaryMode selects the zone used to cut the filing month.
type DateBoundaryMode string

const (
	DateBoundaryUTC   DateBoundaryMode = "utc"
	DateBoundaryLocal DateBoundaryMode = "local"
)

// ServiceConfig carries the report-generation switches resolved at startup.
type ServiceConfig struct {
	Aggregation        AggregatorConfig
	DateBoundary       DateBoundaryMode
	Location           *time.Location
	FetchItemsPerOrder bool
}

// DefaultServiceConfig returns the stock configuration: UTC month
// boundaries and per-order item hydration enabled.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Aggregation:        DefaultAggregatorConfig(),
		DateBoundary:       DateBoundaryUTC,
		FetchItemsPerOrder: true,
	}
}

// GenerateRequest is one report-generation invocation.
type GenerateRequest struct {
	Kind  filing.ReportKind
	Month int
	Year  int
	Token string
}

// Service is the application-level report generator. It owns the
// pipeline: validate, cut the window, fetch, aggregate, serialize.
type Service struct {
	source filing.OrderSource
	cfg    ServiceConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a new Service.
func NewService(source filing.OrderSource, cfg ServiceConfig, logger *zap.Logger) *Service {
	return &Service{
		source: source,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Generate runs the full pipeline for one (kind, month, year) request and
// returns the serialized report. Validation failures surface before any
// upstream call is made.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*Payload, error) {
	result, err := s.Aggregate(ctx, req)
	if err != nil {
		return nil, err
	}
	return Serialize(result)
}

// Aggregate runs the pipeline up to and including aggregation, leaving
// serialization to the caller. The job coordinator uses this to stamp
// its own metadata before serializing.
func (s *Service) Aggregate(ctx context.Context, req GenerateRequest) (*filing.ReportResult, error) {
	if !req.Kind.IsValid() {
		return nil, filing.ErrInvalidReportKind
	}
	if req.Month < 1 || req.Month > 12 || req.Year < 1 {
		return nil, filing.ErrInvalidPeriod
	}
	if req.Token == "" {
		return nil, filing.ErrMissingCredential
	}

	window := filing.MonthWindow(req.Year, req.Month, s.boundaryLocation())

	orders, err := s.source.FetchOrders(ctx, req.Token, window)
	if err != nil {
		return nil, err
	}

	if s.needsItems(req.Kind) {
		s.hydrateItems(ctx, req.Token, orders)
	}

	aggregator, err := NewAggregator(req.Kind, s.cfg.Aggregation, sourceResolver{s.source})
	if err != nil {
		return nil, err
	}

	result, err := aggregator.Aggregate(ctx, AggregateInput{
		Orders: orders,
		Window: window,
		Month:  req.Month,
		Year:   req.Year,
		Token:  req.Token,
	})
	if err != nil {
		return nil, err
	}
	result.GeneratedAt = s.now()

	s.logger.Info("report generated",
		zap.String("kind", string(req.Kind)),
		zap.Int("month", req.Month),
		zap.Int("year", req.Year),
		zap.Int("orders", result.TotalOrders),
	)

	return result, nil
}

func (s *Service) boundaryLocation() *time.Location {
	if s.cfg.DateBoundary == DateBoundaryLocal {
		if s.cfg.Location != nil {
			return s.cfg.Location
		}
		return time.Local
	}
	return time.UTC
}

// needsItems reports whether the kind aggregates at line-item level and
// therefore requires each order's items to be present.
func (s *Service) needsItems(kind filing.ReportKind) bool {
	switch kind {
	case filing.ReportKindHSNDetails:
		return true
	case filing.ReportKindB2CSupplies:
		return s.cfg.Aggregation.B2CGranularity == B2CGranularityLineItem
	default:
		return false
	}
}

// hydrateItems fills in the item list of any order whose search result
// came back without one. A failed fetch leaves the order with no items;
// the run continues.
func (s *Service) hydrateItems(ctx context.Context, token string, orders []filing.Order) {
	if !s.cfg.FetchItemsPerOrder {
		return
	}
	for i := range orders {
		if len(orders[i].Items) > 0 {
			continue
		}
		items, err := s.source.FetchOrderItems(ctx, token, orders[i].EntityID)
		if err != nil {
			s.logger.Warn("order item fetch failed",
				zap.String("order_id", orders[i].EntityID),
				zap.Error(err),
			)
			continue
		}
		orders[i].Items = items
	}
}

// sourceResolver adapts the order source to the aggregator's resolver
// interface.
type sourceResolver struct {
	source filing.OrderSource
}

func (r sourceResolver) LookupHSN(ctx context.Context, token, sku string) string {
	return r.source.LookupHSN(ctx, token, sku)
}
