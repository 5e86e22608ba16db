package app

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"demand-foresight/internal/ai"
	"demand-foresight/internal/cost"
	"demand-foresight/internal/metrics"
	"demand-foresight/internal/model"
)

var ErrNegativeCost = errors.New("cost must not be negative")

type UsageService struct {
	costs   CostStore
	prices  cost.PriceTable
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

func NewUsageService(costs CostStore, prices cost.PriceTable, m *metrics.Metrics, logger *zap.Logger) *UsageService {
	if prices == nil {
		prices = cost.DefaultPrices
	}
	return &UsageService{costs: costs, prices: prices, metrics: m, logger: logger, now: time.Now}
}

// Charge prices one call and adds it to the user's total. A model missing
// from the price table is logged and charged nothing.
func (s *UsageService) Charge(ctx context.Context, username, modelName string, usage ai.Usage) (float64, error) {
	amount, err := s.prices.Calculate(usage.PromptTokens, usage.CompletionTokens, modelName)
	if err != nil {
		s.logger.Error("pricing failed", zap.String("model", modelName), zap.String("username", username), zap.Error(err))
		s.metrics.ObservePricingError(modelName)
		return 0, nil
	}
	s.metrics.ObserveUsage(modelName, usage.PromptTokens, usage.CompletionTokens, amount)
	if err := s.UpdateCost(ctx, username, modelName, amount); err != nil {
		return 0, err
	}
	return amount, nil
}

// UpdateCost appends amount to the user's running total. Totals never
// decrease.
func (s *UsageService) UpdateCost(ctx context.Context, username, modelName string, amount float64) error {
	if amount < 0 {
		return ErrNegativeCost
	}
	if amount == 0 {
		return nil
	}
	record := &model.CostRecord{
		Username:  username,
		Model:     modelName,
		Cost:      amount,
		Timestamp: s.now(),
	}
	if err := s.costs.Append(ctx, record); err != nil {
		return upstream("append cost", err)
	}
	return nil
}

// GetUserUsage returns the total and trailing monthly series for username,
// or for every user when username is empty. Members may only read their own.
func (s *UsageService) GetUserUsage(ctx context.Context, actor Actor, username string) (cost.Usage, error) {
	if !actor.IsAdmin() && username != actor.Username {
		return cost.Usage{}, ErrForbidden
	}
	records, err := s.costs.List(ctx, username)
	if err != nil {
		return cost.Usage{}, upstream("list costs", err)
	}
	return cost.Summarize(records, username, s.now()), nil
}

func (s *UsageService) Prices() cost.PriceTable {
	return s.prices
}
