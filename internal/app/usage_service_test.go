package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"demand-foresight/internal/ai"
	"demand-foresight/internal/model"
)

func TestChargeRecordsCost(t *testing.T) {
	costs := &fakeCosts{}
	svc := newTestUsage(costs)

	amount, err := svc.Charge(context.Background(), "alice", "gpt-4o", ai.Usage{PromptTokens: 1000, CompletionTokens: 500})
	require.NoError(t, err)
	assert.InDelta(t, 0.0075, amount, 1e-12)
	require.Len(t, costs.records, 1)
	assert.Equal(t, "gpt-4o", costs.records[0].Model)
}

func TestChargeUnknownModelCostsNothing(t *testing.T) {
	costs := &fakeCosts{}
	svc := newTestUsage(costs)

	amount, err := svc.Charge(context.Background(), "alice", "mystery-model", ai.Usage{PromptTokens: 1000})
	require.NoError(t, err)
	assert.Zero(t, amount)
	assert.Empty(t, costs.records)
}

func TestUpdateCostNeverDecreases(t *testing.T) {
	costs := &fakeCosts{}
	svc := newTestUsage(costs)

	assert.ErrorIs(t, svc.UpdateCost(context.Background(), "alice", "gpt-4o", -1), ErrNegativeCost)
	require.NoError(t, svc.UpdateCost(context.Background(), "alice", "gpt-4o", 0))
	assert.Empty(t, costs.records)
}

func TestGetUserUsage(t *testing.T) {
	costs := &fakeCosts{records: []model.CostRecord{
		{Username: "alice", Cost: 1.5, Timestamp: time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC)},
		{Username: "alice", Cost: 0.5, Timestamp: time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)},
		{Username: "bob", Cost: 2, Timestamp: time.Date(2026, 6, 3, 0, 0, 0, 0, time.UTC)},
	}}
	svc := newTestUsage(costs)
	ctx := context.Background()

	mine, err := svc.GetUserUsage(ctx, Actor{Username: "alice", Role: model.RoleMember}, "alice")
	require.NoError(t, err)
	assert.InDelta(t, 2.0, mine.Total, 1e-12)
	require.Len(t, mine.Monthly, 12)
	assert.InDelta(t, 1.5, mine.Monthly[11].Cost, 1e-12)
	assert.InDelta(t, 0.5, mine.Monthly[6].Cost, 1e-12)

	_, err = svc.GetUserUsage(ctx, Actor{Username: "alice", Role: model.RoleMember}, "bob")
	assert.ErrorIs(t, err, ErrForbidden)

	all, err := svc.GetUserUsage(ctx, Actor{Username: "root", Role: model.RoleAdmin}, "")
	require.NoError(t, err)
	assert.InDelta(t, 4.0, all.Total, 1e-12)
}
