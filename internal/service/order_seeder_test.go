package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"scanorder/internal/domain"
	"scanorder/internal/repository/memory"
	"scanorder/internal/service"
	"scanorder/mocks"
)

func seedOrders() []domain.Order {
	return []domain.Order{
		{
			ID:       43659,
			TotalDue: decimal.RequireFromString("23153.2339"),
			Details: []domain.OrderLine{
				{ID: 1, OrderID: 43659, Description: "Mountain Bike Socks", OrderQty: decimal.NewFromInt(6)},
				{ID: 2, OrderID: 43659, Description: "AWC Logo Cap", OrderQty: decimal.NewFromInt(2)},
			},
		},
		{ID: 43660, TotalDue: decimal.RequireFromString("1457.3288")},
	}
}

func TestSeedOrders_EmptyStore(t *testing.T) {
	repo := memory.NewOrderRepo(1)

	n, err := service.SeedOrders(context.Background(), repo, seedOrders(), nil)

	require.NoError(t, err)
	assert.Equal(t, 2, n)

	list, err := repo.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, list, 2)

	first, err := repo.GetByID(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, first.Details, 2)
	assert.Equal(t, 1, first.Details[0].LineNumber)
	assert.Equal(t, 2, first.Details[1].LineNumber)
	assert.Equal(t, "AWC Logo Cap", first.Details[1].Description)
}

func TestSeedOrders_SkipsPopulatedStore(t *testing.T) {
	repo := memory.NewOrderRepo(1)
	require.NoError(t, repo.Create(context.Background(), &domain.Order{TotalDue: decimal.NewFromInt(1)}))

	n, err := service.SeedOrders(context.Background(), repo, seedOrders(), nil)

	require.NoError(t, err)
	assert.Zero(t, n)
	list, err := repo.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSeedOrders_CreateFails(t *testing.T) {
	repo := new(mocks.MockOrderRepo)
	repo.On("List", mock.Anything, 1).Return([]domain.Order{}, nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
	repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection reset")).Once()

	n, err := service.SeedOrders(context.Background(), repo, seedOrders(), nil)

	assert.Error(t, err)
	assert.Equal(t, 1, n)
}
