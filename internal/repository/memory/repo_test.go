package memory_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scanorder/internal/domain"
	"scanorder/internal/repository/memory"
)

func TestDocumentRepo_Lifecycle(t *testing.T) {
	repo := memory.NewDocumentRepo()
	ctx := context.Background()

	doc := &domain.Document{Filename: "inv.pdf", Status: domain.DocumentStatusUploaded}
	require.NoError(t, repo.Create(ctx, doc))
	assert.Equal(t, int64(1), doc.ID)
	assert.False(t, doc.CreatedAt.IsZero())

	msg := "unreadable scan"
	require.NoError(t, repo.UpdateStatus(ctx, doc.ID, domain.DocumentStatusFailed, &msg))
	got, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusFailed, got.Status)
	require.NotNil(t, got.Error)
	assert.Equal(t, msg, *got.Error)

	require.NoError(t, repo.SetExtracted(ctx, doc.ID, json.RawMessage(`{"items":[]}`)))
	require.NoError(t, repo.MarkSaved(ctx, doc.ID, 75124))
	got, err = repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusSaved, got.Status)
	assert.Nil(t, got.Error)
	require.NotNil(t, got.OrderID)
	assert.Equal(t, int64(75124), *got.OrderID)
	assert.JSONEq(t, `{"items":[]}`, string(got.ExtractedJSON))
}

func TestDocumentRepo_ReturnsCopies(t *testing.T) {
	repo := memory.NewDocumentRepo()
	ctx := context.Background()
	doc := &domain.Document{Filename: "a.pdf"}
	require.NoError(t, repo.Create(ctx, doc))

	got, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	got.Filename = "changed"

	again, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "a.pdf", again.Filename)
}

func TestDocumentRepo_NotFound(t *testing.T) {
	repo := memory.NewDocumentRepo()
	ctx := context.Background()

	_, err := repo.GetByID(ctx, 9)
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
	assert.ErrorIs(t, repo.UpdateStatus(ctx, 9, domain.DocumentStatusProcessing, nil), domain.ErrDocumentNotFound)
	assert.ErrorIs(t, repo.MarkSaved(ctx, 9, 1), domain.ErrDocumentNotFound)
}

func TestOrderRepo_CreateListGet(t *testing.T) {
	repo := memory.NewOrderRepo(75123)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		o := &domain.Order{
			SubTotal: decimal.NewFromInt(int64(10 * (i + 1))),
			Details: []domain.OrderLine{
				{LineNumber: 1, Description: "Widget", OrderQty: decimal.NewFromInt(1)},
				{LineNumber: 2, Description: "Gadget", OrderQty: decimal.NewFromInt(2)},
			},
		}
		require.NoError(t, repo.Create(ctx, o))
		assert.Equal(t, int64(75123+i), o.ID)
		assert.Equal(t, o.ID, o.Details[0].OrderID)
	}

	list, err := repo.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(75125), list[0].ID)
	assert.Equal(t, int64(75124), list[1].ID)
	assert.Empty(t, list[0].Details)

	o, err := repo.GetByID(ctx, 75124)
	require.NoError(t, err)
	require.Len(t, o.Details, 2)
	assert.Equal(t, "Gadget", o.Details[1].Description)
	assert.NotEqual(t, o.Details[0].ID, o.Details[1].ID)

	_, err = repo.GetByID(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}
