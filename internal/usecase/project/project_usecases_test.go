package project

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-escrow/internal/infrastructure/memory"
	"github.com/ignatzorin/freelance-escrow/internal/logger"
	"github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"
)

func TestCatalog_CreateAndList(t *testing.T) {
	logger.Silence()
	uc := NewCatalog(memory.NewLedger())
	ctx := context.Background()
	employer := valueobject.Actor{ID: uuid.New(), Role: valueobject.RoleEmployer}

	p, err := uc.Create(ctx, employer, CreateProjectInput{Title: "Парсер", BudgetMin: 500, BudgetMax: 1500, Currency: "eur"})
	require.NoError(t, err)
	assert.Equal(t, "EUR", p.Currency)
	assert.Equal(t, valueobject.ProjectStatusOpen, p.Status)

	_, err = uc.Create(ctx, valueobject.Actor{ID: uuid.New(), Role: valueobject.RoleFreelancer}, CreateProjectInput{Title: "x", BudgetMax: 10})
	assert.True(t, apperror.IsForbidden(err))

	_, err = uc.Create(ctx, employer, CreateProjectInput{Title: "", BudgetMax: 10})
	assert.True(t, apperror.IsValidation(err))

	page, err := uc.ListOpen(ctx, 0, -1)
	require.NoError(t, err)
	assert.Len(t, page.Projects, 1)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, defaultListLimit, page.Limit)
	assert.Equal(t, 0, page.Offset)

	got, err := uc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	_, err = uc.Get(ctx, uuid.New())
	assert.True(t, apperror.IsNotFound(err))
}

func TestCatalog_Close(t *testing.T) {
	logger.Silence()
	uc := NewCatalog(memory.NewLedger())
	ctx := context.Background()
	employer := valueobject.Actor{ID: uuid.New(), Role: valueobject.RoleEmployer}

	p, err := uc.Create(ctx, employer, CreateProjectInput{Title: "Дизайн", BudgetMax: 1000})
	require.NoError(t, err)

	_, err = uc.Close(ctx, valueobject.Actor{ID: uuid.New(), Role: valueobject.RoleEmployer}, p.ID)
	assert.True(t, apperror.IsForbidden(err))

	closed, err := uc.Close(ctx, employer, p.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.ProjectStatusClosed, closed.Status)

	_, err = uc.Close(ctx, employer, p.ID)
	assert.True(t, apperror.IsInvalidState(err))

	page, err := uc.ListOpen(ctx, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, page.Projects)
	assert.Equal(t, 0, page.Total)
}

func TestCatalog_ListMineIncludesClosed(t *testing.T) {
	logger.Silence()
	uc := NewCatalog(memory.NewLedger())
	ctx := context.Background()
	employer := valueobject.Actor{ID: uuid.New(), Role: valueobject.RoleEmployer}
	other := valueobject.Actor{ID: uuid.New(), Role: valueobject.RoleEmployer}

	first, err := uc.Create(ctx, employer, CreateProjectInput{Title: "Логотип", BudgetMax: 100})
	require.NoError(t, err)
	_, err = uc.Create(ctx, employer, CreateProjectInput{Title: "Визитки", BudgetMax: 100})
	require.NoError(t, err)
	_, err = uc.Create(ctx, other, CreateProjectInput{Title: "Баннер", BudgetMax: 100})
	require.NoError(t, err)
	_, err = uc.Close(ctx, employer, first.ID)
	require.NoError(t, err)

	page, err := uc.ListMine(ctx, employer, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Len(t, page.Projects, 1)

	page, err = uc.ListMine(ctx, employer, 10, 0)
	require.NoError(t, err)
	require.Len(t, page.Projects, 2)
	statuses := []valueobject.ProjectStatus{page.Projects[0].Status, page.Projects[1].Status}
	assert.Contains(t, statuses, valueobject.ProjectStatusClosed)

	_, err = uc.ListMine(ctx, valueobject.Actor{ID: uuid.New(), Role: valueobject.RoleFreelancer}, 10, 0)
	assert.True(t, apperror.IsForbidden(err))
}

func TestCatalog_Update(t *testing.T) {
	logger.Silence()
	uc := NewCatalog(memory.NewLedger())
	ctx := context.Background()
	employer := valueobject.Actor{ID: uuid.New(), Role: valueobject.RoleEmployer}

	p, err := uc.Create(ctx, employer, CreateProjectInput{Title: "Сайт", BudgetMax: 1000, Currency: "EUR"})
	require.NoError(t, err)

	updated, err := uc.Update(ctx, employer, p.ID, UpdateProjectInput{Title: "Сайт-визитка", Description: "три страницы", BudgetMin: 200, BudgetMax: 1500})
	require.NoError(t, err)
	assert.Equal(t, "Сайт-визитка", updated.Title)
	assert.Equal(t, "EUR", updated.Currency)

	got, err := uc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), got.Budget.Max.Amount)
	assert.Equal(t, "три страницы", got.Description)

	_, err = uc.Update(ctx, valueobject.Actor{ID: uuid.New(), Role: valueobject.RoleEmployer}, p.ID, UpdateProjectInput{Title: "Чужой", BudgetMax: 10})
	assert.True(t, apperror.IsForbidden(err))

	_, err = uc.Update(ctx, employer, p.ID, UpdateProjectInput{Title: "ab", BudgetMax: 10})
	assert.True(t, apperror.IsValidation(err))

	_, err = uc.Update(ctx, employer, uuid.New(), UpdateProjectInput{Title: "Сайт", BudgetMax: 10})
	assert.True(t, apperror.IsNotFound(err))

	_, err = uc.Close(ctx, employer, p.ID)
	require.NoError(t, err)
	_, err = uc.Update(ctx, employer, p.ID, UpdateProjectInput{Title: "Сайт", BudgetMax: 10})
	assert.True(t, apperror.IsInvalidState(err))
}

func TestCatalog_DefaultCurrency(t *testing.T) {
	logger.Silence()
	uc := NewCatalog(memory.NewLedger()).WithDefaultCurrency("EUR")
	employer := valueobject.Actor{ID: uuid.New(), Role: valueobject.RoleEmployer}

	p, err := uc.Create(context.Background(), employer, CreateProjectInput{Title: "Сайт", BudgetMax: 100})
	require.NoError(t, err)
	assert.Equal(t, "EUR", p.Currency)
}
