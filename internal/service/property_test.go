package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Psycaptr/rBNB/internal/domain"
	"github.com/Psycaptr/rBNB/internal/event"
	"github.com/Psycaptr/rBNB/internal/repository"
	"github.com/Psycaptr/rBNB/internal/repository/memory"
	apperrors "github.com/Psycaptr/rBNB/pkg/errors"
	pkgkafka "github.com/Psycaptr/rBNB/pkg/kafka"
)

// --- Mock Repository ---

type mockPropertyRepository struct {
	mock.Mock
}

func (m *mockPropertyRepository) Insert(ctx context.Context, property *domain.Property) error {
	args := m.Called(ctx, property)
	return args.Error(0)
}

func (m *mockPropertyRepository) Get(ctx context.Context, id string) (*domain.Property, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Property), args.Error(1)
}

func (m *mockPropertyRepository) FindByID(ctx context.Context, id string) ([]domain.Property, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Property), args.Error(1)
}

func (m *mockPropertyRepository) FindWhere(ctx context.Context, field string, value any) ([]domain.Property, error) {
	args := m.Called(ctx, field, value)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Property), args.Error(1)
}

func (m *mockPropertyRepository) UpdateFields(ctx context.Context, id string, fields map[string]any) error {
	args := m.Called(ctx, id, fields)
	return args.Error(0)
}

func (m *mockPropertyRepository) CompareAndSwapRating(ctx context.Context, id string, expected, next domain.Rating) error {
	args := m.Called(ctx, id, expected, next)
	return args.Error(0)
}

func (m *mockPropertyRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockOwnerLinker struct {
	mock.Mock
}

func (m *mockOwnerLinker) LinkProperty(ctx context.Context, ownerID, propertyID string) error {
	args := m.Called(ctx, ownerID, propertyID)
	return args.Error(0)
}

// --- Test Helpers ---

type fixedAllocator struct {
	id string
}

func (a fixedAllocator) NewID() string { return a.id }

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestProducer(logger *slog.Logger) *event.Producer {
	// A producer pointed at an unreachable broker; publish failures are
	// logged and ignored by the service.
	cfg := pkgkafka.ProducerConfig{Brokers: []string{"localhost:9092"}}
	return event.NewProducer(pkgkafka.NewProducer(cfg, logger), logger)
}

func newTestService(repo repository.PropertyRepository, linker repository.OwnerLinker) *PropertyService {
	logger := newTestLogger()
	return NewPropertyService(repo, linker, fixedAllocator{id: "prop-1"}, newTestProducer(logger), logger, 0)
}

// newMemoryService builds a service over the in-memory store, which
// implements both the repository and the owner linker.
func newMemoryService(ids IDAllocator) (*PropertyService, *memory.Store) {
	store := memory.NewStore()
	logger := newTestLogger()
	return NewPropertyService(store, store, ids, newTestProducer(logger), logger, 0), store
}

// --- Create ---

func TestCreate_Success(t *testing.T) {
	repo := new(mockPropertyRepository)
	linker := new(mockOwnerLinker)
	svc := newTestService(repo, linker)
	ctx := context.Background()

	repo.On("Insert", ctx, mock.AnythingOfType("*domain.Property")).Return(nil)
	linker.On("LinkProperty", ctx, "owner-1", "prop-1").Return(nil)

	input := &domain.Property{Name: "Sea view flat", IsListed: true}
	created, err := svc.Create(ctx, input, "owner-1")

	require.NoError(t, err)
	assert.Equal(t, "prop-1", created.ID)
	assert.Equal(t, "owner-1", created.OwnerID)
	assert.NotZero(t, created.CreatedAt)

	repo.AssertExpectations(t)
	linker.AssertExpectations(t)
}

func TestCreate_OverwritesCallerOwnerAndRating(t *testing.T) {
	repo := new(mockPropertyRepository)
	linker := new(mockOwnerLinker)
	svc := newTestService(repo, linker)
	ctx := context.Background()

	repo.On("Insert", ctx, mock.AnythingOfType("*domain.Property")).Return(nil)
	linker.On("LinkProperty", ctx, "owner-1", "prop-1").Return(nil)

	input := &domain.Property{
		ID:      "spoofed-id",
		OwnerID: "someone-else",
		Rating:  domain.Rating{Value: 100, Amount: 40},
	}
	created, err := svc.Create(ctx, input, "owner-1")

	require.NoError(t, err)
	assert.Equal(t, "prop-1", created.ID)
	assert.Equal(t, "owner-1", created.OwnerID)
	assert.Equal(t, domain.Rating{}, created.Rating)
}

func TestCreate_EmptyOwner(t *testing.T) {
	repo := new(mockPropertyRepository)
	linker := new(mockOwnerLinker)
	svc := newTestService(repo, linker)

	created, err := svc.Create(context.Background(), &domain.Property{}, "  ")

	assert.Nil(t, created)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	repo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestCreate_InsertError(t *testing.T) {
	repo := new(mockPropertyRepository)
	linker := new(mockOwnerLinker)
	svc := newTestService(repo, linker)
	ctx := context.Background()

	repo.On("Insert", ctx, mock.AnythingOfType("*domain.Property")).
		Return(fmt.Errorf("insert property: %w", apperrors.ErrStorage))

	created, err := svc.Create(ctx, &domain.Property{}, "owner-1")

	assert.Nil(t, created)
	assert.ErrorIs(t, err, apperrors.ErrStorage)
	linker.AssertNotCalled(t, "LinkProperty", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreate_LinkFailureIsPartial(t *testing.T) {
	repo := new(mockPropertyRepository)
	linker := new(mockOwnerLinker)
	svc := newTestService(repo, linker)
	ctx := context.Background()

	repo.On("Insert", ctx, mock.AnythingOfType("*domain.Property")).Return(nil)
	linker.On("LinkProperty", ctx, "owner-1", "prop-1").
		Return(errors.New("users collection unavailable"))

	created, err := svc.Create(ctx, &domain.Property{}, "owner-1")

	// The property committed; the caller gets it back along with the
	// partial-failure outcome.
	require.NotNil(t, created)
	assert.Equal(t, "prop-1", created.ID)
	assert.ErrorIs(t, err, apperrors.ErrPartialFailure)

	repo.AssertExpectations(t)
	linker.AssertExpectations(t)
}

// --- Delete ---

func TestDelete_BlankID(t *testing.T) {
	repo := new(mockPropertyRepository)
	svc := newTestService(repo, new(mockOwnerLinker))

	err := svc.Delete(context.Background(), "   ")

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	// The store is never touched for a blank id.
	repo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestDelete_NotFound(t *testing.T) {
	repo := new(mockPropertyRepository)
	svc := newTestService(repo, new(mockOwnerLinker))
	ctx := context.Background()

	repo.On("FindByID", ctx, "ghost").Return([]domain.Property{}, nil)

	err := svc.Delete(ctx, "ghost")

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestDelete_DuplicateIDConflict(t *testing.T) {
	repo := new(mockPropertyRepository)
	svc := newTestService(repo, new(mockOwnerLinker))
	ctx := context.Background()

	repo.On("FindByID", ctx, "dup").Return([]domain.Property{
		{ID: "key-1", IDField: "dup"},
		{ID: "key-2", IDField: "dup"},
	}, nil)

	err := svc.Delete(ctx, "dup")

	assert.ErrorIs(t, err, apperrors.ErrConflict)
	repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestDelete_Success(t *testing.T) {
	repo := new(mockPropertyRepository)
	svc := newTestService(repo, new(mockOwnerLinker))
	ctx := context.Background()

	repo.On("FindByID", ctx, "prop-1").Return([]domain.Property{{ID: "prop-1", IDField: "prop-1"}}, nil)
	repo.On("Delete", ctx, "prop-1").Return(nil)

	require.NoError(t, svc.Delete(ctx, "prop-1"))
	repo.AssertExpectations(t)
}

// --- Listing ---

func TestListAvailable_FiltersOwnAndUnlisted(t *testing.T) {
	svc, store := newMemoryService(UUIDAllocator{})
	ctx := context.Background()

	store.Seed(domain.Property{ID: "a", OwnerID: "owner-1", IsListed: true})
	store.Seed(domain.Property{ID: "b", OwnerID: "owner-2", IsListed: true})
	store.Seed(domain.Property{ID: "c", OwnerID: "owner-2", IsListed: false})

	available, err := svc.ListAvailable(ctx, "owner-1")

	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, "b", available[0].ID)
	for _, p := range available {
		assert.True(t, p.IsListed)
		assert.NotEqual(t, "owner-1", p.OwnerID)
	}
}

func TestListByOwner_EmptyOwnerID(t *testing.T) {
	svc, _ := newMemoryService(UUIDAllocator{})

	_, err := svc.ListByOwner(context.Background(), "")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestListByOwner_NoProperties(t *testing.T) {
	svc, _ := newMemoryService(UUIDAllocator{})

	properties, err := svc.ListByOwner(context.Background(), "owner-1")

	// Zero records for a named owner is an empty result, not an error.
	require.NoError(t, err)
	assert.Empty(t, properties)
}

func TestCountByOwner_MatchesList(t *testing.T) {
	svc, store := newMemoryService(UUIDAllocator{})
	ctx := context.Background()

	store.Seed(domain.Property{ID: "a", OwnerID: "owner-1"})
	store.Seed(domain.Property{ID: "b", OwnerID: "owner-1", IsListed: true})
	store.Seed(domain.Property{ID: "c", OwnerID: "owner-2"})

	count, err := svc.CountByOwner(ctx, "owner-1")
	require.NoError(t, err)

	listed, err := svc.ListByOwner(ctx, "owner-1")
	require.NoError(t, err)

	assert.Equal(t, len(listed), count)
	assert.Equal(t, 2, count)
}

func TestCountByOwner_EmptyOwnerID(t *testing.T) {
	svc, _ := newMemoryService(UUIDAllocator{})

	_, err := svc.CountByOwner(context.Background(), "")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

// --- Get / IsListed ---

func TestGet_NotFound(t *testing.T) {
	svc, _ := newMemoryService(UUIDAllocator{})

	_, err := svc.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestGet_FirstMatchOnDuplicates(t *testing.T) {
	svc, store := newMemoryService(UUIDAllocator{})

	// Get does not defend against duplicates the way Delete does: it
	// returns the first match.
	store.Seed(domain.Property{ID: "key-1", IDField: "dup", City: "Nantes"})
	store.Seed(domain.Property{ID: "key-2", IDField: "dup", City: "Brest"})

	got, err := svc.Get(context.Background(), "dup")
	require.NoError(t, err)
	assert.Equal(t, "dup", got.IDField)

	err = svc.Delete(context.Background(), "dup")
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestIsListed(t *testing.T) {
	svc, store := newMemoryService(UUIDAllocator{})
	ctx := context.Background()

	store.Seed(domain.Property{ID: "up", IsListed: true})
	store.Seed(domain.Property{ID: "down", IsListed: false})

	tests := []struct {
		name string
		id   string
		want bool
	}{
		{"listed property", "up", true},
		{"unlisted property", "down", false},
		// Absence reads as false, same as an unset flag.
		{"absent property", "ghost", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.IsListed(ctx, tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// --- SetListed / UpdateFields ---

func TestSetListed(t *testing.T) {
	svc, store := newMemoryService(UUIDAllocator{})
	ctx := context.Background()

	store.Seed(domain.Property{ID: "prop-1"})

	require.NoError(t, svc.SetListed(ctx, "prop-1", true))

	listed, err := svc.IsListed(ctx, "prop-1")
	require.NoError(t, err)
	assert.True(t, listed)
}

func TestSetListed_Missing(t *testing.T) {
	svc, _ := newMemoryService(UUIDAllocator{})

	err := svc.SetListed(context.Background(), "ghost", true)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUpdateFields_MergesAndPreserves(t *testing.T) {
	svc, store := newMemoryService(UUIDAllocator{})
	ctx := context.Background()

	store.Seed(domain.Property{ID: "prop-1", Name: "Loft", City: "Lyon"})

	require.NoError(t, svc.UpdateFields(ctx, "prop-1", map[string]any{"isListed": true}))

	got, err := svc.Get(ctx, "prop-1")
	require.NoError(t, err)
	assert.True(t, got.IsListed)
	assert.Equal(t, "Loft", got.Name)
	assert.Equal(t, "Lyon", got.City)
}

func TestUpdateFields_StampsUpdatedAt(t *testing.T) {
	svc, store := newMemoryService(UUIDAllocator{})
	ctx := context.Background()

	store.Seed(domain.Property{ID: "prop-1", Name: "Loft"})

	require.NoError(t, svc.UpdateFields(ctx, "prop-1", map[string]any{"name": "Bigger loft"}))

	got, err := svc.Get(ctx, "prop-1")
	require.NoError(t, err)
	assert.False(t, got.UpdatedAt.IsZero())
	// The timestamp is a struct field, not a passthrough document key.
	assert.NotContains(t, got.Extra, "updatedAt")
}

func TestUpdateFields_RejectsProtectedFields(t *testing.T) {
	svc, _ := newMemoryService(UUIDAllocator{})
	ctx := context.Background()

	for _, field := range []string{"id", "_id", "ownerId", "rating", "rating.value", "rating.amount"} {
		t.Run(field, func(t *testing.T) {
			err := svc.UpdateFields(ctx, "prop-1", map[string]any{field: "x"})
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		})
	}
}

func TestUpdateFields_EmptyInput(t *testing.T) {
	svc, _ := newMemoryService(UUIDAllocator{})

	assert.ErrorIs(t, svc.UpdateFields(context.Background(), "prop-1", nil), apperrors.ErrInvalidInput)
	assert.ErrorIs(t, svc.UpdateFields(context.Background(), "", map[string]any{"name": "x"}), apperrors.ErrInvalidInput)
}

// --- Rate ---

func TestRate_InvalidRating(t *testing.T) {
	svc, _ := newMemoryService(UUIDAllocator{})

	for _, raw := range []int{0, 6, -1} {
		_, err := svc.Rate(context.Background(), "prop-1", raw)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	}
}

func TestRate_NotFound(t *testing.T) {
	svc, _ := newMemoryService(UUIDAllocator{})

	_, err := svc.Rate(context.Background(), "ghost", 4)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRate_FoldsAggregate(t *testing.T) {
	svc, store := newMemoryService(UUIDAllocator{})
	ctx := context.Background()

	store.Seed(domain.Property{ID: "prop-1"})

	first, err := svc.Rate(ctx, "prop-1", 5)
	require.NoError(t, err)
	assert.Equal(t, domain.Rating{Value: 100, Amount: 1}, first)

	second, err := svc.Rate(ctx, "prop-1", 3)
	require.NoError(t, err)
	assert.Equal(t, domain.Rating{Value: 80, Amount: 2}, second)
}

func TestRate_RetriesOnConflictThenSucceeds(t *testing.T) {
	repo := new(mockPropertyRepository)
	svc := newTestService(repo, new(mockOwnerLinker))
	ctx := context.Background()

	stale := domain.Rating{}
	moved := domain.Rating{Value: 100, Amount: 1}

	repo.On("FindByID", ctx, "prop-1").
		Return([]domain.Property{{ID: "prop-1", IDField: "prop-1", Rating: stale}}, nil).Once()
	repo.On("CompareAndSwapRating", ctx, "prop-1", stale, stale.Fold(3)).
		Return(fmt.Errorf("rating moved: %w", apperrors.ErrConflict)).Once()

	repo.On("FindByID", ctx, "prop-1").
		Return([]domain.Property{{ID: "prop-1", IDField: "prop-1", Rating: moved}}, nil).Once()
	repo.On("CompareAndSwapRating", ctx, "prop-1", moved, moved.Fold(3)).
		Return(nil).Once()

	rating, err := svc.Rate(ctx, "prop-1", 3)

	require.NoError(t, err)
	assert.Equal(t, domain.Rating{Value: 80, Amount: 2}, rating)
	repo.AssertExpectations(t)
}

func TestRate_GivesUpAfterBoundedAttempts(t *testing.T) {
	repo := new(mockPropertyRepository)
	svc := newTestService(repo, new(mockOwnerLinker))
	ctx := context.Background()

	repo.On("FindByID", ctx, "prop-1").
		Return([]domain.Property{{ID: "prop-1", IDField: "prop-1"}}, nil)
	repo.On("CompareAndSwapRating", ctx, "prop-1", mock.Anything, mock.Anything).
		Return(fmt.Errorf("rating moved: %w", apperrors.ErrConflict))

	_, err := svc.Rate(ctx, "prop-1", 5)

	assert.ErrorIs(t, err, apperrors.ErrConflict)
	repo.AssertNumberOfCalls(t, "CompareAndSwapRating", defaultRatingAttempts)
}

func TestRate_ConfiguredAttemptBudget(t *testing.T) {
	repo := new(mockPropertyRepository)
	logger := newTestLogger()
	svc := NewPropertyService(repo, new(mockOwnerLinker), fixedAllocator{id: "prop-1"},
		newTestProducer(logger), logger, 2)
	ctx := context.Background()

	repo.On("FindByID", ctx, "prop-1").
		Return([]domain.Property{{ID: "prop-1", IDField: "prop-1"}}, nil)
	repo.On("CompareAndSwapRating", ctx, "prop-1", mock.Anything, mock.Anything).
		Return(fmt.Errorf("rating moved: %w", apperrors.ErrConflict))

	_, err := svc.Rate(ctx, "prop-1", 5)

	assert.ErrorIs(t, err, apperrors.ErrConflict)
	repo.AssertNumberOfCalls(t, "CompareAndSwapRating", 2)
}

// TestRate_ConcurrentSubmissions drives many simultaneous submissions at one
// property and checks that every accepted submission lands in the aggregate.
// Callers that lose the bounded retry race resubmit, as a real client would;
// the point is that no accepted write silently disappears.
func TestRate_ConcurrentSubmissions(t *testing.T) {
	svc, store := newMemoryService(UUIDAllocator{})
	ctx := context.Background()

	store.Seed(domain.Property{ID: "prop-1"})

	const submissions = 32

	var wg sync.WaitGroup
	errCh := make(chan error, submissions)

	for i := 0; i < submissions; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				_, err := svc.Rate(ctx, "prop-1", 5)
				if err == nil {
					return
				}
				if !errors.Is(err, apperrors.ErrConflict) {
					errCh <- err
					return
				}
			}
		}()
	}

	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatalf("unexpected rating error: %v", err)
	}

	got, err := svc.Get(ctx, "prop-1")
	require.NoError(t, err)
	assert.Equal(t, submissions, got.Rating.Amount)
	assert.InEpsilon(t, 100.0, got.Rating.Value, 1e-9)
}
