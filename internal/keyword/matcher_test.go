package keyword

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/medbot/internal/models"
	"github.com/hyperjump/medbot/internal/storage"
)

func newStore(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.UpsertProviders(context.Background(), []*models.Provider{
		{ID: 1, Name: "Dr. A", Specialty: "Cardiology", Location: "Lahore", Keywords: "chest pain"},
		{ID: 2, Name: "Dr. B", Specialty: "Dermatology", Location: "Karachi", Keywords: "acne"},
		{ID: 3, Name: "Dr. C", Specialty: "Pediatric Cardiology", Location: "Islamabad", Keywords: "congenital"},
		{ID: 4, Name: "Dr. D", Specialty: "Neurology", Location: "Lahore", Keywords: "migraine"},
	}))
	return store
}

func names(ps []*models.Provider) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Name
	}
	return out
}

func TestSpecialties(t *testing.T) {
	assert.Equal(t, []string{"cardiology"}, Specialties("My HEART hurts, need a cardiologist"))
	assert.Equal(t, []string{"dermatology", "neurology"}, Specialties("skin and brain"))
	assert.Equal(t, []string{"cardiology"}, Specialties("heartburn"), "lay terms match as substrings")
	assert.Empty(t, Specialties("migraine"))
}

func TestMatcher_LayTerm(t *testing.T) {
	m := NewMatcher(newStore(t), nil)
	got := m.Match(context.Background(), "I have heart problems", 5)
	assert.Equal(t, []string{"Dr. A", "Dr. C"}, names(got))
}

func TestMatcher_LayTermLimit(t *testing.T) {
	m := NewMatcher(newStore(t), nil)
	got := m.Match(context.Background(), "cardio", 1)
	assert.Equal(t, []string{"Dr. A"}, names(got))
}

func TestMatcher_RawSubstring(t *testing.T) {
	m := NewMatcher(newStore(t), nil)
	ctx := context.Background()

	assert.Equal(t, []string{"Dr. A", "Dr. D"}, names(m.Match(ctx, "  LAHORE ", 5)))
	assert.Equal(t, []string{"Dr. D"}, names(m.Match(ctx, "migraine", 5)))
	assert.Equal(t, []string{"Dr. B"}, names(m.Match(ctx, "dermatology", 5)))
}

func TestMatcher_NoMatch(t *testing.T) {
	m := NewMatcher(newStore(t), nil)
	assert.Empty(t, m.Match(context.Background(), "xyzzy", 5))
	assert.Empty(t, m.Match(context.Background(), "   ", 5))
	assert.Empty(t, m.Match(context.Background(), "lahore", 0))
}

type brokenSource struct{}

func (brokenSource) MatchSpecialties(context.Context, []string, int) ([]*models.Provider, error) {
	return nil, errors.New("database is locked")
}

func (brokenSource) MatchAnyField(context.Context, string, int) ([]*models.Provider, error) {
	return nil, errors.New("database is locked")
}

func TestMatcher_StoreErrorsYieldEmpty(t *testing.T) {
	m := NewMatcher(brokenSource{}, nil)
	assert.Empty(t, m.Match(context.Background(), "heart", 3))
	assert.Empty(t, m.Match(context.Background(), "lahore", 3))
}
