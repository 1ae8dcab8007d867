package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/purchase-planner/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

var base = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func TestSQLite_SaveAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	p := solvedPlan("farmacia", base)
	require.NoError(t, st.SavePlan(ctx, p))
	require.NotEmpty(t, p.ID)

	got, err := st.GetPlan(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, "farmacia", got.ListName)
	assert.Equal(t, model.PlanStatusSolved, got.Status)
	assert.True(t, base.Equal(got.CreatedAt))
	assert.Equal(t, p.Demands, got.Demands)
	require.NotNil(t, got.Solution)
	assert.Equal(t, "59.9", got.Solution.Total.String())
	assert.Equal(t, []string{"Shop One"}, got.Solution.Vendors())

	order, ok := got.Solution.Order("Shop One")
	require.True(t, ok)
	require.Len(t, order.Items, 2)
	assert.Equal(t, "https://one.example/cable", order.Items[0].URL())
	assert.Equal(t, "25", order.Items[0].LineTotal().String())
	assert.Equal(t, "4.9", order.Shipping.String())
}

func TestSQLite_SaveReplaces(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	p := infeasiblePlan("list", base)
	require.NoError(t, st.SavePlan(ctx, p))

	p.Status = model.PlanStatusSolved
	p.Error = ""
	require.NoError(t, st.SavePlan(ctx, p))

	got, err := st.GetPlan(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PlanStatusSolved, got.Status)
	assert.Empty(t, got.Error)

	all, err := st.ListPlans(ctx, PlanFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSQLite_GetNotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetPlan(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_ListPlans(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	first := solvedPlan("farmacia", base)
	second := infeasiblePlan("farmacia", base.Add(time.Minute))
	third := solvedPlan("hardware", base.Add(2*time.Minute))
	for _, p := range []*model.Plan{first, second, third} {
		require.NoError(t, st.SavePlan(ctx, p))
	}

	ids := func(plans []model.Plan) []string {
		out := make([]string, len(plans))
		for i, p := range plans {
			out[i] = p.ID
		}
		return out
	}

	tests := []struct {
		name   string
		filter PlanFilter
		want   []string
	}{
		{"all newest first", PlanFilter{}, []string{third.ID, second.ID, first.ID}},
		{"by status", PlanFilter{Status: model.PlanStatusSolved}, []string{third.ID, first.ID}},
		{"by list", PlanFilter{ListName: "farmacia"}, []string{second.ID, first.ID}},
		{"both", PlanFilter{Status: model.PlanStatusInfeasible, ListName: "farmacia"}, []string{second.ID}},
		{"limit", PlanFilter{Limit: 1}, []string{third.ID}},
		{"offset", PlanFilter{Limit: 2, Offset: 2}, []string{first.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := st.ListPlans(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}

	none, err := st.ListPlans(ctx, PlanFilter{ListName: "absent"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLite_DeletePlan(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	p := solvedPlan("farmacia", base)
	require.NoError(t, st.SavePlan(ctx, p))
	require.NoError(t, st.DeletePlan(ctx, p.ID))

	_, err := st.GetPlan(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	err = st.DeletePlan(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Migrate(context.Background()))
	require.NoError(t, st.Ping(context.Background()))
}
