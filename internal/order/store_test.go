package order

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddCreatesBlankPendingOrder(t *testing.T) {
	store := NewStore()
	o := store.Add()
	require.True(t, strings.HasPrefix(o.ID, "ORD-"), "id %q", o.ID)
	assert.Equal(t, StatusPending, o.Status)
	for _, f := range Fields {
		value, err := o.Value(f)
		require.NoError(t, err)
		assert.Empty(t, value, "field %s", f)
	}
	second := store.Add()
	assert.NotEqual(t, o.ID, second.ID)
	assert.Equal(t, 2, store.Len())
}

func TestInsertRejectsDuplicates(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.Insert(SampleOrders()...))
	err := store.Insert(Order{ID: "ORD-001"})
	require.ErrorIs(t, err, ErrDuplicateID)
	err = store.Insert(Order{ID: "X"}, Order{ID: "X"})
	require.ErrorIs(t, err, ErrDuplicateID)
	assert.Equal(t, 5, store.Len())
	require.Error(t, store.Insert(Order{ID: " "}))
}

func TestUpdateFieldEditsDescriptiveColumns(t *testing.T) {
	store := NewStore()
	o := store.Add()
	require.NoError(t, store.UpdateField(o.ID, FieldLot, "L2024-009"))
	require.NoError(t, store.UpdateField(o.ID, FieldBattery, "B-010"))
	got, ok := store.Get(o.ID)
	require.True(t, ok)
	assert.Equal(t, "L2024-009", got.Lot)
	assert.Equal(t, "B-010", got.Battery)
	assert.Equal(t, StatusPending, got.Status)

	require.ErrorIs(t, store.UpdateField("missing", FieldLot, "x"), ErrNotFound)
	require.ErrorIs(t, store.UpdateField(o.ID, Field("status"), "released"), ErrUnknownField)
}

func TestTransitionFollowsLifecycle(t *testing.T) {
	store := NewStore()
	o := store.Add()

	require.ErrorIs(t, store.Transition(o.ID, StatusReleased), ErrInvalidTransition)
	require.NoError(t, store.Transition(o.ID, StatusProcessing))
	require.ErrorIs(t, store.Transition(o.ID, StatusPending), ErrInvalidTransition)
	require.NoError(t, store.Transition(o.ID, StatusFailed))
	require.ErrorIs(t, store.Transition(o.ID, StatusProcessing), ErrInvalidTransition)
	require.ErrorIs(t, store.Transition("nope", StatusProcessing), ErrNotFound)

	got, _ := store.Get(o.ID)
	assert.Equal(t, StatusFailed, got.Status)
}

func TestCanTransitionTable(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusProcessing, StatusReleased, true},
		{StatusProcessing, StatusFailed, true},
		{StatusPending, StatusReleased, false},
		{StatusPending, StatusFailed, false},
		{StatusReleased, StatusPending, false},
		{StatusFailed, StatusProcessing, false},
		{StatusProcessing, StatusProcessing, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestTerminalStatuses(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusProcessing.IsTerminal())
	assert.True(t, StatusReleased.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
}

func TestSnapshotIsACopy(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.Insert(SampleOrders()...))
	snap := store.Snapshot()
	snap[0].Product = "mutated"
	got, _ := store.Get("ORD-001")
	assert.Equal(t, "CORO-001", got.Product)
}

func TestFilterMatchesSearchableColumns(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.Insert(SampleOrders()...))

	assert.Len(t, store.Filter(""), 5)
	assert.Len(t, store.Filter("corona"), 2)
	assert.Len(t, store.Filter("l2024-003"), 2)
	assert.Len(t, store.Filter("PLT-02"), 2)
	// prehop is not searchable
	assert.Empty(t, store.Filter("PH-01"))
}

func TestCountsAndClear(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.Insert(SampleOrders()...))
	c := store.Counts()
	assert.Equal(t, Counts{Total: 5, Pending: 4, Released: 1}, c)
	store.Clear()
	assert.Equal(t, Counts{}, store.Counts())
}
