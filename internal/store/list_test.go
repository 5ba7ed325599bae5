package store

import (
	"errors"
	"fmt"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wishmaker/internal/kv"
	"wishmaker/internal/model"
)

// failingKV fails reads and/or writes on demand.
type failingKV struct {
	kv.Store
	readErr  error
	writeErr error
}

func (f *failingKV) Read(slot string) ([]byte, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.Store.Read(slot)
}

func (f *failingKV) Write(slot string, data []byte) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	return f.Store.Write(slot, data)
}

func newWishList(t *testing.T, backend kv.Store, opts ...Option) *List[model.Wish] {
	t.Helper()
	l, err := NewList[model.Wish](backend, "savedWishes", opts...)
	require.NoError(t, err)
	return l
}

func TestLoad_NeverWrittenSlotIsEmpty(t *testing.T) {
	for _, policy := range []DecodePolicy{DecodeLenient, DecodeStrict} {
		l := newWishList(t, kv.NewMemoryStore(), WithDecodePolicy(policy))
		got, err := l.Load()
		require.NoError(t, err, policy.String())
		require.NotNil(t, got)
		assert.Empty(t, got)
	}
}

func TestAppend_PreservesSubmissionOrder(t *testing.T) {
	l := newWishList(t, kv.NewMemoryStore())

	want := make([]model.Wish, 0, 25)
	for i := 0; i < 25; i++ {
		w := model.Wish(fmt.Sprintf("wish %d", i))
		idx, err := l.Append(w)
		require.NoError(t, err)
		assert.Equal(t, i, idx)
		want = append(want, w)
	}

	got, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestAppend_SurvivesReopen(t *testing.T) {
	backend, err := kv.NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = newWishList(t, backend).Append("Learn Rust")
	require.NoError(t, err)

	got, err := newWishList(t, backend).Load()
	require.NoError(t, err)
	assert.Equal(t, []model.Wish{"Learn Rust"}, got)
}

func TestEventsRoundTrip(t *testing.T) {
	backend := kv.NewMemoryStore()
	l, err := NewList[model.Event](backend, "savedEvents")
	require.NoError(t, err)

	t1 := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	events := []model.Event{
		{Title: "Gym", Description: "Leg day", StartDate: t1, EndDate: t1.Add(time.Hour)},
		{Title: "Trip", Description: "", StartDate: t1.AddDate(0, 1, 0), EndDate: t1},
	}
	for _, ev := range events {
		_, err := l.Append(ev)
		require.NoError(t, err)
	}

	got, err := l.Load()
	require.NoError(t, err)
	require.Len(t, got, 2)
	for i := range events {
		assert.Equal(t, events[i].Title, got[i].Title)
		assert.Equal(t, events[i].Description, got[i].Description)
		assert.True(t, events[i].StartDate.Equal(got[i].StartDate))
		assert.True(t, events[i].EndDate.Equal(got[i].EndDate))
	}
}

func TestLenient_CorruptSlotLoadsEmptyAndIsReplaced(t *testing.T) {
	backend := kv.NewMemoryStore()
	require.NoError(t, backend.Write("savedWishes", []byte(`{not json`)))
	l := newWishList(t, backend)

	got, err := l.Load()
	require.NoError(t, err)
	assert.Empty(t, got)

	idx, err := l.Append("fresh")
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	raw, err := backend.Read("savedWishes")
	require.NoError(t, err)
	assert.JSONEq(t, `["fresh"]`, string(raw))
}

func TestStrict_CorruptSlotIsSurfacedAndKept(t *testing.T) {
	backend := kv.NewMemoryStore()
	// An events blob read as wishes does not decode.
	require.NoError(t, backend.Write("savedWishes", []byte(`[{"title":"Gym"}]`)))
	l := newWishList(t, backend, WithDecodePolicy(DecodeStrict))

	_, err := l.Load()
	require.ErrorIs(t, err, ErrCorrupt)

	_, err = l.Append("x")
	require.ErrorIs(t, err, ErrCorrupt)

	raw, err := backend.Read("savedWishes")
	require.NoError(t, err)
	assert.Equal(t, `[{"title":"Gym"}]`, string(raw))
}

func TestReadFailure_IsReturnedUnderBothPolicies(t *testing.T) {
	boom := errors.New("disk on fire")
	backend := &failingKV{Store: kv.NewMemoryStore(), readErr: boom}

	_, err := newWishList(t, backend).Load()
	assert.ErrorIs(t, err, boom)

	_, err = newWishList(t, backend, WithDecodePolicy(DecodeStrict)).Load()
	assert.ErrorIs(t, err, boom)
}

func TestAppend_ReadFailureKeepsEarlierRecords(t *testing.T) {
	for _, policy := range []DecodePolicy{DecodeLenient, DecodeStrict} {
		t.Run(policy.String(), func(t *testing.T) {
			mem := kv.NewMemoryStore()
			backend := &failingKV{Store: mem}
			l := newWishList(t, backend, WithDecodePolicy(policy))
			for _, w := range []model.Wish{"a", "b", "c"} {
				_, err := l.Append(w)
				require.NoError(t, err)
			}

			var notified bool
			l.Subscribe(ObserverFunc[model.Wish](func(string, int, model.Wish) { notified = true }))

			backend.readErr = syscall.EIO
			idx, err := l.Append("d")
			require.ErrorIs(t, err, syscall.EIO)
			assert.Equal(t, -1, idx)
			assert.False(t, notified)

			raw, err := mem.Read("savedWishes")
			require.NoError(t, err)
			assert.JSONEq(t, `["a","b","c"]`, string(raw))
		})
	}
}

func TestAppend_WriteFailureIsReturned(t *testing.T) {
	boom := errors.New("read-only")
	backend := &failingKV{Store: kv.NewMemoryStore(), writeErr: boom}
	l := newWishList(t, backend)

	var notified bool
	l.Subscribe(ObserverFunc[model.Wish](func(string, int, model.Wish) { notified = true }))

	_, err := l.Append("x")
	require.ErrorIs(t, err, boom)
	assert.False(t, notified)
}

func TestObservers_CalledInOrderAndCancellable(t *testing.T) {
	l := newWishList(t, kv.NewMemoryStore())

	var calls []string
	cancelFirst := l.Subscribe(ObserverFunc[model.Wish](func(slot string, index int, rec model.Wish) {
		calls = append(calls, fmt.Sprintf("first:%s:%d:%s", slot, index, rec))
	}))
	l.Subscribe(ObserverFunc[model.Wish](func(slot string, index int, rec model.Wish) {
		calls = append(calls, fmt.Sprintf("second:%d", index))
	}))

	_, err := l.Append("a")
	require.NoError(t, err)
	cancelFirst()
	cancelFirst()
	_, err = l.Append("b")
	require.NoError(t, err)

	assert.Equal(t, []string{"first:savedWishes:0:a", "second:0", "second:1"}, calls)
}

func TestAppend_ConcurrentCallersDoNotLoseRecords(t *testing.T) {
	l := newWishList(t, kv.NewMemoryStore())

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := l.Append(model.Wish(fmt.Sprintf("w%d", i)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := l.Load()
	require.NoError(t, err)
	assert.Len(t, got, n)
}

func TestNewList_Validation(t *testing.T) {
	_, err := NewList[model.Wish](nil, "savedWishes")
	require.Error(t, err)

	_, err = NewList[model.Wish](kv.NewMemoryStore(), "bad/slot")
	require.ErrorIs(t, err, kv.ErrInvalidSlot)
}
