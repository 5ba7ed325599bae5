// Package store implements append-only record lists persisted as one
// encoded blob per slot.
//
// Every Append is a load, append, encode, write cycle over the whole list.
// Appends through the same List are serialized; two processes appending to
// the same slot can still lose one append (last writer wins).
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"wishmaker/internal/kv"
	appLog "wishmaker/internal/log"
)

// ErrCorrupt is returned under DecodeStrict when a slot holds a blob that
// does not decode into the list's record type.
var ErrCorrupt = errors.New("store: slot holds undecodable data")

// DecodePolicy decides what happens when a slot cannot be read or decoded.
type DecodePolicy int

const (
	// DecodeLenient treats unreadable or undecodable slots as empty. The
	// next Append then replaces the bad blob.
	DecodeLenient DecodePolicy = iota
	// DecodeStrict surfaces the failure and refuses to overwrite.
	DecodeStrict
)

func (p DecodePolicy) String() string {
	if p == DecodeStrict {
		return "strict"
	}
	return "lenient"
}

// Observer is notified after a record has been persisted.
type Observer[T any] interface {
	RecordAppended(slot string, index int, rec T)
}

// ObserverFunc adapts a plain function to Observer.
type ObserverFunc[T any] func(slot string, index int, rec T)

func (f ObserverFunc[T]) RecordAppended(slot string, index int, rec T) {
	f(slot, index, rec)
}

// Option configures a List.
type Option func(*options)

type options struct {
	policy DecodePolicy
}

// WithDecodePolicy overrides the default DecodeLenient policy.
func WithDecodePolicy(p DecodePolicy) Option {
	return func(o *options) { o.policy = p }
}

// List is an ordered, append-only sequence of T stored in one slot.
type List[T any] struct {
	kv     kv.Store
	slot   string
	policy DecodePolicy

	mu sync.Mutex // serializes Append

	obsMu     sync.RWMutex
	nextObsID int
	observers []observerEntry[T]
}

type observerEntry[T any] struct {
	id  int
	obs Observer[T]
}

// NewList binds a list of T to slot in store.
func NewList[T any](store kv.Store, slot string, opts ...Option) (*List[T], error) {
	if store == nil {
		return nil, errors.New("store: nil kv store")
	}
	if err := kv.ValidateSlot(slot); err != nil {
		return nil, err
	}
	o := options{policy: DecodeLenient}
	for _, opt := range opts {
		opt(&o)
	}
	return &List[T]{kv: store, slot: slot, policy: o.policy}, nil
}

// Slot returns the slot name this list is bound to.
func (l *List[T]) Slot() string { return l.slot }

// Policy returns the decode policy in effect.
func (l *List[T]) Policy() DecodePolicy { return l.policy }

// Load returns all records in insertion order. A slot that was never
// written yields an empty, non-nil slice. Backend read errors are returned
// under either policy; only undecodable blobs are subject to the policy.
func (l *List[T]) Load() ([]T, error) {
	data, err := l.kv.Read(l.slot)
	if err != nil {
		return nil, fmt.Errorf("store: read slot %s: %w", l.slot, err)
	}
	return l.decode(data)
}

func (l *List[T]) decode(data []byte) ([]T, error) {
	if len(data) == 0 {
		return []T{}, nil
	}
	var recs []T
	if err := json.Unmarshal(data, &recs); err != nil {
		if l.policy == DecodeStrict {
			return nil, fmt.Errorf("%w: slot %s: %v", ErrCorrupt, l.slot, err)
		}
		appLog.Error("store: decode failed, treating slot as empty", err, "slot", l.slot, "bytes", len(data))
		return []T{}, nil
	}
	if recs == nil {
		recs = []T{}
	}
	return recs, nil
}

// Append adds rec to the end of the list, writes the whole list back and
// returns the new record's index. Observers run after the write succeeds.
func (l *List[T]) Append(rec T) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	recs, err := l.Load()
	if err != nil {
		return -1, err
	}
	recs = append(recs, rec)

	data, err := json.Marshal(recs)
	if err != nil {
		return -1, fmt.Errorf("store: encode slot %s: %w", l.slot, err)
	}
	if err := l.kv.Write(l.slot, data); err != nil {
		return -1, err
	}

	index := len(recs) - 1
	appLog.Debug("store: record appended", "slot", l.slot, "index", index, "bytes", len(data))
	l.notify(index, rec)
	return index, nil
}

// Subscribe registers obs and returns a function that removes it. Observers
// are called synchronously, in subscription order, while the append lock is
// held; they must not call Append on the same list.
func (l *List[T]) Subscribe(obs Observer[T]) (cancel func()) {
	l.obsMu.Lock()
	id := l.nextObsID
	l.nextObsID++
	l.observers = append(l.observers, observerEntry[T]{id: id, obs: obs})
	l.obsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.obsMu.Lock()
			defer l.obsMu.Unlock()
			for i, e := range l.observers {
				if e.id == id {
					l.observers = append(l.observers[:i:i], l.observers[i+1:]...)
					return
				}
			}
		})
	}
}

func (l *List[T]) notify(index int, rec T) {
	l.obsMu.RLock()
	obs := make([]Observer[T], 0, len(l.observers))
	for _, e := range l.observers {
		obs = append(obs, e.obs)
	}
	l.obsMu.RUnlock()

	for _, o := range obs {
		o.RecordAppended(l.slot, index, rec)
	}
}
