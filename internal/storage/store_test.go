package storage

import (
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"rbcast/internal/message"
)

func TestInMemoryStore_ShouldDeliverOnce(t *testing.T) {
	store := NewInMemoryStore()
	id := message.ID{Origin: 1, Time: 1}

	if !store.ShouldDeliver(id) {
		t.Fatal("First sighting must be delivered")
	}
	for i := 0; i < 5; i++ {
		if store.ShouldDeliver(id) {
			t.Fatalf("Copy %d must not be delivered again", i+1)
		}
	}
	if !store.Contains(id) {
		t.Error("Expected id to be recorded")
	}
	if store.Len() != 1 {
		t.Errorf("Expected 1 delivered id, got %d", store.Len())
	}
}

func TestInMemoryStore_DistinctIDs(t *testing.T) {
	store := NewInMemoryStore()

	// Same time from different origins are different messages.
	ids := []message.ID{{Origin: 1, Time: 1}, {Origin: 2, Time: 1}, {Origin: 1, Time: 2}}
	for _, id := range ids {
		if !store.ShouldDeliver(id) {
			t.Errorf("Expected %s to be delivered", id)
		}
	}

	want := []message.ID{{Origin: 1, Time: 1}, {Origin: 2, Time: 1}, {Origin: 1, Time: 2}}
	if !reflect.DeepEqual(store.IDs(), want) {
		t.Errorf("Expected %v, got %v", want, store.IDs())
	}
}

func TestInMemoryStore_ContainsUnknown(t *testing.T) {
	store := NewInMemoryStore()
	if store.Contains(message.ID{Origin: 3, Time: 3}) {
		t.Error("Empty store must not contain anything")
	}
}

func TestInMemoryStore_ConcurrentShouldDeliver(t *testing.T) {
	store := NewInMemoryStore()
	id := message.ID{Origin: 2, Time: 7}

	var (
		wg        sync.WaitGroup
		delivered atomic.Int32
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if store.ShouldDeliver(id) {
				delivered.Add(1)
			}
		}()
	}
	wg.Wait()

	if delivered.Load() != 1 {
		t.Errorf("Expected exactly one delivery, got %d", delivered.Load())
	}
}

var _ Store = (*InMemoryStore)(nil)
