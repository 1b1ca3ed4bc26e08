package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"testing"
)

func TestMemoryStore_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	type doc struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	if err := s.Get(ctx, "missing", &doc{}); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("get missing: got %v, want ErrKeyNotFound", err)
	}

	if err := s.Set(ctx, "k", doc{Name: "a", Count: 2}, 0); err != nil {
		t.Fatalf("set: %v", err)
	}

	var got doc
	if err := s.Get(ctx, "k", &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "a" || got.Count != 2 {
		t.Fatalf("get: got %+v", got)
	}

	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Get(ctx, "k", &got); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("get after delete: got %v, want ErrKeyNotFound", err)
	}
}

func TestMemoryStore_TxnIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	const goroutines = 50
	const increments = 20

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < increments; i++ {
				_, err := s.Txn(ctx, "counter", func(current []byte) ([]byte, error) {
					n := 0
					if current != nil {
						var err error
						n, err = strconv.Atoi(string(current))
						if err != nil {
							return nil, err
						}
					}
					return []byte(strconv.Itoa(n + 1)), nil
				})
				if err != nil {
					t.Errorf("txn: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	var n int
	if err := s.Get(ctx, "counter", &n); err != nil {
		t.Fatalf("get counter: %v", err)
	}
	if n != goroutines*increments {
		t.Fatalf("counter: got %d, want %d", n, goroutines*increments)
	}
}

func TestMemoryStore_TxnErrorAbortsWrite(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if err := s.Set(ctx, "k", "before", 0); err != nil {
		t.Fatalf("set: %v", err)
	}

	wantErr := errors.New("refused")
	_, err := s.Txn(ctx, "k", func(current []byte) ([]byte, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("txn error: got %v, want %v", err, wantErr)
	}

	var got string
	if err := s.Get(ctx, "k", &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "before" {
		t.Fatalf("value changed after aborted txn: %q", got)
	}
}

func TestMemoryStore_TxnNilDeletes(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if err := s.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("set: %v", err)
	}

	if _, err := s.Txn(ctx, "k", func(current []byte) ([]byte, error) {
		return nil, nil
	}); err != nil {
		t.Fatalf("txn: %v", err)
	}

	var got json.RawMessage
	if err := s.Get(ctx, "k", &got); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("get after delete-txn: got %v, want ErrKeyNotFound", err)
	}
}

func TestMemoryStore_Sets(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if err := s.SetAdd(ctx, "idx", "a", "b", "a"); err != nil {
		t.Fatalf("sadd: %v", err)
	}

	members, err := s.SetMembers(ctx, "idx")
	if err != nil {
		t.Fatalf("smembers: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("members: got %v, want 2 entries", members)
	}

	if err := s.SetRemove(ctx, "idx", "a"); err != nil {
		t.Fatalf("srem: %v", err)
	}
	members, err = s.SetMembers(ctx, "idx")
	if err != nil {
		t.Fatalf("smembers: %v", err)
	}
	if len(members) != 1 || members[0] != "b" {
		t.Fatalf("members after remove: got %v, want [b]", members)
	}
}
