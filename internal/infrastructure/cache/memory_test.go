package cache

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pricewise/backend/internal/domain"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}

func newTestCache(t *testing.T) (*MemoryCache, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewMemoryCache(0)
	c.now = clock.Now
	t.Cleanup(func() { _ = c.Close() })
	return c, clock
}

func TestMemoryCache_SetAndGet(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		key     string
		value   []byte
		ttl     time.Duration
		advance time.Duration
		wantHit bool
	}{
		{name: "fresh entry", key: "k1", value: []byte(`{"predicted_price":1200}`), ttl: time.Minute, wantHit: true},
		{name: "expired entry", key: "k2", value: []byte("x"), ttl: time.Second, advance: 2 * time.Second},
		{name: "zero ttl never expires", key: "k3", value: []byte("y"), advance: 24 * time.Hour, wantHit: true},
		{name: "empty value", key: "k4", value: []byte{}, ttl: time.Minute, wantHit: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, clock := newTestCache(t)
			if err := c.Set(ctx, tt.key, tt.value, tt.ttl); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			clock.Advance(tt.advance)

			got, err := c.Get(ctx, tt.key)
			if !tt.wantHit {
				if !errors.Is(err, domain.ErrCacheMiss) {
					t.Errorf("Get() error = %v, want cache miss", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if !bytes.Equal(got, tt.value) {
				t.Errorf("Get() = %q, want %q", got, tt.value)
			}
		})
	}
}

func TestMemoryCache_ValuesAreCopied(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	value := []byte("abc")
	_ = c.Set(ctx, "k", value, time.Minute)
	value[0] = 'z'

	got, _ := c.Get(ctx, "k")
	if string(got) != "abc" {
		t.Fatalf("stored value changed through caller slice: %q", got)
	}
	got[1] = 'z'
	again, _ := c.Get(ctx, "k")
	if string(again) != "abc" {
		t.Fatalf("stored value changed through returned slice: %q", again)
	}
}

func TestMemoryCache_Miss(t *testing.T) {
	c, _ := newTestCache(t)
	_, err := c.Get(context.Background(), "missing")
	if !errors.Is(err, domain.ErrCacheMiss) {
		t.Errorf("Get() error = %v, want %v", err, domain.ErrCacheMiss)
	}
}

func TestMemoryCache_DeleteAndExists(t *testing.T) {
	c, clock := newTestCache(t)
	ctx := context.Background()

	_ = c.Set(ctx, "a", []byte("1"), time.Minute)
	if ok, _ := c.Exists(ctx, "a"); !ok {
		t.Fatal("Exists() = false after Set")
	}
	if err := c.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if ok, _ := c.Exists(ctx, "a"); ok {
		t.Fatal("Exists() = true after Delete")
	}

	_ = c.Set(ctx, "b", []byte("2"), time.Second)
	clock.Advance(time.Minute)
	if ok, _ := c.Exists(ctx, "b"); ok {
		t.Fatal("Exists() = true for expired key")
	}
}

func TestMemoryCache_PurgeAndClear(t *testing.T) {
	c, clock := newTestCache(t)
	ctx := context.Background()

	_ = c.Set(ctx, "short", []byte("1"), time.Second)
	_ = c.Set(ctx, "long", []byte("2"), time.Hour)
	clock.Advance(time.Minute)

	c.purge()
	if c.Size() != 1 {
		t.Fatalf("Size() after purge = %d, want 1", c.Size())
	}

	c.Clear()
	if c.Size() != 0 {
		t.Fatalf("Size() after Clear = %d, want 0", c.Size())
	}
}

func TestMemoryCache_ConcurrentAccess(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := string(rune('a' + i))
			_ = c.Set(ctx, key, []byte(key), time.Minute)
			_, _ = c.Get(ctx, key)
			_, _ = c.Exists(ctx, key)
		}(i)
	}
	wg.Wait()

	if c.Size() != 16 {
		t.Errorf("Size() = %d, want 16", c.Size())
	}
}

func TestMemoryCache_CloseTwice(t *testing.T) {
	c := NewMemoryCache(time.Millisecond)
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
}
