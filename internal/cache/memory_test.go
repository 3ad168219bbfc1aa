package cache

import (
	"bytes"
	"context"
	"net/url"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestMemoryPutGetWithinTTL(t *testing.T) {
	clk := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := NewMemory().WithClock(clk.now)
	ctx := context.Background()

	payload := []byte(`{"page":1,"results":[]}`)
	m.Put(ctx, "k", payload, time.Hour)

	clk.advance(59 * time.Minute)
	got, ok := m.Get(ctx, "k")
	if !ok {
		t.Fatal("expected hit within ttl")
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload = %s, want %s", got, payload)
	}
}

func TestMemoryMissAfterTTL(t *testing.T) {
	clk := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := NewMemory().WithClock(clk.now)
	ctx := context.Background()

	m.Put(ctx, "k", []byte("x"), time.Minute)
	clk.advance(time.Minute)

	if _, ok := m.Get(ctx, "k"); ok {
		t.Fatal("expected miss at expiry")
	}
	// expired entries are not purged, only hidden
	if m.Len() != 1 {
		t.Fatalf("len = %d, want 1", m.Len())
	}
}

func TestMemoryPutCopiesPayload(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	buf := []byte("abc")
	m.Put(ctx, "k", buf, time.Hour)
	buf[0] = 'z'

	got, _ := m.Get(ctx, "k")
	if string(got) != "abc" {
		t.Fatalf("stored payload mutated: %s", got)
	}
}

func TestMemoryGetReturnsCopy(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	m.Put(ctx, "k", []byte("abc"), time.Hour)

	got, _ := m.Get(ctx, "k")
	got[0] = 'z'

	again, _ := m.Get(ctx, "k")
	if string(again) != "abc" {
		t.Fatalf("cache entry mutated through Get: %s", again)
	}
}

func TestMemoryIgnoresNonPositiveTTL(t *testing.T) {
	m := NewMemory()
	m.Put(context.Background(), "k", []byte("x"), 0)
	if m.Len() != 0 {
		t.Fatal("zero ttl should not store")
	}
}

func TestKeyIgnoresParameterOrder(t *testing.T) {
	a := url.Values{}
	a.Set("page", "2")
	a.Set("query", "alien")
	a.Set("include_adult", "false")

	b := url.Values{}
	b.Set("include_adult", "false")
	b.Set("query", "alien")
	b.Set("page", "2")

	if Key("search", a) != Key("search", b) {
		t.Fatalf("keys differ: %q vs %q", Key("search", a), Key("search", b))
	}
	if Key("search", a) == Key("discover", a) {
		t.Fatal("operation must be part of the key")
	}
}
