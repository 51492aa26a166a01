package notify

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeHandle はテスト用のHandle実装。
type fakeHandle struct {
	id     string
	pushFn func(ctx context.Context, msg Message) error

	mu       sync.Mutex
	received []Message
}

func newFakeHandle(id string) *fakeHandle {
	return &fakeHandle{id: id}
}

func (h *fakeHandle) ID() string { return h.id }

func (h *fakeHandle) Push(ctx context.Context, msg Message) error {
	if h.pushFn != nil {
		if err := h.pushFn(ctx, msg); err != nil {
			return err
		}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.received = append(h.received, msg)
	return nil
}

func (h *fakeHandle) messages() []Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Message, len(h.received))
	copy(out, h.received)
	return out
}

func TestDirectory_RegisterAndLookup(t *testing.T) {
	d := NewDirectory()
	h := newFakeHandle("h1")

	d.Register("u", h)

	got, ok := d.Lookup("u")
	if !ok {
		t.Fatal("expected binding for u")
	}
	if got.ID() != "h1" {
		t.Errorf("handle = %q, want %q", got.ID(), "h1")
	}
	if d.Len() != 1 {
		t.Errorf("Len = %d, want 1", d.Len())
	}
}

func TestDirectory_LookupUnknown(t *testing.T) {
	d := NewDirectory()

	if _, ok := d.Lookup("nobody"); ok {
		t.Error("expected no binding")
	}
}

func TestDirectory_LastRegisterWins(t *testing.T) {
	d := NewDirectory()
	h1 := newFakeHandle("h1")
	h2 := newFakeHandle("h2")

	d.Register("u", h1)
	d.Register("u", h2)

	got, ok := d.Lookup("u")
	if !ok || got.ID() != "h2" {
		t.Fatalf("Lookup = %v, %v; want h2", got, ok)
	}
	if d.Len() != 1 {
		t.Errorf("Len = %d, want 1", d.Len())
	}
}

// 置き換えられた古い接続の切断は新しい接続に影響しない。
func TestDirectory_UnregisterSuperseded_IsNoop(t *testing.T) {
	d := NewDirectory()
	h1 := newFakeHandle("h1")
	h2 := newFakeHandle("h2")

	d.Register("u", h1)
	d.Register("u", h2)
	d.Unregister(h1)

	got, ok := d.Lookup("u")
	if !ok || got.ID() != "h2" {
		t.Fatalf("Lookup = %v, %v; want h2", got, ok)
	}
}

func TestDirectory_Unregister(t *testing.T) {
	d := NewDirectory()
	h := newFakeHandle("h1")

	d.Register("u", h)
	d.Unregister(h)

	if _, ok := d.Lookup("u"); ok {
		t.Error("expected binding removed")
	}
	if d.Len() != 0 {
		t.Errorf("Len = %d, want 0", d.Len())
	}

	// 2回目は何も起きない
	d.Unregister(h)
	d.Unregister(newFakeHandle("unknown"))
}

func TestDirectory_RegisterIgnoresInvalidInput(t *testing.T) {
	d := NewDirectory()

	d.Register("", newFakeHandle("h1"))
	d.Register("u", nil)

	if d.Len() != 0 {
		t.Errorf("Len = %d, want 0", d.Len())
	}
}

func TestDirectory_RegisterIdempotent(t *testing.T) {
	d := NewDirectory()
	h := newFakeHandle("h1")

	d.Register("u", h)
	d.Register("u", h)

	if d.Len() != 1 {
		t.Errorf("Len = %d, want 1", d.Len())
	}
	d.Unregister(h)
	if _, ok := d.Lookup("u"); ok {
		t.Error("expected binding removed")
	}
}

func TestDirectory_BindingRecordsEstablishedAt(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	d := NewDirectory(WithClock(func() time.Time { return fixed }))

	d.Register("u", newFakeHandle("h1"))

	b, ok := d.Binding("u")
	if !ok {
		t.Fatal("expected binding")
	}
	if !b.EstablishedAt.Equal(fixed) {
		t.Errorf("EstablishedAt = %v, want %v", b.EstablishedAt, fixed)
	}
	if b.UserID != "u" {
		t.Errorf("UserID = %q, want %q", b.UserID, "u")
	}
}

func TestDirectory_OnChangeReportsOnlineCount(t *testing.T) {
	var counts []int
	d := NewDirectory(WithOnChange(func(n int) { counts = append(counts, n) }))
	h1 := newFakeHandle("h1")
	h2 := newFakeHandle("h2")

	d.Register("u1", h1)
	d.Register("u2", h2)
	d.Unregister(h1)

	want := []int{1, 2, 1}
	if fmt.Sprint(counts) != fmt.Sprint(want) {
		t.Errorf("counts = %v, want %v", counts, want)
	}
}

func TestDirectory_ConcurrentAccess(t *testing.T) {
	d := NewDirectory()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			userID := fmt.Sprintf("u%d", i%5)
			h := newFakeHandle(fmt.Sprintf("h%d", i))
			d.Register(userID, h)
			d.Lookup(userID)
			if i%2 == 0 {
				d.Unregister(h)
			}
		}(i)
	}
	wg.Wait()

	if d.Len() > 5 {
		t.Errorf("Len = %d, want <= 5", d.Len())
	}
	// 残っている紐付けは逆引きと整合していること
	for i := 0; i < 5; i++ {
		userID := fmt.Sprintf("u%d", i)
		if h, ok := d.Lookup(userID); ok {
			d.Unregister(h)
			if _, ok := d.Lookup(userID); ok {
				t.Errorf("%s still bound after unregistering its handle", userID)
			}
		}
	}
}
