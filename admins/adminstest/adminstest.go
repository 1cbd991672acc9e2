// Package adminstest provides a conformance suite for admins.Backend
// implementations.
package adminstest

import (
	"context"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/ggoodman/webadmin-go/admins"
	"github.com/ggoodman/webadmin-go/identity"
)

// BackendFactory creates a new, empty Backend for a single test.
type BackendFactory func(t *testing.T) admins.Backend

// RunBackendTests runs the complete Backend test suite against the provided factory.
func RunBackendTests(t *testing.T, factory BackendFactory) {
	t.Run("WriteThenRead", func(t *testing.T) { testWriteThenRead(t, factory) })
	t.Run("WriteReplaces", func(t *testing.T) { testWriteReplaces(t, factory) })
	t.Run("WriteEmpty", func(t *testing.T) { testWriteEmpty(t, factory) })
	t.Run("Store_SurvivesRestart", func(t *testing.T) { testStoreSurvivesRestart(t, factory) })
	t.Run("Store_FirstAdminPersisted", func(t *testing.T) { testFirstAdminPersisted(t, factory) })
}

func ctxFor(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func readSorted(t *testing.T, ctx context.Context, b admins.Backend) []identity.Identity {
	t.Helper()
	got, err := b.ReadAll(ctx)
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	slices.Sort(got)
	return got
}

func testWriteThenRead(t *testing.T, factory BackendFactory) {
	ctx := ctxFor(t)
	b := factory(t)
	want := []identity.Identity{"alpha", "bravo", "charlie"}
	if err := b.WriteAll(ctx, []identity.Identity{"charlie", "alpha", "bravo"}); err != nil {
		t.Fatalf("write all: %v", err)
	}
	if got := readSorted(t, ctx, b); !slices.Equal(got, want) {
		t.Fatalf("want %v got %v", want, got)
	}
}

func testWriteReplaces(t *testing.T, factory BackendFactory) {
	ctx := ctxFor(t)
	b := factory(t)
	if err := b.WriteAll(ctx, []identity.Identity{"a", "b"}); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := b.WriteAll(ctx, []identity.Identity{"c"}); err != nil {
		t.Fatalf("second write: %v", err)
	}
	if got := readSorted(t, ctx, b); !slices.Equal(got, []identity.Identity{"c"}) {
		t.Fatalf("want [c] got %v", got)
	}
}

func testWriteEmpty(t *testing.T, factory BackendFactory) {
	ctx := ctxFor(t)
	b := factory(t)
	if err := b.WriteAll(ctx, []identity.Identity{"a"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := b.WriteAll(ctx, nil); err != nil {
		t.Fatalf("write empty: %v", err)
	}
	if got := readSorted(t, ctx, b); len(got) != 0 {
		t.Fatalf("want empty got %v", got)
	}
}

func testStoreSurvivesRestart(t *testing.T, factory BackendFactory) {
	ctx := ctxFor(t)
	b := factory(t)
	s := admins.NewStore(b)
	for i := 0; i < 3; i++ {
		s.Add(ctx, identity.Identity(fmt.Sprintf("admin-%d", i)))
	}
	s.Remove(ctx, "admin-1")

	restarted := admins.NewStore(b)
	if err := restarted.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	want := []identity.Identity{"admin-0", "admin-2"}
	if got := restarted.Admins(); !slices.Equal(got, want) {
		t.Fatalf("want %v got %v", want, got)
	}
}

func testFirstAdminPersisted(t *testing.T, factory BackendFactory) {
	ctx := ctxFor(t)
	b := factory(t)
	s := admins.NewStore(b)
	if !s.AddFirstAdminIfNecessary(ctx, "first") {
		t.Fatalf("first admin not added")
	}
	restarted := admins.NewStore(b)
	if err := restarted.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if restarted.IsAnonymousAdminAccessEnabled() {
		t.Fatalf("anonymous mode re-enabled after restart")
	}
	if !restarted.IsAdmin("first") {
		t.Fatalf("first admin lost across restart")
	}
}
