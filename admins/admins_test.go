package admins

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/ggoodman/webadmin-go/identity"
)

var errBoom = errors.New("boom")

type failingBackend struct {
	readErr  error
	writeErr error
	writes   int
}

func (f *failingBackend) ReadAll(ctx context.Context) ([]identity.Identity, error) {
	return nil, f.readErr
}

func (f *failingBackend) WriteAll(ctx context.Context, ids []identity.Identity) error {
	f.writes++
	return f.writeErr
}

func TestAnonymousMode(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemoryBackend(nil))
	if !s.IsAnonymousAdminAccessEnabled() {
		t.Fatalf("empty store must be in anonymous mode")
	}
	if !s.HasAdminPermissions("anyone") {
		t.Fatalf("anonymous mode must grant admin permissions")
	}
	s.Add(ctx, "u1")
	if s.IsAnonymousAdminAccessEnabled() {
		t.Fatalf("store with an admin is not anonymous")
	}
	if s.HasAdminPermissions("u2") {
		t.Fatalf("non-admin granted permissions")
	}
	if !s.HasAdminPermissions("u1") {
		t.Fatalf("admin denied permissions")
	}
	s.Remove(ctx, "u1")
	if !s.IsAnonymousAdminAccessEnabled() {
		t.Fatalf("removing last admin must re-enable anonymous mode")
	}
}

func TestMembershipNetEffect(t *testing.T) {
	ctx := context.Background()
	type op struct {
		add bool
		id  identity.Identity
	}
	tests := []struct {
		name string
		ops  []op
		want []identity.Identity
	}{
		{name: "add twice", ops: []op{{true, "a"}, {true, "a"}}, want: []identity.Identity{"a"}},
		{name: "add remove", ops: []op{{true, "a"}, {false, "a"}}, want: []identity.Identity{}},
		{name: "remove absent", ops: []op{{false, "a"}}, want: []identity.Identity{}},
		{name: "sorted", ops: []op{{true, "c"}, {true, "a"}, {true, "b"}, {false, "c"}}, want: []identity.Identity{"a", "b"}},
		{name: "readd", ops: []op{{true, "a"}, {false, "a"}, {true, "a"}}, want: []identity.Identity{"a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore(NewMemoryBackend(nil))
			for _, o := range tt.ops {
				if o.add {
					s.Add(ctx, o.id)
				} else {
					s.Remove(ctx, o.id)
				}
			}
			if got := s.Admins(); !slices.Equal(got, tt.want) {
				t.Fatalf("want %v got %v", tt.want, got)
			}
		})
	}
}

func TestUnknownIdentityIgnored(t *testing.T) {
	s := NewStore(NewMemoryBackend(nil))
	if s.Add(context.Background(), identity.Unknown) {
		t.Fatalf("unknown identity must not be recorded")
	}
	if !s.IsAnonymousAdminAccessEnabled() {
		t.Fatalf("store changed")
	}
}

func TestAddFirstAdminIfNecessary(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemoryBackend(nil))
	if !s.AddFirstAdminIfNecessary(ctx, "u1") {
		t.Fatalf("first admin not added")
	}
	if s.AddFirstAdminIfNecessary(ctx, "u2") {
		t.Fatalf("second identity must not become admin")
	}
	if got := s.Admins(); !slices.Equal(got, []identity.Identity{"u1"}) {
		t.Fatalf("want [u1] got %v", got)
	}
}

func TestAddFirstAdminIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemoryBackend(nil))
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if s.AddFirstAdminIfNecessary(ctx, identity.Identity(fmt.Sprintf("u%d", i))) {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	if winners != 1 {
		t.Fatalf("want exactly one first admin, got %d", winners)
	}
	if n := len(s.Admins()); n != 1 {
		t.Fatalf("want 1 admin got %d", n)
	}
}

func TestAutoSave(t *testing.T) {
	ctx := context.Background()
	t.Run("on", func(t *testing.T) {
		b := NewMemoryBackend(nil)
		s := NewStore(b)
		s.Add(ctx, "u1")
		s.Add(ctx, "u1")
		s.Remove(ctx, "u2")
		if b.Writes() != 1 {
			t.Fatalf("want 1 write got %d", b.Writes())
		}
		got, _ := b.ReadAll(ctx)
		if !slices.Equal(got, []identity.Identity{"u1"}) {
			t.Fatalf("persisted %v", got)
		}
	})
	t.Run("off", func(t *testing.T) {
		b := NewMemoryBackend(nil)
		s := NewStore(b, WithAutoSave(false))
		s.Add(ctx, "u1")
		if b.Writes() != 0 {
			t.Fatalf("want no writes got %d", b.Writes())
		}
		if err := s.Save(ctx); err != nil {
			t.Fatalf("save: %v", err)
		}
		got, _ := b.ReadAll(ctx)
		if !slices.Equal(got, []identity.Identity{"u1"}) {
			t.Fatalf("persisted %v", got)
		}
	})
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemoryBackend([]identity.Identity{"b", "a", ""}))
	if err := s.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := s.Admins(); !slices.Equal(got, []identity.Identity{"a", "b"}) {
		t.Fatalf("want [a b] got %v", got)
	}
}

func TestLoadFailureEnablesAnonymousMode(t *testing.T) {
	ctx := context.Background()
	b := &failingBackend{readErr: errBoom}
	s := NewStore(b, WithAutoSave(false))
	s.Add(ctx, "u1")
	if err := s.Load(ctx); !errors.Is(err, errBoom) {
		t.Fatalf("want errBoom got %v", err)
	}
	if !s.IsAnonymousAdminAccessEnabled() {
		t.Fatalf("failed load must leave an empty set")
	}
}

func TestReloadFailureKeepsCurrentSet(t *testing.T) {
	ctx := context.Background()
	b := &failingBackend{}
	s := NewStore(b)
	s.Add(ctx, "operator")

	var notified int
	s.OnChange(func(context.Context, []identity.Identity) { notified++ })

	b.readErr = errBoom
	if err := s.Reload(ctx); !errors.Is(err, errBoom) {
		t.Fatalf("want errBoom got %v", err)
	}
	if s.IsAnonymousAdminAccessEnabled() {
		t.Fatalf("failed reload must not enable anonymous access")
	}
	if !s.IsAdmin("operator") {
		t.Fatalf("failed reload dropped operator: %v", s.Admins())
	}
	if s.AddFirstAdminIfNecessary(ctx, "stranger") {
		t.Fatalf("stranger was bootstrapped as admin after failed reload")
	}
	if notified != 0 {
		t.Fatalf("want no change notification got %d", notified)
	}
}

// gatedBackend blocks ReadAll until released so a mutation can race it.
type gatedBackend struct {
	*MemoryBackend
	started chan struct{}
	release chan struct{}
}

func (g *gatedBackend) ReadAll(ctx context.Context) ([]identity.Identity, error) {
	ids, err := g.MemoryBackend.ReadAll(ctx)
	select {
	case g.started <- struct{}{}:
	default:
	}
	<-g.release
	return ids, err
}

func TestMutationDuringLoadSurvives(t *testing.T) {
	ctx := context.Background()
	g := &gatedBackend{
		MemoryBackend: NewMemoryBackend([]identity.Identity{"a"}),
		started:       make(chan struct{}, 1),
		release:       make(chan struct{}),
	}
	s := NewStore(g)

	loaded := make(chan error, 1)
	go func() { loaded <- s.Reload(ctx) }()
	<-g.started

	added := make(chan bool, 1)
	go func() { added <- s.Add(ctx, "b") }()
	time.Sleep(20 * time.Millisecond)
	close(g.release)

	if err := <-loaded; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !<-added {
		t.Fatalf("add reported no change")
	}
	want := []identity.Identity{"a", "b"}
	if got := s.Admins(); !slices.Equal(got, want) {
		t.Fatalf("want %v got %v", want, got)
	}
	persisted, _ := g.MemoryBackend.ReadAll(ctx)
	slices.Sort(persisted)
	if !slices.Equal(persisted, want) {
		t.Fatalf("want persisted %v got %v", want, persisted)
	}
}

func TestSaveFailureKeepsMemory(t *testing.T) {
	ctx := context.Background()
	b := &failingBackend{writeErr: errBoom}
	s := NewStore(b)
	if !s.Add(ctx, "u1") {
		t.Fatalf("add reported no change")
	}
	if b.writes != 1 {
		t.Fatalf("want 1 write attempt got %d", b.writes)
	}
	if !s.IsAdmin("u1") {
		t.Fatalf("in-memory set lost on persistence failure")
	}
	if err := s.Save(ctx); !errors.Is(err, errBoom) {
		t.Fatalf("want errBoom got %v", err)
	}
}

func TestNoBackend(t *testing.T) {
	s := NewStore(nil)
	s.Add(context.Background(), "u1")
	if !s.IsAdmin("u1") {
		t.Fatalf("memory-only store lost admin")
	}
	if err := s.Save(context.Background()); !errors.Is(err, ErrNoBackend) {
		t.Fatalf("want ErrNoBackend got %v", err)
	}
}

func TestChangeCallbacks(t *testing.T) {
	ctx := context.Background()
	var got [][]identity.Identity
	var s *Store
	s = NewStore(NewMemoryBackend(nil), WithOnChange(func(ctx context.Context, admins []identity.Identity) {
		// The mutation is visible before callbacks run.
		if !slices.Equal(s.Admins(), admins) {
			t.Errorf("callback snapshot %v differs from store %v", admins, s.Admins())
		}
		got = append(got, admins)
	}))
	s.Add(ctx, "b")
	s.Add(ctx, "a")
	s.Add(ctx, "a")
	s.Remove(ctx, "b")

	want := [][]identity.Identity{{"b"}, {"a", "b"}, {"a"}}
	if len(got) != len(want) {
		t.Fatalf("want %d notifications got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if !slices.Equal(got[i], want[i]) {
			t.Fatalf("notification %d: want %v got %v", i, want[i], got[i])
		}
	}
}

func TestLoadNotifiesOnlyOnChange(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend([]identity.Identity{"a"})
	calls := 0
	s := NewStore(b)
	s.OnChange(func(ctx context.Context, admins []identity.Identity) { calls++ })
	_ = s.Load(ctx)
	_ = s.Load(ctx)
	if calls != 1 {
		t.Fatalf("want 1 notification got %d", calls)
	}
	_ = b.WriteAll(ctx, []identity.Identity{"a", "b"})
	_ = s.Load(ctx)
	if calls != 2 {
		t.Fatalf("want 2 notifications got %d", calls)
	}
}

func TestConcurrentMutationsNotifyInOrder(t *testing.T) {
	ctx := context.Background()
	var mu sync.Mutex
	var sizes []int
	s := NewStore(NewMemoryBackend(nil))
	s.OnChange(func(ctx context.Context, admins []identity.Identity) {
		mu.Lock()
		sizes = append(sizes, len(admins))
		mu.Unlock()
	})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Add(ctx, identity.Identity(fmt.Sprintf("u%02d", i)))
		}(i)
	}
	wg.Wait()
	if len(sizes) != 50 {
		t.Fatalf("want 50 notifications got %d", len(sizes))
	}
	for i, n := range sizes {
		if n != i+1 {
			t.Fatalf("notification %d saw %d admins; callbacks ran out of order", i, n)
		}
	}
}
