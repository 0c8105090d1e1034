package registry

import (
	"fmt"
	"sync"
	"testing"
)

type testItem struct {
	ID   string
	Tier string
}

func TestRegistry_Register(t *testing.T) {
	reg := New[testItem]()

	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{name: "register valid item", key: "item-1", wantErr: false},
		{name: "register empty name", key: "", wantErr: true},
		{name: "register duplicate", key: "item-1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := reg.Register(tt.key, testItem{ID: tt.key})
			if (err != nil) != tt.wantErr {
				t.Errorf("Register() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegistry_PutReplaces(t *testing.T) {
	reg := New[testItem]()
	reg.Put("a", testItem{ID: "a", Tier: "fast"})
	reg.Put("a", testItem{ID: "a", Tier: "deep"})

	item, ok := reg.Get("a")
	if !ok {
		t.Fatal("expected item to exist")
	}
	if item.Tier != "deep" {
		t.Errorf("Put() did not replace: got tier %q", item.Tier)
	}
	if reg.Count() != 1 {
		t.Errorf("Count() = %d, want 1", reg.Count())
	}
}

func TestRegistry_GetMissing(t *testing.T) {
	reg := New[testItem]()
	if _, ok := reg.Get("nope"); ok {
		t.Error("Get() on empty registry returned ok")
	}
}

func TestRegistry_Names(t *testing.T) {
	reg := New[testItem]()
	for _, name := range []string{"charlie", "alpha", "bravo"} {
		if err := reg.Register(name, testItem{ID: name}); err != nil {
			t.Fatalf("Register(%q): %v", name, err)
		}
	}

	names := reg.Names()
	want := []string{"alpha", "bravo", "charlie"}
	if len(names) != len(want) {
		t.Fatalf("Names() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestRegistry_Find(t *testing.T) {
	reg := New[testItem]()
	reg.Put("a", testItem{ID: "a", Tier: "fast"})
	reg.Put("b", testItem{ID: "b", Tier: "deep"})
	reg.Put("c", testItem{ID: "c", Tier: "deep"})

	deep := reg.Find(func(it testItem) bool { return it.Tier == "deep" })
	if len(deep) != 2 {
		t.Errorf("Find() returned %d items, want 2", len(deep))
	}
}

func TestRegistry_Remove(t *testing.T) {
	reg := New[testItem]()
	reg.Put("a", testItem{ID: "a"})

	if !reg.Remove("a") {
		t.Error("Remove() of existing item returned false")
	}
	if reg.Remove("a") {
		t.Error("Remove() of missing item returned true")
	}
	if reg.Count() != 0 {
		t.Errorf("Count() = %d after removal, want 0", reg.Count())
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	reg := New[int]()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			reg.Put(fmt.Sprintf("key-%d", n), n)
			reg.Get(fmt.Sprintf("key-%d", n%10))
			reg.Count()
		}(i)
	}
	wg.Wait()

	if reg.Count() != 50 {
		t.Errorf("Count() = %d after concurrent puts, want 50", reg.Count())
	}
}
