package game

import (
	"testing"

	"github.com/google/uuid"
)

func TestMemoryStoreLookup(t *testing.T) {
	store := NewMemoryStore()

	s := &Session{ID: uuid.New(), JoinCode: "483920"}
	store.Put(s)

	got, ok := store.Get(s.ID)
	if !ok || got != s {
		t.Fatal("expected session by id")
	}
	got, ok = store.GetByCode("483920")
	if !ok || got != s {
		t.Fatal("expected session by code")
	}
	if _, ok := store.GetByCode("000000"); ok {
		t.Fatal("unexpected session for unknown code")
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore()

	s := &Session{ID: uuid.New(), JoinCode: "112233"}
	store.Put(s)
	store.Delete(s.ID)

	if _, ok := store.Get(s.ID); ok {
		t.Fatal("session still present after delete")
	}
	if _, ok := store.GetByCode("112233"); ok {
		t.Fatal("join code still mapped after delete")
	}
	if n := len(store.List()); n != 0 {
		t.Fatalf("List() = %d sessions, want 0", n)
	}
}

func TestMemoryStoreDeleteKeepsReusedCode(t *testing.T) {
	store := NewMemoryStore()

	old := &Session{ID: uuid.New(), JoinCode: "555555"}
	store.Put(old)

	// A newer session took over the code; deleting the old session by id
	// must not unmap the newcomer.
	fresh := &Session{ID: uuid.New(), JoinCode: "555555"}
	store.Put(fresh)
	store.Delete(old.ID)

	got, ok := store.GetByCode("555555")
	if !ok || got != fresh {
		t.Fatal("expected fresh session to stay mapped to the code")
	}
}
