package internal

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/iksnae/festive-connect/testutil"
)

func storeImplementations(t *testing.T) map[string]KVStore {
	t.Helper()
	sqliteStore, err := NewSQLiteStore(filepath.Join(testutil.CreateTempDir(t), "cache.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { _ = sqliteStore.Close() })
	return map[string]KVStore{
		"sqlite": sqliteStore,
		"memory": NewMemoryStore(),
	}
}

func TestKVStore_GetSetDelete(t *testing.T) {
	for name, store := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := store.Get("missing"); !errors.Is(err, ErrKeyNotFound) {
				t.Errorf("Get(missing) error = %v, want ErrKeyNotFound", err)
			}

			if err := store.Set("k", []byte(`{"a":1}`)); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			got, err := store.Get("k")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if string(got) != `{"a":1}` {
				t.Errorf("Get() = %q, want %q", got, `{"a":1}`)
			}

			// Overwrite
			if err := store.Set("k", []byte("v2")); err != nil {
				t.Fatalf("Set() overwrite error = %v", err)
			}
			got, _ = store.Get("k")
			if string(got) != "v2" {
				t.Errorf("Get() after overwrite = %q, want v2", got)
			}

			if err := store.Delete("k"); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if _, err := store.Get("k"); !errors.Is(err, ErrKeyNotFound) {
				t.Errorf("Get() after Delete error = %v, want ErrKeyNotFound", err)
			}

			// Deleting twice is fine
			if err := store.Delete("k"); err != nil {
				t.Errorf("Delete() of absent key error = %v", err)
			}
		})
	}
}

func TestKVStore_Keys(t *testing.T) {
	for name, store := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			for _, k := range []string{"festive_session_b", "festive_session_a", "festiveXsessionXc", "other"} {
				if err := store.Set(k, []byte("{}")); err != nil {
					t.Fatalf("Set(%q) error = %v", k, err)
				}
			}

			keys, err := store.Keys("festive_session_")
			if err != nil {
				t.Fatalf("Keys() error = %v", err)
			}
			want := []string{"festive_session_a", "festive_session_b"}
			if !reflect.DeepEqual(keys, want) {
				t.Errorf("Keys() = %v, want %v", keys, want)
			}
		})
	}
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	store := NewMemoryStore()
	buf := []byte("abc")
	_ = store.Set("k", buf)
	buf[0] = 'z'

	got, _ := store.Get("k")
	if string(got) != "abc" {
		t.Errorf("stored value aliased caller slice: %q", got)
	}
}

func TestNewSQLiteStoreFromDB(t *testing.T) {
	db := testutil.CreateTestDB(t)
	store := NewSQLiteStoreFromDB(db)

	got, err := store.Get("festive_session_s2")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(got) == 0 {
		t.Error("Get() returned empty value for seeded key")
	}
}
