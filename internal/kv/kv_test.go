package kv_test

import (
	"context"
	"errors"
	"os"
	"slices"
	"testing"

	"github.com/playperu/weaver/internal/database"
	"github.com/playperu/weaver/internal/kv"
	"github.com/playperu/weaver/internal/migrations"
)

func sqliteStore(t *testing.T) kv.Store {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := migrations.Run(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return kv.NewSQLite(db)
}

func redisStore(t *testing.T) kv.Store {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	rdb, err := kv.OpenRedis(context.Background(), url)
	if err != nil {
		t.Fatalf("open redis: %v", err)
	}
	t.Cleanup(func() {
		rdb.FlushDB(context.Background())
		rdb.Close()
	})
	return kv.NewRedis(rdb)
}

func TestStores(t *testing.T) {
	backends := []struct {
		name string
		open func(t *testing.T) kv.Store
	}{
		{"memory", func(*testing.T) kv.Store { return kv.NewMemory() }},
		{"sqlite", sqliteStore},
		{"redis", redisStore},
	}

	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			t.Run("get missing", func(t *testing.T) {
				s := b.open(t)
				if _, err := s.Get(context.Background(), "game:nope"); !errors.Is(err, kv.ErrNotFound) {
					t.Errorf("err = %v, want ErrNotFound", err)
				}
			})

			t.Run("set get overwrite", func(t *testing.T) {
				s := b.open(t)
				ctx := context.Background()

				if err := s.Set(ctx, "game:1", []byte(`{"phase":"LOBBY"}`)); err != nil {
					t.Fatalf("set: %v", err)
				}
				if err := s.Set(ctx, "game:1", []byte(`{"phase":"STARTING"}`)); err != nil {
					t.Fatalf("overwrite: %v", err)
				}
				got, err := s.Get(ctx, "game:1")
				if err != nil {
					t.Fatalf("get: %v", err)
				}
				if string(got) != `{"phase":"STARTING"}` {
					t.Errorf("got %s", got)
				}
			})

			t.Run("delete", func(t *testing.T) {
				s := b.open(t)
				ctx := context.Background()

				if err := s.Set(ctx, "activeGame", []byte(`"g1"`)); err != nil {
					t.Fatalf("set: %v", err)
				}
				if err := s.Delete(ctx, "activeGame"); err != nil {
					t.Fatalf("delete: %v", err)
				}
				if _, err := s.Get(ctx, "activeGame"); !errors.Is(err, kv.ErrNotFound) {
					t.Errorf("after delete err = %v, want ErrNotFound", err)
				}
				if err := s.Delete(ctx, "activeGame"); err != nil {
					t.Errorf("delete missing: %v", err)
				}
			})

			t.Run("scan prefix", func(t *testing.T) {
				s := b.open(t)
				ctx := context.Background()

				for k, v := range map[string]string{
					"session:a": `"a"`,
					"session:b": `"b"`,
					"sessions":  `"no"`,
					"game:x":    `"x"`,
				} {
					if err := s.Set(ctx, k, []byte(v)); err != nil {
						t.Fatalf("set %s: %v", k, err)
					}
				}

				vals, err := s.ScanPrefix(ctx, "session:")
				if err != nil {
					t.Fatalf("scan: %v", err)
				}
				var got []string
				for _, v := range vals {
					got = append(got, string(v))
				}
				slices.Sort(got)
				if want := []string{`"a"`, `"b"`}; !slices.Equal(got, want) {
					t.Errorf("scan = %v, want %v", got, want)
				}
			})
			t.Run("scan non-ascii prefix", func(t *testing.T) {
				s := b.open(t)
				ctx := context.Background()

				for k, v := range map[string]string{
					"jugador:ñandú:1": `"1"`,
					"jugador:ñandú:2": `"2"`,
					"jugador:ñandú;":  `"next"`,
					"jugador:nandu:1": `"ascii"`,
				} {
					if err := s.Set(ctx, k, []byte(v)); err != nil {
						t.Fatalf("set %s: %v", k, err)
					}
				}

				vals, err := s.ScanPrefix(ctx, "jugador:ñandú:")
				if err != nil {
					t.Fatalf("scan: %v", err)
				}
				var got []string
				for _, v := range vals {
					got = append(got, string(v))
				}
				slices.Sort(got)
				if want := []string{`"1"`, `"2"`}; !slices.Equal(got, want) {
					t.Errorf("scan = %v, want %v", got, want)
				}
			})
		})
	}
}
