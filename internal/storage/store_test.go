package storage

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := NewStore("sqlite", filepath.Join(t.TempDir(), "evonet.db"))
	if err != nil {
		t.Fatalf("new sqlite store: %v", err)
	}
	t.Cleanup(func() {
		_ = CloseIfSupported(sqlite)
	})
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func TestStoreRunRoundTrip(t *testing.T) {
	for name, store := range backends(t) {
		store := store
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := store.Init(ctx); err != nil {
				t.Fatalf("init: %v", err)
			}
			run := testRunRecord("run-1", time.Unix(100, 0))
			if err := store.SaveRun(ctx, run); err != nil {
				t.Fatalf("save run: %v", err)
			}
			loaded, ok, err := store.GetRun(ctx, run.ID)
			if err != nil {
				t.Fatalf("get run: %v", err)
			}
			if !ok {
				t.Fatalf("expected run %s", run.ID)
			}
			if !reflect.DeepEqual(run, loaded) {
				t.Fatalf("unexpected run loaded: %+v", loaded)
			}
			if _, ok, err := store.GetRun(ctx, "missing"); err != nil || ok {
				t.Fatalf("expected missing run, got ok=%v err=%v", ok, err)
			}
		})
	}
}

func TestStoreListRunsNewestFirst(t *testing.T) {
	for name, store := range backends(t) {
		store := store
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := store.Init(ctx); err != nil {
				t.Fatalf("init: %v", err)
			}
			for i, id := range []string{"old", "new", "mid"} {
				created := time.Unix(int64([]int{100, 300, 200}[i]), 0)
				if err := store.SaveRun(ctx, testRunRecord(id, created)); err != nil {
					t.Fatalf("save run %s: %v", id, err)
				}
			}
			runs, err := store.ListRuns(ctx, 0)
			if err != nil {
				t.Fatalf("list runs: %v", err)
			}
			var ids []string
			for _, run := range runs {
				ids = append(ids, run.ID)
			}
			if !reflect.DeepEqual(ids, []string{"new", "mid", "old"}) {
				t.Fatalf("unexpected run order: %v", ids)
			}
			limited, err := store.ListRuns(ctx, 2)
			if err != nil {
				t.Fatalf("list runs: %v", err)
			}
			if len(limited) != 2 || limited[0].ID != "new" {
				t.Fatalf("unexpected limited runs: %+v", limited)
			}
		})
	}
}

func TestStoreGenomeRoundTrip(t *testing.T) {
	for name, store := range backends(t) {
		store := store
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := store.Init(ctx); err != nil {
				t.Fatalf("init: %v", err)
			}
			record := testGenomeRecord(t, "g1")
			if err := store.SaveGenome(ctx, record); err != nil {
				t.Fatalf("save genome: %v", err)
			}
			record.Genome.Connections[0].Strength = 99

			loaded, ok, err := store.GetGenome(ctx, "g1")
			if err != nil {
				t.Fatalf("get genome: %v", err)
			}
			if !ok {
				t.Fatal("expected genome g1")
			}
			if loaded.Genome.Connections[0].Strength == 99 {
				t.Fatal("stored genome aliases the caller's genome")
			}
			if loaded.RunID != "run-1" || loaded.Fitness != 3 {
				t.Fatalf("unexpected genome record: %+v", loaded)
			}
		})
	}
}

func TestStoreRequiresInit(t *testing.T) {
	for name, store := range backends(t) {
		store := store
		t.Run(name, func(t *testing.T) {
			if err := store.SaveRun(context.Background(), testRunRecord("run-1", time.Unix(1, 0))); err == nil {
				t.Fatal("expected uninitialized store error")
			}
		})
	}
}
