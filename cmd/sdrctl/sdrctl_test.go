package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/joshuapare/sdrkit/internal/format"
)

func TestCreateAndInfo(t *testing.T) {
	tests := []struct {
		name        string
		json        bool
		check       bool
		wantContain []string
	}{
		{
			name:        "text",
			wantContain: []string{"Name: orders", "Flags: file|reversible", "Owner: none", "Unassigned:"},
		},
		{
			name:        "with check",
			check:       true,
			wantContain: []string{"Map valid", "Free lists consistent"},
		},
		{
			name:        "json",
			json:        true,
			check:       true,
			wantContain: []string{`"name": "orders"`, `"checked": true`, `"heap_size": 131072`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags(t)
			createHeap(t, "orders")
			jsonOut = tt.json
			infoCheck = tt.check

			output, err := captureOutput(t, func() error { return runInfo([]string{"orders"}) })
			if err != nil {
				t.Fatalf("runInfo() error = %v\nOutput: %s", err, output)
			}
			if tt.json {
				assertJSON(t, output)
			}
			assertContains(t, output, tt.wantContain)
		})
	}
}

func TestCreateRules(t *testing.T) {
	resetFlags(t)
	if err := runCreate([]string{"nowords"}); err == nil {
		t.Error("create without --words succeeded")
	}
	createHeap(t, "once")
	heapWords = 1 << 14
	if _, err := captureOutput(t, func() error { return runCreate([]string{"once"}) }); err == nil {
		t.Error("second create of the same heap succeeded")
	}
	heapWords = 0
	if err := runInfo([]string{"missing"}); err == nil {
		t.Error("info on a missing heap succeeded")
	}
	heapFlags = "dram"
	if err := runInfo([]string{"once"}); err == nil {
		t.Error("info on a dram profile succeeded")
	}
}

func TestUsage(t *testing.T) {
	resetFlags(t)
	createHeap(t, "u")
	output, err := captureOutput(t, func() error { return runUsage([]string{"u"}) })
	if err != nil {
		t.Fatalf("runUsage() error = %v", err)
	}
	assertContains(t, output, []string{"Small pool:", "Large pool:", "Unassigned:"})

	jsonOut = true
	output, err = captureOutput(t, func() error { return runUsage([]string{"u"}) })
	if err != nil {
		t.Fatalf("runUsage() error = %v", err)
	}
	assertJSON(t, output)
	assertContains(t, output, []string{`"small_pool_size"`, `"unassigned"`})
}

func TestCatalogCommands(t *testing.T) {
	resetFlags(t)
	createHeap(t, "cat")
	run := func(fn func([]string) error, args ...string) (string, error) {
		return captureOutput(t, func() error { return fn(append([]string{"cat"}, args...)) })
	}

	for _, kv := range [][2]string{{"zeta", "last"}, {"alpha", "first"}} {
		if _, err := run(runCatalogPut, kv[0], kv[1]); err != nil {
			t.Fatalf("put %s: %v", kv[0], err)
		}
	}
	if _, err := run(runCatalogPut, "alpha", "again"); err == nil {
		t.Error("put of an existing entry succeeded")
	}

	output, err := run(runCatalogGet, "alpha")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	assertContains(t, output, []string{"first"})

	output, err = run(runCatalogList)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	assertContains(t, output, []string{"alpha", "zeta", `"last"`})
	if a, z := strings.Index(output, "alpha"), strings.Index(output, "zeta"); a > z {
		t.Errorf("entries out of order:\n%s", output)
	}
	assertNotContains(t, output, []string{"again"})

	if _, err := run(runCatalogRm, "alpha"); err != nil {
		t.Fatalf("rm: %v", err)
	}
	if _, err := run(runCatalogGet, "alpha"); err == nil {
		t.Error("get after rm succeeded")
	}

	jsonOut = true
	output, err = run(runCatalogList)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	assertJSON(t, output)
	assertContains(t, output, []string{`"name": "zeta"`, `"type": "string"`})
}

func TestTraceReportsOutstandingAllocations(t *testing.T) {
	resetFlags(t)
	createHeap(t, "tr")
	trace = true
	output, err := captureOutput(t, func() error { return runCatalogPut([]string{"tr", "k", "v"}) })
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	assertContains(t, output, []string{"Outstanding allocations: 4", "sdrstring.go", "catalog.go"})
}

func TestOwnerAndUnlock(t *testing.T) {
	dir := resetFlags(t)
	createHeap(t, "own")

	output, err := captureOutput(t, func() error { return runOwner([]string{"own"}) })
	if err != nil {
		t.Fatalf("owner: %v", err)
	}
	assertContains(t, output, []string{"no transaction in progress"})

	// Record an owner whose process cannot exist.
	plantOwner(t, filepath.Join(dir, "own.sdr"), format.MapOwner{Task: 0x7ffffff0, Thread: uuid.New(), Depth: 2})

	output, err = captureOutput(t, func() error { return runOwner([]string{"own"}) })
	if err != nil {
		t.Fatalf("owner: %v", err)
	}
	assertContains(t, output, []string{"depth 2", "process gone"})

	output, err = captureOutput(t, func() error { return runUnlock([]string{"own"}) })
	if err != nil {
		t.Fatalf("unlock: %v", err)
	}
	assertContains(t, output, []string{"released transaction", "depth 2"})

	output, err = captureOutput(t, func() error { return runOwner([]string{"own"}) })
	if err != nil {
		t.Fatalf("owner: %v", err)
	}
	assertContains(t, output, []string{"no transaction in progress"})
}

func TestUnlockRefusesLiveOwner(t *testing.T) {
	dir := resetFlags(t)
	createHeap(t, "live")
	plantOwner(t, filepath.Join(dir, "live.sdr"), format.MapOwner{Task: int64(os.Getppid()), Thread: uuid.New(), Depth: 1})
	if _, err := captureOutput(t, func() error { return runUnlock([]string{"live"}) }); err == nil {
		t.Error("unlock of a live owner succeeded")
	}
}

func TestDestroy(t *testing.T) {
	dir := resetFlags(t)
	createHeap(t, "gone")
	if _, err := captureOutput(t, func() error { return runDestroy([]string{"gone"}) }); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "gone.sdr")); !os.IsNotExist(err) {
		t.Errorf("heap file still present: %v", err)
	}
}

func plantOwner(t *testing.T, path string, o format.MapOwner) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	b := make([]byte, format.MapSize)
	if _, err := f.ReadAt(b, 0); err != nil {
		t.Fatal(err)
	}
	format.PutOwner(b, o)
	if _, err := f.WriteAt(b, 0); err != nil {
		t.Fatal(err)
	}
}

func TestVersion(t *testing.T) {
	resetFlags(t)
	output, err := captureOutput(t, runVersion)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	assertContains(t, output, []string{"sdrctl dev", "map layout: 1"})
}
