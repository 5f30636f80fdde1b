package sdr

import (
	"fmt"
	"path/filepath"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/joshuapare/sdrkit/sdr/space"
)

// TraceEntry describes one outstanding allocation.
type TraceEntry struct {
	Object space.Object `json:"object"`
	Size   int64        `json:"size"`
	File   string       `json:"file"`
	Line   int          `json:"line"`
	At     time.Time    `json:"at"`
}

func (e TraceEntry) String() string {
	return fmt.Sprintf("%s %d bytes at %s:%d", e.Object, e.Size, filepath.Base(e.File), e.Line)
}

// tracer keeps the call site of every live allocation. Changes made inside
// a transaction are pending until it commits and are undone by reversal.
type tracer struct {
	mu   sync.Mutex
	live map[space.Object]TraceEntry

	added []space.Object
	freed []TraceEntry
}

func newTracer() *tracer {
	return &tracer{live: make(map[space.Object]TraceEntry)}
}

// malloc records obj; skip counts frames above the caller of malloc.
func (t *tracer) malloc(obj space.Object, size int64, skip int) {
	e := TraceEntry{Object: obj, Size: size, At: time.Now()}
	if _, file, line, ok := runtime.Caller(skip + 1); ok {
		e.File, e.Line = file, line
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.live[obj] = e
	t.added = append(t.added, obj)
}

func (t *tracer) free(obj space.Object) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.live[obj]
	if !ok {
		return
	}
	delete(t.live, obj)
	// an allocation made by this transaction leaves no trace to restore
	if i := slices.Index(t.added, obj); i >= 0 {
		t.added = slices.Delete(t.added, i, i+1)
		return
	}
	t.freed = append(t.freed, e)
}

func (t *tracer) commit() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.added = t.added[:0]
	t.freed = t.freed[:0]
}

func (t *tracer) rollback() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, obj := range t.added {
		delete(t.live, obj)
	}
	for _, e := range t.freed {
		t.live[e.Object] = e
	}
	t.added = t.added[:0]
	t.freed = t.freed[:0]
}

func (t *tracer) report() []TraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TraceEntry, 0, len(t.live))
	for _, e := range t.live {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b TraceEntry) int {
		switch {
		case a.Object < b.Object:
			return -1
		case a.Object > b.Object:
			return 1
		}
		return 0
	})
	return out
}
