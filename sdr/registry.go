package sdr

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"sync"

	"github.com/joshuapare/sdrkit/internal/format"
	"github.com/joshuapare/sdrkit/internal/logger"
	"github.com/joshuapare/sdrkit/sdr/tx"
)

// Registry owns the SDRs of a process, one per name.
type Registry struct {
	log   *slog.Logger
	hook  FatalHook
	trace bool

	mu      sync.Mutex
	sdrs    map[string]*SDR
	keys    map[int64]string
	nextKey int64
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger. Records carry an sdr=<name> attribute.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

// WithFatalHook sets a hook run when an SDR halts, before the panic.
func WithFatalHook(h FatalHook) Option {
	return func(r *Registry) { r.hook = h }
}

// WithTrace records the call site of every allocation; see SDR.TraceReport.
func WithTrace() Option {
	return func(r *Registry) { r.trace = true }
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		log:     logger.L,
		sdrs:    make(map[string]*SDR),
		keys:    make(map[int64]string),
		nextKey: 1,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Load returns the SDR named by p, opening (and if needed formatting or
// recovering) it on first use. Loading a name again with the same profile
// returns the same SDR; a different profile fails with ErrProfileConflict.
func (r *Registry) Load(p Profile) (*SDR, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sdrs[p.Name]; ok {
		if !s.prof.same(p) {
			return nil, fmt.Errorf("load %s: %w", p.Name, ErrProfileConflict)
		}
		return s, nil
	}

	var err error
	if p.Flags&InDRAM != 0 {
		if p.HeapKey, err = r.claim(p.HeapKey, p.Name); err != nil {
			return nil, err
		}
	}
	if p.Reversible() && p.LogSize > 0 {
		if p.LogKey, err = r.claim(p.LogKey, p.Name); err != nil {
			r.unclaim(p.Name)
			return nil, err
		}
	}

	s, err := open(p, r)
	if err != nil {
		r.unclaim(p.Name)
		return nil, err
	}
	r.sdrs[p.Name] = s
	s.log.Info("sdr loaded", "flags", p.Flags.String(), "heap_bytes", p.HeapSize(), "path", p.Path)
	return s, nil
}

func (r *Registry) claim(key int64, name string) (int64, error) {
	if key == 0 {
		for r.keys[r.nextKey] != "" {
			r.nextKey++
		}
		key = r.nextKey
	}
	if owner, ok := r.keys[key]; ok {
		return 0, fmt.Errorf("key %d already used by %s: %w", key, owner, ErrProfileConflict)
	}
	r.keys[key] = name
	return key, nil
}

func (r *Registry) unclaim(name string) {
	for k, n := range r.keys {
		if n == name {
			delete(r.keys, k)
		}
	}
}

// Get returns the loaded SDR called name.
func (r *Registry) Get(name string) (*SDR, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sdrs[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrNotLoaded)
	}
	return s, nil
}

// Names lists the loaded SDRs.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.sdrs))
	for n := range r.sdrs {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Destroy closes the SDR called name and removes its files.
func (r *Registry) Destroy(name string) error {
	r.mu.Lock()
	s, ok := r.sdrs[name]
	if ok {
		delete(r.sdrs, name)
		r.unclaim(name)
	}
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("destroy %s: %w", name, ErrNotLoaded)
	}

	errs := []error{s.close()}
	for _, path := range []string{s.prof.HeapPath(), s.prof.LogPath()} {
		if !s.prof.InFile() && path == s.prof.HeapPath() {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	s.log.Info("sdr destroyed")
	return errors.Join(errs...)
}

// Close closes every SDR. Transactions still in progress are canceled.
func (r *Registry) Close() error {
	r.mu.Lock()
	all := r.sdrs
	r.sdrs = make(map[string]*SDR)
	clear(r.keys)
	r.mu.Unlock()

	var errs []error
	for _, s := range all {
		errs = append(errs, s.close())
	}
	return errors.Join(errs...)
}

// Unlock frees the heap file of p from a transaction whose owner process
// died: the owner recorded in the map is checked, and loading the heap
// reverses the abandoned log. It returns the owner that was recorded. An
// owner in this process is ejected instead.
func (r *Registry) Unlock(p Profile) (tx.Owner, int, error) {
	if err := p.Validate(); err != nil {
		return tx.Owner{}, 0, err
	}
	if !p.InFile() {
		s, err := r.Get(p.Name)
		if err != nil {
			return tx.Owner{}, 0, err
		}
		o, depth := s.Owner()
		if o.IsZero() {
			return o, 0, nil
		}
		_, err = s.Eject()
		return o, depth, err
	}

	o, depth, err := ReadOwner(p.HeapPath())
	if err != nil {
		return tx.Owner{}, 0, err
	}
	if o.Task == os.Getpid() {
		if s, err := r.Get(p.Name); err == nil {
			if cur, _ := s.tx.Owner(); cur == o {
				_, err := s.Eject()
				return o, depth, err
			}
		}
	} else if !o.IsZero() && tx.Alive(o.Task) {
		return o, depth, fmt.Errorf("unlock %s held by %s: %w", p.Name, o, ErrOwnerAlive)
	}
	s, err := r.Load(p)
	if err != nil {
		return o, depth, err
	}
	// A transaction of our own adopts any log left behind and rewrites the
	// owner fields.
	if err := s.readOnly(func() error { return nil }); err != nil {
		return o, depth, err
	}
	return o, depth, nil
}

// ReadOwner reads the transaction owner recorded in a heap file without
// loading it.
func ReadOwner(heapPath string) (tx.Owner, int, error) {
	f, err := os.Open(heapPath)
	if err != nil {
		return tx.Owner{}, 0, err
	}
	defer f.Close()
	b := make([]byte, format.MapSize)
	if _, err := f.ReadAt(b, 0); err != nil {
		return tx.Owner{}, 0, fmt.Errorf("read map of %s: %w", heapPath, err)
	}
	if _, err := format.ParseMap(b); err != nil {
		return tx.Owner{}, 0, fmt.Errorf("%s: %w", heapPath, err)
	}
	o := format.ReadOwner(b)
	return tx.Owner{Task: int(o.Task), Thread: o.Thread}, int(o.Depth), nil
}
