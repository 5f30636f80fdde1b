package image

import (
	"os"

	"github.com/joshuapare/sdrkit/internal/mmfile"
	"github.com/joshuapare/sdrkit/sdr/dirty"
)

// Mapped is a heap image that is a shared mapping of its file. Every process
// mapping the same file sees the same bytes.
type Mapped struct {
	m *mmfile.Mapping
}

// OpenMapped maps the heap file at path, creating it zero-filled at size bytes
// when it does not exist. An existing file of another size fails with
// mmfile.ErrSizeMismatch.
func OpenMapped(path string, size int64) (*Mapped, error) {
	m, err := mmfile.Open(path, size)
	if err != nil {
		return nil, err
	}
	return &Mapped{m: m}, nil
}

func (r *Mapped) Bytes() []byte { return r.m.Data }

// Flush msyncs the dirty pages and then syncs the file per mode.
func (r *Mapped) Flush(ranges []dirty.Range, mode dirty.FlushMode) error {
	if r.m.Data == nil {
		return ErrClosed
	}
	if err := dirty.SyncMapped(r.m.Data, ranges); err != nil {
		return err
	}
	return dirty.SyncFile(r.m.File, mode)
}

func (r *Mapped) File() *os.File { return r.m.File }

// Fresh reports whether the file was created by this open.
func (r *Mapped) Fresh() bool { return r.m.Created }

func (r *Mapped) Close() error { return r.m.Close() }
