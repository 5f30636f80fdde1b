package image

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/joshuapare/sdrkit/internal/mmfile"
	"github.com/joshuapare/sdrkit/sdr/dirty"
)

// Mirror is a heap image in process memory whose committed ranges are
// written through to a file. Other processes do not see its stores until
// they are flushed, so a mirrored heap has a single writing process.
type Mirror struct {
	data  []byte
	f     *os.File
	fresh bool
}

// OpenMirror loads the heap file at path into memory, creating it at size
// bytes when it does not exist or is empty.
func OpenMirror(path string, size int64) (*Mirror, error) {
	if size <= 0 || size > int64(^uint(0)>>1) {
		return nil, fmt.Errorf("image: bad region size %d", size)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	r := &Mirror{data: make([]byte, size), f: f}
	switch info.Size() {
	case 0:
		if err := f.Truncate(size); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("image: size %s: %w", path, err)
		}
		r.fresh = true
	case size:
		if _, err := f.ReadAt(r.data, 0); err != nil && !errors.Is(err, io.EOF) {
			_ = f.Close()
			return nil, fmt.Errorf("image: load %s: %w", path, err)
		}
	default:
		_ = f.Close()
		return nil, fmt.Errorf("image: %s is %d bytes, want %d: %w", path, info.Size(), size, mmfile.ErrSizeMismatch)
	}
	return r, nil
}

func (r *Mirror) Bytes() []byte { return r.data }

// Flush writes each dirty range to the file and then syncs it per mode.
func (r *Mirror) Flush(ranges []dirty.Range, mode dirty.FlushMode) error {
	if r.f == nil {
		return ErrClosed
	}
	if len(ranges) == 0 {
		return nil
	}
	for _, rg := range ranges {
		rg, ok := dirty.Clip(rg, int64(len(r.data)))
		if !ok {
			continue
		}
		if _, err := r.f.WriteAt(r.data[rg.Off:rg.End()], rg.Off); err != nil {
			return fmt.Errorf("image: write back [0x%x,+%d): %w", rg.Off, rg.Len, err)
		}
	}
	return dirty.SyncFile(r.f, mode)
}

func (r *Mirror) File() *os.File { return r.f }

// Fresh reports whether the file was created (or was empty) at open.
func (r *Mirror) Fresh() bool { return r.fresh }

func (r *Mirror) Close() error {
	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f = nil
	r.data = nil
	return err
}
