// Package table stores fixed-geometry arrays of rows in an SDR heap. A table
// is a header object naming a rows object of rowSize*rowCount bytes.
package table

import (
	"fmt"

	"github.com/joshuapare/sdrkit/internal/buf"
	"github.com/joshuapare/sdrkit/sdr"
)

const (
	offRowSize  = 0
	offRowCount = 8
	offUserData = 16
	offRows     = 24
	hdrSize     = 32
)

// Table is the object of a table header.
type Table sdr.Object

func (tb Table) at(off int64) sdr.Address { return sdr.Object(tb).Addr().Add(off) }

// Create allocates a zeroed table of rowCount rows of rowSize bytes.
func Create(t *sdr.Txn, rowSize, rowCount int64) (Table, error) {
	if rowSize <= 0 || rowCount <= 0 {
		return 0, t.Fail(fmt.Errorf("table %dx%d: %w", rowCount, rowSize, sdr.ErrInvalidArgument))
	}
	total, ok := buf.MulOverflowSafe(rowSize, rowCount)
	if !ok {
		return 0, t.Fail(fmt.Errorf("table %dx%d overflows: %w", rowCount, rowSize, sdr.ErrInvalidArgument))
	}
	rows, err := t.Zalloc(total)
	if err != nil {
		return 0, err
	}
	hdr, err := t.Zalloc(hdrSize)
	if err != nil {
		return 0, err
	}
	tb := Table(hdr)
	for _, w := range [...]struct {
		off int64
		v   sdr.Address
	}{
		{offRowSize, sdr.Address(rowSize)},
		{offRowCount, sdr.Address(rowCount)},
		{offRows, sdr.Address(rows)},
	} {
		if err := t.PokeAddress(tb.at(w.off), w.v); err != nil {
			return 0, err
		}
	}
	return tb, nil
}

// Destroy frees the rows and the header.
func Destroy(t *sdr.Txn, tb Table) error {
	g, err := geometry(t, tb)
	if err != nil {
		return err
	}
	if err := t.Free(g.rows); err != nil {
		return err
	}
	return t.Free(sdr.Object(tb))
}

// Dimensions returns the row size and row count.
func Dimensions(t *sdr.Txn, tb Table) (rowSize, rowCount int64, err error) {
	g, err := geometry(t, tb)
	return g.rowSize, g.rowCount, err
}

// UserData returns the table's user data word.
func UserData(t *sdr.Txn, tb Table) (sdr.Address, error) {
	if _, err := geometry(t, tb); err != nil {
		return 0, err
	}
	return t.ReadAddress(tb.at(offUserData))
}

// SetUserData replaces the table's user data word.
func SetUserData(t *sdr.Txn, tb Table, data sdr.Address) error {
	if _, err := geometry(t, tb); err != nil {
		return err
	}
	return t.PokeAddress(tb.at(offUserData), data)
}

// RowAddress returns the address of row i.
func RowAddress(t *sdr.Txn, tb Table, i int64) (sdr.Address, error) {
	g, err := geometry(t, tb)
	if err != nil {
		return 0, err
	}
	return g.row(t, i, g.rowSize)
}

// ReadRow copies up to one row at row i into p.
func ReadRow(t *sdr.Txn, tb Table, i int64, p []byte) error {
	g, err := geometry(t, tb)
	if err != nil {
		return err
	}
	a, err := g.row(t, i, int64(len(p)))
	if err != nil {
		return err
	}
	return t.Read(a, p)
}

// WriteRow stores p, at most one row long, at the start of row i.
func WriteRow(t *sdr.Txn, tb Table, i int64, p []byte) error {
	g, err := geometry(t, tb)
	if err != nil {
		return err
	}
	a, err := g.row(t, i, int64(len(p)))
	if err != nil {
		return err
	}
	return t.Poke(a, p)
}

type header struct {
	rowSize  int64
	rowCount int64
	rows     sdr.Object
}

func geometry(t *sdr.Txn, tb Table) (header, error) {
	n, err := t.ObjectLength(sdr.Object(tb))
	if err != nil {
		return header{}, err
	}
	if n != hdrSize {
		return header{}, t.Fail(fmt.Errorf("table %s has %d header bytes: %w", sdr.Object(tb), n, sdr.ErrInvalidArgument))
	}
	var h [hdrSize]byte
	if err := t.Read(tb.at(0), h[:]); err != nil {
		return header{}, err
	}
	return header{
		rowSize:  int64(buf.U64LE(h[offRowSize:])),
		rowCount: int64(buf.U64LE(h[offRowCount:])),
		rows:     sdr.Object(buf.U64LE(h[offRows:])),
	}, nil
}

// row checks that n bytes starting at row i stay inside that row.
func (h header) row(t *sdr.Txn, i, n int64) (sdr.Address, error) {
	if i < 0 || i >= h.rowCount || n > h.rowSize {
		return 0, t.Fail(fmt.Errorf("row %d (%d bytes) of %dx%d table: %w", i, n, h.rowCount, h.rowSize, sdr.ErrOutOfBounds))
	}
	if _, err := buf.CheckRows(h.rowCount*h.rowSize, i*h.rowSize, 1, n); err != nil {
		return 0, t.Fail(fmt.Errorf("row %d: %w: %w", i, sdr.ErrOutOfBounds, err))
	}
	return h.rows.Addr().Add(i * h.rowSize), nil
}
