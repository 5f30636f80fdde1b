// Package hashtab implements fixed-key hash tables in an SDR heap. Buckets are
// rows of a table, each naming a list of entries sorted by key; an entry is
// an object holding the key followed by one Address of value.
package hashtab

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"

	"github.com/joshuapare/sdrkit/sdr"
	"github.com/joshuapare/sdrkit/sdr/list"
	"github.com/joshuapare/sdrkit/sdr/table"
)

// MaxKeyLen is the longest key a table can be created for.
const MaxKeyLen = 255

// ErrKeyExists is returned by Insert when the key is already present. It does
// not cancel the transaction.
var ErrKeyExists = errors.New("hashtab: key exists")

const (
	offKeyLen  = 0
	offCount   = 8
	offBuckets = 16
	hdrSize    = 24

	bucketSize = 8
)

// Hash is the object of a hash table header.
type Hash sdr.Object

func (h Hash) at(off int64) sdr.Address { return sdr.Object(h).Addr().Add(off) }

// Create allocates a table for keys of up to keyLen bytes, sized so that
// estEntries entries give chains of about meanSearchLength.
func Create(t *sdr.Txn, keyLen, estEntries, meanSearchLength int64) (Hash, error) {
	if keyLen <= 0 || keyLen > MaxKeyLen || estEntries < 0 || meanSearchLength <= 0 {
		return 0, t.Fail(fmt.Errorf("hash table key %d, %d entries, search %d: %w",
			keyLen, estEntries, meanSearchLength, sdr.ErrInvalidArgument))
	}
	n := max((estEntries+meanSearchLength-1)/meanSearchLength, 1)
	buckets, err := table.Create(t, bucketSize, n)
	if err != nil {
		return 0, err
	}
	obj, err := t.Zalloc(hdrSize)
	if err != nil {
		return 0, err
	}
	h := Hash(obj)
	if err := t.PokeAddress(h.at(offKeyLen), sdr.Address(keyLen)); err != nil {
		return 0, err
	}
	if err := t.PokeAddress(h.at(offBuckets), sdr.Address(buckets)); err != nil {
		return 0, err
	}
	return h, nil
}

// Insert adds key with value. A key already present yields ErrKeyExists.
func Insert(t *sdr.Txn, h Hash, key []byte, value sdr.Address) error {
	st, err := open(t, h)
	if err != nil {
		return err
	}
	k, err := st.pad(t, key)
	if err != nil {
		return err
	}
	l, err := st.bucket(t, k, true)
	if err != nil {
		return err
	}
	if e, err := st.find(t, l, k); err != nil {
		return err
	} else if e != 0 {
		return fmt.Errorf("insert %q: %w", key, ErrKeyExists)
	}

	obj, err := t.Malloc(st.keyLen + 8)
	if err != nil {
		return err
	}
	if err := t.Poke(obj.Addr(), k); err != nil {
		return err
	}
	if err := t.PokeAddress(obj.Addr().Add(st.keyLen), value); err != nil {
		return err
	}
	if _, err := list.Insert(t, l, obj.Addr(), st.compare, k); err != nil {
		return err
	}
	return st.addCount(t, h, 1)
}

// Retrieve returns the value stored for key.
func Retrieve(t *sdr.Txn, h Hash, key []byte) (value sdr.Address, found bool, err error) {
	e, st, err := lookup(t, h, key)
	if err != nil || e == 0 {
		return 0, false, err
	}
	v, err := st.value(t, e)
	return v, err == nil, err
}

// Revise replaces the value stored for key.
func Revise(t *sdr.Txn, h Hash, key []byte, value sdr.Address) (found bool, err error) {
	e, st, err := lookup(t, h, key)
	if err != nil || e == 0 {
		return false, err
	}
	obj, err := list.Data(t, e)
	if err != nil {
		return false, err
	}
	return true, t.PokeAddress(obj.Add(st.keyLen), value)
}

// Delete removes key and returns the value it held.
func Delete(t *sdr.Txn, h Hash, key []byte) (value sdr.Address, found bool, err error) {
	e, st, err := lookup(t, h, key)
	if err != nil || e == 0 {
		return 0, false, err
	}
	if value, err = st.value(t, e); err != nil {
		return 0, false, err
	}
	if err := list.Delete(t, e, freeEntry); err != nil {
		return 0, false, err
	}
	return value, true, st.addCount(t, h, -1)
}

// Count returns the number of entries.
func Count(t *sdr.Txn, h Hash) (int64, error) {
	st, err := open(t, h)
	return st.count, err
}

// Walk calls fn with every key and value, bucket by bucket, until fn returns
// false or an error. Keys are returned padded to the table's key length.
func Walk(t *sdr.Txn, h Hash, fn func(key []byte, value sdr.Address) (bool, error)) error {
	st, err := open(t, h)
	if err != nil {
		return err
	}
	stop := false
	for i := int64(0); i < st.rows && !stop; i++ {
		l, err := st.row(t, i)
		if err != nil {
			return err
		}
		if l == 0 {
			continue
		}
		err = list.Walk(t, l, func(_ list.Elt, obj sdr.Address) (bool, error) {
			k := make([]byte, st.keyLen)
			if err := t.Read(obj, k); err != nil {
				return false, err
			}
			v, err := t.ReadAddress(obj.Add(st.keyLen))
			if err != nil {
				return false, err
			}
			more, err := fn(k, v)
			stop = !more
			return more, err
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Destroy frees every entry, the buckets and the header.
func Destroy(t *sdr.Txn, h Hash) error {
	st, err := open(t, h)
	if err != nil {
		return err
	}
	for i := range st.rows {
		l, err := st.row(t, i)
		if err != nil {
			return err
		}
		if l != 0 {
			if err := list.Destroy(t, l, freeEntry); err != nil {
				return err
			}
		}
	}
	if err := table.Destroy(t, st.buckets); err != nil {
		return err
	}
	return t.Free(sdr.Object(h))
}

func freeEntry(t *sdr.Txn, _ list.Elt, obj sdr.Address) error {
	return t.Free(sdr.Object(obj))
}

type state struct {
	keyLen  int64
	count   int64
	buckets table.Table
	rows    int64
}

func open(t *sdr.Txn, h Hash) (state, error) {
	n, err := t.ObjectLength(sdr.Object(h))
	if err != nil {
		return state{}, err
	}
	if n != hdrSize {
		return state{}, t.Fail(fmt.Errorf("hash table %s has %d header bytes: %w", sdr.Object(h), n, sdr.ErrInvalidArgument))
	}
	var hdr [hdrSize]byte
	if err := t.Read(h.at(0), hdr[:]); err != nil {
		return state{}, err
	}
	st := state{
		keyLen:  int64(binary.LittleEndian.Uint64(hdr[offKeyLen:])),
		count:   int64(binary.LittleEndian.Uint64(hdr[offCount:])),
		buckets: table.Table(binary.LittleEndian.Uint64(hdr[offBuckets:])),
	}
	if _, st.rows, err = table.Dimensions(t, st.buckets); err != nil {
		return state{}, err
	}
	return st, nil
}

func lookup(t *sdr.Txn, h Hash, key []byte) (list.Elt, state, error) {
	st, err := open(t, h)
	if err != nil {
		return 0, st, err
	}
	k, err := st.pad(t, key)
	if err != nil {
		return 0, st, err
	}
	l, err := st.bucket(t, k, false)
	if err != nil || l == 0 {
		return 0, st, err
	}
	e, err := st.find(t, l, k)
	return e, st, err
}

// pad returns key zero-filled to the table's key length.
func (st state) pad(t *sdr.Txn, key []byte) ([]byte, error) {
	if int64(len(key)) > st.keyLen {
		return nil, t.Fail(fmt.Errorf("key of %d bytes exceeds %d: %w", len(key), st.keyLen, sdr.ErrInvalidArgument))
	}
	k := make([]byte, st.keyLen)
	copy(k, key)
	return k, nil
}

// bucket returns the list for k, creating it when create is set.
func (st state) bucket(t *sdr.Txn, k []byte, create bool) (list.List, error) {
	f := fnv.New64a()
	_, _ = f.Write(k)
	i := int64(f.Sum64() % uint64(st.rows))
	l, err := st.row(t, i)
	if err != nil || l != 0 || !create {
		return l, err
	}
	if l, err = list.Create(t); err != nil {
		return 0, err
	}
	var w [bucketSize]byte
	binary.LittleEndian.PutUint64(w[:], uint64(l))
	return l, table.WriteRow(t, st.buckets, i, w[:])
}

func (st state) row(t *sdr.Txn, i int64) (list.List, error) {
	a, err := table.RowAddress(t, st.buckets, i)
	if err != nil {
		return 0, err
	}
	v, err := t.ReadAddress(a)
	return list.List(v), err
}

func (st state) find(t *sdr.Txn, l list.List, k []byte) (list.Elt, error) {
	first, err := list.First(t, l)
	if err != nil || first == 0 {
		return 0, err
	}
	return list.Search(t, first, st.compare, k, false)
}

func (st state) compare(t *sdr.Txn, obj sdr.Address, key any) (int, error) {
	k := make([]byte, st.keyLen)
	if err := t.Read(obj, k); err != nil {
		return 0, err
	}
	return bytes.Compare(k, key.([]byte)), nil
}

func (st state) value(t *sdr.Txn, e list.Elt) (sdr.Address, error) {
	obj, err := list.Data(t, e)
	if err != nil {
		return 0, err
	}
	return t.ReadAddress(obj.Add(st.keyLen))
}

func (st state) addCount(t *sdr.Txn, h Hash, delta int64) error {
	return t.PokeAddress(h.at(offCount), sdr.Address(st.count+delta))
}
