// Package catalog binds names to typed objects in an SDR heap. The bindings
// form a list, sorted by name, rooted in the heap map's catalogue slot.
package catalog

import (
	"bytes"
	"errors"
	"fmt"

	"golang.org/x/text/unicode/norm"

	"github.com/joshuapare/sdrkit/internal/format"
	"github.com/joshuapare/sdrkit/sdr"
	"github.com/joshuapare/sdrkit/sdr/list"
)

// MaxNameLen is the longest name, in bytes after normalisation.
const MaxNameLen = 31

var (
	// ErrExists is returned by Put for a name already bound.
	ErrExists = errors.New("catalog: name already bound")
	// ErrNotFound is returned by Remove for an unbound name.
	ErrNotFound = errors.New("catalog: name not bound")
)

// entry layout: type u8 | nameLen u8 | name[31] | pad | object u64
const (
	offType    = 0
	offNameLen = 1
	offName    = 2
	offObject  = 40
	entrySize  = 48
)

// Entry is one binding.
type Entry struct {
	Name   string
	Type   byte
	Object sdr.Object
}

// Put binds name to obj with the caller's type tag. Names are NFC normalised
// and must be 1..MaxNameLen bytes.
func Put(t *sdr.Txn, name string, typ byte, obj sdr.Object) error {
	key, err := normalise(t, name)
	if err != nil {
		return err
	}
	l, err := root(t, true)
	if err != nil {
		return err
	}
	if e, err := find(t, l, key); err != nil {
		return err
	} else if e != 0 {
		return fmt.Errorf("put %q: %w", key, ErrExists)
	}

	var rec [entrySize]byte
	rec[offType] = typ
	rec[offNameLen] = byte(len(key))
	copy(rec[offName:offName+MaxNameLen], key)
	format.PutU64(rec[:], offObject, uint64(obj))
	ent, err := t.Malloc(entrySize)
	if err != nil {
		return err
	}
	if err := t.Poke(ent.Addr(), rec[:]); err != nil {
		return err
	}
	_, err = list.Insert(t, l, ent.Addr(), compareName, key)
	return err
}

// Find returns the binding for name.
func Find(t *sdr.Txn, name string) (Entry, bool, error) {
	key, err := normalise(t, name)
	if err != nil {
		return Entry{}, false, err
	}
	l, err := root(t, false)
	if err != nil || l == 0 {
		return Entry{}, false, err
	}
	e, err := find(t, l, key)
	if err != nil || e == 0 {
		return Entry{}, false, err
	}
	ent, err := list.Data(t, e)
	if err != nil {
		return Entry{}, false, err
	}
	out, err := read(t, ent)
	return out, err == nil, err
}

// Remove drops the binding for name. The bound object is not freed.
func Remove(t *sdr.Txn, name string) error {
	key, err := normalise(t, name)
	if err != nil {
		return err
	}
	l, err := root(t, false)
	if err != nil {
		return err
	}
	var e list.Elt
	if l != 0 {
		if e, err = find(t, l, key); err != nil {
			return err
		}
	}
	if e == 0 {
		return fmt.Errorf("remove %q: %w", key, ErrNotFound)
	}
	return list.Delete(t, e, func(t *sdr.Txn, _ list.Elt, ent sdr.Address) error {
		return t.Free(sdr.Object(ent))
	})
}

// Walk calls fn for every binding in name order until fn returns false or an
// error.
func Walk(t *sdr.Txn, fn func(Entry) (bool, error)) error {
	l, err := root(t, false)
	if err != nil || l == 0 {
		return err
	}
	return list.Walk(t, l, func(_ list.Elt, ent sdr.Address) (bool, error) {
		e, err := read(t, ent)
		if err != nil {
			return false, err
		}
		return fn(e)
	})
}

// Names returns every bound name in order.
func Names(t *sdr.Txn) ([]string, error) {
	var names []string
	err := Walk(t, func(e Entry) (bool, error) {
		names = append(names, e.Name)
		return true, nil
	})
	return names, err
}

// root returns the catalogue list, creating it when create is set.
func root(t *sdr.Txn, create bool) (list.List, error) {
	obj, err := t.Root()
	if err != nil || obj != sdr.Nil || !create {
		return list.List(obj), err
	}
	l, err := list.Create(t)
	if err != nil {
		return 0, err
	}
	return l, t.SetRoot(sdr.Object(l))
}

func normalise(t *sdr.Txn, name string) (string, error) {
	key := norm.NFC.String(name)
	if len(key) == 0 || len(key) > MaxNameLen {
		return "", t.Fail(fmt.Errorf("catalog name %q is %d bytes, want 1..%d: %w", name, len(key), MaxNameLen, sdr.ErrInvalidArgument))
	}
	return key, nil
}

func find(t *sdr.Txn, l list.List, key string) (list.Elt, error) {
	first, err := list.First(t, l)
	if err != nil || first == 0 {
		return 0, err
	}
	return list.Search(t, first, compareName, key, false)
}

func compareName(t *sdr.Txn, ent sdr.Address, key any) (int, error) {
	var hdr [offName + MaxNameLen]byte
	if err := t.Read(ent, hdr[:]); err != nil {
		return 0, err
	}
	n := min(int(hdr[offNameLen]), MaxNameLen)
	return bytes.Compare(hdr[offName:offName+n], []byte(key.(string))), nil
}

func read(t *sdr.Txn, ent sdr.Address) (Entry, error) {
	var rec [entrySize]byte
	if err := t.Read(ent, rec[:]); err != nil {
		return Entry{}, err
	}
	n := min(int(rec[offNameLen]), MaxNameLen)
	return Entry{
		Name:   string(rec[offName : offName+n]),
		Type:   rec[offType],
		Object: sdr.Object(format.ReadU64(rec[:], offObject)),
	}, nil
}
