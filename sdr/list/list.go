// Package list implements doubly linked lists whose header and elements are
// SDR objects. Each element carries one Address of user data.
//
// List header: first | last | length | user data (one word each).
// Element:     list  | prev | next   | data.
package list

import (
	"fmt"

	"github.com/joshuapare/sdrkit/sdr"
	"github.com/joshuapare/sdrkit/sdr/space"
)

const (
	word = 8

	hdrFirst    = 0 * word
	hdrLast     = 1 * word
	hdrLength   = 2 * word
	hdrUserData = 3 * word
	hdrSize     = 4 * word

	eltList = 0 * word
	eltPrev = 1 * word
	eltNext = 2 * word
	eltData = 3 * word
	eltSize = 4 * word
)

// List is the object of a list header.
type List sdr.Object

// Elt is the object of a list element; 0 means none.
type Elt sdr.Object

// DeleteFunc is called for each element's data before the element is freed.
type DeleteFunc func(t *sdr.Txn, elt Elt, data sdr.Address) error

// CompareFunc orders element data against key: negative, zero or positive
// as data sorts before, equal to or after key.
type CompareFunc func(t *sdr.Txn, data sdr.Address, key any) (int, error)

func (l List) at(off int64) sdr.Address { return sdr.Object(l).Addr().Add(off) }
func (e Elt) at(off int64) sdr.Address  { return sdr.Object(e).Addr().Add(off) }

// Create allocates an empty list.
func Create(t *sdr.Txn) (List, error) {
	obj, err := t.Zalloc(hdrSize)
	if err != nil {
		return 0, err
	}
	return List(obj), nil
}

// Destroy deletes every element, calling del for each when not nil, and then
// frees the header.
func Destroy(t *sdr.Txn, l List, del DeleteFunc) error {
	for {
		e, err := First(t, l)
		if err != nil {
			return err
		}
		if e == 0 {
			break
		}
		if err := Delete(t, e, del); err != nil {
			return err
		}
	}
	return t.Free(sdr.Object(l))
}

// Length returns the number of elements.
func Length(t *sdr.Txn, l List) (int64, error) {
	if err := checkList(t, l); err != nil {
		return 0, err
	}
	n, err := t.ReadAddress(l.at(hdrLength))
	return int64(n), err
}

// UserData returns the list's user data word.
func UserData(t *sdr.Txn, l List) (sdr.Address, error) {
	if err := checkList(t, l); err != nil {
		return 0, err
	}
	return t.ReadAddress(l.at(hdrUserData))
}

// SetUserData replaces the list's user data word.
func SetUserData(t *sdr.Txn, l List, data sdr.Address) error {
	if err := checkList(t, l); err != nil {
		return err
	}
	return t.PokeAddress(l.at(hdrUserData), data)
}

// First returns the first element, 0 when the list is empty.
func First(t *sdr.Txn, l List) (Elt, error) {
	if err := checkList(t, l); err != nil {
		return 0, err
	}
	a, err := t.ReadAddress(l.at(hdrFirst))
	return Elt(a), err
}

// Last returns the last element, 0 when the list is empty.
func Last(t *sdr.Txn, l List) (Elt, error) {
	if err := checkList(t, l); err != nil {
		return 0, err
	}
	a, err := t.ReadAddress(l.at(hdrLast))
	return Elt(a), err
}

// Next returns the element after e, 0 at the end.
func Next(t *sdr.Txn, e Elt) (Elt, error) { return link(t, e, eltNext) }

// Prev returns the element before e, 0 at the start.
func Prev(t *sdr.Txn, e Elt) (Elt, error) { return link(t, e, eltPrev) }

// ListOf returns the list e belongs to.
func ListOf(t *sdr.Txn, e Elt) (List, error) {
	a, err := link(t, e, eltList)
	return List(a), err
}

// Data returns the data address of e.
func Data(t *sdr.Txn, e Elt) (sdr.Address, error) {
	if err := checkElt(t, e); err != nil {
		return 0, err
	}
	return t.ReadAddress(e.at(eltData))
}

// SetData replaces the data address of e.
func SetData(t *sdr.Txn, e Elt, data sdr.Address) error {
	if err := checkElt(t, e); err != nil {
		return err
	}
	return t.PokeAddress(e.at(eltData), data)
}

// InsertFirst adds data at the head of l.
func InsertFirst(t *sdr.Txn, l List, data sdr.Address) (Elt, error) {
	first, err := First(t, l)
	if err != nil {
		return 0, err
	}
	return insert(t, l, 0, first, data)
}

// InsertLast adds data at the tail of l.
func InsertLast(t *sdr.Txn, l List, data sdr.Address) (Elt, error) {
	last, err := Last(t, l)
	if err != nil {
		return 0, err
	}
	return insert(t, l, last, 0, data)
}

// InsertBefore adds data just before e.
func InsertBefore(t *sdr.Txn, e Elt, data sdr.Address) (Elt, error) {
	l, err := ListOf(t, e)
	if err != nil {
		return 0, err
	}
	prev, err := Prev(t, e)
	if err != nil {
		return 0, err
	}
	return insert(t, l, prev, e, data)
}

// InsertAfter adds data just after e.
func InsertAfter(t *sdr.Txn, e Elt, data sdr.Address) (Elt, error) {
	l, err := ListOf(t, e)
	if err != nil {
		return 0, err
	}
	next, err := Next(t, e)
	if err != nil {
		return 0, err
	}
	return insert(t, l, e, next, data)
}

// Insert adds data to a list kept sorted by cmp, after every element that
// does not sort after key. A nil cmp appends.
func Insert(t *sdr.Txn, l List, data sdr.Address, cmp CompareFunc, key any) (Elt, error) {
	if cmp == nil {
		return InsertLast(t, l, data)
	}
	e, err := First(t, l)
	for ; err == nil && e != 0; e, err = Next(t, e) {
		d, err := Data(t, e)
		if err != nil {
			return 0, err
		}
		c, err := cmp(t, d, key)
		if err != nil {
			return 0, err
		}
		if c > 0 {
			return InsertBefore(t, e, data)
		}
	}
	if err != nil {
		return 0, err
	}
	return InsertLast(t, l, data)
}

// Delete unlinks and frees e, calling del for its data first when not nil.
func Delete(t *sdr.Txn, e Elt, del DeleteFunc) error {
	l, err := ListOf(t, e)
	if err != nil {
		return err
	}
	if del != nil {
		data, err := Data(t, e)
		if err != nil {
			return err
		}
		if err := del(t, e, data); err != nil {
			return err
		}
	}
	prev, err := Prev(t, e)
	if err != nil {
		return err
	}
	next, err := Next(t, e)
	if err != nil {
		return err
	}
	if prev == 0 {
		err = t.PokeAddress(l.at(hdrFirst), sdr.Address(next))
	} else {
		err = t.PokeAddress(prev.at(eltNext), sdr.Address(next))
	}
	if err != nil {
		return err
	}
	if next == 0 {
		err = t.PokeAddress(l.at(hdrLast), sdr.Address(prev))
	} else {
		err = t.PokeAddress(next.at(eltPrev), sdr.Address(prev))
	}
	if err != nil {
		return err
	}
	if err := addLength(t, l, -1); err != nil {
		return err
	}
	// Clear the list word so a stale Elt is recognised.
	if err := t.PokeAddress(e.at(eltList), 0); err != nil {
		return err
	}
	return t.Free(sdr.Object(e))
}

// Search scans from e (forward, or backward with reverse) for an element
// whose data compares equal to key. The list is assumed sorted by cmp, so
// the scan stops once it passes key. It returns 0 when nothing matches.
func Search(t *sdr.Txn, e Elt, cmp CompareFunc, key any, reverse bool) (Elt, error) {
	step := Next
	if reverse {
		step = Prev
	}
	var err error
	for ; e != 0; e, err = step(t, e) {
		d, err := Data(t, e)
		if err != nil {
			return 0, err
		}
		c, err := cmp(t, d, key)
		if err != nil {
			return 0, err
		}
		switch {
		case c == 0:
			return e, nil
		case c > 0 && !reverse, c < 0 && reverse:
			return 0, nil
		}
	}
	return 0, err
}

// Walk calls fn for every element in order until fn returns false or an
// error.
func Walk(t *sdr.Txn, l List, fn func(e Elt, data sdr.Address) (bool, error)) error {
	e, err := First(t, l)
	for ; err == nil && e != 0; e, err = Next(t, e) {
		d, err := Data(t, e)
		if err != nil {
			return err
		}
		more, err := fn(e, d)
		if err != nil || !more {
			return err
		}
	}
	return err
}

func insert(t *sdr.Txn, l List, prev, next Elt, data sdr.Address) (Elt, error) {
	obj, err := t.Malloc(eltSize)
	if err != nil {
		return 0, err
	}
	e := Elt(obj)
	for _, w := range []struct {
		at sdr.Address
		v  sdr.Address
	}{
		{e.at(eltList), sdr.Address(l)},
		{e.at(eltPrev), sdr.Address(prev)},
		{e.at(eltNext), sdr.Address(next)},
		{e.at(eltData), data},
	} {
		if err := t.PokeAddress(w.at, w.v); err != nil {
			return 0, err
		}
	}
	if prev == 0 {
		err = t.PokeAddress(l.at(hdrFirst), sdr.Address(e))
	} else {
		err = t.PokeAddress(prev.at(eltNext), sdr.Address(e))
	}
	if err != nil {
		return 0, err
	}
	if next == 0 {
		err = t.PokeAddress(l.at(hdrLast), sdr.Address(e))
	} else {
		err = t.PokeAddress(next.at(eltPrev), sdr.Address(e))
	}
	if err != nil {
		return 0, err
	}
	return e, addLength(t, l, 1)
}

func addLength(t *sdr.Txn, l List, delta int64) error {
	n, err := t.ReadAddress(l.at(hdrLength))
	if err != nil {
		return err
	}
	return t.PokeAddress(l.at(hdrLength), n+sdr.Address(delta))
}

func link(t *sdr.Txn, e Elt, off int64) (Elt, error) {
	if err := checkElt(t, e); err != nil {
		return 0, err
	}
	a, err := t.ReadAddress(e.at(off))
	return Elt(a), err
}

// checkList and checkElt catch handles that are not live objects of the
// right size; misuse cancels the transaction.
func checkList(t *sdr.Txn, l List) error {
	return checkObject(t, sdr.Object(l), hdrSize, "list")
}

func checkElt(t *sdr.Txn, e Elt) error {
	if err := checkObject(t, sdr.Object(e), eltSize, "list element"); err != nil {
		return err
	}
	owner, err := t.ReadAddress(e.at(eltList))
	if err != nil {
		return err
	}
	if owner == 0 {
		return t.Fail(fmt.Errorf("list element %s was deleted: %w", sdr.Object(e), sdr.ErrInvalidArgument))
	}
	return nil
}

func checkObject(t *sdr.Txn, obj sdr.Object, size int64, what string) error {
	scale, err := t.ScaleOf(obj.Addr())
	if err != nil {
		return err
	}
	if scale != space.ScaleSmall {
		return t.Fail(fmt.Errorf("%s %s is not an object: %w", what, obj, sdr.ErrInvalidArgument))
	}
	n, err := t.ObjectLength(obj)
	if err != nil {
		return err
	}
	if n != size {
		return t.Fail(fmt.Errorf("%s %s has %d bytes, want %d: %w", what, obj, n, size, sdr.ErrInvalidArgument))
	}
	return nil
}
