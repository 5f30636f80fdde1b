// Package wal implements the undo log that makes SDR transactions reversible.
//
// Before a byte range of the heap is overwritten inside a transaction, the
// range's current contents are appended to a Store as one entry:
//
//	addr u64 | length u32 | crc32 u32 | saved bytes
//
// The Log remembers the store offset of every entry it wrote (its "notes").
// Reverse replays the notes back to front, reading each entry from the store
// exactly once and handing the saved bytes to the caller, then empties both
// the store and the notes; a second Reverse finds nothing to do. Clear
// discards the entries of a committed transaction.
//
// Stores come in two kinds: FileStore appends to a file (<name>.sdrlog) and
// survives a crash, MemStore is a fixed-size region that lives as long as the
// process. After a crash, Reload rebuilds the notes from every complete entry
// of a file store so the interrupted transaction can be reversed.
package wal
