// Package dirty tracks the byte ranges of a heap image written during a
// transaction and pushes them to stable storage at commit.
//
// # Overview
//
// Every logged write to the heap records its span with Tracker.Add. At
// commit the transaction manager asks the image backend to flush
// Tracker.Ranges(), which page-aligns, sorts and merges the spans:
//
//	Writes at [0x1010,+8) [0x1ff8,+16) [0x5000,+4) -> [0x1000-0x3000) [0x5000-0x6000)
//
// # Flush Modes
//
//   - FlushAuto: sync dirty pages, then fdatasync the heap file
//   - FlushDataOnly: sync dirty pages only; the caller syncs the file later
//   - FlushFull: like FlushAuto, with F_FULLFSYNC on macOS
//
// Memory-mapped images sync pages with msync (SyncMapped); mirrored images
// write the ranges themselves and only need SyncFile.
//
// # Thread Safety
//
// Tracker is not thread-safe. It is used only by the owner of the SDR
// transaction.
package dirty
