package sdr

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joshuapare/sdrkit/internal/format"
	"github.com/joshuapare/sdrkit/sdr/dirty"
	"github.com/joshuapare/sdrkit/sdr/space"
)

// Flags selects where a heap lives and how it is protected.
type Flags uint8

const (
	// InDRAM keeps the heap image in process memory.
	InDRAM Flags = 1 << iota
	// InFile keeps the heap image in <Path>/<Name>.sdr. With InDRAM the file
	// is a mirror written at commit; alone it is mapped shared.
	InFile
	// Reversible logs every write so transactions can be canceled.
	Reversible
	// Bounded refuses user writes outside objects known to the transaction.
	Bounded
)

func (f Flags) String() string {
	var parts []string
	for _, x := range []struct {
		f    Flags
		name string
	}{{InDRAM, "dram"}, {InFile, "file"}, {Reversible, "reversible"}, {Bounded, "bounded"}} {
		if f&x.f != 0 {
			parts = append(parts, x.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// ParseFlags accepts names joined by '|' or ',', as printed by Flags.String.
func ParseFlags(s string) (Flags, error) {
	var f Flags
	for _, name := range strings.FieldsFunc(s, func(r rune) bool { return r == '|' || r == ',' }) {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "dram":
			f |= InDRAM
		case "file":
			f |= InFile
		case "reversible":
			f |= Reversible
		case "bounded":
			f |= Bounded
		default:
			return 0, fmt.Errorf("unknown flag %q: %w", name, ErrInvalidArgument)
		}
	}
	return f, nil
}

// MaxNameLen is the longest SDR name.
const MaxNameLen = 31

// Profile configures an SDR.
type Profile struct {
	// Name identifies the SDR in its registry and names its files.
	Name string

	Flags Flags

	// HeapWords is the image size in 8-byte words, map included.
	HeapWords int64

	// HeapKey identifies the DRAM region within the registry; 0 picks one.
	HeapKey int64

	// LogSize > 0 keeps the log in a fixed region of that many bytes;
	// 0 puts it in <Path>/<Name>.sdrlog.
	LogSize int64

	// LogKey identifies the log region within the registry; 0 picks one.
	LogKey int64

	// Path is the directory of the heap and log files. Default os.TempDir().
	Path string

	// RestartCmd is run through "sh -c" after every reversal.
	RestartCmd string

	// SearchLimit bounds the large-pool search. Default 1.
	SearchLimit int

	// Durability of commits.
	Durability dirty.FlushMode
}

// Validate checks p and fills in defaults.
func (p *Profile) Validate() error {
	switch {
	case p.Name == "":
		return fmt.Errorf("profile: empty name: %w", ErrInvalidArgument)
	case len(p.Name) > MaxNameLen:
		return fmt.Errorf("profile: name %q longer than %d bytes: %w", p.Name, MaxNameLen, ErrInvalidArgument)
	case strings.ContainsAny(p.Name, `/\`+"\x00"):
		return fmt.Errorf("profile: name %q is not a file name: %w", p.Name, ErrInvalidArgument)
	case p.Flags&(InDRAM|InFile) == 0:
		return fmt.Errorf("profile %s: neither dram nor file: %w", p.Name, ErrInvalidArgument)
	case p.HeapWords*format.WordSize < format.MapSize+2*format.WordSize || p.HeapWords > format.MaxAddress/format.WordSize:
		return fmt.Errorf("profile %s: heap of %d words: %w", p.Name, p.HeapWords, ErrInvalidArgument)
	case p.LogSize < 0:
		return fmt.Errorf("profile %s: log size %d: %w", p.Name, p.LogSize, ErrInvalidArgument)
	case p.SearchLimit < 0:
		return fmt.Errorf("profile %s: search limit %d: %w", p.Name, p.SearchLimit, ErrInvalidArgument)
	case p.Durability < dirty.FlushAuto || p.Durability > dirty.FlushFull:
		return fmt.Errorf("profile %s: durability %s: %w", p.Name, p.Durability, ErrInvalidArgument)
	}
	if p.Path == "" {
		p.Path = os.TempDir()
	}
	if p.SearchLimit == 0 {
		p.SearchLimit = space.DefaultSearchLimit
	}
	return nil
}

// HeapSize returns the image size in bytes.
func (p Profile) HeapSize() int64 { return p.HeapWords * format.WordSize }

// HeapPath returns the heap file path.
func (p Profile) HeapPath() string { return filepath.Join(p.Path, p.Name+".sdr") }

// LogPath returns the log file path.
func (p Profile) LogPath() string { return filepath.Join(p.Path, p.Name+".sdrlog") }

// InFile reports whether the heap image has a file.
func (p Profile) InFile() bool { return p.Flags&InFile != 0 }

// Reversible reports whether writes are logged.
func (p Profile) Reversible() bool { return p.Flags&Reversible != 0 }

// Bounded reports whether user writes are bounds-checked.
func (p Profile) Bounded() bool { return p.Flags&Bounded != 0 }

// fileLog reports whether the log lives in a file.
func (p Profile) fileLog() bool { return p.Reversible() && p.LogSize == 0 }

// same reports whether q loads the same SDR as p. Keys of 0 match any key.
func (p Profile) same(q Profile) bool {
	keyMatch := func(a, b int64) bool { return a == 0 || b == 0 || a == b }
	return p.Name == q.Name && p.Flags == q.Flags && p.HeapWords == q.HeapWords &&
		p.LogSize == q.LogSize && p.Path == q.Path && p.RestartCmd == q.RestartCmd &&
		p.SearchLimit == q.SearchLimit && p.Durability == q.Durability &&
		keyMatch(p.HeapKey, q.HeapKey) && keyMatch(p.LogKey, q.LogKey)
}
