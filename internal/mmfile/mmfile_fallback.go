//go:build !unix

package mmfile

import "errors"

// Open reports that shared file mappings are unavailable on this platform.
func Open(path string, size int64) (*Mapping, error) {
	return nil, errors.New("mmfile: shared mappings require a unix platform")
}

// Close is a no-op on platforms without mappings.
func (m *Mapping) Close() error { return nil }
