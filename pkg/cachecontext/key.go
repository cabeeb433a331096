package cachecontext

import (
	"cmp"
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/cespare/xxhash/v2"
)

// Entry is one resolved discriminator value.
type Entry struct {
	Name  string
	Value string
}

// Hash combines entries into a stable 16 hex digit digest.
// Entries are sorted by name (then value) first, so the digest does not
// depend on the order providers produced them in. Every name and value is
// written with its length first, so no value can mimic an entry boundary.
func Hash(entries []Entry) string {
	sorted := slices.Clone(entries)
	slices.SortFunc(sorted, func(a, b Entry) int {
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.Value, b.Value)
	})

	d := xxhash.New()
	var buf []byte
	for _, e := range sorted {
		buf = appendField(buf[:0], e.Name)
		buf = appendField(buf, e.Value)
		_, _ = d.Write(buf)
	}

	return fmt.Sprintf("%016x", d.Sum64())
}

// Key derives the cache key of a fragment: cacheID alone when no
// discriminator applies, otherwise cacheID + "/" + Hash(entries).
func Key(cacheID string, entries []Entry) string {
	if len(entries) == 0 {
		return cacheID
	}
	return cacheID + "/" + Hash(entries)
}

func appendField(b []byte, s string) []byte {
	b = binary.AppendUvarint(b, uint64(len(s)))
	return append(b, s...)
}
