// Package elfver reads the GNU symbol-version definitions out of a shared
// library without executing any of its code. It finds the verdef table
// the way the loader does: through the PT_DYNAMIC segment's DT_VERDEF
// entry, so section-header-stripped libraries read the same as intact
// ones.
package elfver

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	cerrors "github.com/triageworks/libcompat/internal/errors"
	"github.com/triageworks/libcompat/internal/expectations"
)

// verFlgBase marks the implicit base version definition carrying the
// SONAME rather than a real versioning epoch.
const verFlgBase = 0x1

// verdefSize and verdauxSize are the fixed entry sizes from the ELF gABI;
// identical for 32- and 64-bit classes.
const (
	verdefSize  = 20
	verdauxSize = 8
)

// dynInfo holds the dynamic-section entries the verdef walk needs.
type dynInfo struct {
	verdef    uint64
	verdefnum uint64
	strtab    uint64
	strsz     uint64
}

// Versions opens the library at path and returns the sorted, deduplicated
// set of version-definition names, excluding the base version. A library
// whose dynamic section has no DT_VERDEF entry is simply unversioned:
// empty set, nil error. Malformed ELF content is an error.
func Versions(path string) ([]string, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, cerrors.ParseError(fmt.Sprintf("opening %s", path), err)
	}
	defer f.Close()

	names, err := versions(f)
	if err != nil {
		return nil, cerrors.ParseError(path, err)
	}
	return names, nil
}

func versions(f *elf.File) ([]string, error) {
	dyn, err := readDynamic(f)
	if err != nil {
		return nil, err
	}
	if dyn.verdef == 0 {
		return []string{}, nil
	}
	if dyn.strtab == 0 || dyn.strsz == 0 {
		return nil, fmt.Errorf("dynamic section without a string table")
	}

	strtab, err := segmentBytes(f, dyn.strtab, dyn.strsz)
	if err != nil {
		return nil, fmt.Errorf("reading dynamic string table: %w", err)
	}
	data, err := segmentBytes(f, dyn.verdef, 0)
	if err != nil {
		return nil, fmt.Errorf("reading verdef table: %w", err)
	}

	return walkVerdef(data, strtab, f.ByteOrder, dyn.verdefnum)
}

// readDynamic parses the PT_DYNAMIC segment up to DT_NULL.
func readDynamic(f *elf.File) (dynInfo, error) {
	var prog *elf.Prog
	for _, p := range f.Progs {
		if p.Type == elf.PT_DYNAMIC {
			prog = p
			break
		}
	}
	if prog == nil {
		return dynInfo{}, fmt.Errorf("no dynamic segment")
	}

	data := make([]byte, prog.Filesz)
	if _, err := io.ReadFull(prog.Open(), data); err != nil {
		return dynInfo{}, fmt.Errorf("reading dynamic segment: %w", err)
	}

	bo := f.ByteOrder
	step := 16
	if f.Class == elf.ELFCLASS32 {
		step = 8
	}

	var dyn dynInfo
	for off := 0; off+step <= len(data); off += step {
		var tag int64
		var val uint64
		if f.Class == elf.ELFCLASS32 {
			tag = int64(int32(bo.Uint32(data[off:])))
			val = uint64(bo.Uint32(data[off+4:]))
		} else {
			tag = int64(bo.Uint64(data[off:]))
			val = bo.Uint64(data[off+8:])
		}
		switch elf.DynTag(tag) {
		case elf.DT_NULL:
			return dyn, nil
		case elf.DT_VERDEF:
			dyn.verdef = val
		case elf.DT_VERDEFNUM:
			dyn.verdefnum = val
		case elf.DT_STRTAB:
			dyn.strtab = val
		case elf.DT_STRSZ:
			dyn.strsz = val
		}
	}
	return dyn, nil
}

// segmentBytes maps a virtual address range to file bytes through the
// PT_LOAD segments. size zero means through the end of the containing
// segment's file image.
func segmentBytes(f *elf.File, vaddr, size uint64) ([]byte, error) {
	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD || vaddr < p.Vaddr || vaddr >= p.Vaddr+p.Filesz {
			continue
		}
		off := vaddr - p.Vaddr
		if size == 0 {
			size = p.Filesz - off
		}
		if off+size > p.Filesz {
			return nil, fmt.Errorf("range %#x+%#x beyond loadable segment", vaddr, size)
		}
		data := make([]byte, size)
		if _, err := p.ReadAt(data, int64(off)); err != nil {
			return nil, fmt.Errorf("segment read at %#x: %w", vaddr, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("address %#x not covered by a loadable segment", vaddr)
}

// walkVerdef follows the verdef chain. Each entry carries one or more aux
// entries; the first aux names the version. count caps the walk when
// DT_VERDEFNUM was present; zero walks until a zero next link.
func walkVerdef(data, strtab []byte, bo binary.ByteOrder, count uint64) ([]string, error) {
	set := make(map[string]struct{})
	off := 0
	var seen uint64
	for {
		if off < 0 || off+verdefSize > len(data) {
			return nil, fmt.Errorf("truncated verdef entry at offset %#x", off)
		}
		revision := bo.Uint16(data[off:])
		flags := bo.Uint16(data[off+2:])
		cnt := bo.Uint16(data[off+6:])
		aux := bo.Uint32(data[off+12:])
		next := bo.Uint32(data[off+16:])

		if revision != 1 {
			return nil, fmt.Errorf("unsupported verdef revision %d at offset %#x", revision, off)
		}
		if cnt == 0 {
			return nil, fmt.Errorf("verdef entry without aux entries at offset %#x", off)
		}

		auxOff := off + int(aux)
		if auxOff < 0 || auxOff+verdauxSize > len(data) {
			return nil, fmt.Errorf("truncated verdaux entry at offset %#x", auxOff)
		}
		nameOff := bo.Uint32(data[auxOff:])
		name, err := getString(strtab, nameOff)
		if err != nil {
			return nil, fmt.Errorf("verdef entry at offset %#x: %w", off, err)
		}

		if flags&verFlgBase == 0 {
			set[name] = struct{}{}
		}

		seen++
		if count > 0 && seen == count {
			break
		}
		if next == 0 {
			break
		}
		off += int(next)
	}

	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func getString(strtab []byte, off uint32) (string, error) {
	if int64(off) >= int64(len(strtab)) {
		return "", fmt.Errorf("string offset %#x beyond table", off)
	}
	end := bytes.IndexByte(strtab[off:], 0)
	if end < 0 {
		return "", fmt.Errorf("unterminated string at offset %#x", off)
	}
	return string(strtab[off : int(off)+end]), nil
}

// Check matches the self-referential expectation entries (symbol ==
// version, pseudo-symbols naming a version definition) against the
// version set. It returns the missing version names and whether the
// library turned out to be unversioned although versioning was expected.
func Check(exps []expectations.Expectation, versions []string) (missing []string, unversioned bool) {
	have := make(map[string]struct{}, len(versions))
	for _, v := range versions {
		have[v] = struct{}{}
	}

	expectsVersioning := false
	for _, e := range exps {
		if !e.Unversioned() {
			expectsVersioning = true
		}
		if !e.SelfReferential() {
			continue
		}
		if _, ok := have[e.Version]; !ok {
			missing = append(missing, e.Version)
		}
	}

	return missing, expectsVersioning && len(versions) == 0
}
