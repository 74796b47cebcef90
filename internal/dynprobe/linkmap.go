//go:build linux

package dynprobe

import (
	"debug/elf"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/triageworks/libcompat/internal/errors"
)

// rtldDILinkmap is the dlinfo request returning the link_map of a handle.
const rtldDILinkmap = 2

// linkMap mirrors the public prefix of glibc's struct link_map. Only the
// documented leading members are touched.
type linkMap struct {
	addr uintptr
	name *byte
	ld   *elfDyn
	next *linkMap
	prev *linkMap
}

// elfDyn is one dynamic-section entry, pointer-sized in both fields for
// either ELF class.
type elfDyn struct {
	tag uintptr
	val uintptr
}

var (
	dlinfoFn  func(handle uintptr, request int32, info unsafe.Pointer) int32
	dlvsymFn  func(handle uintptr, symbol string, version string) uintptr
	libcReady bool
)

// initLibc binds dlinfo and dlvsym out of the already-loaded C library.
// glibc >= 2.34 hosts them in libc proper; older systems keep them in
// libdl.
func initLibc() error {
	if libcReady {
		return nil
	}
	var libc uintptr
	var err error
	for _, name := range []string{"libc.so.6", "libdl.so.2"} {
		if libc, err = purego.Dlopen(name, purego.RTLD_NOW|purego.RTLD_GLOBAL); err == nil {
			break
		}
	}
	if err != nil {
		return errors.InternalError("binding loader introspection: "+err.Error(), err)
	}
	purego.RegisterLibFunc(&dlinfoFn, libc, "dlinfo")
	purego.RegisterLibFunc(&dlvsymFn, libc, "dlvsym")
	libcReady = true
	return nil
}

// dlvsym resolves symbol@version against handle, 0 when absent.
func dlvsym(handle uintptr, symbol, version string) uintptr {
	if initLibc() != nil {
		return 0
	}
	return dlvsymFn(handle, symbol, version)
}

// linkMapFor returns the loader's link_map entry for handle.
func linkMapFor(handle uintptr) (*linkMap, error) {
	if err := initLibc(); err != nil {
		return nil, err
	}
	var lm *linkMap
	if rc := dlinfoFn(handle, rtldDILinkmap, unsafe.Pointer(&lm)); rc != 0 || lm == nil {
		return nil, errors.New(errors.ErrCodeNoLinkMap, "dlinfo gave no link_map for handle", nil)
	}
	return lm, nil
}

// sonameFromDynamic reads DT_SONAME out of the module's in-memory dynamic
// section. The loader has already relocated DT_STRTAB to an absolute
// address, so the name is a plain C string at strtab+offset.
func sonameFromDynamic(lm *linkMap) string {
	if lm.ld == nil {
		return ""
	}
	var strtab, soname uintptr
	haveSoname := false
	for d := lm.ld; d.tag != uintptr(elf.DT_NULL); d = (*elfDyn)(unsafe.Add(unsafe.Pointer(d), unsafe.Sizeof(*d))) {
		switch elf.DynTag(d.tag) {
		case elf.DT_STRTAB:
			strtab = d.val
		case elf.DT_SONAME:
			soname = d.val
			haveSoname = true
		}
	}
	if !haveSoname || strtab == 0 {
		return ""
	}
	return goString((*byte)(unsafe.Pointer(strtab + soname)))
}

// collectDependencies walks the whole loaded-module chain and returns
// every module except the main program entry and the target itself, in
// loader order.
func collectDependencies(target *linkMap) []string {
	head := target
	for head.prev != nil {
		head = head.prev
	}

	deps := []string{}
	first := true
	for m := head; m != nil; m = m.next {
		isMain := first
		first = false
		if isMain || m == target {
			continue
		}
		name := goString(m.name)
		if name == "" {
			continue
		}
		deps = append(deps, name)
	}
	return deps
}

// goString copies a NUL-terminated C string.
func goString(p *byte) string {
	if p == nil {
		return ""
	}
	n := 0
	for *(*byte)(unsafe.Add(unsafe.Pointer(p), n)) != 0 {
		n++
	}
	if n == 0 {
		return ""
	}
	return string(unsafe.Slice(p, n))
}
