// Package arch identifies the CPU architecture ABIs a library check can
// target. Tags follow the Debian multiarch tuple convention, which is what
// expectation manifests and loader search paths are keyed by.
package arch

import (
	"fmt"
	"runtime"

	cerrors "github.com/triageworks/libcompat/internal/errors"
)

// Tag is an opaque ABI identifier, one of the supported multiarch tuples.
type Tag string

// Supported architecture tags.
const (
	X8664   Tag = "x86_64-linux-gnu"
	I386    Tag = "i386-linux-gnu"
	AArch64 Tag = "aarch64-linux-gnu"
)

// All lists every supported tag, in display order.
func All() []Tag {
	return []Tag{X8664, I386, AArch64}
}

// Parse validates s against the supported tuple set.
func Parse(s string) (Tag, error) {
	switch Tag(s) {
	case X8664, I386, AArch64:
		return Tag(s), nil
	}
	return "", cerrors.New(cerrors.ErrCodeBadArch,
		fmt.Sprintf("unsupported architecture %q (supported: %v)", s, All()), nil)
}

// Valid reports whether t is one of the supported tuples.
func (t Tag) Valid() bool {
	_, err := Parse(string(t))
	return err == nil
}

// String returns the tuple form.
func (t Tag) String() string {
	return string(t)
}

// Current returns the tag matching the running process, or "" when the
// build platform has no multiarch tuple here.
func Current() Tag {
	if runtime.GOOS != "linux" {
		return ""
	}
	switch runtime.GOARCH {
	case "amd64":
		return X8664
	case "386":
		return I386
	case "arm64":
		return AArch64
	}
	return ""
}
