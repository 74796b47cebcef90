package arch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/triageworks/libcompat/internal/errors"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Tag
		wantErr bool
	}{
		{name: "x86_64", in: "x86_64-linux-gnu", want: X8664},
		{name: "i386", in: "i386-linux-gnu", want: I386},
		{name: "aarch64", in: "aarch64-linux-gnu", want: AArch64},
		{name: "empty", in: "", wantErr: true},
		{name: "bare goarch", in: "amd64", wantErr: true},
		{name: "unknown tuple", in: "mips64el-linux-gnuabi64", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, cerrors.ErrCodeBadArch, cerrors.GetCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValid(t *testing.T) {
	assert.True(t, X8664.Valid())
	assert.False(t, Tag("sparc64-linux-gnu").Valid())
	assert.False(t, Tag("").Valid())
}

func TestAllTagsValid(t *testing.T) {
	for _, tag := range All() {
		assert.True(t, tag.Valid(), "tag %s", tag)
	}
}
