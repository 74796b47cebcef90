package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/triageworks/libcompat/internal/errors"
)

func TestRejectsMissingArguments(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, cerrors.ErrCodeBadArguments, cerrors.GetCode(err))
}

func TestRejectsExtraArguments(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"libz.so.1", "a.symbols", "extra"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, cerrors.ErrCodeBadArguments, cerrors.GetCode(err))
}
