// Copyright 2025 madkv project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package kverror

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKinds(t *testing.T) {
	tests := []struct {
		err  error
		kind Kind
		str  string
	}{
		{Iof("spawn failed"), Io, "io error: spawn failed"},
		{Parsef("invalid line: %s", "FROB"), Parse, "parse error: invalid line: FROB"},
		{Chanf("closed"), Chan, "chan error: closed"},
		{Joinf("panicked"), Join, "goroutine join error: panicked"},
	}
	for _, test := range tests {
		kind, ok := KindOf(test.err)
		require.True(t, ok)
		assert.Equal(t, test.kind, kind)
		assert.True(t, IsKind(test.err, test.kind))
		assert.Equal(t, test.str, test.err.Error())
	}
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(Io, nil))

	err := Wrap(Io, io.ErrUnexpectedEOF)
	assert.True(t, IsKind(err, Io))
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))

	// Wrapping keeps an already-lifted error's kind.
	again := Wrap(Io, fmt.Errorf("reading: %w", Parsef("bad tag")))
	assert.True(t, IsKind(again, Parse))

	_, ok := KindOf(errors.New("plain"))
	assert.False(t, ok)
}
