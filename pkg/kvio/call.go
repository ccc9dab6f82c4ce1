// Copyright 2025 madkv project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package kvio implements the line-oriented text protocol spoken between the
// harness and KV client subprocesses. One call is one line; one response is
// one line, except Scan which spans a BEGIN/END block. Keys and values are
// non-empty alphanumeric-plus-underscore strings and never contain spaces.
package kvio

import (
	"fmt"
	"io"

	"github.com/josehu07/madkv/pkg/kverror"
)

// Call is a KV operation call. The set of variants is closed:
// PutCall, SwapCall, GetCall, ScanCall, DeleteCall, StopCall.
type Call interface {
	isCall()
}

type PutCall struct {
	Key   string
	Value string
}

type SwapCall struct {
	Key   string
	Value string
}

type GetCall struct {
	Key string
}

type ScanCall struct {
	KeyStart string
	KeyEnd   string
}

type DeleteCall struct {
	Key string
}

// StopCall tells the client process to shut down gracefully.
type StopCall struct{}

func (PutCall) isCall()    {}
func (SwapCall) isCall()   {}
func (GetCall) isCall()    {}
func (ScanCall) isCall()   {}
func (DeleteCall) isCall() {}
func (StopCall) isCall()   {}

// UpdateInfo returns the value update made by a call:
//   - ok == false if the call is read-only or Stop
//   - value == nil if the call is a Delete
//   - value != nil if the call is a Put or Swap
func UpdateInfo(call Call) (key string, value *string, ok bool) {
	switch c := call.(type) {
	case PutCall:
		v := c.Value
		return c.Key, &v, true
	case SwapCall:
		v := c.Value
		return c.Key, &v, true
	case DeleteCall:
		return c.Key, nil, true
	}
	return "", nil, false
}

// WriteCall encodes a call as a single protocol line.
func WriteCall(w io.Writer, call Call) error {
	var err error
	switch c := call.(type) {
	case PutCall:
		_, err = fmt.Fprintf(w, "PUT %s %s\n", c.Key, c.Value)
	case SwapCall:
		_, err = fmt.Fprintf(w, "SWAP %s %s\n", c.Key, c.Value)
	case GetCall:
		_, err = fmt.Fprintf(w, "GET %s\n", c.Key)
	case ScanCall:
		_, err = fmt.Fprintf(w, "SCAN %s %s\n", c.KeyStart, c.KeyEnd)
	case DeleteCall:
		_, err = fmt.Fprintf(w, "DELETE %s\n", c.Key)
	case StopCall:
		_, err = io.WriteString(w, "STOP\n")
	default:
		return kverror.Parsef("unknown call variant %T", call)
	}
	return kverror.Wrap(kverror.Io, err)
}
