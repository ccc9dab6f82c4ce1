// Copyright 2025 madkv project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package log

import (
	"fmt"
	"strings"
)

// Shorten keeps the head and tail of a long message (e.g. a huge Scan
// response quoted in a failure report) and cuts out the middle.
func Shorten(msg string, max int) string {
	if len(msg) <= max || max < 16 {
		return msg
	}
	half := (max - 10) / 2
	var sb strings.Builder
	sb.WriteString(msg[:half])
	fmt.Fprintf(&sb, " <<cut %d bytes out>> ", len(msg)-2*half)
	sb.WriteString(msg[len(msg)-half:])
	return sb.String()
}
