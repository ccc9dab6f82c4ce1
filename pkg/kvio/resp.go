// Copyright 2025 madkv project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package kvio

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/josehu07/madkv/pkg/kverror"
)

// Resp is a KV operation response. The set of variants is closed:
// PutResp, SwapResp, GetResp, ScanResp, DeleteResp, StopResp.
type Resp interface {
	isResp()
}

type PutResp struct {
	Key string
	// Found is the prior presence of Key.
	Found bool
}

type SwapResp struct {
	Key string
	// OldValue is the previous value, or nil if the key was absent.
	OldValue *string
}

type GetResp struct {
	Key   string
	Value *string
}

// Entry is one key/value pair of a Scan result.
type Entry struct {
	Key   string
	Value string
}

type ScanResp struct {
	KeyStart string
	KeyEnd   string
	Entries  []Entry
}

type DeleteResp struct {
	Key   string
	Found bool
}

type StopResp struct{}

func (PutResp) isResp()    {}
func (SwapResp) isResp()   {}
func (GetResp) isResp()    {}
func (ScanResp) isResp()   {}
func (DeleteResp) isResp() {}
func (StopResp) isResp()   {}

// RespString renders a response for failure reports.
func RespString(resp Resp) string {
	var sb strings.Builder
	if err := WriteResp(&sb, resp); err != nil {
		return fmt.Sprintf("%#v", resp)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func optString(v *string) string {
	if v == nil {
		return "null"
	}
	return *v
}

func foundString(found bool) string {
	if found {
		return "found"
	}
	return "not_found"
}

// WriteResp encodes a response in the protocol's wire form. It is the exact
// inverse of Decoder.ReadResp and is used by in-process reference services.
func WriteResp(w io.Writer, resp Resp) error {
	var err error
	switch r := resp.(type) {
	case PutResp:
		_, err = fmt.Fprintf(w, "PUT %s %s\n", r.Key, foundString(r.Found))
	case SwapResp:
		_, err = fmt.Fprintf(w, "SWAP %s %s\n", r.Key, optString(r.OldValue))
	case GetResp:
		_, err = fmt.Fprintf(w, "GET %s %s\n", r.Key, optString(r.Value))
	case ScanResp:
		if _, err = fmt.Fprintf(w, "SCAN %s %s BEGIN\n", r.KeyStart, r.KeyEnd); err != nil {
			break
		}
		for _, entry := range r.Entries {
			if _, err = fmt.Fprintf(w, "  %s %s\n", entry.Key, entry.Value); err != nil {
				break
			}
		}
		if err == nil {
			_, err = io.WriteString(w, "SCAN END\n")
		}
	case DeleteResp:
		_, err = fmt.Fprintf(w, "DELETE %s %s\n", r.Key, foundString(r.Found))
	case StopResp:
		_, err = io.WriteString(w, "STOP\n")
	default:
		return kverror.Parsef("unknown resp variant %T", resp)
	}
	return kverror.Wrap(kverror.Io, err)
}

// Decoder reads protocol lines from a buffered stream. Each line read
// allocates a fresh line string and field slice; no line buffer is reused
// across reads.
type Decoder struct {
	r *bufio.Reader
	// Whitespace-separated fields of the current line.
	fields []string
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// nextLine reads the next non-blank line and splits it into whitespace
// separated fields. Returns an Io error on reader failure or EOF.
func (d *Decoder) nextLine() error {
	for {
		line, err := d.r.ReadString('\n')
		d.fields = strings.Fields(line)
		if len(d.fields) > 0 {
			return nil
		}
		if err != nil {
			return kverror.Wrap(kverror.Io, err)
		}
	}
}

func (d *Decoder) field(idx int) (string, error) {
	if idx >= len(d.fields) {
		return "", kverror.Parsef("invalid line: %s", strings.Join(d.fields, " "))
	}
	return d.fields[idx], nil
}

func (d *Decoder) foundField(idx int) (bool, error) {
	seg, err := d.field(idx)
	if err != nil {
		return false, err
	}
	switch seg {
	case "found":
		return true, nil
	case "not_found":
		return false, nil
	}
	return false, kverror.Parsef("invalid 'found' field: %s", seg)
}

func (d *Decoder) optField(idx int) (*string, error) {
	seg, err := d.field(idx)
	if err != nil {
		return nil, err
	}
	if seg == "null" {
		return nil, nil
	}
	return &seg, nil
}

// ReadResp decodes the next response from the stream. Blank lines are
// skipped. A Scan response consumes entry lines until its closing SCAN END.
func (d *Decoder) ReadResp() (Resp, error) {
	if err := d.nextLine(); err != nil {
		return nil, err
	}

	tag := d.fields[0]
	switch tag {
	case "PUT":
		key, err := d.field(1)
		if err != nil {
			return nil, err
		}
		found, err := d.foundField(2)
		if err != nil {
			return nil, err
		}
		return PutResp{Key: key, Found: found}, nil

	case "SWAP":
		key, err := d.field(1)
		if err != nil {
			return nil, err
		}
		oldValue, err := d.optField(2)
		if err != nil {
			return nil, err
		}
		return SwapResp{Key: key, OldValue: oldValue}, nil

	case "GET":
		key, err := d.field(1)
		if err != nil {
			return nil, err
		}
		value, err := d.optField(2)
		if err != nil {
			return nil, err
		}
		return GetResp{Key: key, Value: value}, nil

	case "SCAN":
		keyStart, err := d.field(1)
		if err != nil {
			return nil, err
		}
		keyEnd, err := d.field(2)
		if err != nil {
			return nil, err
		}
		if begin, err := d.field(3); err != nil {
			return nil, err
		} else if begin != "BEGIN" {
			return nil, kverror.Parsef("invalid scan header: %s", strings.Join(d.fields, " "))
		}
		resp := ScanResp{KeyStart: keyStart, KeyEnd: keyEnd}
		for {
			if err := d.nextLine(); err != nil {
				if kverror.IsKind(err, kverror.Io) {
					// The block was cut short without a closing line.
					return nil, kverror.Parsef("scan block not closed by SCAN END")
				}
				return nil, err
			}
			if len(d.fields) == 2 && d.fields[0] == "SCAN" && d.fields[1] == "END" {
				return resp, nil
			}
			key, err := d.field(0)
			if err != nil {
				return nil, err
			}
			value, err := d.field(1)
			if err != nil {
				return nil, err
			}
			resp.Entries = append(resp.Entries, Entry{Key: key, Value: value})
		}

	case "DELETE":
		key, err := d.field(1)
		if err != nil {
			return nil, err
		}
		found, err := d.foundField(2)
		if err != nil {
			return nil, err
		}
		return DeleteResp{Key: key, Found: found}, nil

	case "STOP":
		return StopResp{}, nil
	}
	return nil, kverror.Parsef("unknown response tag: %s", tag)
}

// ReadCall decodes the next call from the stream. It is the service side of
// the protocol, used by in-process reference services in tests.
func (d *Decoder) ReadCall() (Call, error) {
	if err := d.nextLine(); err != nil {
		return nil, err
	}

	tag := d.fields[0]
	switch tag {
	case "PUT", "SWAP":
		key, err := d.field(1)
		if err != nil {
			return nil, err
		}
		value, err := d.field(2)
		if err != nil {
			return nil, err
		}
		if tag == "PUT" {
			return PutCall{Key: key, Value: value}, nil
		}
		return SwapCall{Key: key, Value: value}, nil

	case "GET":
		key, err := d.field(1)
		if err != nil {
			return nil, err
		}
		return GetCall{Key: key}, nil

	case "SCAN":
		keyStart, err := d.field(1)
		if err != nil {
			return nil, err
		}
		keyEnd, err := d.field(2)
		if err != nil {
			return nil, err
		}
		return ScanCall{KeyStart: keyStart, KeyEnd: keyEnd}, nil

	case "DELETE":
		key, err := d.field(1)
		if err != nil {
			return nil, err
		}
		return DeleteCall{Key: key}, nil

	case "STOP":
		return StopCall{}, nil
	}
	return nil, kverror.Parsef("unknown call tag: %s", tag)
}
