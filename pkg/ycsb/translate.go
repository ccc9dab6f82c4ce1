// Copyright 2025 madkv project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package ycsb consumes the textual output of the YCSB "basic" generator,
// translates operation lines into KV calls for one client subprocess, and
// collects the generator's summary statistics.
package ycsb

import (
	"sort"
	"strconv"
	"strings"

	"github.com/josehu07/madkv/pkg/kverror"
	"github.com/josehu07/madkv/pkg/kvio"
	"github.com/josehu07/madkv/pkg/stats"
)

// Scan end sentinel used while no keys have been inserted yet.
const scanEndSentinel = "zzzzzzzz"

// KeySet is a sorted set of keys inserted so far, used to turn YCSB scan
// counts into key-range endpoints.
type KeySet struct {
	keys []string
}

func (ks *KeySet) Insert(key string) {
	idx := sort.SearchStrings(ks.keys, key)
	if idx < len(ks.keys) && ks.keys[idx] == key {
		return
	}
	ks.keys = append(ks.keys, "")
	copy(ks.keys[idx+1:], ks.keys[idx:])
	ks.keys[idx] = key
}

func (ks *KeySet) Len() int {
	return len(ks.keys)
}

// Keys returns the sorted key list (shared backing array).
func (ks *KeySet) Keys() []string {
	return ks.keys
}

// Extend folds another set's keys into this one.
func (ks *KeySet) Extend(other *KeySet) {
	for _, key := range other.keys {
		ks.Insert(key)
	}
}

// scanEnd returns the count-th key at or after keyStart, capped to the
// largest known key.
func (ks *KeySet) scanEnd(keyStart string, count int) string {
	idx := sort.SearchStrings(ks.keys, keyStart)
	end := idx + count - 1
	if end >= len(ks.keys) {
		end = len(ks.keys) - 1
	}
	return ks.keys[end]
}

// parseKey joins the YCSB table and record fields into one space-free key,
// e.g. "usertable user42" becomes "usertable_user42".
func parseKey(fields []string) (string, []string, error) {
	if len(fields) < 2 {
		return "", nil, kverror.Parsef("missing key segment")
	}
	return fields[0] + "_" + fields[1], fields[2:], nil
}

// parseValue folds the square-bracketed column list into one space-free
// value: each field gets an underscore prefix in place of its space.
func parseValue(fields []string) (string, error) {
	if len(fields) == 0 || fields[0] != "[" {
		return "", kverror.Parsef("no value start bracket")
	}
	var sb strings.Builder
	for _, field := range fields[1:] {
		if field == "]" {
			break
		}
		sb.WriteByte('_')
		sb.WriteString(field)
	}
	return sb.String(), nil
}

// InterpretCall translates a YCSB generator output line into a KV call, or
// returns ok == false for non-operation lines. INSERT keys are recorded in
// ikeys for later scan-range translation.
func InterpretCall(line string, ikeys *KeySet) (kvio.Call, bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, false, nil
	}
	switch fields[0] {
	case "INSERT":
		key, rest, err := parseKey(fields[1:])
		if err != nil {
			return nil, false, err
		}
		value, err := parseValue(rest)
		if err != nil {
			return nil, false, err
		}
		ikeys.Insert(key)
		return kvio.PutCall{Key: key, Value: value}, true, nil

	case "UPDATE":
		key, rest, err := parseKey(fields[1:])
		if err != nil {
			return nil, false, err
		}
		value, err := parseValue(rest)
		if err != nil {
			return nil, false, err
		}
		return kvio.SwapCall{Key: key, Value: value}, true, nil

	case "READ":
		key, _, err := parseKey(fields[1:])
		if err != nil {
			return nil, false, err
		}
		return kvio.GetCall{Key: key}, true, nil

	case "SCAN":
		keyStart, rest, err := parseKey(fields[1:])
		if err != nil {
			return nil, false, err
		}
		keyEnd := scanEndSentinel
		if ikeys.Len() > 0 {
			if len(rest) == 0 {
				return nil, false, kverror.Parsef("missing scan count")
			}
			count, err := strconv.Atoi(rest[0])
			if err != nil {
				return nil, false, kverror.Parsef("invalid scan count: %v", err)
			}
			keyEnd = ikeys.scanEnd(keyStart, count)
		}
		return kvio.ScanCall{KeyStart: keyStart, KeyEnd: keyEnd}, true, nil
	}

	// The default YCSB workloads issue no deletes; everything else is a
	// non-operation line.
	return nil, false, nil
}

// RecordPerf parses a YCSB summary reporting line ("[OVERALL], ..." or a
// per-operation "[READ], ..." line) into the given stats record. Lines that
// are not summary lines are ignored.
func RecordPerf(line string, s *stats.Stats) error {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return nil
	}
	header := fields[0]
	parseFloat := func(seg string) (float64, error) {
		num, err := strconv.ParseFloat(seg, 64)
		if err != nil {
			return 0, kverror.Parsef("invalid float number: %v", err)
		}
		return num, nil
	}

	if header == "[OVERALL]," {
		name := fields[1]
		num, err := parseFloat(fields[2])
		if err != nil {
			return err
		}
		switch {
		case strings.Contains(name, "RunTime(ms)"):
			s.TotalMs = num
		case strings.Contains(name, "Throughput"):
			s.TputAll = num
		}
		return nil
	}

	switch header {
	case "[INSERT],", "[UPDATE],", "[READ],", "[SCAN],":
		op := strings.TrimSuffix(strings.TrimPrefix(header, "["), "],")
		name := fields[1]
		num, err := parseFloat(fields[2])
		if err != nil {
			return err
		}
		switch {
		case strings.Contains(name, "Operations"):
			s.NumOps[op] = int(num)
		case strings.Contains(name, "AverageLatency"):
			s.LatAvg[op] = num
		case strings.Contains(name, "MinLatency"):
			s.LatMin[op] = num
		case strings.Contains(name, "MaxLatency"):
			s.LatMax[op] = num
		case strings.Contains(name, "99thPercentileLatency"):
			s.LatP99[op] = num
		}
	}
	return nil
}
