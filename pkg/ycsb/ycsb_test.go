// Copyright 2025 madkv project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package ycsb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josehu07/madkv/pkg/kvio"
	"github.com/josehu07/madkv/pkg/stats"
)

func TestInterpretInsert(t *testing.T) {
	ikeys := &KeySet{}
	call, ok, err := InterpretCall(
		"INSERT usertable user42 [ field0 hello field1 world ]", ikeys)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, kvio.PutCall{
		Key:   "usertable_user42",
		Value: "_field0_hello_field1_world",
	}, call)
	assert.Equal(t, []string{"usertable_user42"}, ikeys.Keys())
}

func TestInterpretUpdateReadScan(t *testing.T) {
	ikeys := &KeySet{}
	for _, key := range []string{"usertable_user1", "usertable_user3", "usertable_user5"} {
		ikeys.Insert(key)
	}

	call, ok, err := InterpretCall("UPDATE usertable user3 [ field0 v ]", ikeys)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, kvio.SwapCall{Key: "usertable_user3", Value: "_field0_v"}, call)

	call, ok, err = InterpretCall("READ usertable user1", ikeys)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, kvio.GetCall{Key: "usertable_user1"}, call)

	// The scan end is the count-th known key at or after the start.
	call, ok, err = InterpretCall("SCAN usertable user1 2", ikeys)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, kvio.ScanCall{KeyStart: "usertable_user1", KeyEnd: "usertable_user3"}, call)

	// Counts past the known keys cap at the largest one.
	call, _, err = InterpretCall("SCAN usertable user3 99", ikeys)
	require.NoError(t, err)
	assert.Equal(t, kvio.ScanCall{KeyStart: "usertable_user3", KeyEnd: "usertable_user5"}, call)
}

func TestInterpretScanNoKeys(t *testing.T) {
	call, ok, err := InterpretCall("SCAN usertable user7 10", &KeySet{})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, kvio.ScanCall{KeyStart: "usertable_user7", KeyEnd: "zzzzzzzz"}, call)
}

func TestInterpretNonCallLines(t *testing.T) {
	ikeys := &KeySet{}
	for _, line := range []string{
		"",
		"YCSB Client 0.17.0",
		"[OVERALL], RunTime(ms), 1234",
		"DELETE usertable user1", // no deletes in default YCSB
	} {
		_, ok, err := InterpretCall(line, ikeys)
		require.NoError(t, err, "line %q", line)
		assert.False(t, ok, "line %q", line)
	}
}

func TestInterpretMalformedLines(t *testing.T) {
	ikeys := &KeySet{}
	for _, line := range []string{
		"INSERT usertable",                  // missing record field
		"INSERT usertable user1 field0 v",   // missing value bracket
		"READ usertable",                    // missing record field
		"SCAN usertable",                    // missing record field
	} {
		_, _, err := InterpretCall(line, ikeys)
		assert.Error(t, err, "line %q", line)
	}
	// A scan count only matters once keys are known.
	ikeys.Insert("usertable_user1")
	_, _, err := InterpretCall("SCAN usertable user1", ikeys)
	assert.Error(t, err)
	_, _, err = InterpretCall("SCAN usertable user1 many", ikeys)
	assert.Error(t, err)
}

func TestKeySet(t *testing.T) {
	ks := &KeySet{}
	for _, key := range []string{"b", "a", "c", "b", "a"} {
		ks.Insert(key)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ks.Keys())
	assert.Equal(t, 3, ks.Len())

	other := &KeySet{}
	other.Insert("d")
	other.Insert("b")
	ks.Extend(other)
	assert.Equal(t, []string{"a", "b", "c", "d"}, ks.Keys())

	assert.Equal(t, "b", ks.scanEnd("a", 2))
	assert.Equal(t, "a", ks.scanEnd("a", 1))
	assert.Equal(t, "d", ks.scanEnd("c", 50))
	assert.Equal(t, "d", ks.scanEnd("x", 1)) // start past every key
}

func TestRecordPerf(t *testing.T) {
	s := stats.New()
	lines := []string{
		"[OVERALL], RunTime(ms), 1523.0",
		"[OVERALL], Throughput(ops/sec), 6565.9",
		"[READ], Operations, 4748",
		"[READ], AverageLatency(us), 120.5",
		"[READ], MinLatency(us), 80",
		"[READ], MaxLatency(us), 1500",
		"[READ], 99thPercentileLatency(us), 402",
		"[UPDATE], Operations, 5252",
		"[CLEANUP], Operations, 1", // unknown op header ignored
		"some random line",
	}
	for _, line := range lines {
		require.NoError(t, RecordPerf(line, s))
	}
	assert.Equal(t, 1523.0, s.TotalMs)
	assert.Equal(t, 6565.9, s.TputAll)
	assert.Equal(t, 4748, s.NumOps["READ"])
	assert.Equal(t, 120.5, s.LatAvg["READ"])
	assert.Equal(t, 80.0, s.LatMin["READ"])
	assert.Equal(t, 1500.0, s.LatMax["READ"])
	assert.Equal(t, 402.0, s.LatP99["READ"])
	assert.Equal(t, 5252, s.NumOps["UPDATE"])

	assert.Error(t, RecordPerf("[READ], Operations, many", s))
}
