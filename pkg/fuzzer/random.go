// Copyright 2025 madkv project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package fuzzer

import (
	"math/rand"

	"github.com/josehu07/madkv/pkg/kvio"
)

const (
	// KeyLen is the length of generated keys.
	KeyLen = 8
	// ValueLen is the length of generated values.
	ValueLen = 16
)

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// RandString generates a random alphanumeric string of the given length.
func RandString(rnd *rand.Rand, length int) string {
	buf := make([]byte, length)
	for i := range buf {
		buf[i] = alphanumeric[rnd.Intn(len(alphanumeric))]
	}
	return string(buf)
}

// flyingSet tracks which clients have an outstanding call.
type flyingSet struct {
	bits  []bool
	count int
}

func newFlyingSet(numClients int) *flyingSet {
	return &flyingSet{bits: make([]bool, numClients)}
}

func (fs *flyingSet) set(cidx int, flying bool) {
	if fs.bits[cidx] == flying {
		return
	}
	fs.bits[cidx] = flying
	if flying {
		fs.count++
	} else {
		fs.count--
	}
}

func (fs *flyingSet) all() bool  { return fs.count == len(fs.bits) }
func (fs *flyingSet) none() bool { return fs.count == 0 }

// callVsHarvest decides whether the next step issues a call (true) or
// harvests a response (false). A call is forced while no client is in
// flight; a harvest is forced once all calls are issued or all clients are
// in flight; otherwise it is a fair coin flip.
func callVsHarvest(rnd *rand.Rand, opsCalled, totalOps int, flying *flyingSet) bool {
	if opsCalled == totalOps || flying.all() {
		return false
	}
	if flying.none() {
		return true
	}
	return rnd.Intn(2) == 0
}

// randClient picks a uniform random client index, retrying until one with
// the wanted in-flight status is found. The caller must guarantee such a
// client exists.
func randClient(rnd *rand.Rand, flying *flyingSet, wantFlying bool) int {
	for {
		cidx := rnd.Intn(len(flying.bits))
		if flying.bits[cidx] == wantFlying {
			return cidx
		}
	}
}

// randCall draws the next call from the 10-bucket operation distribution:
// 20% Put, 20% Swap, 30% Get, 20% Scan, 10% Delete, with key arguments
// uniform over the client's pool.
func randCall(rnd *rand.Rand, keys []string, stats *RoundStats, cidx int) kvio.Call {
	switch rnd.Intn(10) {
	case 0, 1:
		kidx := rnd.Intn(len(keys))
		stats.CntPut++
		stats.KeysFreq[cidx][kidx]++
		return kvio.PutCall{Key: keys[kidx], Value: RandString(rnd, ValueLen)}

	case 2, 3:
		kidx := rnd.Intn(len(keys))
		stats.CntSwap++
		stats.KeysFreq[cidx][kidx]++
		return kvio.SwapCall{Key: keys[kidx], Value: RandString(rnd, ValueLen)}

	case 4, 5, 6:
		kidx := rnd.Intn(len(keys))
		stats.CntGet++
		stats.KeysFreq[cidx][kidx]++
		return kvio.GetCall{Key: keys[kidx]}

	case 7, 8:
		ksidx := rnd.Intn(len(keys))
		keidx := rnd.Intn(len(keys))
		keyStart, keyEnd := keys[ksidx], keys[keidx]
		if keyEnd < keyStart {
			keyStart, keyEnd = keyEnd, keyStart
		}
		stats.CntScan++
		stats.KeysFreq[cidx][ksidx]++
		stats.KeysFreq[cidx][keidx]++
		return kvio.ScanCall{KeyStart: keyStart, KeyEnd: keyEnd}

	default:
		kidx := rnd.Intn(len(keys))
		stats.CntDelete++
		stats.KeysFreq[cidx][kidx]++
		return kvio.DeleteCall{Key: keys[kidx]}
	}
}
