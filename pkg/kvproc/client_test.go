// Copyright 2025 madkv project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package kvproc

import (
	"fmt"
	"io"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josehu07/madkv/pkg/kverror"
	"github.com/josehu07/madkv/pkg/kvio"
)

// oracleService is an in-process reference KV service speaking the text
// protocol over pipes, backed by a sorted map with inclusive scan ranges.
func oracleService(r io.Reader, w io.Writer) {
	store := make(map[string]string)
	dec := kvio.NewDecoder(r)
	for {
		call, err := dec.ReadCall()
		if err != nil {
			return
		}
		var resp kvio.Resp
		switch c := call.(type) {
		case kvio.PutCall:
			_, found := store[c.Key]
			store[c.Key] = c.Value
			resp = kvio.PutResp{Key: c.Key, Found: found}
		case kvio.SwapCall:
			var oldValue *string
			if old, ok := store[c.Key]; ok {
				oldValue = &old
			}
			store[c.Key] = c.Value
			resp = kvio.SwapResp{Key: c.Key, OldValue: oldValue}
		case kvio.GetCall:
			var value *string
			if v, ok := store[c.Key]; ok {
				value = &v
			}
			resp = kvio.GetResp{Key: c.Key, Value: value}
		case kvio.ScanCall:
			scan := kvio.ScanResp{KeyStart: c.KeyStart, KeyEnd: c.KeyEnd}
			keys := make([]string, 0, len(store))
			for key := range store {
				if key >= c.KeyStart && key <= c.KeyEnd {
					keys = append(keys, key)
				}
			}
			sort.Strings(keys)
			for _, key := range keys {
				scan.Entries = append(scan.Entries, kvio.Entry{Key: key, Value: store[key]})
			}
			resp = scan
		case kvio.DeleteCall:
			_, found := store[c.Key]
			delete(store, c.Key)
			resp = kvio.DeleteResp{Key: c.Key, Found: found}
		case kvio.StopCall:
			kvio.WriteResp(w, kvio.StopResp{})
			return
		}
		if err := kvio.WriteResp(w, resp); err != nil {
			return
		}
	}
}

func startOracleClient(t *testing.T) *Client {
	callR, callW := io.Pipe()
	respR, respW := io.Pipe()
	go oracleService(callR, respW)
	client := NewOverPipes(callW, respR)
	t.Cleanup(func() {
		client.Kill()
		callR.Close()
		respW.Close()
	})
	return client
}

func waitOne(t *testing.T, client *Client) kvio.Resp {
	resp, err := client.WaitResp(5 * time.Second)
	require.NoError(t, err)
	return resp
}

func TestClientRoundTrip(t *testing.T) {
	client := startOracleClient(t)

	require.NoError(t, client.SendCall(kvio.PutCall{Key: "a", Value: "1"}))
	assert.Equal(t, kvio.PutResp{Key: "a", Found: false}, waitOne(t, client))

	require.NoError(t, client.SendCall(kvio.GetCall{Key: "a"}))
	resp := waitOne(t, client).(kvio.GetResp)
	require.NotNil(t, resp.Value)
	assert.Equal(t, "1", *resp.Value)

	require.NoError(t, client.SendCall(kvio.DeleteCall{Key: "a"}))
	assert.Equal(t, kvio.DeleteResp{Key: "a", Found: true}, waitOne(t, client))

	require.NoError(t, client.SendCall(kvio.GetCall{Key: "a"}))
	assert.Equal(t, kvio.GetResp{Key: "a", Value: nil}, waitOne(t, client))

	require.NoError(t, client.Stop())
}

func TestClientScanOrder(t *testing.T) {
	client := startOracleClient(t)

	for _, kv := range []kvio.PutCall{
		{Key: "b", Value: "2"},
		{Key: "a", Value: "1"},
		{Key: "c", Value: "3"},
	} {
		require.NoError(t, client.SendCall(kv))
		waitOne(t, client)
	}
	require.NoError(t, client.SendCall(kvio.ScanCall{KeyStart: "a", KeyEnd: "c"}))
	scan := waitOne(t, client).(kvio.ScanResp)

	seen := make(map[string]bool)
	for _, entry := range scan.Entries {
		assert.True(t, entry.Key >= "a" && entry.Key <= "c", "key %q out of range", entry.Key)
		assert.False(t, seen[entry.Key], "duplicate key %q", entry.Key)
		seen[entry.Key] = true
	}
	assert.Len(t, scan.Entries, 3)
	require.NoError(t, client.Stop())
}

// Responses come back in exactly the order calls were sent.
func TestClientRespOrdering(t *testing.T) {
	client := startOracleClient(t)

	const n = 100
	for i := 0; i < n; i++ {
		require.NoError(t, client.SendCall(kvio.PutCall{
			Key:   fmt.Sprintf("key%03d", i),
			Value: fmt.Sprintf("val%03d", i),
		}))
		// Keep at most a handful in flight so the bounded call channel
		// never rejects a send.
		if i%16 == 15 {
			for j := 0; j < 16; j++ {
				waitOne(t, client)
			}
		}
	}
	for i := n - (n % 16); i < n; i++ {
		waitOne(t, client)
	}
	for i := 0; i < n; i++ {
		require.NoError(t, client.SendCall(kvio.GetCall{Key: fmt.Sprintf("key%03d", i)}))
		resp := waitOne(t, client).(kvio.GetResp)
		assert.Equal(t, fmt.Sprintf("key%03d", i), resp.Key)
		require.NotNil(t, resp.Value)
		assert.Equal(t, fmt.Sprintf("val%03d", i), *resp.Value)
	}
	require.NoError(t, client.Stop())
}

func TestClientStopDrainsPending(t *testing.T) {
	client := startOracleClient(t)

	require.NoError(t, client.SendCall(kvio.PutCall{Key: "a", Value: "1"}))
	require.NoError(t, client.SendCall(kvio.GetCall{Key: "a"}))
	// Stop must drain the two pending responses before the handshake.
	require.NoError(t, client.Stop())
}

func TestClientWaitTimeout(t *testing.T) {
	// A service that never responds.
	callR, callW := io.Pipe()
	respR, respW := io.Pipe()
	client := NewOverPipes(callW, respR)
	t.Cleanup(func() {
		client.Kill()
		callR.Close()
		respW.Close()
	})
	go io.Copy(io.Discard, callR)

	require.NoError(t, client.SendCall(kvio.GetCall{Key: "a"}))
	_, err := client.WaitResp(50 * time.Millisecond)
	require.Error(t, err)
	assert.True(t, kverror.IsKind(err, kverror.Chan), "got %v", err)
}

func TestClientDriverError(t *testing.T) {
	callR, callW := io.Pipe()
	respR, respW := io.Pipe()
	client := NewOverPipes(callW, respR)
	t.Cleanup(func() {
		client.Kill()
		callR.Close()
	})
	go func() {
		dec := kvio.NewDecoder(callR)
		dec.ReadCall()
		io.WriteString(respW, "GIBBERISH line\n")
		respW.Close()
	}()

	require.NoError(t, client.SendCall(kvio.GetCall{Key: "a"}))
	_, err := client.WaitResp(5 * time.Second)
	require.Error(t, err)
	assert.True(t, kverror.IsKind(err, kverror.Parse), "got %v", err)

	// The driver has exited; all later waits fail with Chan.
	_, err = client.WaitResp(5 * time.Second)
	require.Error(t, err)
	assert.True(t, kverror.IsKind(err, kverror.Chan), "got %v", err)

	err = client.SendCall(kvio.GetCall{Key: "b"})
	assert.NoError(t, err) // buffered; surfaces as Chan on the next wait
}

func TestClientSendAfterKill(t *testing.T) {
	callR, callW := io.Pipe()
	respR, respW := io.Pipe()
	client := NewOverPipes(callW, respR)
	client.Kill()
	callR.Close()
	respW.Close()

	err := client.SendCall(kvio.GetCall{Key: "a"})
	require.Error(t, err)
	assert.True(t, kverror.IsKind(err, kverror.Chan), "got %v", err)
}

func TestClientSpawnError(t *testing.T) {
	_, err := New("/nonexistent/recipe/runner", []string{"client"})
	require.Error(t, err)
	assert.True(t, kverror.IsKind(err, kverror.Io), "got %v", err)
}
