package taskqueue

import (
	"encoding/gob"
	"testing"
	"time"

	"github.com/petrijr/taskflow/pkg/api"
)

// custom struct carried in a request's State
type testPayload struct {
	A string
	B int
}

func init() {
	gob.Register(testPayload{})
}

func TestEncodeDecodeRequest_RoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	later := now.Add(5 * time.Minute)

	cases := []struct {
		name  string
		state api.State
	}{
		{
			name:  "nil state",
			state: nil,
		},
		{
			name:  "scalar values",
			state: api.State{"s": "hello", "n": 3, "ok": true},
		},
		{
			name:  "nested map",
			state: api.State{"user": map[string]any{"x": 1, "y": "z"}},
		},
		{
			name:  "struct value",
			state: api.State{"payload": testPayload{A: "foo", B: 42}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			orig := Request{
				ID:         "id-123",
				Kind:       RequestExecuteSegment,
				Target:     "greet",
				State:      tc.state,
				EnqueuedAt: now,
				NotBefore:  later,
			}

			data, err := EncodeRequest(orig)
			if err != nil {
				t.Fatalf("EncodeRequest error: %v", err)
			}
			if len(data) == 0 {
				t.Fatalf("EncodeRequest returned empty bytes")
			}

			got, err := DecodeRequest(data)
			if err != nil {
				t.Fatalf("DecodeRequest error: %v", err)
			}

			if got.ID != orig.ID || got.Kind != orig.Kind || got.Target != orig.Target {
				t.Fatalf("header mismatch: got %+v want %+v", got, orig)
			}
			if len(got.State) != len(orig.State) {
				t.Fatalf("state mismatch: got %#v want %#v", got.State, orig.State)
			}
			for k, v := range orig.State {
				if _, ok := v.(map[string]any); ok {
					continue
				}
				if got.State[k] != v {
					t.Fatalf("state[%q] = %#v, want %#v", k, got.State[k], v)
				}
			}
			if !got.EnqueuedAt.Equal(orig.EnqueuedAt) {
				t.Fatalf("EnqueuedAt mismatch: got %v want %v", got.EnqueuedAt, orig.EnqueuedAt)
			}
			if !got.NotBefore.Equal(orig.NotBefore) {
				t.Fatalf("NotBefore mismatch: got %v want %v", got.NotBefore, orig.NotBefore)
			}
		})
	}
}

func TestDecodeRequest_InvalidData_ReturnsError(t *testing.T) {
	bad := []byte{0x00, 0x01, 0x02, 0x03, 0xFF}
	if r, err := DecodeRequest(bad); err == nil {
		t.Fatalf("expected error, got request: %#v", r)
	}
}
