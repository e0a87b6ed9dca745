package session

import (
	"strings"
	"testing"
	"time"
)

func TestSessionMutationsMarkDirty(t *testing.T) {
	sess := New(time.Hour)
	if !sess.IsNew() || sess.Dirty() {
		t.Fatal("new session must be new and clean")
	}

	sess.Remove("absent")
	if sess.Dirty() {
		t.Fatal("removing an absent key must not dirty the session")
	}

	sess.Detach()
	if !sess.Dirty() || sess.Profile() != nil {
		t.Fatal("detach must dirty the session and leave no profile")
	}
}

func TestDecodeRejectsUnsupportedSchemaVersion(t *testing.T) {
	_, err := Decode([]byte{99}, nil)
	if err == nil || !strings.Contains(err.Error(), "unsupported session schema version") {
		t.Fatalf("expected unsupported schema version error, got %v", err)
	}
}

func TestEncodeDecodeValues(t *testing.T) {
	sess := New(time.Hour)
	sess.Set("b", "2")
	sess.Set("a", strings.Repeat("x", 70000))

	raw, err := Encode(sess, nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if raw[0] != CurrentSchemaVersion {
		t.Fatalf("expected schema byte %d, got %d", CurrentSchemaVersion, raw[0])
	}

	out, err := Decode(raw, nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.CreatedAt != sess.CreatedAt || out.ExpiresAt != sess.ExpiresAt {
		t.Fatal("timestamps not preserved")
	}
	if v, _ := out.Get("a"); len(v) != 70000 {
		t.Fatalf("long value truncated to %d", len(v))
	}
	if out.Keys() != 2 {
		t.Fatalf("expected 2 values, got %d", out.Keys())
	}
}

// FuzzSessionDecode exercises the binary session decoder with arbitrary inputs.
// Goal: no panics, graceful error handling.
func FuzzSessionDecode(f *testing.F) {
	sess := &Session{CreatedAt: 1700000000, ExpiresAt: 1700003600}
	sess.Set("user", "u-1")
	encoded, err := Encode(sess, nil)
	if err == nil {
		f.Add(encoded)
	}

	f.Add([]byte{})
	f.Add([]byte{CurrentSchemaVersion})
	f.Add([]byte{255, 255, 255})
	if len(encoded) > 10 {
		f.Add(encoded[:10])
	}

	f.Fuzz(func(t *testing.T, data []byte) {
		s, err := Decode(data, nil)
		if err != nil {
			return
		}
		_, _ = Encode(s, nil)
	})
}
