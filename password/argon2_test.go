package password

import (
	"strings"
	"testing"
)

// Low-cost params keep the test fast.
var testParams = Params{Memory: 8 * 1024, Time: 1, Parallelism: 1}

func TestHashAndVerify(t *testing.T) {
	h := NewHasher(testParams)

	encoded, err := h.Hash("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$") {
		t.Fatalf("unexpected format: %s", encoded)
	}

	ok, err := h.Verify("s3cret", encoded)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Error("correct password rejected")
	}

	ok, err = h.Verify("wrong", encoded)
	if err != nil {
		t.Fatalf("verify wrong: %v", err)
	}
	if ok {
		t.Error("wrong password accepted")
	}
}

func TestHashIsSalted(t *testing.T) {
	h := NewHasher(testParams)
	a, err := h.Hash("same")
	if err != nil {
		t.Fatal(err)
	}
	b, err := h.Hash("same")
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("two hashes of the same password are identical")
	}
}

func TestVerifySurvivesCostChange(t *testing.T) {
	old := NewHasher(testParams)
	encoded, err := old.Hash("s3cret")
	if err != nil {
		t.Fatal(err)
	}

	// A hasher with different params still verifies old hashes.
	upgraded := NewHasher(Params{Memory: 16 * 1024, Time: 2, Parallelism: 2})
	ok, err := upgraded.Verify("s3cret", encoded)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("old hash rejected after cost change")
	}
}

func TestVerifyMalformed(t *testing.T) {
	h := NewHasher(testParams)
	for _, bad := range []string{"", "plain", "$argon2id$v=19$m=8192", "$bcrypt$whatever"} {
		if _, err := h.Verify("x", bad); err == nil {
			t.Errorf("Verify(%q) accepted", bad)
		}
	}
}

func TestZeroParamsFallBack(t *testing.T) {
	h := NewHasher(Params{})
	if h.params != DefaultParams {
		t.Errorf("params = %+v, want defaults", h.params)
	}
}
