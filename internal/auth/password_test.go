// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package auth

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestCheckPassword_Argon2(t *testing.T) {
	hash, err := HashPassword("changeme")
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Fatalf("HashPassword() = %q, want argon2id encoding", hash)
	}

	valid, err := CheckPassword("changeme", hash)
	if err != nil {
		t.Fatalf("CheckPassword error: %v", err)
	}
	if !valid {
		t.Fatal("Correct password was rejected")
	}

	valid, err = CheckPassword("wrongpassword", hash)
	if err != nil {
		t.Fatalf("CheckPassword error: %v", err)
	}
	if valid {
		t.Fatal("Wrong password was accepted")
	}
}

func TestCheckPassword_StoredArgon2Params(t *testing.T) {
	// Hash created with different parameters must still verify.
	dbHash := "$argon2id$v=19$m=65536,t=1,p=4$mucMvOaS6lZ2LWNS1OEFKw$UYEWv8cvCOO6l2zGeqv3JPVe1nyy0x9GXBfYEuDM544"

	valid, err := CheckPassword("changeme", dbHash)
	if err != nil {
		t.Fatalf("CheckPassword error: %v", err)
	}
	if !valid {
		t.Fatal("stored hash rejected correct password")
	}
	if !NeedsRehash(dbHash) {
		t.Error("NeedsRehash() = false for non-default parameters")
	}
}

func TestCheckPassword_LegacyBcrypt(t *testing.T) {
	legacy, err := bcrypt.GenerateFromPassword([]byte("hallelujah"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	valid, err := CheckPassword("hallelujah", string(legacy))
	if err != nil {
		t.Fatalf("CheckPassword error: %v", err)
	}
	if !valid {
		t.Fatal("legacy bcrypt hash rejected correct password")
	}

	valid, err = CheckPassword("wrong", string(legacy))
	if err != nil {
		t.Fatalf("CheckPassword error: %v", err)
	}
	if valid {
		t.Fatal("legacy bcrypt hash accepted wrong password")
	}

	if !NeedsRehash(string(legacy)) {
		t.Error("bcrypt hashes should be upgraded on next login")
	}
}

func TestCheckPassword_InvalidHash(t *testing.T) {
	if _, err := CheckPassword("x", "plaintext"); err == nil {
		t.Error("CheckPassword() with malformed hash should fail")
	}
}

func TestGenerateTemporaryPassword(t *testing.T) {
	seen := make(map[string]bool)
	for range 20 {
		pw, err := GenerateTemporaryPassword()
		if err != nil {
			t.Fatalf("GenerateTemporaryPassword: %v", err)
		}
		if len(pw) != TemporaryPasswordLength {
			t.Errorf("len = %d, want %d", len(pw), TemporaryPasswordLength)
		}
		for _, r := range pw {
			if !strings.ContainsRune(temporaryPasswordAlphabet, r) {
				t.Errorf("unexpected character %q in %q", r, pw)
			}
		}
		if seen[pw] {
			t.Errorf("duplicate password %q", pw)
		}
		seen[pw] = true
	}
}
