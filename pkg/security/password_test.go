package security_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/angelmondragon/tirestore-backend/pkg/config"
	"github.com/angelmondragon/tirestore-backend/pkg/security"
)

var fastParams = config.PasswordConfig{
	ArgonMemoryKB:    8192,
	ArgonTime:        1,
	ArgonParallelism: 1,
	ArgonSaltLen:     16,
	ArgonKeyLen:      32,
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := security.HashPassword("tread-depth-8mm", fastParams)
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected hash format %q", hash)
	}

	ok, err := security.VerifyPassword("tread-depth-8mm", hash)
	if err != nil || !ok {
		t.Fatalf("expected correct password to verify, got %v %v", ok, err)
	}

	ok, err = security.VerifyPassword("bogus-password", hash)
	if err != nil {
		t.Fatalf("VerifyPassword returned error for wrong password: %v", err)
	}
	if ok {
		t.Fatal("VerifyPassword returned true for incorrect password")
	}
}

func TestHashPasswordUsesFreshSalt(t *testing.T) {
	first, _ := security.HashPassword("same-password-1", fastParams)
	second, _ := security.HashPassword("same-password-1", fastParams)
	if first == second {
		t.Fatal("expected different salts per hash")
	}
}

func TestVerifyPasswordBadHash(t *testing.T) {
	for _, encoded := range []string{
		"not-a-hash",
		"$argon2i$v=19$m=1,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=18$m=1,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=x,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=1,t=1,p=1$!!!$a2V5",
	} {
		if _, err := security.VerifyPassword("irrelevant", encoded); !errors.Is(err, security.ErrInvalidHash) {
			t.Fatalf("expected ErrInvalidHash for %q, got %v", encoded, err)
		}
	}
}

func TestValidatePassword(t *testing.T) {
	cases := map[string]bool{
		"short1":           false,
		"allletters":       false,
		"1234567890":       false,
		"radial2024":       true,
		"michelin pilot 4": true,
	}
	for password, valid := range cases {
		err := security.ValidatePassword(password)
		if valid && err != nil {
			t.Fatalf("%q: expected valid, got %v", password, err)
		}
		if !valid && !errors.Is(err, security.ErrWeakPassword) {
			t.Fatalf("%q: expected weak password error, got %v", password, err)
		}
	}
}
