package token

import (
	"testing"

	"gamelobby/coordinator/internal/config"
)

func init() {
	config.AppConfig = &config.Config{JWTSecret: "unit-test-secret"}
}

func TestGenerateAndParse(t *testing.T) {
	signed, err := Generate("u1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	uid, err := ParseUID(signed)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if uid != "u1" {
		t.Fatalf("uid = %q, want u1", uid)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := ParseUID("not.a.token"); err == nil {
		t.Fatalf("garbage token accepted")
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	signed, err := Generate("u1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	config.AppConfig = &config.Config{JWTSecret: "a-different-secret"}
	defer func() { config.AppConfig = &config.Config{JWTSecret: "unit-test-secret"} }()

	if _, err := ParseUID(signed); err == nil {
		t.Fatalf("token verified under the wrong secret")
	}
}
