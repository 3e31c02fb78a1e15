package main

import (
	"testing"

	"posledger/backend/internal/config"
)

const strongSecret = "0123456789abcdef0123456789abcdef"

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	cases := []config.Config{
		{AuthSecret: "short", ManagerPIN: "739154"},
		{AuthSecret: strongSecret, ManagerPIN: ""},
		{AuthSecret: strongSecret, ManagerPIN: "12345"},
		{AuthSecret: strongSecret, ManagerPIN: "123456"},
		{AuthSecret: strongSecret, ManagerPIN: "888888"},
		{AuthSecret: strongSecret, ManagerPIN: "987654"},
		{AuthSecret: strongSecret, ManagerPIN: "73a154"},
	}
	for _, cfg := range cases {
		if err := validateSecurityConfig(cfg); err == nil {
			t.Fatalf("expected %+v to be rejected", cfg)
		}
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: strongSecret, ManagerPIN: "739154"})
	if err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}
