package config

import (
	"testing"
	"time"

	"github.com/distrubuted-game-mechanic/round-engine/internal/types"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Address() != "0.0.0.0:8080" {
		t.Errorf("Expected address 0.0.0.0:8080, got %s", cfg.Address())
	}
	if cfg.StoreDriver != DriverMemory {
		t.Errorf("Expected memory driver, got %s", cfg.StoreDriver)
	}
	if cfg.Rules.RoundCount != 5 || cfg.Rules.Lockout != 5*time.Second || cfg.Rules.PlatformFeeBps != 600 {
		t.Errorf("unexpected default rules: %+v", cfg.Rules)
	}
	if cfg.Oracle.Thresholds.Staleness != 60*time.Second || cfg.Oracle.Thresholds.MinPublishers != 3 {
		t.Errorf("unexpected oracle thresholds: %+v", cfg.Oracle.Thresholds)
	}
	if cfg.Coordinator.Enabled || cfg.Coordinator.GameType != types.GameBtcOnly {
		t.Errorf("unexpected coordinator defaults: %+v", cfg.Coordinator)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "cassandra")
	t.Setenv("CASSANDRA_HOSTS", "c1:9042, c2:9042,")
	t.Setenv("ROUND_COUNT", "3")
	t.Setenv("LOCKOUT_SECONDS", "10")
	t.Setenv("PLATFORM_FEE_BPS", "250")
	t.Setenv("COORDINATOR_ENABLED", "true")
	t.Setenv("ORACLE_CONFIDENCE_MAX", "5000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Cassandra.Hosts) != 2 || cfg.Cassandra.Hosts[1] != "c2:9042" {
		t.Errorf("unexpected hosts: %v", cfg.Cassandra.Hosts)
	}
	wantTypes := []types.RoundType{types.RoundPriceDirection, types.RoundMagnitude, types.RoundComparative}
	if cfg.Rules.RoundCount != 3 || len(cfg.Rules.RoundTypes) != 3 {
		t.Fatalf("unexpected rules: %+v", cfg.Rules)
	}
	for i, rt := range wantTypes {
		if cfg.Rules.RoundTypes[i] != rt {
			t.Errorf("round %d: expected %s, got %s", i+1, rt, cfg.Rules.RoundTypes[i])
		}
	}
	if cfg.Rules.Lockout != 10*time.Second || cfg.Rules.PlatformFeeBps != 250 {
		t.Errorf("unexpected overrides: %+v", cfg.Rules)
	}
	if !cfg.Coordinator.Enabled || cfg.Oracle.Thresholds.Confidence != 5000 {
		t.Errorf("unexpected coordinator/oracle config: %+v / %+v", cfg.Coordinator, cfg.Oracle)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "driver", key: "STORE_DRIVER", value: "sqlite"},
		{name: "redis db", key: "REDIS_DB", value: "zero"},
		{name: "negative duration", key: "ROUND_DURATION_SECONDS", value: "-1"},
		{name: "lockout longer than round", key: "LOCKOUT_SECONDS", value: "60"},
		{name: "fee above 100%", key: "PLATFORM_FEE_BPS", value: "10001"},
		{name: "round types mismatch count", key: "ROUND_TYPES", value: "price_direction,trend"},
		{name: "unknown round type", key: "ROUND_TYPES", value: "price_direction,magnitude,comparative,range,lottery"},
		{name: "game type", key: "COORDINATOR_GAME_TYPE", value: "eth_only"},
		{name: "coordinator flag", key: "COORDINATOR_ENABLED", value: "maybe"},
		{name: "publishers", key: "ORACLE_MIN_PUBLISHERS", value: "-3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}
