package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	c, err := Load(writeYAML(t, "environment: test\nserver:\n  port: 9090\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Server.Port != 9090 {
		t.Fatalf("port = %d", c.Server.Port)
	}
	if c.Insights.RingCapacity != 2000 || c.Insights.IVHistoryCap != 252 {
		t.Fatalf("ring=%d iv=%d", c.Insights.RingCapacity, c.Insights.IVHistoryCap)
	}
	if c.Insights.Trend.Threshold != 0.0005 || c.Insights.Patterns.MaxSignals != 12 {
		t.Fatalf("unexpected insights defaults %+v", c.Insights)
	}
	if c.Insights.RecomputeInterval != 15*time.Second {
		t.Fatalf("interval = %v", c.Insights.RecomputeInterval)
	}
	if c.Bars.Source != "none" {
		t.Fatalf("bars.source = %q", c.Bars.Source)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	path := writeYAML(t, "insights:\n  breadth_universe: [SPY]\ntradier:\n  token: yaml-token\n")
	t.Setenv("PORT", "7070")
	t.Setenv("INGEST_KEY", "secret")
	t.Setenv("BREADTH_LIST", "aapl, MSFT,AAPL")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	c, err := LoadWithEnv(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Server.Port != 7070 || c.Ingest.Key != "secret" {
		t.Fatalf("port=%d key=%q", c.Server.Port, c.Ingest.Key)
	}
	if len(c.Insights.BreadthUniverse) != 2 || c.Insights.BreadthUniverse[1] != "MSFT" {
		t.Fatalf("breadth = %v", c.Insights.BreadthUniverse)
	}
	if len(c.Kafka.Brokers) != 2 {
		t.Fatalf("brokers = %v", c.Kafka.Brokers)
	}
	if c.Bars.Source != "tradier" {
		t.Fatalf("bars.source = %q, want tradier", c.Bars.Source)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }},
		{"kafka without brokers", func(c *Config) { c.Kafka.Enabled = true }},
		{"finnhub without key", func(c *Config) { c.Finnhub.Enabled = true; c.Finnhub.Symbols = []string{"SPY"} }},
		{"tradier without token", func(c *Config) { c.Bars.Source = "tradier" }},
		{"unknown bars source", func(c *Config) { c.Bars.Source = "csv" }},
	}
	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			tc.mutate(c)
			if err := c.Validate(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
