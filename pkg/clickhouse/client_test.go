package clickhouse

import (
	"testing"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

func TestOptionsFromConfig(t *testing.T) {
	cfg := defaultConfig()
	for _, opt := range []ClientOption{
		WithAddr("ch.local", 0),
		WithDatabase("market"),
		WithCredentials("", "pw"),
		WithHTTP(true),
		WithMaxExecutionTime(20 * time.Second),
	} {
		opt(&cfg)
	}

	o := cfg.options()
	if len(o.Addr) != 1 || o.Addr[0] != "ch.local:9000" {
		t.Fatalf("addr = %v", o.Addr)
	}
	if o.Auth.Database != "market" || o.Auth.Username != "default" || o.Auth.Password != "pw" {
		t.Fatalf("auth = %+v", o.Auth)
	}
	if o.Protocol != clickhouse.HTTP {
		t.Fatalf("protocol = %v", o.Protocol)
	}
	if o.Settings["max_execution_time"] != 20 {
		t.Fatalf("settings = %v", o.Settings)
	}
}
