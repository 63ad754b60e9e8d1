// internal/config/config_test.go
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/lion187chen/socketcan-hil/bcm"
	"github.com/lion187chen/socketcan-hil/connector"
)

const sample = `
connector:
  name: can-dut
  interface: vcan0
  codec: Bmw
  canfd: true
  operations: [Speed_SIM, Lights_SIM]
  receive:
    - can_id: 0x275
      operation: GESCHWINDIGKEIT
      canfd: false
    - can_id: 0x21A
      operation: LICHT
      canfd: false
      mask: "ff ff 00 00"
    - can_id: 0x3A5
      operation: FAS
  send:
    - operation: GESCHWINDIGKEIT
      can_id: 0x275
      canfd: false
      cyclic: true
      announce: true
      ival2: {sec: 0, usec: 100000}
    - operation: LICHT
      can_id: 0x21A
      canfd: false
log:
  level: debug
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// ---- tests ----

func TestLoad_Sample(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := cfg.Connector.Connector()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := connector.Config{
		Name:       "can-dut",
		Interface:  "vcan0",
		Codec:      "Bmw",
		FD:         true,
		Operations: []string{"Speed_SIM", "Lights_SIM"},
		Receive: map[uint32]connector.ReceiveOperationSpec{
			0x275: {Operation: "GESCHWINDIGKEIT"},
			0x21A: {Operation: "LICHT", HasMask: true, Mask: []byte{0xFF, 0xFF, 0, 0}, MaskLength: 4},
			0x3A5: {Operation: "FAS", IsCANFD: true},
		},
		Send: map[string]connector.SendOperationSpec{
			"GESCHWINDIGKEIT": {CANID: 0x275, IsCyclic: true, Announce: true, Ival2: bcm.Timeval{Usec: 100000}},
			"LICHT":           {CANID: 0x21A},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected connector config (-want +got):\n%s", diff)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
}

func TestParse_Empty(t *testing.T) {
	if _, err := Parse(nil); err == nil {
		t.Fatal("expected error for empty config")
	}
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse([]byte("connector:\n  interface: vcan0\n  bitrate: 500000\n"))
	if err == nil || !strings.Contains(err.Error(), "bitrate") {
		t.Fatalf("expected unknown field error, got %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	base := func() *Config {
		return &Config{Connector: ConnectorConfig{Interface: "vcan0", Codec: "Bmw"}}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no interface", func(c *Config) { c.Connector.Interface = "" }, "interface is required"},
		{"no codec", func(c *Config) { c.Connector.Codec = "" }, "codec is required"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log"},
		{
			"duplicate can_id",
			func(c *Config) {
				c.Connector.Receive = []ReceiveConfig{
					{CANID: 0x10, Operation: "A"},
					{CANID: 0x10, Operation: "B"},
				}
			},
			"used by operations",
		},
		{
			"bad mask",
			func(c *Config) {
				c.Connector.Receive = []ReceiveConfig{{CANID: 0x10, Operation: "A", Mask: "fz"}}
			},
			"invalid mask",
		},
		{
			"classic mask too long",
			func(c *Config) {
				c.Connector.Receive = []ReceiveConfig{{CANID: 0x10, Operation: "A", Mask: "ff ff ff ff ff ff ff ff ff"}}
			},
			"mask length",
		},
		{
			"duplicate send",
			func(c *Config) {
				c.Connector.Send = []SendConfig{{Operation: "A", CANID: 1}, {Operation: "A", CANID: 2}}
			},
			"defined twice",
		},
		{
			"cyclic without interval",
			func(c *Config) {
				c.Connector.Send = []SendConfig{{Operation: "A", CANID: 1, Cyclic: true}}
			},
			"ival2",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestValidate_DoesNotMutate(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	before := *cfg
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(before, *cfg); diff != "" {
		t.Errorf("Validate mutated config (-before +after):\n%s", diff)
	}
}
