// internal/config/config.go
package config

import "github.com/lion187chen/socketcan-hil/bcm"

type Config struct {
	Connector ConnectorConfig `yaml:"connector"`
	Log       LogConfig       `yaml:"log"`
}

// ---- LOG ----

type LogConfig struct {
	Level       string `yaml:"level"` // debug, info, warn, error; empty => info
	Development bool   `yaml:"development"`
}

// ---- CONNECTOR ----

type ConnectorConfig struct {
	Name       string          `yaml:"name"`
	Interface  string          `yaml:"interface"`
	Codec      string          `yaml:"codec"`
	CANFD      bool            `yaml:"canfd"`
	Operations []string        `yaml:"operations"` // empty => every event accepted
	Receive    []ReceiveConfig `yaml:"receive"`
	Send       []SendConfig    `yaml:"send"`
}

// ---- RECEIVE ----

type ReceiveConfig struct {
	CANID     uint32 `yaml:"can_id"`
	Operation string `yaml:"operation"`
	CANFD     *bool  `yaml:"canfd"` // nil => connector mode

	// Space separated hex bytes, e.g. "ff ff 00 00". Empty => no mask.
	Mask string `yaml:"mask"`
}

// ---- SEND ----

type SendConfig struct {
	Operation string      `yaml:"operation"`
	CANID     uint32      `yaml:"can_id"`
	CANFD     *bool       `yaml:"canfd"` // nil => connector mode
	Cyclic    bool        `yaml:"cyclic"`
	Announce  bool        `yaml:"announce"`
	Count     uint32      `yaml:"count"`
	Ival1     bcm.Timeval `yaml:"ival1"`
	Ival2     bcm.Timeval `yaml:"ival2"`
}
