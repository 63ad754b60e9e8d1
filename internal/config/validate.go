// internal/config/validate.go
package config

import (
	"fmt"

	"go.uber.org/zap/zapcore"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	if cfg.Log.Level != "" {
		if _, err := zapcore.ParseLevel(cfg.Log.Level); err != nil {
			return fmt.Errorf("log: %w", err)
		}
	}

	c := &cfg.Connector
	if c.Interface == "" {
		return fmt.Errorf("connector: interface is required")
	}
	if c.Codec == "" {
		return fmt.Errorf("connector %q: codec is required", c.Interface)
	}

	// ------------------------------------------------------------
	// RECEIVE: one filter per CAN ID
	// ------------------------------------------------------------

	seenID := make(map[uint32]string)
	for _, r := range c.Receive {
		if r.Operation == "" {
			return fmt.Errorf("receive can_id 0x%X: operation is required", r.CANID)
		}
		if prev, exists := seenID[r.CANID]; exists {
			return fmt.Errorf(
				"receive can_id 0x%X: used by operations %q and %q",
				r.CANID,
				prev,
				r.Operation,
			)
		}
		seenID[r.CANID] = r.Operation

		if _, err := parseMask(r.Mask); err != nil {
			return fmt.Errorf("receive %q: %w", r.Operation, err)
		}
	}

	// ------------------------------------------------------------
	// SEND: operation names are keys
	// ------------------------------------------------------------

	seenOp := make(map[string]struct{})
	for _, s := range c.Send {
		if s.Operation == "" {
			return fmt.Errorf("send can_id 0x%X: operation is required", s.CANID)
		}
		if _, exists := seenOp[s.Operation]; exists {
			return fmt.Errorf("send operation %q: defined twice", s.Operation)
		}
		seenOp[s.Operation] = struct{}{}
	}

	// Interval rules and frame limits belong to the connector.
	cc, err := c.Connector()
	if err != nil {
		return err
	}
	return cc.Validate()
}
