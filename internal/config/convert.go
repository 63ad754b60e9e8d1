// internal/config/convert.go
package config

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/lion187chen/socketcan-hil/connector"
)

// Connector converts the YAML section into a connector configuration.
// Per-operation frame modes default to the connector mode.
func (c *ConnectorConfig) Connector() (connector.Config, error) {
	out := connector.Config{
		Name:       c.Name,
		Interface:  c.Interface,
		Codec:      c.Codec,
		FD:         c.CANFD,
		Operations: append([]string(nil), c.Operations...),
		Receive:    make(map[uint32]connector.ReceiveOperationSpec, len(c.Receive)),
		Send:       make(map[string]connector.SendOperationSpec, len(c.Send)),
	}

	for _, r := range c.Receive {
		mask, err := parseMask(r.Mask)
		if err != nil {
			return connector.Config{}, fmt.Errorf("receive %q: %w", r.Operation, err)
		}
		out.Receive[r.CANID] = connector.ReceiveOperationSpec{
			Operation:  r.Operation,
			IsCANFD:    modeOf(r.CANFD, c.CANFD),
			HasMask:    mask != nil,
			Mask:       mask,
			MaskLength: len(mask),
		}
	}

	for _, s := range c.Send {
		out.Send[s.Operation] = connector.SendOperationSpec{
			CANID:    s.CANID,
			IsCANFD:  modeOf(s.CANFD, c.CANFD),
			IsCyclic: s.Cyclic,
			Announce: s.Announce,
			Count:    s.Count,
			Ival1:    s.Ival1,
			Ival2:    s.Ival2,
		}
	}
	return out, nil
}

func modeOf(op *bool, connector bool) bool {
	if op == nil {
		return connector
	}
	return *op
}

// parseMask decodes "ff ff 00" style masks. An empty string is no mask.
func parseMask(s string) ([]byte, error) {
	digits := strings.Join(strings.Fields(s), "")
	if digits == "" {
		return nil, nil
	}
	mask, err := hex.DecodeString(digits)
	if err != nil {
		return nil, fmt.Errorf("invalid mask %q: %w", s, err)
	}
	return mask, nil
}
