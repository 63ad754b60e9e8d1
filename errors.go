package socketcan

import "errors"

// Setup failures of DialBCM and OpenLink.
var (
	ErrInterfaceNotFound = errors.New("socketcan: interface not found")
	ErrSocketCreate      = errors.New("socketcan: couldn't create socket")
	ErrSocketConnect     = errors.New("socketcan: couldn't connect socket")
	ErrSocketOption      = errors.New("socketcan: couldn't set socket option")
	ErrNotCAN            = errors.New("socketcan: not a CAN interface")
)
