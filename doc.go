// Package socketcan talks to the Linux CAN Broadcast Manager: it owns the
// BCM socket and its receive loop, builds kernel receive filters, and
// manages CAN links over rtnetlink.
package socketcan
