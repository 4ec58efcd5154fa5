// Package device provides the one-way command channel to the hardware
// bridges. Delivery is fire-and-forget: a command is attempted, never
// acknowledged, and a failure here must never block the business records the
// lifecycle controller has already persisted.
package device

import (
	"context"
	"encoding/json"
	"time"
)

// Command types understood by the bridges.
const (
	CmdPowerOn    = "power_on"
	CmdPowerOff   = "power_off"
	CmdSleepTimer = "sleep_timer"
)

// Command is one hardware instruction addressed to a unit on some bridge's
// local network. Commands are broadcast to every registered bridge; each
// bridge filters by whether the target address is local to it.
type Command struct {
	TargetAddress string    `json:"targetAddress"`
	Type          string    `json:"commandType"`
	Minutes       int       `json:"minutes,omitempty"` // sleep timer only
	Timestamp     time.Time `json:"timestamp"`
}

// Gateway publishes commands toward the bridges.
type Gateway interface {
	// Send attempts delivery of a command. An error means the attempt
	// itself failed; there is no confirmation of physical effect.
	Send(ctx context.Context, cmd Command) error

	// Close releases the underlying connection.
	Close() error
}

// FormatPayload creates the JSON wire payload for a command.
func FormatPayload(cmd Command) ([]byte, error) {
	cmd.Timestamp = cmd.Timestamp.UTC()
	return json.Marshal(cmd)
}

// PowerOn builds a power-on command for the given address.
func PowerOn(address string, now time.Time) Command {
	return Command{TargetAddress: address, Type: CmdPowerOn, Timestamp: now}
}

// PowerOff builds a power-off command for the given address.
func PowerOff(address string, now time.Time) Command {
	return Command{TargetAddress: address, Type: CmdPowerOff, Timestamp: now}
}

// SleepTimer builds a sleep-timer command for the given address.
func SleepTimer(address string, minutes int, now time.Time) Command {
	return Command{TargetAddress: address, Type: CmdSleepTimer, Minutes: minutes, Timestamp: now}
}
