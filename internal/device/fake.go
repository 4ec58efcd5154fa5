package device

import (
	"context"
	"sync"
)

// FakeGateway records sent commands for test assertions.
type FakeGateway struct {
	mu sync.Mutex

	// Commands contains every command handed to Send.
	Commands []Command

	// SendError, if set, will be returned by Send.
	SendError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeGateway creates a FakeGateway for testing.
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{}
}

// Send records the command.
func (f *FakeGateway) Send(_ context.Context, cmd Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendError != nil {
		return f.SendError
	}
	f.Commands = append(f.Commands, cmd)
	return nil
}

// Close marks the gateway as closed.
func (f *FakeGateway) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// Sent returns a copy of the recorded commands.
func (f *FakeGateway) Sent() []Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Command, len(f.Commands))
	copy(out, f.Commands)
	return out
}

// OfType returns the recorded commands with the given type.
func (f *FakeGateway) OfType(cmdType string) []Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Command
	for _, c := range f.Commands {
		if c.Type == cmdType {
			out = append(out, c)
		}
	}
	return out
}

// Reset clears recorded commands.
func (f *FakeGateway) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Commands = nil
	f.SendError = nil
	f.Closed = false
}
