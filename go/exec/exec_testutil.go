package exec

// Helpers for faking subprocesses in tests.

import (
	"context"
	"sync"
)

// CommandCollector records every Command passed to its Run method so tests can
// inspect them later. Optionally delegates to a caller-supplied run function,
// which may write fake output to the Command's writers. Safe for concurrent
// use as long as the delegate is.
//
// Example usage:
//
//	mock := exec.CommandCollector{}
//	ctx := exec.NewContext(context.Background(), mock.Run)
//	err := exec.Run(ctx, &exec.Command{
//	  Name: "touch",
//	  Args: []string{"/tmp/file"},
//	})
//	assert.Equal(t, "touch /tmp/file", exec.DebugString(mock.Commands()[0]))
type CommandCollector struct {
	mutex       sync.RWMutex
	commands    []*Command
	delegateRun func(context.Context, *Command) error
}

// Run appends command to the collected commands, then calls the delegate run
// function, if any. Without a delegate the command is recorded and "succeeds"
// without producing output. The command is visible in Commands() before the
// delegate runs.
func (c *CommandCollector) Run(ctx context.Context, command *Command) error {
	c.mutex.Lock()
	c.commands = append(c.commands, command)
	delegateRun := c.delegateRun
	c.mutex.Unlock()
	if delegateRun == nil {
		return nil
	}
	return delegateRun(ctx, command)
}

// Commands returns a copy of the commands collected so far.
func (c *CommandCollector) Commands() []*Command {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	result := make([]*Command, len(c.commands))
	copy(result, c.commands)
	return result
}

// ClearCommands forgets the commands collected so far.
func (c *CommandCollector) ClearCommands() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.commands = nil
}

// SetDelegateRun installs a function for Run to call after recording a
// command.
func (c *CommandCollector) SetDelegateRun(delegateRun func(context.Context, *Command) error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.delegateRun = delegateRun
}
