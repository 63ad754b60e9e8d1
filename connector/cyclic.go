package connector

import (
	"sort"
	"sync"
)

// cyclicTasks records which cyclic send operations have a kernel task
// installed. Only the send path and StopCyclic change it.
type cyclicTasks struct {
	mu        sync.Mutex
	installed map[string]bool
}

func newCyclicTasks(specs map[string]SendOperationSpec) *cyclicTasks {
	c := &cyclicTasks{installed: make(map[string]bool)}
	for op, spec := range specs {
		if spec.IsCyclic {
			c.installed[op] = false
		}
	}
	return c
}

// advance runs submit with the current state of op and marks op installed
// afterwards. The lock is held across submit so that two concurrent sends
// can never both observe the uninstalled state.
func (c *cyclicTasks) advance(op string, submit func(installed bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	submit(c.installed[op])
	c.installed[op] = true
}

// uninstall runs remove while op is installed and resets its state. It
// reports whether op had a task.
func (c *cyclicTasks) uninstall(op string, remove func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.installed[op] {
		return false
	}
	remove()
	c.installed[op] = false
	return true
}

// active returns the operations with an installed task, sorted.
func (c *cyclicTasks) active() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var ops []string
	for op, installed := range c.installed {
		if installed {
			ops = append(ops, op)
		}
	}
	sort.Strings(ops)
	return ops
}
