// Package staged runs an ordered list of acquire/release pairs. A failure at
// step k releases steps 1..k-1 in reverse order before returning.
package staged

import "fmt"

// Step is one acquisition. Release may be nil when the step holds nothing.
type Step struct {
	Name    string
	Acquire func() error
	Release func()
}

// StepError reports which step failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Chain holds the steps and the ones currently acquired.
type Chain struct {
	steps []Step
	held  []Step
}

// New returns a chain over steps.
func New(steps ...Step) *Chain {
	return &Chain{steps: steps}
}

// Acquire runs every step in order and stops at the first failure, after
// releasing whatever the earlier steps acquired.
func (c *Chain) Acquire() error {
	for _, s := range c.steps {
		if err := s.Acquire(); err != nil {
			c.Release()
			return &StepError{Step: s.Name, Err: err}
		}
		c.held = append(c.held, s)
	}
	return nil
}

// Release undoes the held steps in reverse order. Later calls are no-ops.
func (c *Chain) Release() {
	for i := len(c.held) - 1; i >= 0; i-- {
		if r := c.held[i].Release; r != nil {
			r()
		}
	}
	c.held = nil
}
