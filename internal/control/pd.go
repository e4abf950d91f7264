package control

import "sync"

type Gains struct {
	Kp float64
	Kd float64
}

// Output is one controller step. Only the sign of Value is acted on.
type Output struct {
	RawError   float64
	Error      float64
	Derivative float64
	Value      float64
}

// Press reports whether the button should be held.
func (o Output) Press() bool {
	return o.Value > 0
}

// Controller is a proportional-derivative controller over the normalized
// offset between the fish and the marker. The output is not clamped.
type Controller struct {
	mu       sync.Mutex
	previous float64
}

func NewController() *Controller {
	return &Controller{}
}

// Update computes one step. Gains are passed per call so configuration
// changes apply on the next cycle. A zero height leaves the error in pixels.
func (c *Controller) Update(g Gains, measuredY, targetY, height int) Output {
	raw := float64(measuredY - targetY)
	normalized := raw
	if height != 0 {
		normalized = raw / float64(height)
	}
	return c.step(g, raw, normalized)
}

func (c *Controller) step(g Gains, raw, normalized float64) Output {
	c.mu.Lock()
	defer c.mu.Unlock()

	derivative := normalized - c.previous
	c.previous = normalized
	return Output{
		RawError:   raw,
		Error:      normalized,
		Derivative: derivative,
		Value:      g.Kp*normalized + g.Kd*derivative,
	}
}

// PreviousError returns the error carried into the next step.
func (c *Controller) PreviousError() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.previous
}
