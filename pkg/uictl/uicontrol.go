// Package uictl describes the controls a screen drives without knowing what
// sits behind them: a recorder that starts and pauses, a duration counter,
// an input level meter.
package uictl

import "golang.org/x/exp/constraints"

type Number interface {
	constraints.Integer | constraints.Float
}

// Knob is a simple on/off toggle control.
type Knob interface {
	Read() bool
	On()
	Off()
	Toggle()
}

// Dial is a control that can read some value.
type Dial[N Number] interface {
	Read() N
}

// CappedDial is a Dial with a maximum cap value.
type CappedDial[N Number] interface {
	Dial[N]
	Cap() (num, max N)
}

// Levels is a control that reads the latest window of samples.
type Levels[N Number] interface {
	Read() []N
}

// DialFunc adapts a function to a Dial.
type DialFunc[N Number] func() N

func (f DialFunc[N]) Read() N {
	return f()
}

// Capped pairs a dial with a fixed limit. A limit of zero means no cap.
func Capped[N Number](dial Dial[N], limit N) CappedDial[N] {
	return cappedDial[N]{Dial: dial, limit: limit}
}

type cappedDial[N Number] struct {
	Dial[N]
	limit N
}

func (c cappedDial[N]) Cap() (N, N) {
	return c.Read(), c.limit
}
