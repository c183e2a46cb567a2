package playground

import "github.com/wippyai/celfmt-ui/meta"

// Surface is the set of UI elements the playground drives.
// All methods are called on the Dispatcher's loop.
type Surface interface {
	// Input returns the current input text.
	Input() string
	SetInput(text string)
	SetOutput(text string)
	// SetLink fills the version link slot named by l.Slot.
	SetLink(l meta.Link)
	// EnableTrigger enables the format control and binds it to fn.
	// fn is invoked once per activation.
	EnableTrigger(fn func())
}

// Dispatcher runs functions on the surface's UI loop.
type Dispatcher interface {
	Dispatch(fn func())
}

// DispatchFunc adapts a function to Dispatcher.
type DispatchFunc func(fn func())

func (f DispatchFunc) Dispatch(fn func()) {
	f(fn)
}

// Inline runs dispatched functions on the calling goroutine.
var Inline = DispatchFunc(func(fn func()) { fn() })
