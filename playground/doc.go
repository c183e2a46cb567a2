// Package playground sequences loading a formatter guest and wires it to
// an interactive surface.
//
// A Playground starts Disabled. Start fetches and instantiates the guest
// in the background and, on the surface's UI loop, renders the version
// links, enables the trigger and fills in the example program. Each
// activation of the trigger formats the current input and shows either the
// error, a confirmation that the input is already formatted, or the
// formatted text.
//
// A failed load is logged and leaves the trigger disabled for good.
package playground
