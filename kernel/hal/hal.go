// Package hal exposes the narrow hardware-abstraction surface the rest of
// the kernel uses to emit diagnostics before (and after) the Go allocator
// exists. It mirrors the teacher's ActiveTerminal singleton pattern but
// targets a byte-oriented serial console instead of a memory-mapped text
// framebuffer, since a RISC-V platform under OpenSBI exposes its console as
// a firmware call rather than VGA/EGA hardware.
package hal

import "github.com/KronsyC/chopin/kernel/hal/firmware"

// Terminal is implemented by anything early.Printf can write formatted
// output through. Go interfaces are safe to use here (unlike in the
// teacher's pre-allocator EGA driver) because dispatching through an
// interface value does not itself allocate.
type Terminal interface {
	WriteByte(b byte) error
	Write(p []byte) (int, error)
}

// ActiveTerminal points to the terminal currently receiving kernel
// diagnostic output. InitConsole installs the firmware-backed
// implementation during bring-up; hosted tests call AttachTo directly with
// a fake.
var ActiveTerminal Terminal = discardTerminal{}

// AttachTo installs t as the active terminal.
func AttachTo(t Terminal) {
	ActiveTerminal = t
}

// InitConsole attaches the firmware SBI console as the active terminal.
// Called once during bring-up, before any early.Printf call.
func InitConsole(console firmware.Console) {
	AttachTo(&consoleTerminal{console: console})
}

// consoleTerminal adapts a firmware.Console (one-character-at-a-time write)
// to the Terminal contract used throughout the kernel.
type consoleTerminal struct {
	console firmware.Console
}

func (c *consoleTerminal) WriteByte(b byte) error {
	c.console.PutChar(b)
	return nil
}

func (c *consoleTerminal) Write(p []byte) (int, error) {
	for _, b := range p {
		c.console.PutChar(b)
	}
	return len(p), nil
}

// discardTerminal is the zero-value terminal; it swallows output so that
// early.Printf is safe to call before InitConsole/AttachTo runs.
type discardTerminal struct{}

func (discardTerminal) WriteByte(byte) error       { return nil }
func (discardTerminal) Write(p []byte) (int, error) { return len(p), nil }
