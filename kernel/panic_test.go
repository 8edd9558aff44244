package kernel

import (
	"testing"

	"github.com/KronsyC/chopin/kernel/cpu"
	"github.com/KronsyC/chopin/kernel/hal"
	"github.com/KronsyC/chopin/kernel/hal/firmware"
)

func TestPanic(t *testing.T) {
	defer func() {
		cpuHaltFn = cpu.Halt
	}()

	var cpuHaltCalled bool
	cpuHaltFn = func() {
		cpuHaltCalled = true
	}

	t.Run("with error", func(t *testing.T) {
		cpuHaltCalled = false
		console := &firmware.Fake{}
		hal.AttachTo(fakeTerminal{console})

		err := &Error{Module: "test", Message: "panic test"}
		Panic(err)

		exp := "\n-----------------------------------\n[test] unrecoverable error: panic test\n*** kernel panic: system halted ***\n-----------------------------------\n"
		if got := string(console.Written); got != exp {
			t.Fatalf("expected to get:\n%q\ngot:\n%q", exp, got)
		}
		if !cpuHaltCalled {
			t.Fatal("expected cpu.Halt() to be called by Panic")
		}
	})

	t.Run("without error", func(t *testing.T) {
		cpuHaltCalled = false
		console := &firmware.Fake{}
		hal.AttachTo(fakeTerminal{console})

		Panic(nil)

		exp := "\n-----------------------------------\n*** kernel panic: system halted ***\n-----------------------------------\n"
		if got := string(console.Written); got != exp {
			t.Fatalf("expected to get:\n%q\ngot:\n%q", exp, got)
		}
		if !cpuHaltCalled {
			t.Fatal("expected cpu.Halt() to be called by Panic")
		}
	})

	t.Run("with plain error value", func(t *testing.T) {
		cpuHaltCalled = false
		console := &firmware.Fake{}
		hal.AttachTo(fakeTerminal{console})

		Panic(errPlain("disk on fire"))

		exp := "\n-----------------------------------\n[rt] unrecoverable error: disk on fire\n*** kernel panic: system halted ***\n-----------------------------------\n"
		if got := string(console.Written); got != exp {
			t.Fatalf("expected to get:\n%q\ngot:\n%q", exp, got)
		}
	})
}

type errPlain string

func (e errPlain) Error() string { return string(e) }

// fakeTerminal adapts firmware.Fake (a byte-at-a-time Console) to
// hal.Terminal for tests that don't go through hal.InitConsole.
type fakeTerminal struct {
	console *firmware.Fake
}

func (f fakeTerminal) WriteByte(b byte) error {
	f.console.PutChar(b)
	return nil
}

func (f fakeTerminal) Write(p []byte) (int, error) {
	for _, b := range p {
		f.console.PutChar(b)
	}
	return len(p), nil
}
