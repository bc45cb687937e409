/* IBM 2540 Card Reader tests.

   Copyright (c) 2024, Richard Cornwell

   Permission is hereby granted, free of charge, to any person obtaining a
   copy of this software and associated documentation files (the "Software"),
   to deal in the Software without restriction, including without limitation
   the rights to use, copy, modify, merge, publish, distribute, sublicense,
   and/or sell copies of the Software, and to permit persons to whom the
   Software is furnished to do so, subject to the following conditions:

   The above copyright notice and this permission notice shall be included in
   all copies or substantial portions of the Software.

   THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
   IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
   FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.  IN NO EVENT SHALL
   RICHARD CORNWELL BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
   IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
   CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
*/

package model2540r

import (
	"os"
	"testing"

	dev "github.com/rcornwell/ibm360periph/emu/device"
	event "github.com/rcornwell/ibm360periph/emu/event"
	ch "github.com/rcornwell/ibm360periph/emu/sys_channel"
	card "github.com/rcornwell/ibm360periph/util/card"
)

// drain runs the event queue until the device goes idle, or gives up.
func drain(t *testing.T, device *Model2540Rctx) {
	t.Helper()
	for i := 0; i < 30 && device.busy; i++ {
		event.Advance(20000)
	}
	if device.busy {
		t.Fatal("device still busy after draining events")
	}
}

func newTestReader(t *testing.T, addr uint16) *Model2540Rctx {
	t.Helper()
	ch.InitializeChannels()
	device := &Model2540Rctx{addr: addr, context: card.NewCardContext(card.ModeAuto), format: "AUTO"}
	if err := ch.AddDevice(device, addr); err != nil {
		t.Fatalf("AddDevice failed: %v", err)
	}
	return device
}

// writeDeck creates a temp ASCII card-image file with one line per card.
func writeDeck(t *testing.T, lines ...string) string {
	t.Helper()
	f, err := os.CreateTemp("", "deck")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	for _, l := range lines {
		if _, err := f.WriteString(l + "\n"); err != nil {
			t.Fatalf("WriteString: %v", err)
		}
	}
	name := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(name) })
	return name
}

func ebcdic(s string) []byte {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		out[i] = byte(card.HolToEbcdic(card.AsciiToHol(s[i])))
	}
	return out
}

// S1: a single card with "HELLO" in columns 1-5, rest blank, read in full.
func TestReadHappyPath(t *testing.T) {
	device := newTestReader(t, 0x0c0)
	name := writeDeck(t, "HELLO")
	if err := device.context.Attach(name, false, false); err != nil {
		t.Fatalf("Attach: %v", err)
	}

	status := device.StartCmd(dev.CmdRead)
	if status != 0 {
		t.Fatalf("StartCmd returned %#02x, want 0 (accepted)", status)
	}
	drain(t, device)

	want := append(ebcdic("HELLO"), make([]byte, 75)...)
	for i := 5; i < 80; i++ {
		want[i] = 0x40 // EBCDIC space
	}
	got := ch.Received(0x0c0)
	if len(got) != 80 {
		t.Fatalf("received %d bytes, want 80", len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("column %d = %#02x, want %#02x", i, got[i], want[i])
		}
	}
	if st := ch.LastStatus(0x0c0); st != dev.CStatusChnEnd|dev.CStatusDevEnd {
		t.Fatalf("LastStatus = %#02x, want chnEnd|devEnd", st)
	}
}

// Unattached Read is rejected immediately with Intervention Required.
func TestReadUnattached(t *testing.T) {
	device := newTestReader(t, 0x0c1)

	status := device.StartCmd(dev.CmdRead)
	want := dev.CStatusChnEnd | dev.CStatusDevEnd | dev.CStatusCheck
	if status != want {
		t.Fatalf("StartCmd = %#02x, want %#02x", status, want)
	}
	if device.sense != dev.SenseINTVENT {
		t.Fatalf("sense = %#02x, want SenseINTVENT", device.sense)
	}
	if device.busy {
		t.Fatal("device should not be busy after an immediate reject")
	}
}

// Reading past the end of the deck reports UnitException once the hopper
// empties, then latches EOF for the next Read.
func TestReadEmptyHopperLatchesEOF(t *testing.T) {
	device := newTestReader(t, 0x0c2)
	name := writeDeck(t, "ONE")
	if err := device.context.Attach(name, false, false); err != nil {
		t.Fatalf("Attach: %v", err)
	}

	// First read consumes the only card.
	if status := device.StartCmd(dev.CmdRead); status != 0 {
		t.Fatalf("first StartCmd = %#02x, want 0", status)
	}
	drain(t, device)
	if st := ch.LastStatus(0x0c2); st != dev.CStatusChnEnd|dev.CStatusDevEnd {
		t.Fatalf("first read status = %#02x, want chnEnd|devEnd", st)
	}

	// Second read finds the hopper empty.
	if status := device.StartCmd(dev.CmdRead); status != 0 {
		t.Fatalf("second StartCmd = %#02x, want 0", status)
	}
	drain(t, device)
	want := dev.CStatusChnEnd | dev.CStatusDevEnd | dev.CStatusExpt
	if st := ch.LastStatus(0x0c2); st != want {
		t.Fatalf("second read status = %#02x, want %#02x", st, want)
	}
	if !device.eofPending {
		t.Fatal("expected eofPending to be latched")
	}

	// Third read consumes the latch and returns immediately.
	status := device.StartCmd(dev.CmdRead)
	if status != want {
		t.Fatalf("third StartCmd = %#02x, want %#02x", status, want)
	}
	if device.eofPending {
		t.Fatal("eofPending should be cleared once consumed")
	}
	if device.busy {
		t.Fatal("latched-EOF read should complete without scheduling work")
	}
}

// Sense delivers the current sense byte and clears the soft bits.
func TestSenseCommand(t *testing.T) {
	device := newTestReader(t, 0x0c3)
	device.sense = dev.SenseINTVENT

	if status := device.StartCmd(dev.CmdSense); status != 0 {
		t.Fatalf("StartCmd = %#02x, want 0", status)
	}
	drain(t, device)

	got := ch.Received(0x0c3)
	if len(got) != 1 || got[0] != dev.SenseINTVENT {
		t.Fatalf("Received = %v, want [%#02x]", got, dev.SenseINTVENT)
	}
	if device.sense != 0 {
		t.Fatalf("sense = %#02x, want cleared", device.sense)
	}
}

// A Control command with both stacker-select bits set is rejected.
func TestControlBothStackerBitsRejected(t *testing.T) {
	device := newTestReader(t, 0x0c4)
	name := writeDeck(t, "X")
	if err := device.context.Attach(name, false, false); err != nil {
		t.Fatalf("Attach: %v", err)
	}

	status := device.StartCmd(dev.CmdCTL | stackMask | feedMask)
	want := dev.CStatusChnEnd | dev.CStatusDevEnd | dev.CStatusCheck
	if status != want {
		t.Fatalf("StartCmd = %#02x, want %#02x", status, want)
	}
	if device.sense != dev.SenseCMDREJ {
		t.Fatalf("sense = %#02x, want SenseCMDREJ", device.sense)
	}
}

// The bare Control command (0x03) is a no-op that completes immediately.
func TestControlNoop(t *testing.T) {
	device := newTestReader(t, 0x0c5)
	status := device.StartCmd(dev.CmdCTL)
	want := dev.CStatusChnEnd | dev.CStatusDevEnd
	if status != want {
		t.Fatalf("StartCmd = %#02x, want %#02x", status, want)
	}
}

// A busy, attached unit rejects a second command with Busy.
func TestBusyRejectsSecondCommand(t *testing.T) {
	device := newTestReader(t, 0x0c6)
	name := writeDeck(t, "ONE", "TWO")
	if err := device.context.Attach(name, false, false); err != nil {
		t.Fatalf("Attach: %v", err)
	}

	if status := device.StartCmd(dev.CmdRead); status != 0 {
		t.Fatalf("first StartCmd = %#02x, want 0", status)
	}
	status := device.StartCmd(dev.CmdRead)
	if status != dev.CStatusBusy {
		t.Fatalf("second StartCmd = %#02x, want CStatusBusy", status)
	}
	drain(t, device)
}

// A normally-punched card never raises DataCheck.
func TestReadCleanCardNoDataCheck(t *testing.T) {
	device := newTestReader(t, 0x0c7)
	name := writeDeck(t, "A")
	if err := device.context.Attach(name, false, false); err != nil {
		t.Fatalf("Attach: %v", err)
	}

	if status := device.StartCmd(dev.CmdRead); status != 0 {
		t.Fatalf("StartCmd = %#02x, want 0", status)
	}
	drain(t, device)
	if st := ch.LastStatus(0x0c7); st&dev.CStatusCheck != 0 {
		t.Fatalf("unexpected check status on a clean card: %#02x", st)
	}
}
