/*
   Core event loop.

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

// Package core is the top-level wiring between the telnet listener and the
// device models: it owns no CPU or memory, only the master packet channel
// and the wall clock that drives the device event queue (service ticks
// scheduled by emu/comctl and emu/model2540R against emu/event).
package core

import (
	"log/slog"
	"sync"
	"time"

	"github.com/rcornwell/ibm360periph/emu/event"
	"github.com/rcornwell/ibm360periph/emu/master"
	syschannel "github.com/rcornwell/ibm360periph/emu/sys_channel"
)

// tickCycles is the number of device-event cycles retired per wall-clock
// tick, fine enough relative to the shortest service delay device models
// schedule (emu/model2540R.service at 10 cycles).
const tickCycles = 10

// tickInterval is how often the wall clock advances the event queue.
const tickInterval = time.Millisecond

// Core is the event loop every telnet connect/disconnect/receive and
// device service tick flows through.
type Core struct {
	wg     sync.WaitGroup
	done   chan struct{}
	master chan master.Packet
}

// New creates a Core reading packets from master.
func New(master chan master.Packet) *Core {
	return &Core{
		master: master,
		done:   make(chan struct{}),
	}
}

// Start runs the event loop until Stop is called. Meant to be run in its
// own goroutine.
func (core *Core) Start() {
	core.wg.Add(1)
	defer core.wg.Done()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-core.done:
			slog.Info("Shutdown core event loop")
			return
		case packet := <-core.master:
			core.processPacket(packet)
		case <-ticker.C:
			event.Advance(tickCycles)
		}
	}
}

// Stop signals the event loop to exit and waits for it to finish.
func (core *Core) Stop() {
	close(core.done)
	done := make(chan struct{})
	go func() {
		core.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return
	case <-time.After(time.Second):
		slog.Warn("Timed out waiting for core event loop to finish.")
		return
	}
}

// processPacket dispatches a packet from the telnet listener to the
// registered device's channel-facing entry points.
func (core *Core) processPacket(packet master.Packet) {
	switch packet.Msg {
	case master.TelConnect:
		syschannel.SendConnect(packet.DevNum, packet.Conn)
	case master.TelDisconnect:
		syschannel.SendDisconnect(packet.DevNum)
	case master.TelReceive:
		syschannel.SendReceiveChar(packet.DevNum, packet.Data)
	}
}
