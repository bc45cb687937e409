/* IBM 2703 communications controller: channel-tick dispatch.

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

package comctl

import (
	"time"

	dev "github.com/rcornwell/ibm360periph/emu/device"
	ev "github.com/rcornwell/ibm360periph/emu/event"
	ch "github.com/rcornwell/ibm360periph/emu/sys_channel"
	"github.com/rcornwell/ibm360periph/util/debug"
)

// serviceTick is the period at which an in-progress command is re-polled
// while it waits on line traffic or a staged record (§4.2/§4.3).
const serviceTick = 200

// service is the scheduled tick callback for every multi-step command
// (Sense, SetMode, Prepare, Read/Inhibit, Write/Poll).
func (l *Line) service(iarg int) {
	cmd := uint8(iarg)
	switch cmd {
	case dev.CmdSense:
		l.busy = false
		_ = ch.ChanWriteByte(l.addr, l.sense)
		ch.ChanEnd(l.addr, dev.CStatusChnEnd|dev.CStatusDevEnd)

	case cmdSetMode:
		l.setModeTick()

	case cmdPrepare:
		if l.inReady || l.breakReq {
			l.busy = false
			ch.ChanEnd(l.addr, dev.CStatusChnEnd|dev.CStatusDevEnd)
			return
		}
		ev.AddEvent(l, l.service, serviceTick, iarg)

	case dev.CmdRead, cmdInhibit:
		l.readTick()

	case dev.CmdWrite, cmdPoll:
		l.writeTick()
	}
}

// readTick implements Read(0x02)/Inhibit(0x0A)'s per-tick byte delivery
// (§4.2 async, §4.3 BSC address/record handling is identical: both stream a
// staged record byte by byte once one is ready).
func (l *Line) readTick() {
	if l.addrReq && l.bptr == 0 {
		l.addrReq = false
		if ch.ChanWriteByte(l.addr, 0x16) {
			l.finishRead(dev.CStatusChnEnd | dev.CStatusDevEnd)
			return
		}
		if l.addr9 {
			l.finishRead(dev.CStatusChnEnd | dev.CStatusDevEnd)
			return
		}
		ev.AddEvent(l, l.service, serviceTick, int(l.currentCmd))
		return
	}

	if l.breakReq {
		l.breakReq = false
		l.addrReq = false
		l.sense = dev.SenseINTVENT
		l.finishRead(dev.CStatusChnEnd | dev.CStatusDevEnd | dev.CStatusCheck | dev.CStatusExpt)
		return
	}

	if !l.inReady {
		if l.bsc && l.readTimeout > 0 && time.Since(l.cmdStart) > l.readTimeout {
			l.sense |= senseTimeout
			l.finishRead(dev.CStatusChnEnd | dev.CStatusDevEnd | dev.CStatusCheck)
			return
		}
		ev.AddEvent(l, l.service, serviceTick, int(l.currentCmd))
		return
	}

	if l.iptr >= l.bptr {
		status := dev.CStatusChnEnd | dev.CStatusDevEnd
		if l.bsc && l.lastTerminator != bscACK0 {
			status |= dev.CStatusExpt
		}
		l.inReady = false
		l.bptr = 0
		l.iptr = 0
		l.finishRead(status)
		return
	}

	by := l.buf[l.iptr]
	l.iptr++
	if by == 0x1F {
		l.addrReq = true
	}
	if ch.ChanWriteByte(l.addr, by) {
		l.finishRead(dev.CStatusChnEnd | dev.CStatusDevEnd)
		return
	}
	ev.AddEvent(l, l.service, serviceTick, int(l.currentCmd))
}

func (l *Line) finishRead(status uint8) {
	l.busy = false
	debug.DebugDevf(l.addr, l.debugMsk, debugData, "Read end: %#02x", status)
	ch.ChanEnd(l.addr, status)
}

// writeTick implements Write(0x01)/Poll(0x09)'s per-tick byte consumption.
func (l *Line) writeTick() {
	by, end := ch.ChanReadByte(l.addr)
	if end {
		l.busy = false
		ch.ChanEnd(l.addr, dev.CStatusChnEnd|dev.CStatusDevEnd)
		return
	}

	if l.bsc {
		l.bscWriteByte(by)
	} else {
		l.asyncWriteByte(by)
	}

	ev.AddEvent(l, l.service, 2000, int(l.currentCmd))
}
