/* IBM 2703 communications controller: BSC line framing.

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

   Binary Synchronous Communications framing. The receive side is
   re-expressed as an explicit {Idle, Text, TextTransparent} transition
   function -- a single pending-DLE flag per direction replaces the
   source's buffer-trailing-byte lookback, which let a doubled DLE collapse
   incorrectly when its first half had already been flushed to storage.
*/

package comctl

import (
	dev "github.com/rcornwell/ibm360periph/emu/device"
	ch "github.com/rcornwell/ibm360periph/emu/sys_channel"
)

// BSC control bytes.
const (
	bscSOH  byte = 0x01
	bscSTX  byte = 0x02
	bscETX  byte = 0x03
	bscDLE  byte = 0x10
	bscIBC  byte = 0x1f
	bscETB  byte = 0x26
	bscENQ  byte = 0x2d
	bscSYN  byte = 0x32
	bscEOT  byte = 0x37
	bscNAK  byte = 0x3d
	bscACK0 byte = 0x61
	bscACK1 byte = 0x70
)

// bscState is the receive-side protocol state, per the redesign note asking
// for an explicit {Idle, Text, TextTransparent} transition function in
// place of the source's nested switch.
type bscState int

const (
	bscIdle bscState = iota
	bscTextMode
	bscTextTransparent
)

func (l *Line) state() bscState {
	switch {
	case l.bscText && l.bscTransparent:
		return bscTextTransparent
	case l.bscText:
		return bscTextMode
	default:
		return bscIdle
	}
}

// setModeTick implements Set Mode (0x23): §4.3.
func (l *Line) setModeTick() {
	l.bscText = false
	l.bscTransparent = false
	l.bscDle = false
	wasEnabled := l.enabled
	mode, _ := ch.ChanReadByte(l.addr)
	l.bscEIB = mode&0x40 != 0
	if wasEnabled {
		l.sendRaw(bscSYN)
		l.sendRaw(bscEOT)
	}
	l.busy = false
	ch.ChanEnd(l.addr, dev.CStatusChnEnd|dev.CStatusDevEnd)
}

// bscWriteByte implements the BSC write path's DLE-doubling: §4.3.
func (l *Line) bscWriteByte(b byte) {
	switch {
	case l.bscTransparent:
		if b == bscDLE {
			l.sendRaw(bscDLE)
		}
	case b == bscDLE:
		l.bscDle = true
	default:
		if l.bscDle && b == bscETX {
			l.bscTransparent = true
		}
		l.bscDle = false
	}
	l.sendRaw(b)
}

// sendRaw writes one byte downstream to the connected peer.
func (l *Line) sendRaw(b byte) {
	if l.conn == nil {
		return
	}
	_, _ = l.conn.Write([]byte{b})
}

// appendReceived stores one received byte (async or BSC) into the receive buffer;
// it is the sole mutator of l.buf on the receive side so the scanner and
// the state machine never race on it (§9 single-owner note).
func (l *Line) appendReceived(b byte) {
	if l.bptr < len(l.buf) {
		l.buf[l.bptr] = b
		l.bptr++
	}
}

// finishReceive stashes the terminator (stripped by the Read consumer, not
// delivered to storage: §4.3 "Finalization") and marks the record ready.
func (l *Line) finishReceive(terminator byte) {
	l.lastTerminator = terminator
	l.inReady = true
	l.recv = false
	l.rxDLE = false
	l.rxBCCremaining = 0
}

// deliverBSC feeds one byte received from the line into the BSC receive
// state machine (§4.3).
func (l *Line) deliverBSC(b byte) {
	if l.rxBCCremaining > 0 {
		l.rxBCCremaining-- // ETB's two trailing block-check bytes: dropped
		if l.rxBCCremaining == 0 {
			l.finishAfterBCC()
		}
		return
	}

	switch l.state() {
	case bscTextTransparent:
		l.deliverTextTransparent(b)
	case bscTextMode:
		l.deliverTextMode(b)
	default:
		l.deliverIdle(b)
	}
}

// finishAfterBCC completes the ETB sequence once its two trailing
// block-check bytes have been consumed: same finalize steps as EOT/ETX,
// with or without the leading DLE depending on how ETB itself arrived.
func (l *Line) finishAfterBCC() {
	if l.rxBCCclearTransparent {
		l.bscTransparent = false
	}
	if l.rxBCCdle {
		l.appendReceived(bscDLE)
	}
	l.appendReceived(bscETB)
	if l.bscEIB {
		l.appendReceived(0)
	}
	l.finishReceive(bscACK0)
}

func (l *Line) deliverTextTransparent(b byte) {
	if b == bscSYN {
		return
	}
	if l.rxDLE {
		l.rxDLE = false
		switch b {
		case bscDLE:
			l.appendReceived(bscDLE) // doubling collapses to one stored byte
		case bscETB:
			l.rxBCCdle = true
			l.rxBCCclearTransparent = true
			l.rxBCCremaining = 2
		case bscEOT, bscETX:
			l.bscTransparent = false
			l.appendReceived(bscDLE)
			l.appendReceived(b)
			if l.bscEIB {
				l.appendReceived(0)
			}
			l.finishReceive(bscACK0)
		case bscIBC:
			l.bscTransparent = false
			l.appendReceived(bscDLE)
			l.appendReceived(bscIBC)
			if l.bscEIB {
				l.appendReceived(0)
			}
		case bscENQ:
			l.bscTransparent = false
			l.bscText = false
			l.appendReceived(bscDLE)
			l.appendReceived(bscENQ)
			l.finishReceive(bscACK0)
		default:
			l.appendReceived(bscDLE)
			l.appendReceived(b)
		}
		return
	}
	if b == bscDLE {
		l.rxDLE = true
		return
	}
	// Without a leading DLE, the same framing bytes still terminate the
	// block (§4.3 "behave as above but without the leading DLE").
	switch b {
	case bscETB:
		l.rxBCCdle = false
		l.rxBCCclearTransparent = true
		l.rxBCCremaining = 2
	case bscEOT, bscETX:
		l.bscTransparent = false
		l.appendReceived(b)
		if l.bscEIB {
			l.appendReceived(0)
		}
		l.finishReceive(bscACK0)
	case bscIBC:
		l.bscTransparent = false
		l.appendReceived(bscIBC)
		if l.bscEIB {
			l.appendReceived(0)
		}
	case bscENQ:
		l.bscTransparent = false
		l.bscText = false
		l.appendReceived(bscENQ)
		l.finishReceive(bscACK0)
	default:
		l.appendReceived(b)
	}
}

func (l *Line) deliverTextMode(b byte) {
	if b == bscSYN {
		return
	}
	if l.rxDLE && (b == 0x60 || b == bscACK0 || b == bscACK1) {
		l.rxDLE = false
		l.finishReceive(bscACK0)
		return
	}
	if l.rxDLE && b == bscSTX {
		// A block header can switch to transparent payload mid-text, the
		// same DLE-STX escape Idle uses to enter Text|Transparent.
		l.rxDLE = false
		l.appendReceived(bscSTX)
		l.bscTransparent = true
		return
	}
	l.rxDLE = b == bscDLE
	if b == bscETB {
		// Stored by finishAfterBCC once the block-check bytes are consumed.
		l.rxBCCdle = false
		l.rxBCCclearTransparent = false
		l.rxBCCremaining = 2
		return
	}
	l.appendReceived(b)
	switch b {
	case bscEOT, bscETX, bscENQ:
		if l.bscEIB {
			l.appendReceived(0)
		}
		l.finishReceive(bscACK0)
	case bscIBC:
		if l.bscEIB {
			l.appendReceived(0)
		}
	}
}

func (l *Line) deliverIdle(b byte) {
	if b == bscSYN {
		return
	}
	if l.rxDLE {
		l.rxDLE = false
		if (b&0xf0) == 0x60 || (b&0xf0) == 0x70 {
			l.appendReceived(b)
			l.finishReceive(bscACK0)
			return
		}
		if b == bscSTX {
			l.appendReceived(b)
			l.bscText = true
			l.bscTransparent = true
			return
		}
		// A DLE that escaped nothing in particular: fall through and
		// treat the current byte on its own merits below.
	}
	l.rxDLE = b == bscDLE
	l.appendReceived(b)
	switch b {
	case bscEOT:
		l.finishReceive(bscACK1)
	case bscENQ, bscETX, bscNAK:
		l.finishReceive(bscACK0)
	case bscSOH, bscSTX:
		l.bscText = true
	}
}
