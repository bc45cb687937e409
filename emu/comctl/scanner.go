/* IBM 2703 communications controller: telnet line wiring.

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

   The line scanner (§4.4) has no separate poll loop here: telnet.RegisterTerminal
   already binds an incoming connection to the lowest free matching-model line
   before Connect fires, so this file only needs to carry the scanner's
   per-line state transitions -- Connect/Disconnect/ReceiveChar implement
   telnet.Telnet directly on Line, the same shape as model1052tel.
*/

package comctl

import (
	"net"

	dev "github.com/rcornwell/ibm360periph/emu/device"
	ch "github.com/rcornwell/ibm360periph/emu/sys_channel"
)

// Connect implements telnet.Telnet: a peer has bound to this line.
func (l *Line) Connect(conn net.Conn) {
	l.conn = conn
	l.connected = true

	switch {
	case l.polling && !l.enabled:
		// A pending Enable was waiting on exactly this: complete it.
		l.polling = false
		l.enabled = true
		l.recv = true
		if l.busy && l.currentCmd == cmdEnable {
			l.busy = false
			ch.ChanEnd(l.addr, dev.CStatusChnEnd|dev.CStatusDevEnd)
		}

	case l.dialup:
		// Unsolicited dial-in on a line that accepts it.
		l.enabled = true
		l.addrReq = true
		ch.SetDevAttn(l.addr, dev.CStatusAttn)

	default:
		// Direct line, nobody polling for it: reject the connection.
		l.setModemBits(false)
		l.resetLine()
	}
}

// Disconnect implements telnet.Telnet: the peer went away.
func (l *Line) Disconnect() {
	l.connected = false
	l.conn = nil
}

// ReceiveChar implements telnet.Telnet: bytes arrived from the peer.
func (l *Line) ReceiveChar(data []byte) {
	if !l.enabled {
		return
	}
	for _, b := range data {
		if l.bsc {
			l.deliverBSC(b)
		} else {
			l.deliverAsync(b)
		}
	}
	if !l.busy && (l.inReady || l.breakReq) {
		ch.SetDevAttn(l.addr, dev.CStatusAttn)
	}
}
