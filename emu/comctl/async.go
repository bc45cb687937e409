/* IBM 2703 communications controller: async 2741-style line framing.

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
	"github.com/rcornwell/ibm360periph/util/xlat"
)

// deliverAsync feeds one byte typed at a 2741-style terminal into the edit
// buffer (§4.2 "Receive path").
func (l *Line) deliverAsync(b byte) {
	switch b {
	case '\r', '\n':
		l.finishLine()
		return

	case 0x7f, 0x08: // DEL / backspace
		if l.bptr > 0 {
			l.bptr--
			l.echo([]byte{0x08, ' ', 0x08})
		}
		return

	case 0x15: // ^U: erase line
		for l.bptr > 0 {
			l.bptr--
			l.echo([]byte{0x08, ' ', 0x08})
		}
		return

	case 0x03: // ^C: break
		l.breakReq = true
		l.recv = false
		return
	}

	code := xlat.Ascii2741In[b&0x7f]
	if code == 0x00 {
		l.echo([]byte{0x07}) // bell: unmapped key
		return
	}
	l.appendReceived(code)
	if !l.bypass {
		l.echo([]byte{b})
	}
	if l.bptr >= bufSize-3 {
		l.finishLine()
	}
}

// finishLine closes out the current input record with the 2741 line-end
// marker and arms the record for Read.
func (l *Line) finishLine() {
	l.appendReceived(xlat.Code2741NL)
	l.appendReceived(xlat.Code2741Addr)
	l.inReady = true
	l.recv = false
	l.iptr = 0
	l.echo([]byte{'\r', '\n'})
}

// echo writes raw bytes back down the telnet connection.
func (l *Line) echo(b []byte) {
	if l.conn == nil {
		return
	}
	_, _ = l.conn.Write(b)
}

// asyncWriteByte implements the Write(0x01)/Poll(0x09) channel-to-terminal
// path: §4.2. The byte read from the channel is a 2741 correspondence code;
// most translate straight through the out table, a handful are in-band
// control tokens (addressing, bypass/restore, the non-ASCII punctuation the
// 2741 typeball carries) handled here instead.
func (l *Line) asyncWriteByte(by byte) {
	switch by {
	case xlat.Code2741Addr: // 0x1F: address byte, not sent to the line; clears addr9
		l.addr9 = false
		return
	case xlat.Code2741Stop: // 0x16: address acknowledged, back to data mode
		return
	case 0xB8: // bypass: suppress receive-side echo
		l.bypass = true
		return
	case 0x58: // restore: resume receive-side echo
		l.bypass = false
		return
	case 0x13: // sets addr9 whether or not an address byte preceded it
		l.addr9 = true
		return
	case 0xF6: // UTF-8 NOT SIGN (U+00AC)
		l.echo([]byte{0xC2, 0xAC})
		return
	case 0xA0: // UTF-8 CENT SIGN (U+00A2)
		l.echo([]byte{0xC2, 0xA2})
		return
	case xlat.Code2741NL, xlat.Code2741NLAlt:
		l.echo([]byte{0x0a, '\r'})
		return
	}

	out := xlat.Ascii2741Out[by]
	if out == 0xff {
		return
	}
	l.echo([]byte{out})
}
