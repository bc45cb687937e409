/* IBM 2703 communications controller: line unit core.

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

   Sixteen of these line units share one 2703 multiplexer. A Line is either
   an asynchronous 2741-style terminal line or a BSC line; the two share
   command dispatch and differ only in the write/receive byte handling
   (asyncWriteByte/bscWriteByte, ReceiveChar's deliverAsync vs deliverBSC
   branch).
*/

package comctl

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/rcornwell/ibm360periph/command/command"
	config "github.com/rcornwell/ibm360periph/config/configparser"
	dev "github.com/rcornwell/ibm360periph/emu/device"
	ev "github.com/rcornwell/ibm360periph/emu/event"
	ch "github.com/rcornwell/ibm360periph/emu/sys_channel"
	"github.com/rcornwell/ibm360periph/telnet"
	"github.com/rcornwell/ibm360periph/util/debug"
)

// Line commands, beyond the CmdRead/CmdWrite/CmdCTL/CmdSense family already
// named in emu/device.
const (
	cmdInhibit uint8 = 0x0A
	cmdPrepare uint8 = 0x06
	cmdPoll    uint8 = 0x09
	cmdBreak   uint8 = 0x0D
	cmdSearch  uint8 = 0x0E
	cmdSetMode uint8 = 0x23
	cmdEnable  uint8 = 0x27
	cmdDial    uint8 = 0x29
	cmdDisable uint8 = 0x2F
)

// Sense bits the 2703 line unit adds to the common set in emu/device.
const (
	senseOverrun   uint8 = 0x04 // Data overrun
	senseReceiving uint8 = 0x02 // Protocol sequence error while receiving
	senseTimeout   uint8 = 0x01 // BSC read wall-clock timeout
)

const bufSize = 256 // line receive/transmit staging buffer

const (
	debugCmd    = 1 << iota // Log commands.
	debugData               // Log byte-level transfers.
	debugDetail             // Low level protocol detail.
)

var debugOption = map[string]int{
	"CMD":    debugCmd,
	"DATA":   debugData,
	"DETAIL": debugDetail,
}

// Line is one channel of the 2703: an async 2741-style terminal line when
// bsc is false, a BSC line when true. Both share StartCmd/HaltIO/service;
// the receive/write byte handling branches on bsc.
type Line struct {
	addr   uint16
	bsc    bool
	dialup bool // unsolicited connect posts attention rather than rejecting
	port   string
	group  string
	index  int // position in this controller's 16-line array

	enabled  bool
	polling  bool
	recv     bool
	inReady  bool // a complete record is staged in buf, ready for Read
	breakReq bool
	addrReq  bool
	addr9    bool
	bypass   bool

	bscText        bool
	bscTransparent bool
	bscDle         bool // write-side: last byte sent was an unmatched DLE
	bscEIB         bool

	rxDLE                 bool // receive-side: last byte accepted was an unmatched DLE
	rxBCCremaining        int  // BSC: block-check bytes still to discard after ETB
	rxBCCdle              bool // BSC: prepend DLE when the deferred ETB finalizes
	rxBCCclearTransparent bool // BSC: clear BscTransparent when the deferred ETB finalizes
	lastTerminator        byte // BSC: terminator (ACK0/ACK1) stripped at record end

	sense      uint8
	currentCmd uint8
	busy       bool

	buf  [bufSize]byte
	bptr int // write head (scanner/receive side)
	iptr int // read head (Read command side)

	cmdStart    time.Time
	readTimeout time.Duration // 0 disables the BSC read timeout

	conn      net.Conn
	connected bool

	debugMsk int
}

// StartIO handles start of CCW chain; lines have no chain-level setup.
func (l *Line) StartIO() uint8 {
	return 0
}

// StartCmd dispatches a channel command to a line unit per §4.2/§4.3.
func (l *Line) StartCmd(cmd uint8) uint8 {
	if l.busy {
		return dev.CStatusBusy
	}

	l.currentCmd = cmd
	l.sense = 0
	l.cmdStart = time.Now()
	debug.DebugDevf(l.addr, l.debugMsk, debugCmd, "Cmd: %#02x", cmd)

	switch cmd {
	case dev.CmdSense:
		l.busy = true
		ev.AddEvent(l, l.service, 200, int(cmd))
		return 0

	case cmdDial:
		if l.bsc {
			// BSC dial-up is legal; treat identically to Enable.
			return l.startEnable()
		}
		l.sense = dev.SenseCMDREJ
		return dev.CStatusChnEnd | dev.CStatusDevEnd | dev.CStatusCheck

	case dev.CmdRead, cmdInhibit:
		return l.startRead(cmd)

	case dev.CmdWrite, cmdPoll:
		return l.startWrite(cmd)

	case cmdBreak:
		l.breakReq = false
		l.addrReq = true // puts the line in control mode
		l.sense = 0
		ch.ChanEnd(l.addr, dev.CStatusChnEnd|dev.CStatusDevEnd)
		return 0

	case cmdPrepare:
		if !l.enabled {
			ch.ChanEnd(l.addr, dev.CStatusChnEnd|dev.CStatusDevEnd|dev.CStatusExpt)
			return 0
		}
		if !l.connected {
			l.resetOnDisconnect()
			ch.ChanEnd(l.addr, dev.CStatusChnEnd|dev.CStatusDevEnd|dev.CStatusExpt)
			return 0
		}
		l.recv = true
		l.addrReq = false
		l.addr9 = false
		if l.inReady || l.breakReq {
			ch.ChanEnd(l.addr, dev.CStatusChnEnd|dev.CStatusDevEnd)
			return 0
		}
		l.busy = true
		ev.AddEvent(l, l.service, 200, int(cmd))
		return 0

	case cmdSearch:
		l.sense = 0
		ch.ChanEnd(l.addr, dev.CStatusChnEnd|dev.CStatusDevEnd)
		return 0

	case cmdEnable:
		return l.startEnable()

	case cmdDisable:
		l.sense = 0
		l.setModemBits(false)
		if !l.bsc {
			l.resetLine()
		}
		l.enabled = false
		l.polling = false
		ch.ChanEnd(l.addr, dev.CStatusChnEnd|dev.CStatusDevEnd)
		return 0

	case cmdSetMode:
		if !l.bsc {
			l.sense = dev.SenseCMDREJ
			return dev.CStatusChnEnd | dev.CStatusDevEnd | dev.CStatusCheck
		}
		l.busy = true
		ev.AddEvent(l, l.service, 200, int(cmd))
		return 0

	default:
		l.sense = dev.SenseCMDREJ
		return dev.CStatusChnEnd | dev.CStatusDevEnd | dev.CStatusCheck
	}
}

// startEnable implements Enable(0x27): completes immediately if already
// enabled and not polling; otherwise asserts DTR, starts polling, and
// leaves completion to the scanner (Connect) once a peer connects.
func (l *Line) startEnable() uint8 {
	l.sense = 0
	if l.enabled && !l.polling {
		ch.ChanEnd(l.addr, dev.CStatusChnEnd|dev.CStatusDevEnd)
		return 0
	}
	if !l.polling {
		l.setModemBits(true)
		l.polling = true
		l.busy = true
	}
	return 0
}

// startRead implements Read(0x02)/Inhibit(0x0A): §4.2.
func (l *Line) startRead(cmd uint8) uint8 {
	if !l.enabled {
		return dev.CStatusChnEnd | dev.CStatusDevEnd | dev.CStatusExpt
	}
	if !l.connected {
		l.resetOnDisconnect()
		return dev.CStatusChnEnd | dev.CStatusDevEnd | dev.CStatusExpt
	}
	l.busy = true
	ev.AddEvent(l, l.service, 200, int(cmd))
	return 0
}

// startWrite implements Write(0x01)/Poll(0x09): §4.2/§4.3.
func (l *Line) startWrite(cmd uint8) uint8 {
	if !l.enabled {
		return dev.CStatusChnEnd | dev.CStatusDevEnd | dev.CStatusExpt
	}
	if !l.bsc && l.breakReq {
		l.breakReq = false
		l.sense = dev.SenseINTVENT
		debug.DebugDevf(l.addr, l.debugMsk, debugCmd, "attn write")
		return dev.CStatusChnEnd | dev.CStatusDevEnd | dev.CStatusCheck
	}
	l.busy = true
	ev.AddEvent(l, l.service, 200, int(cmd))
	return 0
}

// resetOnDisconnect clears a line's protocol state when a command finds the
// connection gone -- shared by Read/Inhibit/Prepare.
func (l *Line) resetOnDisconnect() {
	l.enabled = false
	l.polling = false
	l.breakReq = false
	l.recv = false
	l.sense = dev.SenseINTVENT
	l.bptr = 0
	l.iptr = 0
}

// HaltIO implements §5's cancellation table.
func (l *Line) HaltIO() uint8 {
	if !l.busy {
		return 1
	}
	switch l.currentCmd {
	case dev.CmdSense, cmdDial, cmdDisable:
		return 1
	}
	ev.CancelEvent(l, l.service, int(l.currentCmd))
	l.busy = false
	switch l.currentCmd {
	case cmdPrepare:
		l.recv = false
		ch.ChanEnd(l.addr, dev.CStatusChnEnd|dev.CStatusDevEnd|dev.CStatusExpt)
		return 2
	case cmdEnable:
		l.resetLine()
		l.enabled = false
		l.polling = false
		ch.ChanEnd(l.addr, dev.CStatusChnEnd|dev.CStatusDevEnd|dev.CStatusExpt)
		return 2
	default:
		l.clearProtocolState()
		ch.ChanEnd(l.addr, dev.CStatusChnEnd|dev.CStatusDevEnd)
		return 2
	}
}

func (l *Line) clearProtocolState() {
	l.addrReq = false
	l.addr9 = false
	l.bscText = false
	l.bscTransparent = false
	l.bscDle = false
}

// InitDev resets the line to its power-on state.
func (l *Line) InitDev() uint8 {
	l.busy = false
	l.enabled = false
	l.polling = false
	l.recv = false
	l.inReady = false
	l.breakReq = false
	l.sense = 0
	l.bptr = 0
	l.iptr = 0
	l.clearProtocolState()
	return 0
}

// Shutdown closes the line's connection, if any.
func (l *Line) Shutdown() {
	if l.conn != nil {
		_ = l.conn.Close()
	}
}

// Debug enables a debug option by name.
func (l *Line) Debug(opt string) error {
	flag, ok := debugOption[opt]
	if !ok {
		return errors.New("comctl debug option invalid: " + opt)
	}
	l.debugMsk |= flag
	return nil
}

// Options lists the valid set options -- DIALUP/NODIAL and, for BSC lines,
// a configurable read timeout.
func (l *Line) Options(_ string) []command.Options {
	opts := []command.Options{
		{Name: "DIALUP", OptionType: command.OptionSwitch, OptionValid: command.ValidSet},
		{Name: "NODIAL", OptionType: command.OptionSwitch, OptionValid: command.ValidSet},
	}
	if l.bsc {
		opts = append(opts, command.Options{Name: "TIMEOUT", OptionType: command.OptionNumber, OptionValid: command.ValidSet})
	}
	return opts
}

// Attach is not supported -- a line's medium is a telnet connection, bound
// by the scanner, not a file.
func (l *Line) Attach(_ []*command.CmdOption) error {
	return errors.New("attach command not supported")
}

// Detach is not supported for the same reason.
func (l *Line) Detach() error {
	return errors.New("detach command not supported")
}

// Set handles DIALUP/NODIAL and (BSC only) TIMEOUT.
func (l *Line) Set(unset bool, opts []*command.CmdOption) error {
	for _, opt := range opts {
		switch opt.Name {
		case "DIALUP":
			l.dialup = !unset
		case "NODIAL":
			l.dialup = unset
		case "TIMEOUT":
			if l.bsc {
				l.readTimeout = time.Duration(opt.Value) * time.Second
			}
		default:
			return errors.New("unknown set option: " + opt.Name)
		}
	}
	return nil
}

// Show reports connection and protocol state.
func (l *Line) Show(_ []*command.CmdOption) (string, error) {
	str := fmt.Sprintf("%03x: port=%s", l.addr, l.port)
	if l.dialup {
		str += " dialup"
	}
	if l.connected {
		str += " connected"
	}
	if l.enabled {
		str += " enabled"
	}
	return str, nil
}

// Rewind is meaningless for a line unit.
func (l *Line) Rewind() error {
	return command.NotSupported
}

// GetAddr returns the device address.
func (l *Line) GetAddr() uint16 {
	return l.addr
}

// setModemBits asserts or drops DTR. A real multiplexer toggles RS-232
// control lines to invite or refuse a connection; over telnet there is no
// physical line to signal, so Connect/resetLine (scanner.go) carry the
// accept/reject decision directly and this is a no-op kept for symmetry
// with the command sequence that would drive it on real hardware.
func (l *Line) setModemBits(_ bool) {
}

// resetLine drops any pending input and marks the line unusable until the
// next connect -- the async line's disconnect behavior (§4.4 step 1, the
// "direct line rejects a dial-in" branch) and the Disable command's reset.
func (l *Line) resetLine() {
	l.bptr = 0
	l.iptr = 0
	l.inReady = false
	l.recv = false
	if l.conn != nil {
		_ = l.conn.Close()
	}
	l.connected = false
	l.conn = nil
}

// register the two models this controller exposes.
func init() {
	config.RegisterModel("2741", config.TypeModel, createLine(false))
	config.RegisterModel("BSC", config.TypeModel, createLine(true))
}

// createLine returns a config.RegisterModel create function bound to
// whether the line being built is async (2741) or BSC.
func createLine(bsc bool) func(uint16, string, []config.Option) error {
	return func(devNum uint16, _ string, options []config.Option) error {
		l := &Line{addr: devNum, bsc: bsc}
		if err := ch.AddDevice(l, devNum); err != nil {
			return fmt.Errorf("unable to create line at %03x: %w", devNum, err)
		}

		port := ""
		group := ""
		for _, option := range options {
			switch {
			case option.EqualOpt != "":
				return errors.New("equal option not supported on: " + option.Name)
			default:
				if _, err := strconv.ParseUint(option.Name, 10, 32); err != nil {
					if group != "" {
						return errors.New("only one group allowed: " + group)
					}
					group = option.Name
				} else {
					if port != "" {
						return errors.New("only one port allowed: " + port)
					}
					port = option.Name
				}
			}
		}

		l.port = port
		l.group = group
		ch.SetTelnet(l, devNum)
		return telnet.RegisterTerminal(l, devNum, 0, port, group)
	}
}
