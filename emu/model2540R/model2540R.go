/* IBM 2540 Card Reader.

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

   IBM 2540R card reader. One card image is buffered at a time and streamed
   out to the channel as EBCDIC, one column per service tick.
*/

package model2540r

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rcornwell/ibm360periph/command/command"
	config "github.com/rcornwell/ibm360periph/config/configparser"
	dev "github.com/rcornwell/ibm360periph/emu/device"
	event "github.com/rcornwell/ibm360periph/emu/event"
	ch "github.com/rcornwell/ibm360periph/emu/sys_channel"
	card "github.com/rcornwell/ibm360periph/util/card"
	"github.com/rcornwell/ibm360periph/util/debug"
)

const (
	cmdFamilyMask uint8 = 0x07 // low 3 bits select the command family
	stackMask     uint8 = 0xc0 // stacker-select bits
	feedMask      uint8 = 0x20 // feed-mode bit required on a valid Control
)

// Latched command family, tracked across service ticks.
type cmdTag int

const (
	cmdNone cmdTag = iota
	cmdRead
	cmdFeed
	cmdSense
)

const (
	// Debug options.
	debugCmd = 1 << iota
	debugData
	debugDetail
)

var debugOption = map[string]int{
	"CMD":    debugCmd,
	"DATA":   debugData,
	"DETAIL": debugDetail,
}

// Model2540Rctx is one 2540R card reader unit.
type Model2540Rctx struct {
	addr         uint16
	currentCmd   cmdTag
	col          int           // current column, 0-80
	stacker      int           // stacker selected by the last Feed
	busy         bool          // command in progress
	eofPending   bool          // EOF latched, cleared by the next Read
	cardInBuffer bool          // a card image is loaded and being streamed
	sense        uint8             // current sense byte
	image        card.Card         // card currently buffered
	context      *card.CardContext // card source
	format       string            // format last selected, for Show
	debugMsk     int               // debug mask
}

// formatList enumerates the format names util/card.CardContext.SetFormat
// accepts; kept here since the package exports no such list itself.
var formatList = []string{"AUTO", "TEXT", "EBCDIC", "BIN", "OCTAL", "BCD", "CBN"}

// Handle start of CCW chain.
func (device *Model2540Rctx) StartIO() uint8 {
	return 0
}

// StartCmd handles a channel command. See §4.1.
func (device *Model2540Rctx) StartCmd(cmd uint8) uint8 {
	if device.busy {
		if device.context.Attached() {
			return dev.CStatusBusy
		}
		return dev.CStatusChnEnd | dev.CStatusDevEnd
	}

	debug.DebugDevf(device.addr, device.debugMsk, debugCmd, "Reader cmd: %#02x", cmd)

	// A command without both stacker-select bits set releases the buffered card.
	if (cmd & stackMask) != stackMask {
		device.cardInBuffer = false
	}

	switch cmd & cmdFamilyMask {
	case 0: // Status.
		return dev.CStatusChnEnd | dev.CStatusDevEnd

	case dev.CmdRead:
		if !device.context.Attached() {
			device.sense = dev.SenseINTVENT
			return dev.CStatusChnEnd | dev.CStatusDevEnd | dev.CStatusCheck
		}
		if device.eofPending {
			device.eofPending = false
			return dev.CStatusChnEnd | dev.CStatusDevEnd | dev.CStatusExpt
		}
		device.sense = 0
		device.col = 0
		device.currentCmd = cmdRead
		device.busy = true
		event.AddEvent(device, device.service, 1000, 0)
		return 0

	case dev.CmdCTL: // Feed, or the bare no-op control.
		if cmd == dev.CmdCTL {
			return dev.CStatusChnEnd | dev.CStatusDevEnd
		}
		if (cmd&stackMask) == stackMask || (cmd&feedMask) == 0 {
			device.sense = dev.SenseCMDREJ
			return dev.CStatusChnEnd | dev.CStatusDevEnd | dev.CStatusCheck
		}
		if !device.context.Attached() {
			device.sense = dev.SenseINTVENT
			return dev.CStatusChnEnd | dev.CStatusDevEnd | dev.CStatusCheck
		}
		device.stacker = int((cmd & stackMask) >> 6)
		device.currentCmd = cmdFeed
		device.busy = true
		event.AddEvent(device, device.service, 100, 0)
		return 0

	case dev.CmdSense:
		device.currentCmd = cmdSense
		device.busy = true
		event.AddEvent(device, device.service, 10, 0)
		return 0

	default:
		device.sense = dev.SenseCMDREJ
		return dev.CStatusChnEnd | dev.CStatusDevEnd | dev.CStatusCheck
	}
}

// service runs one protocol step per §4.1's service-tick description.
func (device *Model2540Rctx) service(_ int) {
	if device.currentCmd == cmdSense {
		s := device.sense
		if !device.context.Attached() || device.eofPending {
			s |= dev.SenseINTVENT
		}
		ch.ChanWriteByte(device.addr, s)
		ch.ChanEnd(device.addr, dev.CStatusChnEnd|dev.CStatusDevEnd)
		device.currentCmd = cmdNone
		device.busy = false
		device.sense &^= dev.SenseCMDREJ | dev.SenseINTVENT
		return
	}

	if !device.cardInBuffer {
		cmd := device.currentCmd
		img, res := device.context.ReadCard()
		switch res {
		case card.CardEmpty, card.CardEOF:
			if res == card.CardEmpty {
				device.eofPending = true
				device.sense |= dev.SenseINTVENT
			}
			device.currentCmd = cmdNone
			device.busy = false
			status := dev.CStatusChnEnd | dev.CStatusDevEnd
			if cmd == cmdRead {
				status |= dev.CStatusExpt
			}
			ch.ChanEnd(device.addr, status)
			return

		case card.CardError:
			device.sense = dev.SenseINTVENT
			device.currentCmd = cmdNone
			device.busy = false
			ch.ChanEnd(device.addr, dev.CStatusChnEnd|dev.CStatusDevEnd|dev.CStatusCheck)
			return

		case card.CardOK:
			device.image = img
			device.cardInBuffer = true
			if cmd == cmdFeed {
				device.currentCmd = cmdNone
				device.busy = false
				ch.ChanEnd(device.addr, dev.CStatusChnEnd|dev.CStatusDevEnd)
				return
			}
			debug.DebugDevf(device.addr, device.debugMsk, debugDetail, "Card loaded")
			event.AddEvent(device, device.service, 10000, 0)
			return
		}
	}

	// Read in progress with a card buffered: transfer one column.
	xlat := card.HolToEbcdic(device.image.Image[device.col])
	if xlat == 0x100 {
		device.sense |= dev.SenseDATCHK
		xlat = 0
	}
	done := ch.ChanWriteByte(device.addr, uint8(xlat))
	device.col++
	debug.DebugDevf(device.addr, device.debugMsk, debugData, "Col %d -> %#02x", device.col-1, xlat)

	if done || device.col == 80 {
		status := dev.CStatusChnEnd | dev.CStatusDevEnd
		if device.sense != 0 {
			status |= dev.CStatusCheck
		}
		device.currentCmd = cmdNone
		device.busy = false
		device.cardInBuffer = false
		ch.ChanEnd(device.addr, status)
		return
	}
	event.AddEvent(device, device.service, 100, 0)
}

// Handle HIO instruction. The reader has no mid-command cancellation: its
// operations finish quickly enough that halting just reports status.
func (device *Model2540Rctx) HaltIO() uint8 {
	if device.busy {
		return 2
	}
	return 1
}

// Initialize a device.
func (device *Model2540Rctx) InitDev() uint8 {
	device.col = 0
	device.sense = 0
	device.busy = false
	device.currentCmd = cmdNone
	device.eofPending = false
	device.cardInBuffer = false
	return 0
}

// Shutdown device.
func (device *Model2540Rctx) Shutdown() {
	_ = device.context.Detach()
}

// Enable debug options.
func (device *Model2540Rctx) Debug(opt string) error {
	flag, ok := debugOption[opt]
	if !ok {
		return errors.New("2540R debug option invalid: " + opt)
	}
	device.debugMsk |= flag
	return nil
}

// Options for commands command.
func (device *Model2540Rctx) Options(_ string) []command.Options {
	fmtList := formatList
	return []command.Options{
		{
			Name:        "file",
			OptionType:  command.OptionFile,
			OptionValid: command.ValidAttach | command.ValidShow,
		},
		{
			Name:        "eof",
			OptionType:  command.OptionSwitch,
			OptionValid: command.ValidAttach,
		},
		{
			Name:        "stack",
			OptionType:  command.OptionSwitch,
			OptionValid: command.ValidAttach,
		},
		{
			Name:        "fmt",
			OptionType:  command.OptionList,
			OptionValid: command.ValidAttach | command.ValidSet,
			OptionList:  fmtList,
		},
		{
			Name:        "format",
			OptionType:  command.OptionList,
			OptionValid: command.ValidAttach | command.ValidSet | command.ValidShow,
			OptionList:  fmtList,
		},
		{
			OptionValid: command.ValidIPL,
		},
	}
}

// Attach file to device.
func (device *Model2540Rctx) Attach(opts []*command.CmdOption) error {
	type fileList struct {
		fileName string
		fmt      string
		eof      bool
	}
	files := []fileList{}
	stack := false
	fmt := device.format
	if fmt == "" {
		fmt = "AUTO"
	}
	eof := false

	for _, opt := range opts {
		switch opt.Name {
		case "file":
			if opt.EqualOpt == "" {
				return errors.New("file requires file name")
			}
			files = append(files, fileList{fileName: opt.EqualOpt, eof: eof, fmt: fmt})
		case "fmt", "format":
			if opt.EqualOpt == "" {
				return errors.New("format requires option type")
			}
			fmt = opt.EqualOpt
		case "stack":
			stack = true
		case "eof":
			if len(files) == 0 {
				eof = true
			} else {
				files[len(files)-1].eof = true
			}
		default:
			return errors.New("invalid option: " + opt.Name)
		}
	}

	if !stack {
		device.context.EmptyDeck()
	}

	for _, file := range files {
		if !device.context.SetFormat(file.fmt) {
			return errors.New("invalid format: " + file.fmt)
		}
		device.format = file.fmt
		if err := device.context.Attach(file.fileName, false, file.eof); err != nil {
			return err
		}
	}
	device.eofPending = false
	return nil
}

// Detach device.
func (device *Model2540Rctx) Detach() error {
	return device.context.Detach()
}

// Set command.
func (device *Model2540Rctx) Set(unset bool, opts []*command.CmdOption) error {
	if unset {
		return errors.New("unset not supported")
	}
	for _, opt := range opts {
		switch opt.Name {
		case "fmt", "format":
			if opt.EqualOpt == "" {
				return errors.New("format requires option type")
			}
			if !device.context.SetFormat(opt.EqualOpt) {
				return errors.New("invalid format: " + opt.EqualOpt)
			}
			device.format = opt.EqualOpt
		default:
			return errors.New("invalid option: " + opt.Name)
		}
	}
	return nil
}

// Show command.
func (device *Model2540Rctx) Show(opts []*command.CmdOption) (string, error) {
	flags := 0
	str := fmt.Sprintf("%03x:", device.addr)
	for _, opt := range opts {
		switch opt.Name {
		case "file":
			flags |= 1
		case "fmt", "format":
			flags |= 2
		default:
			return "", errors.New("invalid option: " + opt.Name)
		}
	}
	if flags == 0 {
		flags = 3
	}
	if (flags & 2) != 0 {
		f := device.format
		if f == "" {
			f = "AUTO"
		}
		str += " fmt=" + f
	}
	if (flags & 1) != 0 {
		if device.context.Attached() {
			str += " " + device.context.FileName()
		} else {
			str += " not attached"
		}
	}
	return str, nil
}

// Rewind is not meaningful for a card reader.
func (device *Model2540Rctx) Rewind() error {
	return command.NotSupported
}

// Reset a device.
func (device *Model2540Rctx) Reset() error {
	device.context.EmptyDeck()
	if device.InitDev() != 0 {
		return errors.New("device failed to reset")
	}
	return nil
}

// GetAddr returns the device address.
func (device *Model2540Rctx) GetAddr() uint16 {
	return device.addr
}

// register a device on initialize.
func init() {
	config.RegisterModel("2540R", config.TypeModel, create)
}

// Create a card reader device.
func create(devNum uint16, _ string, options []config.Option) error {
	device := &Model2540Rctx{addr: devNum}
	if err := ch.AddDevice(device, devNum); err != nil {
		return fmt.Errorf("unable to create 2540R at %03x", devNum)
	}
	device.context = card.NewCardContext(card.ModeAuto)
	device.format = "AUTO"
	eof := false
	for _, option := range options {
		switch strings.ToUpper(option.Name) {
		case "FORMAT", "FMT":
			if !device.context.SetFormat(option.EqualOpt) {
				return errors.New("invalid Card format type: " + option.EqualOpt)
			}
			device.format = option.EqualOpt
		case "EOF":
			eof = true
		case "NOEOF":
			eof = false
		case "FILE":
			if option.EqualOpt == "" {
				return errors.New("file option missing filename")
			}
			if err := device.context.Attach(option.EqualOpt, false, eof); err != nil {
				return err
			}
		default:
			return errors.New("reader invalid option: " + option.Name)
		}
	}
	return nil
}
