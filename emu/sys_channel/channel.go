/*
 * S370 - Channel collaborator: device registry and byte-transfer primitives.
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 * A full System/370 channel fetches its CCWs and transfer buffers out of
 * main storage. This module has no CPU or memory behind it: what it offers
 * the device models is exactly the subset of the channel's external
 * behavior they observe -- a byte source/sink plus end-of-operation status
 * and unsolicited attention -- so a "channel program" here is just the byte
 * slice a test (or, eventually, a real channel implementation) hands it.
 */

package syschannel

import (
	"errors"
	"fmt"
	"net"
	"slices"
	"sync"

	"github.com/rcornwell/ibm360periph/command/command"
	D "github.com/rcornwell/ibm360periph/emu/device"
	"github.com/rcornwell/ibm360periph/telnet"
)

// subChannel holds one device's registration plus the minimal program
// buffers standing in for CCW-driven memory transfer.
type subChannel struct {
	dev D.Device
	tel telnet.Telnet

	program []byte // bytes offered to the device via ChanReadByte
	progPos int

	received []byte // bytes the device has handed back via ChanWriteByte
	limit    int    // max bytes accepted from device, 0 = unlimited

	status uint8 // flags of the last ChanEnd call
	attn   uint8 // flags of the last SetDevAttn call
}

var (
	mu      sync.Mutex
	devices = map[uint16]*subChannel{}
)

// InitializeChannels resets the device registry to empty.
func InitializeChannels() {
	mu.Lock()
	defer mu.Unlock()
	devices = map[uint16]*subChannel{}
}

// AddDevice registers a device at a device address.
func AddDevice(dev D.Device, devNum uint16) error {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := devices[devNum]; ok {
		return fmt.Errorf("device already defined at %03x", devNum)
	}
	devices[devNum] = &subChannel{dev: dev}
	return nil
}

// GetDevice returns the device registered at a device address.
func GetDevice(devNum uint16) (D.Device, error) {
	sc := find(devNum)
	if sc == nil {
		return nil, fmt.Errorf("no device at %03x", devNum)
	}
	return sc.dev, nil
}

// DelDevice removes a device from the registry.
func DelDevice(devNum uint16) {
	mu.Lock()
	defer mu.Unlock()
	delete(devices, devNum)
}

// ResetChannels re-initializes every registered device.
func ResetChannels() {
	mu.Lock()
	list := make([]*subChannel, 0, len(devices))
	for _, sc := range devices {
		list = append(list, sc)
	}
	mu.Unlock()
	for _, sc := range list {
		sc.dev.InitDev()
	}
}

func find(devNum uint16) *subChannel {
	mu.Lock()
	defer mu.Unlock()
	return devices[devNum]
}

// ChanReadByte returns the next byte the channel program is offering the
// device (e.g. for an outbound Write command). done is true when the
// program has no byte available; no byte is consumed in that case.
func ChanReadByte(devNum uint16) (uint8, bool) {
	sc := find(devNum)
	if sc == nil || sc.progPos >= len(sc.program) {
		return 0, true
	}
	b := sc.program[sc.progPos]
	sc.progPos++
	return b, false
}

// ChanWriteByte hands the channel program a byte the device read (e.g.
// during a Read command). done is true when the channel will not accept
// any more bytes this operation -- the byte passed on that call is still
// recorded before done is reported.
func ChanWriteByte(devNum uint16, data uint8) bool {
	sc := find(devNum)
	if sc == nil {
		return true
	}
	if sc.limit > 0 && len(sc.received) >= sc.limit {
		return true
	}
	sc.received = append(sc.received, data)
	return sc.limit > 0 && len(sc.received) >= sc.limit
}

// ChanEnd posts channel-end/device-end/check status for the command just
// completed.
func ChanEnd(devNum uint16, flags uint8) {
	sc := find(devNum)
	if sc == nil {
		return
	}
	sc.status = flags
}

// SetDevAttn posts an unsolicited device attention (no command in progress).
func SetDevAttn(devNum uint16, flags uint8) {
	sc := find(devNum)
	if sc == nil {
		return
	}
	sc.attn = flags
}

// SetTelnet registers the Telnet endpoint that a line-oriented device (an
// async or BSC line) uses to receive connect/disconnect/data events.
func SetTelnet(tel telnet.Telnet, devNum uint16) {
	sc := find(devNum)
	if sc == nil {
		return
	}
	sc.tel = tel
}

// SendConnect forwards an accepted telnet connection to the registered
// device's Telnet handler.
func SendConnect(devNum uint16, conn net.Conn) {
	sc := find(devNum)
	if sc == nil || sc.tel == nil {
		return
	}
	sc.tel.Connect(conn)
}

// SendDisconnect forwards a telnet disconnection.
func SendDisconnect(devNum uint16) {
	sc := find(devNum)
	if sc == nil || sc.tel == nil {
		return
	}
	sc.tel.Disconnect()
}

// SendReceiveChar forwards received line data.
func SendReceiveChar(devNum uint16, data []byte) {
	sc := find(devNum)
	if sc == nil || sc.tel == nil {
		return
	}
	sc.tel.ReceiveChar(data)
}

// ListDevices returns the device addresses currently registered, in
// ascending order, for the REPL's device-scoped and "all" commands.
func ListDevices() []uint16 {
	mu.Lock()
	nums := make([]uint16, 0, len(devices))
	for devNum := range devices {
		nums = append(nums, devNum)
	}
	mu.Unlock()
	slices.Sort(nums)
	return nums
}

// GetCommand returns the command.Command interface of the device
// registered at a device address, for the REPL (command/parser) to drive.
func GetCommand(devNum uint16) (command.Command, error) {
	sc := find(devNum)
	if sc == nil {
		return nil, fmt.Errorf("no device at %03x", devNum)
	}
	cmd, ok := sc.dev.(command.Command)
	if !ok {
		return nil, fmt.Errorf("device at %03x does not support commands", devNum)
	}
	return cmd, nil
}

// Attach attaches a file (or other medium) to a device.
func Attach(devNum uint16, fileName string) error {
	sc := find(devNum)
	if sc == nil {
		return fmt.Errorf("no device at %03x", devNum)
	}
	cmd, ok := sc.dev.(command.Command)
	if !ok {
		return errors.New("device does not support attach")
	}
	return cmd.Attach([]*command.CmdOption{{Name: "file", EqualOpt: fileName}})
}

// Detach detaches whatever medium is attached to a device.
func Detach(devNum uint16) error {
	sc := find(devNum)
	if sc == nil {
		return fmt.Errorf("no device at %03x", devNum)
	}
	cmd, ok := sc.dev.(command.Command)
	if !ok {
		return errors.New("device does not support detach")
	}
	return cmd.Detach()
}

// IPLDevice issues an initial Read to a device, as the boot path does for
// the card reader.
func IPLDevice(devNum uint16) error {
	sc := find(devNum)
	if sc == nil {
		return fmt.Errorf("no device at %03x", devNum)
	}
	status := sc.dev.StartCmd(D.CmdRead)
	if (status & (D.CStatusCheck | D.CStatusBusy)) != 0 {
		return fmt.Errorf("boot failed at %03x: status %#02x", devNum, status)
	}
	return nil
}

// SetProgram installs the bytes a channel program offers a device via
// ChanReadByte and the maximum number of bytes it will accept from the
// device via ChanWriteByte (0 = unlimited). Test-only harness entry point.
func SetProgram(devNum uint16, program []byte, acceptLimit int) {
	sc := find(devNum)
	if sc == nil {
		return
	}
	sc.program = program
	sc.progPos = 0
	sc.received = nil
	sc.limit = acceptLimit
	sc.status = 0
	sc.attn = 0
}

// Received returns the bytes a device has written back through
// ChanWriteByte since the last SetProgram call.
func Received(devNum uint16) []byte {
	sc := find(devNum)
	if sc == nil {
		return nil
	}
	return sc.received
}

// LastStatus returns the flags of the most recent ChanEnd call.
func LastStatus(devNum uint16) uint8 {
	sc := find(devNum)
	if sc == nil {
		return 0
	}
	return sc.status
}

// LastAttn returns the flags of the most recent SetDevAttn call.
func LastAttn(devNum uint16) uint8 {
	sc := find(devNum)
	if sc == nil {
		return 0
	}
	return sc.attn
}
