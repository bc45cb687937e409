/*
 * S370 - Test device double used by the channel package's own tests.
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
 */

package syschannel

import D "github.com/rcornwell/ibm360periph/emu/device"

// testDev is a minimal Device double: Sense always succeeds, anything else
// is rejected. Good enough to drive AddDevice/GetDevice/ChanEnd/SetDevAttn.
type testDev struct {
	addr    uint16
	initted int
	sense   uint8
}

func (t *testDev) StartIO() uint8 { return 0 }

func (t *testDev) StartCmd(cmd uint8) uint8 {
	switch cmd {
	case D.CmdSense:
		ChanWriteByte(t.addr, t.sense)
		return D.CStatusChnEnd | D.CStatusDevEnd
	default:
		return D.CStatusChnEnd | D.CStatusDevEnd | D.CStatusCheck
	}
}

func (t *testDev) HaltIO() uint8 { return 1 }

func (t *testDev) InitDev() uint8 {
	t.initted++
	return 0
}

func (t *testDev) Shutdown() {}

func (t *testDev) Debug(_ string) error { return nil }
