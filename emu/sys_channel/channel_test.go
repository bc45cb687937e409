/*
 * S370 - Channel registry and byte-transfer tests.
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

import (
	"testing"

	D "github.com/rcornwell/ibm360periph/emu/device"
)

func TestAddGetDelDevice(t *testing.T) {
	InitializeChannels()
	dev := &testDev{addr: 0x0c0}
	if err := AddDevice(dev, 0x0c0); err != nil {
		t.Fatalf("AddDevice failed: %v", err)
	}
	if err := AddDevice(dev, 0x0c0); err == nil {
		t.Fatal("expected error re-registering device at same address")
	}
	got, err := GetDevice(0x0c0)
	if err != nil || got != dev {
		t.Fatalf("GetDevice returned (%v, %v), want (%v, nil)", got, err, dev)
	}
	DelDevice(0x0c0)
	if _, err := GetDevice(0x0c0); err == nil {
		t.Fatal("expected error after DelDevice")
	}
}

func TestChanReadByteExhaustion(t *testing.T) {
	InitializeChannels()
	dev := &testDev{addr: 0x0c1}
	_ = AddDevice(dev, 0x0c1)
	SetProgram(0x0c1, []byte{0x10, 0x20, 0x30}, 0)

	for i, want := range []byte{0x10, 0x20, 0x30} {
		b, done := ChanReadByte(0x0c1)
		if done {
			t.Fatalf("byte %d: unexpectedly done", i)
		}
		if b != want {
			t.Fatalf("byte %d: got %#02x, want %#02x", i, b, want)
		}
	}
	if _, done := ChanReadByte(0x0c1); !done {
		t.Fatal("expected done after program exhausted")
	}
}

func TestChanWriteByteLimit(t *testing.T) {
	InitializeChannels()
	dev := &testDev{addr: 0x0c2}
	_ = AddDevice(dev, 0x0c2)
	SetProgram(0x0c2, nil, 2)

	if done := ChanWriteByte(0x0c2, 0xaa); done {
		t.Fatal("first byte should not signal done")
	}
	if done := ChanWriteByte(0x0c2, 0xbb); !done {
		t.Fatal("second byte should signal done at limit")
	}
	got := Received(0x0c2)
	if len(got) != 2 || got[0] != 0xaa || got[1] != 0xbb {
		t.Fatalf("Received = %v, want [aa bb]", got)
	}
}

func TestChanEndAndSetDevAttn(t *testing.T) {
	InitializeChannels()
	dev := &testDev{addr: 0x0c3}
	_ = AddDevice(dev, 0x0c3)

	ChanEnd(0x0c3, D.CStatusChnEnd|D.CStatusDevEnd)
	if got := LastStatus(0x0c3); got != D.CStatusChnEnd|D.CStatusDevEnd {
		t.Fatalf("LastStatus = %#02x, want chnEnd|devEnd", got)
	}

	SetDevAttn(0x0c3, D.CStatusAttn)
	if got := LastAttn(0x0c3); got != D.CStatusAttn {
		t.Fatalf("LastAttn = %#02x, want attn", got)
	}
}

func TestIPLDevice(t *testing.T) {
	InitializeChannels()
	dev := &testDev{addr: 0x0c4, sense: 0}
	_ = AddDevice(dev, 0x0c4)

	if err := IPLDevice(0x0c4); err == nil {
		t.Fatal("testDev rejects Read, expected IPLDevice to report failure")
	}
}

func TestResetChannels(t *testing.T) {
	InitializeChannels()
	dev := &testDev{addr: 0x0c5}
	_ = AddDevice(dev, 0x0c5)
	ResetChannels()
	if dev.initted != 1 {
		t.Fatalf("InitDev called %d times, want 1", dev.initted)
	}
}
