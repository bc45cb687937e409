/*
 * S370 - EBCDIC/ASCII/2741 translation tables and parity.
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
 * Package xlat holds the character translation tables shared by the line
 * units: 6-bit odd parity for punched/BCD data, EBCDIC<->ASCII for the
 * console/3270 side, and the 2741 typewriter code used by async lines.
 */

package xlat

// ParityTable holds, for each 6-bit value, the bit (0 or 0100) that makes
// the 7-bit (6 data + 1 parity) value odd parity.
var ParityTable [64]uint8

func init() {
	for i := range ParityTable {
		n := i
		cnt := 0
		for n != 0 {
			cnt += n & 1
			n >>= 1
		}
		if cnt%2 == 0 {
			ParityTable[i] = 0o100
		}
	}
}

// EBCDICToASCII converts an EBCDIC (code page 037) byte to ASCII.
var EBCDICToASCII = [256]uint8{
	0x00, 0x01, 0x02, 0x03, 0x9c, 0x09, 0x86, 0x7f, 0x97, 0x8d, 0x8e, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f,
	0x10, 0x11, 0x12, 0x13, 0x9d, 0x85, 0x08, 0x87, 0x18, 0x19, 0x92, 0x8f, 0x1c, 0x1d, 0x1e, 0x1f,
	0x80, 0x81, 0x82, 0x83, 0x84, 0x0a, 0x17, 0x1b, 0x88, 0x89, 0x8a, 0x8b, 0x8c, 0x05, 0x06, 0x07,
	0x90, 0x91, 0x16, 0x93, 0x94, 0x95, 0x96, 0x04, 0x98, 0x99, 0x9a, 0x9b, 0x14, 0x15, 0x9e, 0x1a,
	0x20, 0xa0, 0xa1, 0xa2, 0xa3, 0xa4, 0xa5, 0xa6, 0xa7, 0xa8, 0x5b, 0x2e, 0x3c, 0x28, 0x2b, 0x21,
	0x26, 0xa9, 0xaa, 0xab, 0xac, 0xad, 0xae, 0xaf, 0xb0, 0xb1, 0x5d, 0x24, 0x2a, 0x29, 0x3b, 0x5e,
	0x2d, 0x2f, 0xb2, 0xb3, 0xb4, 0xb5, 0xb6, 0xb7, 0xb8, 0xb9, 0x7c, 0x2c, 0x25, 0x5f, 0x3e, 0x3f,
	0xba, 0xbb, 0xbc, 0xbd, 0xbe, 0xbf, 0xc0, 0xc1, 0xc2, 0x60, 0x3a, 0x23, 0x40, 0x27, 0x3d, 0x22,
	0xc3, 0x61, 0x62, 0x63, 0x64, 0x65, 0x66, 0x67, 0x68, 0x69, 0xc4, 0xc5, 0xc6, 0xc7, 0xc8, 0xc9,
	0xca, 0x6a, 0x6b, 0x6c, 0x6d, 0x6e, 0x6f, 0x70, 0x71, 0x72, 0xcb, 0xcc, 0xcd, 0xce, 0xcf, 0xd0,
	0xd1, 0x7e, 0x73, 0x74, 0x75, 0x76, 0x77, 0x78, 0x79, 0x7a, 0xd2, 0xd3, 0xd4, 0xd5, 0xd6, 0xd7,
	0xd8, 0xd9, 0xda, 0xdb, 0xdc, 0xdd, 0xde, 0xdf, 0xe0, 0xe1, 0xe2, 0xe3, 0xe4, 0xe5, 0xe6, 0xe7,
	0x7b, 0x41, 0x42, 0x43, 0x44, 0x45, 0x46, 0x47, 0x48, 0x49, 0xe8, 0xe9, 0xea, 0xeb, 0xec, 0xed,
	0x7d, 0x4a, 0x4b, 0x4c, 0x4d, 0x4e, 0x4f, 0x50, 0x51, 0x52, 0xee, 0xef, 0xf0, 0xf1, 0xf2, 0xf3,
	0x5c, 0x9f, 0x53, 0x54, 0x55, 0x56, 0x57, 0x58, 0x59, 0x5a, 0xf4, 0xf5, 0xf6, 0xf7, 0xf8, 0xf9,
	0x30, 0x31, 0x32, 0x33, 0x34, 0x35, 0x36, 0x37, 0x38, 0x39, 0xfa, 0xfb, 0xfc, 0xfd, 0xfe, 0xff,
}

// ASCIIToEBCDIC is the inverse of EBCDICToASCII, built at init time so the
// two tables can never drift out of sync.
var ASCIIToEBCDIC [256]uint8

func init() {
	for e, a := range EBCDICToASCII {
		ASCIIToEBCDIC[a] = uint8(e)
	}
}

// Ascii2741In is the 2741 typewriter input code table: the correspondence
// code punched by a keystroke, indexed by the low 7 bits of the line byte.
// Carried over from the 2703/2741 reference implementation; §4.2 names only
// the handful of control tokens, the rest of the printable mapping below
// supplies the ordinary character set.
var Ascii2741In = [128]uint8{
	/* 00-07 NUL SOH STX ETX EOT ENQ ACK BEL */
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	/* 08-0F BS  HT  LF  VT  FF  CR  SO  SI  */
	0xDD, 0xFA, 0xB5, 0x00, 0x00, 0x5B, 0x00, 0x00,
	/* 10-17 DLE DC1 DC2 DC3 DC4 NAK SYN ETB */
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	/* 18-1F CAN EM  SUB ESC FS  GS  RS  US  */
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	/* 20-27  sp   !   "   #   $   %   &   ' */
	0x81, 0xD7, 0x96, 0x16, 0x57, 0x8B, 0x61, 0x8D,
	/* 28-2F   (   )   *   +   ,   -   .   / */
	0x93, 0x95, 0x90, 0xE1, 0x37, 0x40, 0x76, 0x23,
	/* 30-37   0   1   2   3   4   5   6   7 */
	0x15, 0x02, 0x04, 0x07, 0x08, 0x0B, 0x0D, 0x0E,
	/* 38-3F   8   9   :   ;   <   =   >   ? */
	0x10, 0x13, 0x88, 0x87, 0x84, 0x82, 0x8E, 0xA3,
	/* 40-47   @   A   B   C   D   E   F   G */
	0x20, 0xE2, 0xE4, 0xE7, 0xE8, 0xEB, 0xED, 0xEE,
	/* 48-4F   H   I   J   K   L   M   N   O */
	0xF0, 0xF3, 0xC3, 0xC5, 0xC6, 0xC9, 0xCA, 0xCC,
	/* 50-57   P   Q   R   S   T   U   V   W */
	0xCF, 0xD1, 0xD2, 0xA5, 0xA6, 0xA9, 0xAA, 0xAC,
	/* 58-5F   X   Y   Z   [   \   ]   ^   _ */
	0xAF, 0xB1, 0xB2, 0x00, 0x00, 0x00, 0x00, 0xC0,
	/* 60-67   `   a   b   c   d   e   f   g */
	0x00, 0x62, 0x64, 0x67, 0x68, 0x6B, 0x6D, 0x6E,
	/* 68-6F   h   i   j   k   l   m   n   o */
	0x70, 0x73, 0x43, 0x45, 0x46, 0x49, 0x4A, 0x4C,
	/* 70-77   p   q   r   s   t   u   v   w */
	0x4F, 0x51, 0x52, 0x25, 0x26, 0x29, 0x2A, 0x2C,
	/* 78-7F   x   y   z   {   |   }   ~ del */
	0x2F, 0x31, 0x32, 0x00, 0xB7, 0x00, 0xF6, 0x00,
}

// Ascii2741Out is the 2741 output code table: the typewriter code received
// from the line, indexed by the correspondence code byte sent down the
// line, producing the ASCII character to display (0xff = no printable
// mapping). Carried verbatim from the reference implementation.
var Ascii2741Out = [256]uint8{
	0xff, ' ', '1', 0xff, '2', 0xff, 0xff, '3',
	'4', 0xff, 0xff, '5', 0xff, '6', '7', 0xff,
	'8', 0xff, 0xff, '9', 0xff, '0', '#', 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	'@', 0xff, 0xff, '/', 0xff, 's', 't', 0xff,
	0xff, 'u', 'v', 0xff, 'w', 0xff, 0xff, 'x',
	0xff, 'y', 'z', 0xff, 0xff, 0xff, 0xff, ',',
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	'-', 0xff, 0xff, 'j', 0xff, 'k', 'l', 0xff,
	0xff, 'm', 'n', 0xff, 'o', 0xff, 0xff, 'p',
	0xff, 'q', 'r', 0xff, 0xff, 0xff, 0xff, '$',
	0xff, 0xff, 0xff, 0x0a, 0xff, 0x08, 0xff, 0xff,
	0xff, '&', 'a', 0xff, 'b', 0xff, 0xff, 'c',
	'd', 0xff, 0xff, 'e', 0xff, 'f', 'g', 0xff,
	'h', 0xff, 0xff, 'i', 0xff, 0xff, '.', 0xff,
	0xff, 0xff, 0x09, 0xff, 0xff, 0xff, 0xff, 0x7f,
	0xff, ' ', '=', 0xff, '<', 0xff, 0xff, ';',
	':', 0xff, 0xff, '%', 0xff, '\'', '>', 0xff,
	'*', 0xff, 0xff, '(', 0xff, ')', '"', 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 'A', 'B', 0xff, 'C', 0xff, 0xff, 'D',
	'E', 0xff, 0xff, 'F', 0xff, 'G', 'H', 0xff,
	'I', 0xff, 0xff, 'J', 0xff, 0xff, '+', 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	'K', 0xff, 0xff, 'L', 0xff, 'M', 'N', 0xff,
	'O', 0xff, 0xff, 'P', 0xff, 0xff, ')', 0xff,
	'Q', 0xff, 0xff, 'R', 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 'S', 'T', 0xff, 'U', 0xff, 0xff, 'V',
	'W', 0xff, 0xff, 'X', 0xff, 'Y', 'Z', 0xff,
	'0', 0xff, 0xff, '1', 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
}

// Special 2741 correspondence codes that carry line-control meaning rather
// than a printable character (§4.2 "translation tables").
const (
	Code2741Addr  uint8 = 0x1f // shift-into-address-selection mode
	Code2741Stop  uint8 = 0x16 // shift-out-of-address-selection mode
	Code2741NL    uint8 = 0x5b // new line
	Code2741NLAlt uint8 = 0xdb // new line (alternate)
)
