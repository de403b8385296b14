package iec60870

import "fmt"

// startByte begins every APCI on the wire.
const startByte = 0x68

// maxApduLength is the largest value the 1-byte length field may carry,
// keeping the full APDU (start byte + length byte + length) at 255 bytes.
const maxApduLength = 253

// maxVariableLength is the largest ASDU a CS104 I-frame may carry:
// maxApduLength minus the 4 control-field bytes.
const maxVariableLength = maxApduLength - 4

/*
APCI (Application Protocol Control Information).

Each APCI starts with a start byte with value 0x68 followed by the 8-bit
length of the remainder of the APDU and four 8-bit control fields (CF).

 | <-   8 bits    -> |  -----
 | Start Byte (0x68) |    |
 | Length of APDU    |    |
 | Control Field 1   |   APCI
 | Control Field 2   |    |
 | Control Field 3   |    |
 | Control Field 4   |    |
 | <-   8 bits    -> |  -----
*/
type APCI struct {
	Cf1 byte
	Cf2 byte
	Cf3 byte
	Cf4 byte
}

/*
FrameType is the transmission frame format, determined by the low two bits
of CF1.
*/
type FrameType byte

const (
	FrameTypeI FrameType = 0x00
	FrameTypeS FrameType = 0x01
	FrameTypeU FrameType = 0x03
)

func (t FrameType) String() string {
	switch t {
	case FrameTypeI:
		return "I"
	case FrameTypeS:
		return "S"
	case FrameTypeU:
		return "U"
	default:
		return "?"
	}
}

// Frame is any of the three CS104 APCI formats.
type Frame interface {
	Type() FrameType
	controlFields() []byte
}

// ParseAPCI classifies the 4 control-field bytes of an APCI and returns
// the typed Frame they describe.
func ParseAPCI(cf []byte) (Frame, error) {
	if len(cf) != 4 {
		return nil, newProtocolError(ErrUnexpectedFormat, "apci control fields must be 4 bytes")
	}
	apci := APCI{Cf1: cf[0], Cf2: cf[1], Cf3: cf[2], Cf4: cf[3]}
	switch {
	case apci.Cf1&0x01 == 0x00:
		return apci.parseIFrame(), nil
	case apci.Cf1&0x03 == 0x01:
		return apci.parseSFrame(), nil
	case apci.Cf1&0x03 == 0x03:
		return apci.parseUFrame(), nil
	default:
		return nil, newProtocolError(ErrUnexpectedFormat, fmt.Sprintf("unrecognised control field 0x%02x", apci.Cf1))
	}
}

/*
IFrame (Information Transfer Format), low bit of CF1 is 0.

 | <-              8 bits              -> |
 | Send sequence no. N(S)     [LSB]   | 0 |
 | Send sequence no. N(S)     [MSB]       |
 | Receive sequence no. N(R)  [LSB]   | 0 |
 | Receive sequence no. N(R)  [MSB]       |

N(S) and N(R) are 15-bit numbers modulo 2^15, incremented per APDU sent in
that direction. An I-frame always carries exactly one ASDU.
*/
type IFrame struct {
	SendSN uint16
	RecvSN uint16
}

func (apci APCI) parseIFrame() IFrame {
	send := uint16(apci.Cf1)>>1 | uint16(apci.Cf2)<<7
	recv := uint16(apci.Cf3)>>1 | uint16(apci.Cf4)<<7
	return IFrame{SendSN: send & 0x7fff, RecvSN: recv & 0x7fff}
}

func (i IFrame) Type() FrameType { return FrameTypeI }

func (i IFrame) controlFields() []byte {
	return []byte{
		byte(i.SendSN << 1),
		byte(i.SendSN >> 7),
		byte(i.RecvSN << 1),
		byte(i.RecvSN >> 7),
	}
}

/*
SFrame (Numbered Supervisory function), low two bits of CF1 are (01)b.

 | <-              8 bits              -> |
 |                                | 0 | 1 |
 |                                        |
 | Receive sequence no. N(R)  [LSB]   | 0 |
 | Receive sequence no. N(R)  [MSB]       |

An S-frame carries no ASDU; it only acknowledges N(R).
*/
type SFrame struct {
	RecvSN uint16
}

func (apci APCI) parseSFrame() SFrame {
	recv := uint16(apci.Cf3)>>1 | uint16(apci.Cf4)<<7
	return SFrame{RecvSN: recv & 0x7fff}
}

func (s SFrame) Type() FrameType { return FrameTypeS }

func (s SFrame) controlFields() []byte {
	return []byte{0x01, 0x00, byte(s.RecvSN << 1), byte(s.RecvSN >> 7)}
}

// UCommand identifies which unnumbered control function a UFrame carries.
type UCommand byte

const (
	UStartDtActivate  UCommand = 0x01
	UStartDtConfirm   UCommand = 0x02
	UStopDtActivate   UCommand = 0x04
	UStopDtConfirm    UCommand = 0x08
	UTestFrActivate   UCommand = 0x10
	UTestFrConfirm    UCommand = 0x20
)

func (c UCommand) String() string {
	switch c {
	case UStartDtActivate:
		return "STARTDT act"
	case UStartDtConfirm:
		return "STARTDT con"
	case UStopDtActivate:
		return "STOPDT act"
	case UStopDtConfirm:
		return "STOPDT con"
	case UTestFrActivate:
		return "TESTFR act"
	case UTestFrConfirm:
		return "TESTFR con"
	default:
		return "unknown"
	}
}

/*
UFrame (Unnumbered control function), low two bits of CF1 are (11)b.

 | <-              8 bits              -> |
 | TESTFR | STOPDT | STARTDT | 1 | 1 |

Only one of STARTDT/STOPDT/TESTFR, in either the act or con direction, is
set at a time.
*/
type UFrame struct {
	Function UCommand
}

func (apci APCI) parseUFrame() UFrame {
	return UFrame{Function: UCommand(apci.Cf1 >> 2)}
}

func (u UFrame) Type() FrameType { return FrameTypeU }

func (u UFrame) controlFields() []byte {
	return []byte{byte(u.Function)<<2 | 0x03, 0x00, 0x00, 0x00}
}

var (
	UFrameStartDtActivate = UFrame{Function: UStartDtActivate}
	UFrameStartDtConfirm  = UFrame{Function: UStartDtConfirm}
	UFrameStopDtActivate  = UFrame{Function: UStopDtActivate}
	UFrameStopDtConfirm   = UFrame{Function: UStopDtConfirm}
	UFrameTestFrActivate  = UFrame{Function: UTestFrActivate}
	UFrameTestFrConfirm   = UFrame{Function: UTestFrConfirm}
)
