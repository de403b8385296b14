package iec60870

import "fmt"

// AppLayerParams configures the header widths and limits shared by the
// ASDU codec, the CS101 link layer and the CS104 APCI engine. The triple
// (CauseSize, CommonAddrSize, InfoObjAddrSize) must be identical on both
// ends of a link for the channel to be interpretable — spec.md section 3.
type AppLayerParams struct {
	CauseSize      int // sizeOfCOT, 1 or 2 (2 includes the originator address)
	CommonAddrSize int // sizeOfCA, 1 or 2
	InfoObjAddrSize int // sizeOfIOA, 1, 2 or 3

	OriginAddr int // originatorAddress, [0, 255]

	MaxAsduSize int // maxSizeOfASDU
}

// DefaultCS104Params returns the widths/limits conventionally used over
// TCP: 2-byte COT, 2-byte CA, 3-byte IOA, 249-byte ASDU cap.
func DefaultCS104Params() AppLayerParams {
	return AppLayerParams{
		CauseSize:       2,
		CommonAddrSize:  2,
		InfoObjAddrSize: 3,
		MaxAsduSize:     249,
	}
}

// DefaultCS101Params returns the widths/limits conventionally used over
// serial: identical field widths to CS104, 254-byte ASDU cap. The FT1.2
// length byte also counts the control and address bytes, so a variable
// frame carries at most 253 ASDU bytes with a 1-byte link address.
func DefaultCS101Params() AppLayerParams {
	p := DefaultCS104Params()
	p.MaxAsduSize = 254
	return p
}

// Valid checks the configured widths are in the ranges the standard allows.
func (p AppLayerParams) Valid() error {
	switch p.CauseSize {
	case 1, 2:
	default:
		return newCodecError(ErrInvalidWidth, "sizeOfCOT must be 1 or 2")
	}
	switch p.CommonAddrSize {
	case 1, 2:
	default:
		return newCodecError(ErrInvalidWidth, "sizeOfCA must be 1 or 2")
	}
	switch p.InfoObjAddrSize {
	case 1, 2, 3:
	default:
		return newCodecError(ErrInvalidWidth, "sizeOfIOA must be 1, 2 or 3")
	}
	if p.OriginAddr < 0 || p.OriginAddr > 255 {
		return newCodecError(ErrInvalidWidth, "originatorAddress must be in [0, 255]")
	}
	if p.MaxAsduSize <= 0 {
		return newCodecError(ErrInvalidWidth, "maxSizeOfASDU must be positive")
	}
	return nil
}

// IdentifierSize is the fixed (typeID + VSQ) + (COT[+org]) + CA header
// width for this parameter set.
func (p AppLayerParams) IdentifierSize() int {
	return 1 /* typeID */ + 1 /* VSQ */ + p.CauseSize + p.CommonAddrSize
}

func (p AppLayerParams) String() string {
	return fmt.Sprintf("AppLayerParams{COT=%d CA=%d IOA=%d org=%d maxASDU=%d}",
		p.CauseSize, p.CommonAddrSize, p.InfoObjAddrSize, p.OriginAddr, p.MaxAsduSize)
}
