package iec60870

import "fmt"

/*
ASDU (Application Service Data Unit).

The ASDU contains two main sections:
- the data unit identifier (variable length, per AppLayerParams):
  - defining the specific type of data;
  - providing addressing to identify the specific data;
  - including information as cause of transmission.
- the data itself, made up of one or more information objects:
  - each ASDU can transmit at most 127 objects;
  - the type identification applies to the entire ASDU, so all information
    objects contained in the ASDU are of the same type.

The format of ASDU:
 | <-              8 bits              -> |
 | Type Identification                    |  --------------------
 | SQ | Number of objects                 |           |
 | T  | P/N | Cause of transmission (COT) |           |
 | Originator address (ORG, if sizeOfCOT=2)|  Data Unit Identifier
 | Common address fields (1 or 2 bytes)   |           |
 | Information object address (IOA)       |  --------------------
 | Information Elements                   |  Information Object 1
 | Time Tag (if used)                     |  --------------------
 | ...                                     |  Information Object N

An ASDU is either *parsed* (a read-only view over received bytes, produced
by ParseASDU) or *constructed* (mutable, owned by the caller until handed to
the send path, produced by NewASDU) — spec.md section 3. Both share the
same representation; the distinction is a construction-site concern, not a
runtime one (design note 1, spec.md section 9).
*/
type ASDU struct {
	Params AppLayerParams

	typeID TypeID
	sq     bool
	cot    CauseOfTransmission
	ca     uint16

	infoObj []byte // packed information objects, back to back
	nObjs   int
	ioa0    IOA // first element's IOA, when SQ=1 or the typed started
	haveIOA bool
}

// CauseOfTransmission is the 1 or 2 byte COT field: {T:1, P/N:1, Cause:6}
// plus an optional originator address — spec.md section 3.
type CauseOfTransmission struct {
	IsTest     bool
	IsNegative bool
	Cause      Cause
	OriginAddr byte // only meaningful/encoded when Params.CauseSize == 2
}

// Cause is the 6-bit cause-of-transmission value.
type Cause byte

const (
	CauseUnused               Cause = 0
	CausePeriodic             Cause = 1
	CauseBackground           Cause = 2
	CauseSpontaneous          Cause = 3
	CauseInitialized          Cause = 4
	CauseRequest              Cause = 5
	CauseActivation           Cause = 6
	CauseActivationCon        Cause = 7
	CauseDeactivation         Cause = 8
	CauseDeactivationCon      Cause = 9
	CauseActivationTerm       Cause = 10
	CauseReturnInfoRemote     Cause = 11
	CauseReturnInfoLocal      Cause = 12
	CauseFileTransfer         Cause = 13
	CauseInterrogatedByStation Cause = 20
	CauseInterrogatedByGroup1  Cause = 21
	CauseRequestByGeneralCounter Cause = 37
	CauseUnknownTypeID        Cause = 44
	CauseUnknownCOT           Cause = 45
	CauseUnknownCA            Cause = 46
	CauseUnknownIOA           Cause = 47
)

func parseCOT(b []byte, size int) CauseOfTransmission {
	cot := CauseOfTransmission{
		IsTest:     b[0]&0x80 != 0,
		IsNegative: b[0]&0x40 != 0,
		Cause:      Cause(b[0] & 0x3f),
	}
	if size == 2 {
		cot.OriginAddr = b[1]
	}
	return cot
}

func (c CauseOfTransmission) bytes(size int) []byte {
	b0 := byte(c.Cause & 0x3f)
	if c.IsTest {
		b0 |= 0x80
	}
	if c.IsNegative {
		b0 |= 0x40
	}
	if size == 2 {
		return []byte{b0, c.OriginAddr}
	}
	return []byte{b0}
}

// NewASDU constructs an empty, mutable ASDU whose TypeID is fixed by the
// first call to AddInformationObject — spec.md section 4.3.
func NewASDU(params AppLayerParams, isSequence bool, cot CauseOfTransmission, ca uint16) *ASDU {
	return &ASDU{
		Params: params,
		sq:     isSequence,
		cot:    cot,
		ca:     ca,
	}
}

// TypeID returns the ASDU's type, or 0 if no object has been added yet.
func (a *ASDU) TypeID() TypeID { return a.typeID }

// IsSequence reports the VSQ SQ bit.
func (a *ASDU) IsSequence() bool { return a.sq }

// Cot returns the cause of transmission.
func (a *ASDU) Cot() CauseOfTransmission { return a.cot }

// CommonAddr returns the station address.
func (a *ASDU) CommonAddr() uint16 { return a.ca }

// NumObjects returns the number of information objects/elements added so far.
func (a *ASDU) NumObjects() int { return a.nObjs }

// encodedLen returns the size the ASDU would occupy on the wire right now.
func (a *ASDU) encodedLen() int {
	return a.Params.IdentifierSize() + len(a.infoObj)
}

// AddInformationObject appends one information object. The first call
// fixes the ASDU's TypeID. Subsequent additions fail with MixedTypes if
// typeID differs, NonConsecutiveIOA if SQ=1 and ioa isn't predecessor+1,
// and Overflow if appending would exceed Params.MaxAsduSize. The element
// count increments only on success and is capped at 127 — spec.md section
// 4.3's construction contract.
func (a *ASDU) AddInformationObject(typeID TypeID, ioa IOA, element []byte) error {
	if a.nObjs > 0 && typeID != a.typeID {
		return newCodecError(ErrMixedTypes, fmt.Sprintf("asdu is %s, got %s", a.typeID, typeID))
	}
	if a.nObjs >= 127 {
		return newCodecError(ErrOverflow, "127 element maximum reached")
	}

	size, err := elementWidth(typeID)
	if err != nil {
		return err
	}
	if size != len(element) {
		return newCodecError(ErrInvalidWidth, fmt.Sprintf("%s wants %d element bytes, got %d", typeID, size, len(element)))
	}

	if a.sq && a.nObjs > 0 {
		wantIOA := a.ioa0 + IOA(a.nObjs)
		if ioa != wantIOA {
			return newCodecError(ErrNonConsecutiveIOA, fmt.Sprintf("want ioa %d, got %d", wantIOA, ioa))
		}
	}

	var addition []byte
	if !a.sq || a.nObjs == 0 {
		ioaBytes, err := encodeIOA(ioa, a.Params.InfoObjAddrSize)
		if err != nil {
			return err
		}
		addition = append(addition, ioaBytes...)
	}
	addition = append(addition, element...)

	if a.Params.IdentifierSize()+len(a.infoObj)+len(addition) > a.Params.MaxAsduSize {
		return newCodecError(ErrOverflow, "would exceed maxSizeOfASDU")
	}

	a.infoObj = append(a.infoObj, addition...)
	if a.nObjs == 0 {
		a.typeID = typeID
		a.ioa0 = ioa
		a.haveIOA = true
	}
	a.nObjs++
	return nil
}

// Encode renders the ASDU to its wire bytes.
func (a *ASDU) Encode() ([]byte, error) {
	if err := a.Params.Valid(); err != nil {
		return nil, err
	}
	out := make([]byte, 0, a.encodedLen())
	out = append(out, byte(a.typeID))

	vsq := byte(a.nObjs & 0x7f)
	if a.sq {
		vsq |= 0x80
	}
	out = append(out, vsq)
	out = append(out, a.cot.bytes(a.Params.CauseSize)...)

	switch a.Params.CommonAddrSize {
	case 1:
		out = append(out, byte(a.ca))
	case 2:
		out = append(out, byte(a.ca), byte(a.ca>>8))
	default:
		return nil, newCodecError(ErrInvalidWidth, "sizeOfCA must be 1 or 2")
	}

	out = append(out, a.infoObj...)
	return out, nil
}

// ParseASDU validates an encoded ASDU against params and produces a
// read-only view whose Element(i) lazily decodes the i-th object. It
// validates header width, and that the declared element count fits the
// remaining payload given the TypeID's per-element size — spec.md section
// 4.3's parse contract.
func ParseASDU(data []byte, params AppLayerParams) (*ASDU, error) {
	if err := params.Valid(); err != nil {
		return nil, err
	}
	hdr := params.IdentifierSize()
	if len(data) < hdr {
		return nil, newCodecError(ErrTruncated, "short asdu header")
	}

	a := &ASDU{Params: params}
	a.typeID = TypeID(data[0])
	vsq := data[1]
	a.sq = vsq&0x80 != 0
	a.nObjs = int(vsq & 0x7f)

	off := 2
	a.cot = parseCOT(data[off:off+params.CauseSize], params.CauseSize)
	off += params.CauseSize

	switch params.CommonAddrSize {
	case 1:
		a.ca = uint16(data[off])
	case 2:
		a.ca = uint16(data[off]) | uint16(data[off+1])<<8
	}
	off += params.CommonAddrSize

	body := data[off:]
	if a.nObjs > 0 {
		size, err := elementWidth(a.typeID)
		if err != nil {
			return nil, err
		}
		var want int
		if a.sq {
			want = params.InfoObjAddrSize + size*a.nObjs
		} else {
			want = (params.InfoObjAddrSize + size) * a.nObjs
		}
		if len(body) < want {
			return nil, newCodecError(ErrTruncated, "asdu body shorter than declared element count")
		}
		body = body[:want]

		if a.sq {
			ioa0, err := decodeIOA(body, params.InfoObjAddrSize)
			if err != nil {
				return nil, err
			}
			a.ioa0 = ioa0
			a.haveIOA = true
		}
	}
	a.infoObj = append([]byte(nil), body...)
	return a, nil
}

// Element is one decoded information object: its IOA (IOA₀+i when SQ=1,
// per spec.md section 4.3's tie-break) and the raw post-IOA bytes.
type Element struct {
	Address IOA
	Raw     []byte
}

// Element lazily decodes the i-th object/element, 0-based.
func (a *ASDU) Element(i int) (Element, error) {
	if i < 0 || i >= a.nObjs {
		return Element{}, newCodecError(ErrTruncated, "element index out of range")
	}
	size, err := elementWidth(a.typeID)
	if err != nil {
		return Element{}, err
	}

	if a.sq {
		start := a.Params.InfoObjAddrSize + i*size
		return Element{Address: a.ioa0 + IOA(i), Raw: a.infoObj[start : start+size]}, nil
	}

	stride := a.Params.InfoObjAddrSize + size
	start := i * stride
	ioa, err := decodeIOA(a.infoObj[start:start+a.Params.InfoObjAddrSize], a.Params.InfoObjAddrSize)
	if err != nil {
		return Element{}, err
	}
	elemStart := start + a.Params.InfoObjAddrSize
	return Element{Address: ioa, Raw: a.infoObj[elemStart : elemStart+size]}, nil
}

// Clone returns a deep copy preserving byte-for-byte the encoded
// representation, so a received ASDU can outlive its originating receive
// buffer — spec.md section 4.3's cloning contract.
func (a *ASDU) Clone() *ASDU {
	cp := *a
	cp.infoObj = append([]byte(nil), a.infoObj...)
	return &cp
}

func (a *ASDU) String() string {
	return fmt.Sprintf("ASDU{%s sq=%v cot=%d ca=%d n=%d}", a.typeID, a.sq, a.cot.Cause, a.ca, a.nObjs)
}
