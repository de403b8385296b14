package iec60870

// InterrogationSource supplies the point data a station reports back in
// answer to a general interrogation (spec.md section 8 scenario 1).
// DataPoints returns every point in one slice; HandleGeneralInterrogation
// splits them across as many ASDUs as needed to stay within
// Params.MaxAsduSize.
type InterrogationSource interface {
	// DataPoints reports every monitored point as (typeID, ioa, element)
	// triples, addressed to ca.
	DataPoints(ca uint16) []InterrogationPoint
}

// InterrogationPoint is one point reported during a general interrogation.
type InterrogationPoint struct {
	TypeID  TypeID
	IOA     IOA
	Element []byte
}

// InterrogationSourceFunc adapts a plain function to InterrogationSource.
type InterrogationSourceFunc func(ca uint16) []InterrogationPoint

func (f InterrogationSourceFunc) DataPoints(ca uint16) []InterrogationPoint { return f(ca) }

// HandleGeneralInterrogation answers a C_IC_NA_1(ACTIVATION) request with
// the standard three-part reply: ACTIVATION_CON, one or more data ASDUs
// carrying every point from src at CauseInterrogatedByStation, and
// ACTIVATION_TERMINATION — spec.md section 8 scenario 1. send is called
// once per outgoing ASDU, in order; a non-nil error aborts the sequence.
func HandleGeneralInterrogation(req *ASDU, src InterrogationSource, send func(*ASDU) error) error {
	if req.TypeID() != C_IC_NA_1 {
		return newProtocolError(ErrUnexpectedFormat, "not a general interrogation request")
	}

	con := NewASDU(req.Params, false, CauseOfTransmission{Cause: CauseActivationCon}, req.CommonAddr())
	elem, err := req.Element(0)
	if err != nil {
		return err
	}
	if err := con.AddInformationObject(C_IC_NA_1, elem.Address, elem.Raw); err != nil {
		return err
	}
	if err := send(con); err != nil {
		return err
	}

	if err := sendInterrogationData(req.Params, req.CommonAddr(), src, send); err != nil {
		return err
	}

	term := NewASDU(req.Params, false, CauseOfTransmission{Cause: CauseActivationTerm}, req.CommonAddr())
	if err := term.AddInformationObject(C_IC_NA_1, elem.Address, elem.Raw); err != nil {
		return err
	}
	return send(term)
}

// sendInterrogationData packs src's points into as few ASDUs as fit under
// Params.MaxAsduSize, grouping consecutive points of the same TypeID,
// and sends each in turn.
func sendInterrogationData(params AppLayerParams, ca uint16, src InterrogationSource, send func(*ASDU) error) error {
	points := src.DataPoints(ca)
	if len(points) == 0 {
		return nil
	}

	var batch *ASDU
	flush := func() error {
		if batch == nil || batch.NumObjects() == 0 {
			return nil
		}
		err := send(batch)
		batch = nil
		return err
	}

	for _, p := range points {
		if batch == nil {
			batch = NewASDU(params, false, CauseOfTransmission{Cause: CauseInterrogatedByStation}, ca)
		}
		if err := batch.AddInformationObject(p.TypeID, p.IOA, p.Element); err != nil {
			if !IsCodecError(err, ErrOverflow) && !IsCodecError(err, ErrMixedTypes) {
				return err
			}
			if err := flush(); err != nil {
				return err
			}
			batch = NewASDU(params, false, CauseOfTransmission{Cause: CauseInterrogatedByStation}, ca)
			if err := batch.AddInformationObject(p.TypeID, p.IOA, p.Element); err != nil {
				return err
			}
		}
	}
	return flush()
}
