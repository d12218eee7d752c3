package protocol

// EventFrame is one client-to-server event. The token addresses a
// callback in the server-side dispatch table; the name and value carry
// the surface event's identity and payload (input value, form field,
// or empty for plain activations like click).
type EventFrame struct {
	Seq   uint64
	Token uint64
	Name  string
	Value string
}

// EncodeEventFrame encodes an event frame to bytes.
func EncodeEventFrame(ef *EventFrame) []byte {
	e := NewEncoder()
	EncodeEventFrameTo(e, ef)
	return e.Bytes()
}

// EncodeEventFrameTo encodes an event frame using the provided encoder.
func EncodeEventFrameTo(e *Encoder, ef *EventFrame) {
	e.WriteUvarint(ef.Seq)
	e.WriteUvarint(ef.Token)
	e.WriteString(ef.Name)
	e.WriteString(ef.Value)
}

// DecodeEventFrame decodes an event frame from bytes.
func DecodeEventFrame(data []byte) (*EventFrame, error) {
	d := NewDecoder(data)
	return DecodeEventFrameFrom(d)
}

// DecodeEventFrameFrom decodes an event frame from a decoder.
func DecodeEventFrameFrom(d *Decoder) (*EventFrame, error) {
	ef := &EventFrame{}
	var err error
	if ef.Seq, err = d.ReadUvarint(); err != nil {
		return nil, err
	}
	if ef.Token, err = d.ReadUvarint(); err != nil {
		return nil, err
	}
	if ef.Name, err = d.ReadString(); err != nil {
		return nil, err
	}
	if ef.Value, err = d.ReadString(); err != nil {
		return nil, err
	}
	return ef, nil
}
