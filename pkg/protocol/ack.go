package protocol

// Ack acknowledges received patch frames. The server trims its patch
// history up to LastSeq; Window tells it how many more frames the
// client can absorb before it should coalesce.
type Ack struct {
	LastSeq uint64
	Window  uint64
}

// DefaultWindow is the default receive window size.
const DefaultWindow = 100

// EncodeAck encodes an Ack to bytes.
func EncodeAck(ack *Ack) []byte {
	e := NewEncoder()
	EncodeAckTo(e, ack)
	return e.Bytes()
}

// EncodeAckTo encodes an Ack using the provided encoder.
func EncodeAckTo(e *Encoder, ack *Ack) {
	e.WriteUvarint(ack.LastSeq)
	e.WriteUvarint(ack.Window)
}

// DecodeAck decodes an Ack from bytes.
func DecodeAck(data []byte) (*Ack, error) {
	d := NewDecoder(data)
	return DecodeAckFrom(d)
}

// DecodeAckFrom decodes an Ack from a decoder.
func DecodeAckFrom(d *Decoder) (*Ack, error) {
	lastSeq, err := d.ReadUvarint()
	if err != nil {
		return nil, err
	}
	window, err := d.ReadUvarint()
	if err != nil {
		return nil, err
	}
	return &Ack{LastSeq: lastSeq, Window: window}, nil
}
