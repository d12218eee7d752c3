package protocol

// HandshakeStatus is the result of a handshake.
type HandshakeStatus uint8

const (
	HandshakeOK              HandshakeStatus = 0x00
	HandshakeVersionMismatch HandshakeStatus = 0x01
	HandshakeSessionExpired  HandshakeStatus = 0x02
	HandshakeServerBusy      HandshakeStatus = 0x03
	HandshakeInvalidFormat   HandshakeStatus = 0x04
	HandshakeInternalError   HandshakeStatus = 0x05
)

// String returns the string representation of the handshake status.
func (hs HandshakeStatus) String() string {
	switch hs {
	case HandshakeOK:
		return "OK"
	case HandshakeVersionMismatch:
		return "VersionMismatch"
	case HandshakeSessionExpired:
		return "SessionExpired"
	case HandshakeServerBusy:
		return "ServerBusy"
	case HandshakeInvalidFormat:
		return "InvalidFormat"
	case HandshakeInternalError:
		return "InternalError"
	default:
		return "Unknown"
	}
}

// Version is the current protocol version. A client speaking a
// different major version is rejected.
const Version = 1

// ClientHello is sent by the client once the socket is established.
// SessionID is empty for a fresh connection; on reconnect it names the
// session to resume, and LastSeq the last patch frame received.
type ClientHello struct {
	Version   uint8
	SessionID string
	LastSeq   uint64
}

// ServerHello is the server's response to ClientHello.
type ServerHello struct {
	Status    HandshakeStatus
	SessionID string
	NextSeq   uint64
}

// EncodeClientHello encodes a ClientHello to bytes.
func EncodeClientHello(ch *ClientHello) []byte {
	e := NewEncoder()
	e.WriteByte(ch.Version)
	e.WriteString(ch.SessionID)
	e.WriteUvarint(ch.LastSeq)
	return e.Bytes()
}

// DecodeClientHello decodes a ClientHello from bytes.
func DecodeClientHello(data []byte) (*ClientHello, error) {
	d := NewDecoder(data)
	ch := &ClientHello{}
	var err error
	if ch.Version, err = d.ReadByte(); err != nil {
		return nil, err
	}
	if ch.SessionID, err = d.ReadString(); err != nil {
		return nil, err
	}
	if ch.LastSeq, err = d.ReadUvarint(); err != nil {
		return nil, err
	}
	return ch, nil
}

// EncodeServerHello encodes a ServerHello to bytes.
func EncodeServerHello(sh *ServerHello) []byte {
	e := NewEncoder()
	e.WriteByte(byte(sh.Status))
	e.WriteString(sh.SessionID)
	e.WriteUvarint(sh.NextSeq)
	return e.Bytes()
}

// DecodeServerHello decodes a ServerHello from bytes.
func DecodeServerHello(data []byte) (*ServerHello, error) {
	d := NewDecoder(data)
	sh := &ServerHello{}
	status, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	sh.Status = HandshakeStatus(status)
	if sh.SessionID, err = d.ReadString(); err != nil {
		return nil, err
	}
	if sh.NextSeq, err = d.ReadUvarint(); err != nil {
		return nil, err
	}
	return sh, nil
}
