package protocol

// ErrorCode identifies the class of a wire error.
type ErrorCode uint16

const (
	ErrUnknown        ErrorCode = 0x0000
	ErrInvalidFrame   ErrorCode = 0x0001 // Malformed frame
	ErrInvalidEvent   ErrorCode = 0x0002 // Malformed event
	ErrTokenNotFound  ErrorCode = 0x0003 // No callback for handler token
	ErrHandlerPanic   ErrorCode = 0x0004 // Callback panicked
	ErrSessionExpired ErrorCode = 0x0005 // Session no longer valid
	ErrRateLimited    ErrorCode = 0x0006 // Too many events
	ErrServerError    ErrorCode = 0x0100 // Internal server error
)

// String returns the string representation of the error code.
func (ec ErrorCode) String() string {
	switch ec {
	case ErrInvalidFrame:
		return "InvalidFrame"
	case ErrInvalidEvent:
		return "InvalidEvent"
	case ErrTokenNotFound:
		return "TokenNotFound"
	case ErrHandlerPanic:
		return "HandlerPanic"
	case ErrSessionExpired:
		return "SessionExpired"
	case ErrRateLimited:
		return "RateLimited"
	case ErrServerError:
		return "ServerError"
	default:
		return "Unknown"
	}
}

// ErrorMessage is sent when an error occurs. Fatal errors close the
// connection.
type ErrorMessage struct {
	Code    ErrorCode
	Message string
	Fatal   bool
}

// Error implements the error interface.
func (em *ErrorMessage) Error() string {
	if em.Fatal {
		return "fatal: " + em.Code.String() + ": " + em.Message
	}
	return em.Code.String() + ": " + em.Message
}

// EncodeErrorMessage encodes an ErrorMessage to bytes.
func EncodeErrorMessage(em *ErrorMessage) []byte {
	e := NewEncoder()
	e.WriteUint16(uint16(em.Code))
	e.WriteString(em.Message)
	e.WriteBool(em.Fatal)
	return e.Bytes()
}

// DecodeErrorMessage decodes an ErrorMessage from bytes.
func DecodeErrorMessage(data []byte) (*ErrorMessage, error) {
	d := NewDecoder(data)
	code, err := d.ReadUint16()
	if err != nil {
		return nil, err
	}
	message, err := d.ReadString()
	if err != nil {
		return nil, err
	}
	fatal, err := d.ReadBool()
	if err != nil {
		return nil, err
	}
	return &ErrorMessage{Code: ErrorCode(code), Message: message, Fatal: fatal}, nil
}
