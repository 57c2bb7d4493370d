package krpc

import (
	"fmt"

	"github.com/anacrolix/torrent/bencode"
)

// Canonical protocol error codes (BEP-5 §6.2 of this system's boundary
// error taxonomy).
const (
	ErrCodeGeneric      = 201
	ErrCodeServer       = 202
	ErrCodeProtocol     = 203
	ErrCodeMethodUnknown = 204
)

// Err is the wire error tuple: a numeric code and a human-readable
// message, encoded as a 2-element bencode list.
type Err struct {
	Code int
	Msg  string
}

func (e Err) Error() string {
	return fmt.Sprintf("krpc error %d: %s", e.Code, e.Msg)
}

// MarshalBencode encodes the error as [code, message].
func (e Err) MarshalBencode() ([]byte, error) {
	return bencode.Marshal([]interface{}{e.Code, e.Msg})
}

// UnmarshalBencode decodes a 2-element [code, message] list into the
// receiver.
func (e *Err) UnmarshalBencode(b []byte) error {
	var tuple []interface{}
	if err := bencode.Unmarshal(b, &tuple); err != nil {
		return fmt.Errorf("krpc: decoding error tuple: %w", err)
	}
	if len(tuple) != 2 {
		return fmt.Errorf("krpc: error tuple must have 2 elements, got %d", len(tuple))
	}
	code, ok := tuple[0].(int64)
	if !ok {
		return fmt.Errorf("krpc: error code must be an integer")
	}
	msg, ok := tuple[1].(string)
	if !ok {
		return fmt.Errorf("krpc: error message must be a string")
	}
	e.Code = int(code)
	e.Msg = msg
	return nil
}
