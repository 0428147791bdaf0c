// Package demuxer manages the external stem-demuxing subprocess: its
// lifecycle, the length-prefixed JSON wire protocol to it, and marshalling
// remote calls (spec §4.4).
package demuxer

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// outboundCall is the only envelope shape we ever send.
type outboundCall struct {
	ID          string          `json:"id"`
	ProcedureID string          `json:"procedure_id"`
	CallID      uint64          `json:"call_id"`
	Payload     json.RawMessage `json:"payload"`
}

// inboundEnvelope is tagged by Id; exactly one of the typed fields is
// populated depending on its value ("Ack", "Log", "CallBack").
type inboundEnvelope struct {
	ID      string          `json:"id"`
	Request string          `json:"request,omitempty"`
	Message string          `json:"message,omitempty"`
	Level   string          `json:"level,omitempty"`
	CallID  uint64          `json:"call_id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

const (
	envelopeAck      = "Ack"
	envelopeLog      = "Log"
	envelopeCallBack = "CallBack"
	envelopeCall     = "Call"
)

// WriteFrame writes a 4-byte big-endian length prefix followed by v encoded
// as UTF-8 JSON.
func WriteFrame(w io.Writer, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("demuxer: marshal frame: %w", err)
	}
	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(body)))
	if _, err := w.Write(lenPrefix[:]); err != nil {
		return fmt.Errorf("demuxer: write frame length: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("demuxer: write frame body: %w", err)
	}
	return nil
}

// ReadFrame blocks until at least 4 bytes are available, reads the declared
// payload length in full, then returns the raw JSON bytes (undecoded, so a
// malformed payload can be logged verbatim by the caller).
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenPrefix [4]byte
	if _, err := io.ReadFull(r, lenPrefix[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenPrefix[:])
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("demuxer: read frame body: %w", err)
	}
	return body, nil
}

func writeCall(w io.Writer, procedureID string, callID uint64, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("demuxer: marshal call payload: %w", err)
	}
	return WriteFrame(w, outboundCall{ID: envelopeCall, ProcedureID: procedureID, CallID: callID, Payload: raw})
}
