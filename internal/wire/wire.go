// Package wire defines the transport envelope shared by cmd/server and
// cmd/client: a single-endpoint request/response dispatcher carrying
// opaque byte payloads, grounded on the teacher's pir_rest_server_ms.go
// invoke handler and its request/response JSON shapes. Generalized from
// the teacher's single unauthenticated InitLedger/PIRQuery pair to the
// four RPCs the full protocol needs, with a client_id field so the
// server can key its per-client key/one_ct cache.
package wire

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Method names for the unary RPCs spec §6 defines.
const (
	MethodReceiveParams      = "ReceiveParams"
	MethodSendKeys           = "SendKeys"
	MethodSendOneCiphertext  = "SendOneCiphertext"
	MethodQuery              = "Query"
)

// Request mirrors the teacher's request struct, adding ClientID so the
// server can route SendKeys/SendOneCiphertext/Query to the right
// client's on-disk cache. Args carries base64-encoded byte payloads;
// chunked uploads (SendKeys) use ChunkIndex/ChunkTotal/Final.
type Request struct {
	Method     string   `json:"method"`
	ClientID   string   `json:"client_id,omitempty"`
	Args       []string `json:"args,omitempty"`
	ChunkIndex int      `json:"chunk_index,omitempty"`
	ChunkTotal int      `json:"chunk_total,omitempty"`
	Final      bool     `json:"final,omitempty"`
}

// Response mirrors the teacher's response struct: exactly one of
// Response or Error is set. ErrorKind carries one of the spec §7 error
// kind tags so clients can branch on failure class without parsing
// Error's free text.
type Response struct {
	Response  string `json:"response,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Error kind tags, spec §7.
const (
	ErrInvalidParams        = "InvalidParams"
	ErrUnauthenticatedClient = "UnauthenticatedClient"
	ErrTransportBroken       = "TransportBroken"
	ErrCancelled             = "Cancelled"
	ErrDecodeFailed          = "DecodeFailed"
	ErrNotFound              = "NotFound"
)

// EncodeArg/DecodeArg wrap the base64 convention the teacher's client
// uses for binary payloads traveling inside a JSON string field.
func EncodeArg(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

func DecodeArg(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("wire: decoding base64 arg: %w", err)
	}
	return b, nil
}

// MarshalChunks splits data into chunks no larger than maxChunk bytes
// (post-base64 overhead is the caller's concern), per spec §6's
// "chunk ≤ default_max − margin" rule for SendKeys uploads.
func MarshalChunks(data []byte, maxChunk int) [][]byte {
	if maxChunk <= 0 {
		return [][]byte{data}
	}
	var chunks [][]byte
	for offset := 0; offset < len(data); offset += maxChunk {
		end := offset + maxChunk
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, data[offset:end])
	}
	if len(chunks) == 0 {
		chunks = [][]byte{{}}
	}
	return chunks
}

func MarshalJSON(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("wire: marshaling envelope: %w", err)
	}
	return b, nil
}
