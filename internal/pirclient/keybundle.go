package pirclient

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
)

// MarshalEvaluationKeys serializes the relin key and galois keys the
// client uploads via SendKeys into one byte blob: relin_keys || each
// galois_key, length-prefixed so the server can split them back apart
// without needing to know the galois key count in advance.
func MarshalEvaluationKeys(rlk *rlwe.RelinearizationKey, gks []*rlwe.GaloisKey) ([]byte, error) {
	var buf bytes.Buffer

	rlkBytes, err := rlk.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("pirclient: marshaling relinearization key: %w", err)
	}
	if err := writeChunk(&buf, rlkBytes); err != nil {
		return nil, err
	}

	if err := binary.Write(&buf, binary.BigEndian, uint32(len(gks))); err != nil {
		return nil, fmt.Errorf("pirclient: writing galois key count: %w", err)
	}
	for i, gk := range gks {
		gkBytes, err := gk.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("pirclient: marshaling galois key %d: %w", i, err)
		}
		if err := writeChunk(&buf, gkBytes); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// UnmarshalEvaluationKeys reverses MarshalEvaluationKeys.
func UnmarshalEvaluationKeys(data []byte) (*rlwe.RelinearizationKey, []*rlwe.GaloisKey, error) {
	r := bytes.NewReader(data)

	rlkBytes, err := readChunk(r)
	if err != nil {
		return nil, nil, fmt.Errorf("pirclient: reading relinearization key: %w", err)
	}
	rlk := new(rlwe.RelinearizationKey)
	if err := rlk.UnmarshalBinary(rlkBytes); err != nil {
		return nil, nil, fmt.Errorf("pirclient: decoding relinearization key: %w", err)
	}

	var count uint32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, nil, fmt.Errorf("pirclient: reading galois key count: %w", err)
	}
	gks := make([]*rlwe.GaloisKey, count)
	for i := range gks {
		gkBytes, err := readChunk(r)
		if err != nil {
			return nil, nil, fmt.Errorf("pirclient: reading galois key %d: %w", i, err)
		}
		gk := new(rlwe.GaloisKey)
		if err := gk.UnmarshalBinary(gkBytes); err != nil {
			return nil, nil, fmt.Errorf("pirclient: decoding galois key %d: %w", i, err)
		}
		gks[i] = gk
	}
	return rlk, gks, nil
}

func writeChunk(buf *bytes.Buffer, data []byte) error {
	if err := binary.Write(buf, binary.BigEndian, uint32(len(data))); err != nil {
		return fmt.Errorf("pirclient: writing chunk length: %w", err)
	}
	if _, err := buf.Write(data); err != nil {
		return fmt.Errorf("pirclient: writing chunk body: %w", err)
	}
	return nil
}

func readChunk(r *bytes.Reader) ([]byte, error) {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return nil, err
	}
	out := make([]byte, length)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}
