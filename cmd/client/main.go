// Command client is a demo REST client: it uploads evaluation keys and
// one_ct for a fresh identity, issues a single keyword query, and
// prints the reconstructed value. Grounded on the teacher's
// pir_rest_client_ms.go main() demo flow, generalized from its
// hard-coded index lookup to a keyword query against the full
// pipeline.
package main

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/iasenovets/keywordpir/internal/dbenc"
	"github.com/iasenovets/keywordpir/internal/pirclient"
	"github.com/iasenovets/keywordpir/internal/pirparams"
	"github.com/iasenovets/keywordpir/internal/wire"
)

func main() {
	server := flag.String("server", "http://localhost:8080/invoke", "server /invoke URL")
	target := flag.String("target", "", "keyword to query, hex-encoded")
	chunkSize := flag.Int("chunk-bytes", 1<<20, "max bytes per SendKeys chunk")
	flag.Parse()

	clientID := randomClientID()
	log.Printf("[INFO] client: identity %s", clientID)

	parmsB64, err := call(*server, clientID, wire.MethodReceiveParams)
	if err != nil {
		log.Fatalf("[ERROR] ReceiveParams: %v", err)
	}
	parmsBytes, err := wire.DecodeArg(parmsB64)
	if err != nil {
		log.Fatalf("[ERROR] decoding params: %v", err)
	}
	params, err := pirparams.Unmarshal(parmsBytes)
	if err != nil {
		log.Fatalf("[ERROR] unmarshaling params: %v", err)
	}
	log.Printf("[INFO] client: NumCol=%d NumRow=%d KeywordBits=%d ObjectSizeBytes=%d",
		params.NumCol, params.NumRow, params.KeywordBits, params.ObjectSizeBytes)

	ks, err := pirclient.GenKeys(params)
	if err != nil {
		log.Fatalf("[ERROR] GenKeys: %v", err)
	}

	keyBundle, err := pirclient.MarshalEvaluationKeys(ks.RelinKey, ks.GaloisKeys)
	if err != nil {
		log.Fatalf("[ERROR] marshaling keys: %v", err)
	}
	if err := sendKeysChunked(*server, clientID, keyBundle, *chunkSize); err != nil {
		log.Fatalf("[ERROR] SendKeys: %v", err)
	}

	oneCt, err := pirclient.OneCiphertext(params, ks)
	if err != nil {
		log.Fatalf("[ERROR] OneCiphertext: %v", err)
	}
	oneCtBytes, err := oneCt.MarshalBinary()
	if err != nil {
		log.Fatalf("[ERROR] marshaling one_ct: %v", err)
	}
	if _, err := call(*server, clientID, wire.MethodSendOneCiphertext, wire.EncodeArg(oneCtBytes)); err != nil {
		log.Fatalf("[ERROR] SendOneCiphertext: %v", err)
	}

	targetBytes, err := targetKeyword(*target, params.KeywordBits)
	if err != nil {
		log.Fatalf("[ERROR] parsing target: %v", err)
	}

	start := time.Now()
	queryCt, err := pirclient.QueryMake(params, ks, targetBytes)
	if err != nil {
		log.Fatalf("[ERROR] QueryMake: %v", err)
	}
	queryBytes, err := queryCt.MarshalBinary()
	if err != nil {
		log.Fatalf("[ERROR] marshaling query: %v", err)
	}
	log.Printf("[INFO] client: query ciphertext = %d bytes (enc %.3f ms)", len(queryBytes), msSince(start))

	evalStart := time.Now()
	respJSON, err := call(*server, clientID, wire.MethodQuery, wire.EncodeArg(queryBytes))
	if err != nil {
		log.Fatalf("[ERROR] Query: %v", err)
	}
	log.Printf("[INFO] client: round trip = %.3f ms", msSince(evalStart))

	var encodedAnswers []string
	if err := json.Unmarshal([]byte(respJSON), &encodedAnswers); err != nil {
		log.Fatalf("[ERROR] decoding answer stream: %v", err)
	}
	answers := make([][]byte, len(encodedAnswers))
	for i, e := range encodedAnswers {
		b, err := wire.DecodeArg(e)
		if err != nil {
			log.Fatalf("[ERROR] decoding shard %d answer: %v", i, err)
		}
		answers[i] = b
	}

	// cmd/server always seeds the deterministic single-shard sequential
	// table (dbenc.GenerateTable: ids 1..n inserted in order, M=1), so
	// the target's row is public, derivable knowledge rather than a
	// privacy-breaking side channel — recompute it locally the same way
	// cmd/benchmark uses dbenc.MultiMap.ResolveIndex against its own
	// in-process table. A deployment serving a round-robin multi-map
	// built from an arbitrary workload has no such public placement
	// function and would need a different decode contract entirely.
	shardIndices := make([]int, len(answers))
	row := dbenc.SequentialRow(dbenc.SequentialID(targetBytes), params.NumberOfItems)
	for i := range shardIndices {
		shardIndices[i] = dbenc.InvalidIndex
	}
	if len(shardIndices) > 0 {
		shardIndices[0] = row
	}
	values, err := pirclient.Reconstruct(params, ks, answers, shardIndices)
	if err != nil {
		log.Fatalf("[ERROR] Reconstruct: %v", err)
	}
	for s, v := range values {
		log.Printf("[INFO] shard %d value = %q", s, hex.EncodeToString(v))
	}
}

func randomClientID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "client-0"
	}
	return "client-" + hex.EncodeToString(buf)
}

func targetKeyword(hexArg string, keywordBits int) ([]byte, error) {
	byteLen := (keywordBits + 7) / 8
	if hexArg == "" {
		return make([]byte, byteLen), nil
	}
	b, err := hex.DecodeString(hexArg)
	if err != nil {
		return nil, fmt.Errorf("target must be hex-encoded: %w", err)
	}
	if len(b) > byteLen {
		return nil, fmt.Errorf("target is %d bytes, keyword width only allows %d", len(b), byteLen)
	}
	padded := make([]byte, byteLen)
	copy(padded, b)
	return padded, nil
}

func sendKeysChunked(server, clientID string, data []byte, chunkBytes int) error {
	chunks := wire.MarshalChunks(data, chunkBytes)
	for i, c := range chunks {
		req := wire.Request{
			Method:     wire.MethodSendKeys,
			ClientID:   clientID,
			Args:       []string{wire.EncodeArg(c)},
			ChunkIndex: i,
			ChunkTotal: len(chunks),
			Final:      i == len(chunks)-1,
		}
		if _, err := callRequest(server, req); err != nil {
			return fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
	}
	return nil
}

func call(server, clientID, method string, args ...string) (string, error) {
	return callRequest(server, wire.Request{Method: method, ClientID: clientID, Args: args})
}

func callRequest(server string, req wire.Request) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	httpReq, err := http.NewRequestWithContext(context.Background(), http.MethodPost, server, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	var wrap wire.Response
	if err := json.Unmarshal(raw, &wrap); err != nil {
		return "", err
	}
	if wrap.Error != "" {
		return "", fmt.Errorf("%s: %s", wrap.ErrorKind, wrap.Error)
	}
	return wrap.Response, nil
}

func msSince(t time.Time) float64 { return float64(time.Since(t).Nanoseconds()) / 1e6 }
