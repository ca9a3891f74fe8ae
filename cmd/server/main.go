// Command server runs the keyword-PIR REST service: a single /invoke
// endpoint dispatching on method name, grounded on the teacher's
// pir_rest_server_ms.go invoke handler and generalized from its
// hard-coded InitLedger/PIRQuery pair to the full ReceiveParams/
// SendKeys/SendOneCiphertext/Query RPC set spec §6 defines.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/iasenovets/keywordpir/internal/clientstore"
	"github.com/iasenovets/keywordpir/internal/dbenc"
	"github.com/iasenovets/keywordpir/internal/pirparams"
	"github.com/iasenovets/keywordpir/internal/pirserver"
	"github.com/iasenovets/keywordpir/internal/wire"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	storeDir := flag.String("store", "./pirserver-clients", "per-client key/one_ct cache directory")
	logN := flag.Int("logn", 14, "log2 of the polynomial ring degree")
	modSwitchDepth := flag.Int("modswitch", 2, "modulus-switch depth applied after equality squaring")
	keywordBits := flag.Int("key-bits", 64, "keyword bit width")
	objSize := flag.Int("obj-size", 128, "value size in bytes")
	n := flag.Int("n", 10000, "number of synthetic records to seed the single-shard table with")
	flag.Parse()

	cfg := pirparams.Config{
		LogN:             *logN,
		PlaintextModulus: pirparams.DefaultPlaintextModulus,
		LogQ:             []int{56, 56, 56, 56},
		LogP:             []int{56},
		ModSwitchDepth:   *modSwitchDepth,
		KeywordBits:      *keywordBits,
		ObjectSizeBytes:  *objSize,
		NumberOfItems:    *n,
	}
	params, err := pirparams.New(cfg)
	if err != nil {
		log.Fatalf("[ERROR] building parameter contract: %v", err)
	}
	log.Printf("[INFO] server: parameter contract ready: LogN=%d NumCol=%d NumRow=%d PirDBRows=%d",
		*logN, params.NumCol, params.NumRow, params.PirDBRows)

	keys, values := dbenc.GenerateTable(params.KeywordBits, params.ObjectSizeBytes, params.NumberOfItems)
	mm, err := dbenc.BuildMultiMap(params, 1, keys, values)
	if err != nil {
		log.Fatalf("[ERROR] building single-shard table: %v", err)
	}

	store, err := clientstore.New(*storeDir)
	if err != nil {
		log.Fatalf("[ERROR] opening client store: %v", err)
	}

	svc := pirserver.NewService(params, mm, store)
	http.HandleFunc("/invoke", newInvokeHandler(svc))

	log.Printf("[INFO] server: listening on %s", *addr)
	log.Fatal(http.ListenAndServe(*addr, nil))
}

func newInvokeHandler(svc *pirserver.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req wire.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErr(w, wire.ErrDecodeFailed, err)
			return
		}

		switch req.Method {
		case wire.MethodReceiveParams:
			data, err := svc.ReceiveParams()
			if err != nil {
				writeErr(w, "", err)
				return
			}
			writeOK(w, wire.EncodeArg(data))

		case wire.MethodSendKeys:
			if req.ClientID == "" {
				writeErr(w, wire.ErrInvalidParams, fmt.Errorf("client_id is required"))
				return
			}
			if len(req.Args) != 1 {
				writeErr(w, wire.ErrInvalidParams, fmt.Errorf("SendKeys requires one base64 chunk argument"))
				return
			}
			chunk, err := wire.DecodeArg(req.Args[0])
			if err != nil {
				writeErr(w, wire.ErrDecodeFailed, err)
				return
			}
			if err := appendKeyChunk(svc, req.ClientID, chunk, req.ChunkIndex, req.ChunkTotal, req.Final); err != nil {
				writeErr(w, wire.ErrTransportBroken, err)
				return
			}
			writeOK(w, "Ack")

		case wire.MethodSendOneCiphertext:
			if req.ClientID == "" {
				writeErr(w, wire.ErrInvalidParams, fmt.Errorf("client_id is required"))
				return
			}
			if len(req.Args) != 1 {
				writeErr(w, wire.ErrInvalidParams, fmt.Errorf("SendOneCiphertext requires one base64 argument"))
				return
			}
			data, err := wire.DecodeArg(req.Args[0])
			if err != nil {
				writeErr(w, wire.ErrDecodeFailed, err)
				return
			}
			if err := svc.SendOneCiphertext(req.ClientID, data); err != nil {
				writeErr(w, wire.ErrInvalidParams, err)
				return
			}
			writeOK(w, "Ack")

		case wire.MethodQuery:
			if req.ClientID == "" {
				writeErr(w, wire.ErrInvalidParams, fmt.Errorf("client_id is required"))
				return
			}
			if len(req.Args) != 1 {
				writeErr(w, wire.ErrInvalidParams, fmt.Errorf("Query requires one base64 query-ciphertext argument"))
				return
			}
			qss, err := wire.DecodeArg(req.Args[0])
			if err != nil {
				writeErr(w, wire.ErrDecodeFailed, err)
				return
			}
			answers, err := svc.Query(r.Context(), req.ClientID, qss)
			if err != nil {
				if err == pirserver.ErrUnauthenticated {
					writeErr(w, wire.ErrUnauthenticatedClient, err)
					return
				}
				writeErr(w, "", err)
				return
			}
			encoded := make([]string, len(answers))
			for i, a := range answers {
				encoded[i] = wire.EncodeArg(a)
			}
			b, err := json.Marshal(encoded)
			if err != nil {
				writeErr(w, "", err)
				return
			}
			writeOK(w, string(b))

		default:
			writeErr(w, wire.ErrInvalidParams, fmt.Errorf("unknown method %q", req.Method))
		}
	}
}

// pendingKeyUploads reassembles chunked SendKeys uploads per client,
// per spec §6's "chunked to fit the transport's max message size" rule.
var (
	pendingKeyUploadsMu sync.Mutex
	pendingKeyUploads   = map[string][][]byte{}
)

func appendKeyChunk(svc *pirserver.Service, clientID string, chunk []byte, chunkIndex, chunkTotal int, final bool) error {
	pendingKeyUploadsMu.Lock()
	pendingKeyUploads[clientID] = append(pendingKeyUploads[clientID], chunk)
	var full []byte
	if final {
		chunks := pendingKeyUploads[clientID]
		delete(pendingKeyUploads, clientID)
		for _, c := range chunks {
			full = append(full, c...)
		}
	}
	pendingKeyUploadsMu.Unlock()

	if !final {
		return nil
	}
	return svc.SendKeys(clientID, full)
}

func writeOK(w http.ResponseWriter, resp string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(wire.Response{Response: resp})
}

func writeErr(w http.ResponseWriter, kind string, err error) {
	w.Header().Set("Content-Type", "application/json")
	if kind == wire.ErrUnauthenticatedClient {
		w.WriteHeader(http.StatusUnauthorized)
	} else {
		w.WriteHeader(http.StatusBadRequest)
	}
	json.NewEncoder(w).Encode(wire.Response{ErrorKind: kind, Error: err.Error()})
}
