package pirserver

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"

	"github.com/iasenovets/keywordpir/internal/clientstore"
	"github.com/iasenovets/keywordpir/internal/dbenc"
	"github.com/iasenovets/keywordpir/internal/pirclient"
	"github.com/iasenovets/keywordpir/internal/pirparams"
)

// Service holds the server-wide state a transport binds its RPCs to:
// the fixed parameter contract and multi-map the process was started
// with, the on-disk per-client key cache, and a single request-wide
// exclusion token (spec §5: "a single server instance handles one
// query at a time... the BFV evaluator and stream buffers are not
// reentrant across requests"). Grounded on the teacher's package-level
// mtx sync.RWMutex guarding params/ptdb/records in pir_rest_server_ms.go,
// generalized into an owned field instead of a global.
type Service struct {
	Params   *pirparams.Params
	MultiMap *dbenc.MultiMap
	Store    *clientstore.Store

	mu sync.Mutex
}

func NewService(p *pirparams.Params, mm *dbenc.MultiMap, store *clientstore.Store) *Service {
	return &Service{Params: p, MultiMap: mm, Store: store}
}

// ReceiveParams returns the serialized parameter contract every client
// must agree on before uploading keys.
func (svc *Service) ReceiveParams() ([]byte, error) {
	data, err := svc.Params.Marshal()
	if err != nil {
		return nil, fmt.Errorf("pirserver: marshaling params: %w", err)
	}
	return data, nil
}

// SendKeys persists a client's uploaded relin_keys||galois_keys blob.
// Transport-level chunk reassembly happens before this is called; see
// cmd/server's invoke handler.
func (svc *Service) SendKeys(clientID string, data []byte) error {
	if _, _, err := pirclient.UnmarshalEvaluationKeys(data); err != nil {
		return fmt.Errorf("pirserver: rejecting malformed key upload from %q: %w", clientID, err)
	}
	if err := svc.Store.SaveKeys(clientID, data); err != nil {
		return err
	}
	log.Printf("[INFO] pirserver: client %q uploaded evaluation keys (%d bytes)", clientID, len(data))
	return nil
}

// SendOneCiphertext persists a client's uploaded one_ct.
func (svc *Service) SendOneCiphertext(clientID string, data []byte) error {
	ct := rlwe.NewCiphertext(svc.Params.HE, 1, svc.Params.HE.MaxLevel())
	if err := ct.UnmarshalBinary(data); err != nil {
		return fmt.Errorf("pirserver: rejecting malformed one_ct upload from %q: %w", clientID, err)
	}
	if err := svc.Store.SaveOneCiphertext(clientID, data); err != nil {
		return err
	}
	log.Printf("[INFO] pirserver: client %q uploaded one_ct (%d bytes)", clientID, len(data))
	return nil
}

// ErrUnauthenticated is returned by Query when a client has not
// uploaded both keys and one_ct yet, per spec §6.
var ErrUnauthenticated = fmt.Errorf("pirserver: client queried before uploading keys and one_ct")

// Query builds a request-scoped ServerContext from the client's cached
// material and runs the three-stage pipeline. Loading and decoding the
// cached material happens before the lock; building the context and
// running the pipeline are serialized under svc.mu: spec §5 requires the server to serve one query at a
// time since the BFV evaluator and its stream buffers are not
// reentrant across concurrent requests.
func (svc *Service) Query(ctx context.Context, clientID string, qssBytes []byte) ([][]byte, error) {
	keysData, err := svc.Store.LoadKeys(clientID)
	if err != nil {
		return nil, err
	}
	oneCtData, err := svc.Store.LoadOneCiphertext(clientID)
	if err != nil {
		return nil, err
	}
	if keysData == nil || oneCtData == nil {
		return nil, ErrUnauthenticated
	}

	rlk, gks, err := pirclient.UnmarshalEvaluationKeys(keysData)
	if err != nil {
		return nil, fmt.Errorf("pirserver: decoding cached keys for %q: %w", clientID, err)
	}
	oneCt := rlwe.NewCiphertext(svc.Params.HE, 1, svc.Params.HE.MaxLevel())
	if err := oneCt.UnmarshalBinary(oneCtData); err != nil {
		return nil, fmt.Errorf("pirserver: decoding cached one_ct for %q: %w", clientID, err)
	}

	evk := pirclient.EvaluationKeySet(rlk, gks)

	svc.mu.Lock()
	defer svc.mu.Unlock()

	sc, err := NewServerContext(svc.Params, evk, oneCt, svc.MultiMap)
	if err != nil {
		return nil, err
	}
	return sc.Query(ctx, qssBytes)
}
