package pirparams

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		LogN:             13,
		PlaintextModulus: DefaultPlaintextModulus,
		LogQ:             []int{54, 54, 54},
		LogP:             []int{54},
		ModSwitchDepth:   1,
		KeywordBits:      64,
		ObjectSizeBytes:  32,
		NumberOfItems:    1000,
	}
}

func TestNewDerivesColumnCounts(t *testing.T) {
	p, err := New(validConfig())
	require.NoError(t, err)

	// NUM_COL = ceil(key_size/(2*PLAIN_BIT)) = ceil(64/32) = 2
	assert.Equal(t, 2, p.NumCol)
	assert.Equal(t, 8192, p.N())
	assert.Equal(t, 4096, p.Half())

	// pir_num_columns_per_obj = 2*ceil((obj_size/2)*8/PLAIN_BIT) = 2*ceil(16*8/16) = 16
	assert.Equal(t, 16, p.PirNumColumnsPerObj)
}

func TestNewRejectsNonPositiveFields(t *testing.T) {
	cfg := validConfig()
	cfg.NumberOfItems = 0
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestNewRejectsInsufficientModulusChain(t *testing.T) {
	cfg := validConfig()
	cfg.ModSwitchDepth = len(cfg.LogQ) // leaves <=1 prime, invalid
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestEqualitySquaringsRequiresFermatPrime(t *testing.T) {
	cfg := validConfig()
	cfg.PlaintextModulus = 65537 // 2^16+1
	p, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, 16, p.EqualitySquarings)

	cfg.PlaintextModulus = 12289 // not of the form 2^k+1
	_, err = New(cfg)
	assert.Error(t, err)
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	p, err := New(validConfig())
	require.NoError(t, err)

	data, err := p.Marshal()
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)

	assert.Equal(t, p.NumCol, got.NumCol)
	assert.Equal(t, p.PirNumColumnsPerObj, got.PirNumColumnsPerObj)
	assert.Equal(t, p.KeywordBits, got.KeywordBits)
	assert.Equal(t, p.ObjectSizeBytes, got.ObjectSizeBytes)
	assert.Equal(t, p.PlaintextModulus, got.PlaintextModulus)
}
