package envelope

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellarnodeN/recrusearch/internal/storage"
	dErrors "github.com/stellarnodeN/recrusearch/pkg/domain-errors"
)

func newTestPipeline(t *testing.T) (*Pipeline, *[32]byte, *[32]byte) {
	t.Helper()
	pk, sk, err := GenerateRecipientKeyPair()
	require.NoError(t, err)
	return NewPipeline(storage.NewMemoryClient()), pk, sk
}

func TestPipeline_RoundTrip(t *testing.T) {
	pipeline, pk, sk := newTestPipeline(t)
	ctx := context.Background()

	payloads := [][]byte{
		[]byte("a"),
		[]byte(`{"q1":"yes","q2":"sometimes","free_text":"long form answer"}`),
		bytes.Repeat([]byte{0x00}, 4096),
		{0xff, 0x00, 0x01},
	}
	for _, payload := range payloads {
		sealed, err := pipeline.Seal(ctx, payload, pk)
		require.NoError(t, err)
		require.NoError(t, sealed.ContentID.Validate())
		assert.NotZero(t, sealed.IntegrityHash)

		opened, err := pipeline.Open(ctx, sealed.ContentID, sk)
		require.NoError(t, err)
		assert.Equal(t, payload, opened)
	}
}

// Two seals of the same payload must yield different content identifiers;
// identifier-level deduplication would leak that two participants submitted
// identical answers.
func TestPipeline_SealIsNonDeterministic(t *testing.T) {
	pipeline, pk, _ := newTestPipeline(t)
	ctx := context.Background()
	payload := []byte("identical answers")

	first, err := pipeline.Seal(ctx, payload, pk)
	require.NoError(t, err)
	second, err := pipeline.Seal(ctx, payload, pk)
	require.NoError(t, err)

	assert.NotEqual(t, first.ContentID, second.ContentID)
	assert.NotEqual(t, first.IntegrityHash, second.IntegrityHash)
}

func TestPipeline_WrongKeyFailsWithIntegrityError(t *testing.T) {
	pipeline, pk, _ := newTestPipeline(t)
	_, wrongSK, err := GenerateRecipientKeyPair()
	require.NoError(t, err)
	ctx := context.Background()

	sealed, err := pipeline.Seal(ctx, []byte("sensitive"), pk)
	require.NoError(t, err)

	payload, err := pipeline.Open(ctx, sealed.ContentID, wrongSK)
	require.Error(t, err)
	assert.Nil(t, payload)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeIntegrity))
	assert.ErrorIs(t, err, ErrDecryptFailed)
}

func TestPipeline_MissingContentIsNotFound(t *testing.T) {
	pipeline, _, sk := newTestPipeline(t)

	_, err := pipeline.Open(context.Background(), "memNOSUCHCONTENTXXXX", sk)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestPipeline_TamperedEnvelopeFails(t *testing.T) {
	store := storage.NewMemoryClient()
	pipeline := NewPipeline(store)
	pk, sk, err := GenerateRecipientKeyPair()
	require.NoError(t, err)
	ctx := context.Background()

	sealed, err := pipeline.Seal(ctx, []byte("untampered"), pk)
	require.NoError(t, err)

	raw, err := store.Get(ctx, sealed.ContentID)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0x01
	tamperedID, err := store.Put(ctx, raw)
	require.NoError(t, err)

	_, err = pipeline.Open(ctx, tamperedID, sk)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeIntegrity))
}

func TestParse_MalformedInput(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{name: "nil", raw: nil},
		{name: "empty", raw: []byte{}},
		{name: "truncated header", raw: bytes.Repeat([]byte{0x01}, headerSize-1)},
		{name: "header but no authenticator", raw: append([]byte{FormatVersion}, bytes.Repeat([]byte{0x02}, headerSize)...)},
		{name: "unknown version", raw: append([]byte{0x7f}, bytes.Repeat([]byte{0x03}, minEnvelopeSize)...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.raw)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestEnvelope_MarshalParseRoundTrip(t *testing.T) {
	pk, _, err := GenerateRecipientKeyPair()
	require.NoError(t, err)

	env, err := seal([]byte("payload"), pk)
	require.NoError(t, err)

	parsed, err := Parse(env.Marshal())
	require.NoError(t, err)
	assert.Equal(t, env, parsed)
}

// The envelope layout is fixed: only the ciphertext length varies with the
// payload, and only by the cipher's constant overhead.
func TestEnvelope_SizeIsPayloadPlusConstantOverhead(t *testing.T) {
	pk, _, err := GenerateRecipientKeyPair()
	require.NoError(t, err)

	for _, n := range []int{0, 1, 100, 4096} {
		env, err := seal(bytes.Repeat([]byte{0xaa}, n), pk)
		require.NoError(t, err)
		assert.Equal(t, minEnvelopeSize+n, len(env.Marshal()))
	}
}

func TestIntegrityHash_IsStable(t *testing.T) {
	serialized := []byte("serialized envelope bytes")
	assert.Equal(t, IntegrityHash(serialized), IntegrityHash(serialized))
	assert.NotEqual(t, IntegrityHash(serialized), IntegrityHash([]byte("other bytes")))
}
