package certerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfWrapped(t *testing.T) {
	base := New(StoreRejected, "contentstore.PutJSON", errors.New("401 unauthorized"))
	wrapped := fmt.Errorf("store record: %w", base)

	assert.Equal(t, StoreRejected, KindOf(wrapped))
	assert.True(t, errors.Is(wrapped, &Error{Kind: StoreRejected}))
	assert.False(t, errors.Is(wrapped, &Error{Kind: StoreUnreachable}))
	assert.Equal(t, Unknown, KindOf(errors.New("plain")))
}

func TestErrorStringCarriesTxHash(t *testing.T) {
	err := &Error{Kind: TransactionTimeout, Op: "chain.AwaitConfirmation", TxHash: "0xabc", Err: errors.New("deadline")}

	assert.Equal(t, "chain.AwaitConfirmation: TRANSACTION_TIMEOUT (tx 0xabc): deadline", err.Error())
	assert.Equal(t, "0xabc", TxHashOf(fmt.Errorf("x: %w", err)))
	assert.Empty(t, TxHashOf(errors.New("plain")))
}

func TestMessageCoversEveryKind(t *testing.T) {
	kinds := []Kind{
		HashingUnavailable, StoreUnreachable, StoreRejected, RenderingUnsupported,
		WalletUnavailable, SigningKeyMissing, TransactionRejected, TransactionTimeout,
		ChainUnreachable, InvalidRequest,
	}
	for _, k := range kinds {
		assert.NotEqual(t, Message(Unknown), Message(k), "kind %s", k)
	}
}
