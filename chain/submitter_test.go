package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"campuscert/certerr"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	studentAddr  = "0x71C7656EC7ab88b098defB751B7401B5f6d8976F"
	contractAddr = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	metadataURI  = "https://gateway.pinata.cloud/ipfs/bafkreimeta"
)

var sepolia = big.NewInt(11155111)

func testConfig() Config {
	return Config{
		ContractAddress:     common.HexToAddress(contractAddr),
		ChainID:             sepolia,
		ConfirmationTimeout: time.Second,
		PollInterval:        time.Millisecond,
	}
}

func newTestSubmitter(t *testing.T, cfg Config, env Environment) *Submitter {
	t.Helper()
	s, err := NewSubmitter(cfg, env)
	require.NoError(t, err)
	return s
}

func TestSelectSigner(t *testing.T) {
	wallet := &fakeWallet{}

	sg, err := SelectSigner(Environment{Wallet: wallet, PrivateKey: "abc"})
	require.NoError(t, err)
	assert.IsType(t, Interactive{}, sg)

	sg, err = SelectSigner(Environment{RPCURL: "http://node", PrivateKey: " 0xabc "})
	require.NoError(t, err)
	assert.Equal(t, ServerKey{Endpoint: "http://node", Key: "0xabc"}, sg)

	_, err = SelectSigner(Environment{RPCURL: "http://node"})
	assert.Equal(t, certerr.SigningKeyMissing, certerr.KindOf(err))
}

type fakeWallet struct {
	mu          sync.Mutex
	account     common.Address
	txHash      common.Hash
	switchErr   error
	accountsErr error
	noAccounts  bool
	sendErr     error
	pendingFor  int
	status      uint64
	calls       []string
	sent        map[string]interface{}
}

func (w *fakeWallet) CallContext(_ context.Context, result interface{}, method string, args ...interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, method)

	switch method {
	case "wallet_switchEthereumChain":
		return w.switchErr
	case "eth_requestAccounts":
		if w.accountsErr != nil {
			return w.accountsErr
		}
		if !w.noAccounts {
			*result.(*[]common.Address) = []common.Address{w.account}
		}
		return nil
	case "eth_sendTransaction":
		if w.sendErr != nil {
			return w.sendErr
		}
		w.sent = args[0].(map[string]interface{})
		*result.(*common.Hash) = w.txHash
		return nil
	case "eth_getTransactionReceipt":
		if w.pendingFor > 0 {
			w.pendingFor--
			return nil
		}
		*result.(**types.Receipt) = &types.Receipt{Status: w.status, BlockNumber: big.NewInt(42)}
		return nil
	}
	return errors.New("unexpected method " + method)
}

func TestInteractiveSubmitConfirms(t *testing.T) {
	wallet := &fakeWallet{
		account:    common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		txHash:     common.HexToHash("0xabc123"),
		pendingFor: 2,
		status:     types.ReceiptStatusSuccessful,
	}
	s := newTestSubmitter(t, testConfig(), Environment{Wallet: wallet})

	tx, err := s.Submit(context.Background(), studentAddr, metadataURI)
	require.NoError(t, err)
	assert.Equal(t, wallet.txHash.Hex(), tx)
	assert.True(t, IsTxHash(tx))

	assert.Equal(t, []string{
		"wallet_switchEthereumChain",
		"eth_requestAccounts",
		"eth_sendTransaction",
		"eth_getTransactionReceipt",
		"eth_getTransactionReceipt",
		"eth_getTransactionReceipt",
	}, wallet.calls)
	assert.Equal(t, wallet.account, wallet.sent["from"])
	assert.Equal(t, common.HexToAddress(contractAddr), wallet.sent["to"])

	data := wallet.sent["data"].(hexutil.Bytes)
	assert.Equal(t, s.abi.Methods[issueMethod].ID, []byte(data[:4]))
}

func TestInteractiveWalletFailures(t *testing.T) {
	tests := []struct {
		name   string
		wallet *fakeWallet
		kind   certerr.Kind
	}{
		{"switch refused", &fakeWallet{switchErr: errors.New("user rejected")}, certerr.WalletUnavailable},
		{"accounts refused", &fakeWallet{accountsErr: errors.New("user rejected")}, certerr.WalletUnavailable},
		{"no accounts", &fakeWallet{noAccounts: true}, certerr.WalletUnavailable},
		{"send rejected", &fakeWallet{sendErr: errors.New("denied")}, certerr.TransactionRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSubmitter(t, testConfig(), Environment{Wallet: tt.wallet})
			_, err := s.Submit(context.Background(), studentAddr, metadataURI)
			require.Error(t, err)
			assert.Equal(t, tt.kind, certerr.KindOf(err))
			assert.NotContains(t, tt.wallet.calls, "eth_getTransactionReceipt")
		})
	}
}

func TestInteractiveReverted(t *testing.T) {
	wallet := &fakeWallet{txHash: common.HexToHash("0xdead"), status: types.ReceiptStatusFailed}
	s := newTestSubmitter(t, testConfig(), Environment{Wallet: wallet})

	_, err := s.Submit(context.Background(), studentAddr, metadataURI)
	assert.Equal(t, certerr.TransactionRejected, certerr.KindOf(err))
	assert.Equal(t, wallet.txHash.Hex(), certerr.TxHashOf(err))
}

type fakeBackend struct {
	mu          sync.Mutex
	nonce       uint64
	baseFee     *big.Int
	nonceErr    error
	estimateErr error
	sendErr     error
	notFound    int
	status      uint64
	sent        *types.Transaction
	closed      bool
}

func (b *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return b.nonce, b.nonceErr
}

func (b *fakeBackend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1_500_000_000), nil
}

func (b *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{BaseFee: b.baseFee}, nil
}

func (b *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 180_000, b.estimateErr
}

func (b *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sendErr != nil {
		return b.sendErr
	}
	b.sent = tx
	return nil
}

func (b *fakeBackend) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.notFound != 0 {
		if b.notFound > 0 {
			b.notFound--
		}
		return nil, ethereum.NotFound
	}
	return &types.Receipt{Status: b.status, BlockNumber: big.NewInt(7)}, nil
}

func (b *fakeBackend) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
}

func generateKey(t *testing.T) (*ecdsa.PrivateKey, string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key, hexutil.Encode(crypto.FromECDSA(key))
}

func dialTo(b *fakeBackend, dialed *int) Dialer {
	return func(context.Context, string) (Backend, error) {
		*dialed++
		return b, nil
	}
}

func TestServerKeySubmitSignsAndConfirms(t *testing.T) {
	key, hexKey := generateKey(t)
	backend := &fakeBackend{nonce: 9, baseFee: big.NewInt(2_000_000_000), notFound: 1, status: types.ReceiptStatusSuccessful}
	var dialed int
	s := newTestSubmitter(t, testConfig(), Environment{RPCURL: "http://node", PrivateKey: hexKey}).
		WithDialer(dialTo(backend, &dialed))

	txHash, err := s.Submit(context.Background(), studentAddr, metadataURI)
	require.NoError(t, err)
	require.NotNil(t, backend.sent)
	assert.Equal(t, 1, dialed)
	assert.True(t, backend.closed)

	tx := backend.sent
	assert.Equal(t, tx.Hash().Hex(), txHash)
	assert.Equal(t, uint64(9), tx.Nonce())
	assert.Equal(t, uint64(180_000), tx.Gas())
	assert.Equal(t, common.HexToAddress(contractAddr), *tx.To())
	assert.Equal(t, 0, tx.ChainId().Cmp(sepolia))
	assert.Zero(t, big.NewInt(5_500_000_000).Cmp(tx.GasFeeCap()))

	from, err := types.Sender(types.LatestSignerForChainID(sepolia), tx)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), from)

	method := s.abi.Methods[issueMethod]
	assert.Equal(t, method.ID, tx.Data()[:4])
	args, err := method.Inputs.Unpack(tx.Data()[4:])
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(studentAddr), args[0])
	assert.Equal(t, metadataURI, args[1])
}

func TestServerKeyFailures(t *testing.T) {
	_, hexKey := generateKey(t)
	tests := []struct {
		name    string
		env     Environment
		backend *fakeBackend
		kind    certerr.Kind
		dials   int
	}{
		{"missing key", Environment{RPCURL: "http://node"}, &fakeBackend{}, certerr.SigningKeyMissing, 0},
		{"malformed key", Environment{RPCURL: "http://node", PrivateKey: "0xnothex"}, &fakeBackend{}, certerr.SigningKeyMissing, 0},
		{"no endpoint", Environment{PrivateKey: hexKey}, &fakeBackend{}, certerr.ChainUnreachable, 0},
		{"nonce lookup", Environment{RPCURL: "http://node", PrivateKey: hexKey}, &fakeBackend{nonceErr: errors.New("eof")}, certerr.ChainUnreachable, 1},
		{"estimate reverts", Environment{RPCURL: "http://node", PrivateKey: hexKey}, &fakeBackend{estimateErr: errors.New("execution reverted: not owner")}, certerr.TransactionRejected, 1},
		{"send rejected", Environment{RPCURL: "http://node", PrivateKey: hexKey}, &fakeBackend{sendErr: errors.New("insufficient funds")}, certerr.TransactionRejected, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var dialed int
			s := newTestSubmitter(t, testConfig(), tt.env).WithDialer(dialTo(tt.backend, &dialed))
			_, err := s.Submit(context.Background(), studentAddr, metadataURI)
			require.Error(t, err)
			assert.Equal(t, tt.kind, certerr.KindOf(err))
			assert.Equal(t, tt.dials, dialed)
			assert.Nil(t, tt.backend.sent)
		})
	}
}

func TestServerKeyDialFailure(t *testing.T) {
	_, hexKey := generateKey(t)
	s := newTestSubmitter(t, testConfig(), Environment{RPCURL: "http://node", PrivateKey: hexKey}).
		WithDialer(func(context.Context, string) (Backend, error) { return nil, errors.New("connection refused") })

	_, err := s.Submit(context.Background(), studentAddr, metadataURI)
	assert.Equal(t, certerr.ChainUnreachable, certerr.KindOf(err))
}

func TestSubmitRejectsBadDestination(t *testing.T) {
	s := newTestSubmitter(t, testConfig(), Environment{Wallet: &fakeWallet{}})
	_, err := s.Submit(context.Background(), "0x1234", metadataURI)
	assert.Equal(t, certerr.InvalidRequest, certerr.KindOf(err))
}

func TestAwaitConfirmationTimeoutKeepsHash(t *testing.T) {
	cfg := testConfig()
	cfg.ConfirmationTimeout = 20 * time.Millisecond
	s := newTestSubmitter(t, cfg, Environment{})
	hash := common.HexToHash("0xfeed")

	_, err := s.AwaitConfirmation(context.Background(), &fakeBackend{notFound: -1}, hash)
	require.Error(t, err)
	assert.Equal(t, certerr.TransactionTimeout, certerr.KindOf(err))
	assert.Equal(t, hash.Hex(), certerr.TxHashOf(err))
}

func TestAwaitConfirmationReverted(t *testing.T) {
	s := newTestSubmitter(t, testConfig(), Environment{})
	hash := common.HexToHash("0xbad")

	_, err := s.AwaitConfirmation(context.Background(), &fakeBackend{status: types.ReceiptStatusFailed}, hash)
	assert.Equal(t, certerr.TransactionRejected, certerr.KindOf(err))
	assert.Equal(t, hash.Hex(), certerr.TxHashOf(err))
}

func TestCheckTransaction(t *testing.T) {
	hash := common.HexToHash("0x01").Hex()
	tests := []struct {
		backend *fakeBackend
		want    ReceiptStatus
	}{
		{&fakeBackend{notFound: -1}, StatusPending},
		{&fakeBackend{status: types.ReceiptStatusSuccessful}, StatusConfirmed},
		{&fakeBackend{status: types.ReceiptStatusFailed}, StatusReverted},
	}
	for _, tt := range tests {
		var dialed int
		s := newTestSubmitter(t, testConfig(), Environment{RPCURL: "http://node"}).WithDialer(dialTo(tt.backend, &dialed))
		got, err := s.CheckTransaction(context.Background(), hash)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
		assert.True(t, tt.backend.closed)
	}

	s := newTestSubmitter(t, testConfig(), Environment{RPCURL: "http://node"})
	_, err := s.CheckTransaction(context.Background(), "0xnope")
	assert.Equal(t, certerr.InvalidRequest, certerr.KindOf(err))
}

func TestContractHelpers(t *testing.T) {
	assert.True(t, IsAddress(studentAddr))
	assert.False(t, IsAddress("0x71C7656EC7ab88b098defB751B7401B5f6d8976"))
	assert.False(t, IsAddress("71C7656EC7ab88b098defB751B7401B5f6d8976FF"))
	assert.Equal(t, "https://sepolia.etherscan.io/tx/0xabc",
		ExplorerTxURL("https://sepolia.etherscan.io/tx/", "0xabc"))
}

func TestSignTxFailureIsRejected(t *testing.T) {
	key, _ := generateKey(t)
	tx := types.NewTx(&types.DynamicFeeTx{ChainID: big.NewInt(1), Gas: 21_000})

	_, err := signTx(tx, sepolia, key)
	require.Error(t, err)
	assert.Equal(t, certerr.TransactionRejected, certerr.KindOf(err))

	signed, err := signTx(types.NewTx(&types.DynamicFeeTx{ChainID: sepolia, Gas: 21_000}), sepolia, key)
	require.NoError(t, err)
	from, err := types.Sender(types.LatestSignerForChainID(sepolia), signed)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), from)
}
