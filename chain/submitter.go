package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"campuscert/certerr"
	"campuscert/metrics"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ReceiptReader looks up mined transaction receipts.
type ReceiptReader interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Backend is the subset of *ethclient.Client the server-key path needs.
type Backend interface {
	ReceiptReader
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	Close()
}

// Dialer opens a Backend for an RPC endpoint.
type Dialer func(ctx context.Context, endpoint string) (Backend, error)

func dialEthclient(ctx context.Context, endpoint string) (Backend, error) {
	client, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Config holds the contract and confirmation settings.
type Config struct {
	ContractAddress     common.Address
	ChainID             *big.Int
	ConfirmationTimeout time.Duration
	PollInterval        time.Duration
}

// Submitter sends issueCertificate transactions and waits for them to be mined.
// It keeps no per-attempt state and is safe for concurrent use.
type Submitter struct {
	cfg  Config
	env  Environment
	abi  abi.ABI
	dial Dialer
}

func NewSubmitter(cfg Config, env Environment) (*Submitter, error) {
	parsed, err := abi.JSON(strings.NewReader(certificateNFTABI))
	if err != nil {
		return nil, fmt.Errorf("parse contract abi: %w", err)
	}
	if cfg.ChainID == nil || cfg.ChainID.Sign() <= 0 {
		return nil, errors.New("chain id is required")
	}
	if cfg.ConfirmationTimeout <= 0 {
		cfg.ConfirmationTimeout = 5 * time.Minute
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 4 * time.Second
	}
	return &Submitter{cfg: cfg, env: env, abi: parsed, dial: dialEthclient}, nil
}

// WithDialer replaces how RPC backends are opened.
func (s *Submitter) WithDialer(d Dialer) *Submitter {
	cp := *s
	cp.dial = d
	return &cp
}

// Submit issues a certificate for student pointing at metadataURI and blocks
// until the transaction is confirmed. It returns the transaction hash.
func (s *Submitter) Submit(ctx context.Context, student, metadataURI string) (string, error) {
	if !IsAddress(student) {
		return "", certerr.Newf(certerr.InvalidRequest, "chain.Submit", "invalid destination address %q", student)
	}
	data, err := s.abi.Pack(issueMethod, common.HexToAddress(student), metadataURI)
	if err != nil {
		return "", certerr.New(certerr.InvalidRequest, "chain.Submit", err)
	}

	signer, err := SelectSigner(s.env)
	if err != nil {
		return "", err
	}
	metrics.SignerSelections.WithLabelValues(signer.signerName()).Inc()
	slog.Info("Submitting certificate transaction",
		"signer", signer.signerName(),
		"student", student,
		"metadata_uri", metadataURI,
	)

	switch sg := signer.(type) {
	case Interactive:
		hash, err := s.submitInteractive(ctx, sg, data)
		if err != nil {
			return "", err
		}
		return s.AwaitConfirmation(ctx, providerReceipts{p: sg.Provider}, hash)
	case ServerKey:
		backend, hash, err := s.submitServerKey(ctx, sg, data)
		if backend != nil {
			defer backend.Close()
		}
		if err != nil {
			return "", err
		}
		return s.AwaitConfirmation(ctx, backend, hash)
	default:
		return "", certerr.Newf(certerr.SigningKeyMissing, "chain.Submit", "unsupported signer %T", signer)
	}
}

func (s *Submitter) submitInteractive(ctx context.Context, sg Interactive, data []byte) (common.Hash, error) {
	const op = "chain.Interactive"
	p := sg.Provider

	chainHex := hexutil.EncodeBig(s.cfg.ChainID)
	if err := p.CallContext(ctx, nil, "wallet_switchEthereumChain", map[string]string{"chainId": chainHex}); err != nil {
		return common.Hash{}, certerr.New(certerr.WalletUnavailable, op, fmt.Errorf("switch to chain %s: %w", chainHex, err))
	}

	var accounts []common.Address
	if err := p.CallContext(ctx, &accounts, "eth_requestAccounts"); err != nil {
		return common.Hash{}, certerr.New(certerr.WalletUnavailable, op, fmt.Errorf("request accounts: %w", err))
	}
	if len(accounts) == 0 {
		return common.Hash{}, certerr.Newf(certerr.WalletUnavailable, op, "wallet exposed no accounts")
	}

	tx := map[string]interface{}{
		"from": accounts[0],
		"to":   s.cfg.ContractAddress,
		"data": hexutil.Bytes(data),
	}
	var hash common.Hash
	if err := p.CallContext(ctx, &hash, "eth_sendTransaction", tx); err != nil {
		return common.Hash{}, certerr.New(certerr.TransactionRejected, op, err)
	}
	return hash, nil
}

// submitServerKey returns the opened backend even on failure so the caller can close it.
func (s *Submitter) submitServerKey(ctx context.Context, sg ServerKey, data []byte) (Backend, common.Hash, error) {
	const op = "chain.ServerKey"

	key, err := crypto.HexToECDSA(strings.TrimPrefix(sg.Key, "0x"))
	if err != nil {
		return nil, common.Hash{}, certerr.New(certerr.SigningKeyMissing, op, errors.New("configured private key is not a valid secp256k1 key"))
	}
	if sg.Endpoint == "" {
		return nil, common.Hash{}, certerr.Newf(certerr.ChainUnreachable, op, "rpc endpoint not configured")
	}
	backend, err := s.dial(ctx, sg.Endpoint)
	if err != nil {
		return nil, common.Hash{}, certerr.New(certerr.ChainUnreachable, op, err)
	}

	from := crypto.PubkeyToAddress(key.PublicKey)
	to := s.cfg.ContractAddress

	nonce, err := backend.PendingNonceAt(ctx, from)
	if err != nil {
		return backend, common.Hash{}, certerr.New(certerr.ChainUnreachable, op, fmt.Errorf("pending nonce: %w", err))
	}
	tip, err := backend.SuggestGasTipCap(ctx)
	if err != nil {
		return backend, common.Hash{}, certerr.New(certerr.ChainUnreachable, op, fmt.Errorf("gas tip: %w", err))
	}
	head, err := backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return backend, common.Hash{}, certerr.New(certerr.ChainUnreachable, op, fmt.Errorf("latest header: %w", err))
	}
	feeCap := new(big.Int).Set(tip)
	if head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}

	gas, err := backend.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Data: data})
	if err != nil {
		return backend, common.Hash{}, certerr.New(certerr.TransactionRejected, op, fmt.Errorf("estimate gas: %w", err))
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   s.cfg.ChainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Data:      data,
	})
	signed, err := signTx(tx, s.cfg.ChainID, key)
	if err != nil {
		return backend, common.Hash{}, err
	}
	if err := backend.SendTransaction(ctx, signed); err != nil {
		return backend, common.Hash{}, certerr.New(certerr.TransactionRejected, op, err)
	}
	return backend, signed.Hash(), nil
}

// AwaitConfirmation polls for the receipt of hash. Abandoning the wait does
// not cancel the transaction: the returned error carries the hash for reconciliation.
func (s *Submitter) AwaitConfirmation(ctx context.Context, r ReceiptReader, hash common.Hash) (string, error) {
	const op = "chain.AwaitConfirmation"
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ConfirmationTimeout)
	defer cancel()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	start := time.Now()
	for {
		receipt, err := r.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			if receipt.Status == types.ReceiptStatusFailed {
				return "", &certerr.Error{Kind: certerr.TransactionRejected, Op: op, TxHash: hash.Hex(), Err: errors.New("transaction reverted")}
			}
			metrics.ConfirmationDuration.Observe(time.Since(start).Seconds())
			slog.Info("Certificate transaction confirmed",
				"tx_hash", hash.Hex(),
				"block", receipt.BlockNumber,
			)
			return hash.Hex(), nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			slog.Debug("Receipt lookup failed", "tx_hash", hash.Hex(), "error", err)
		}

		select {
		case <-ctx.Done():
			return "", &certerr.Error{Kind: certerr.TransactionTimeout, Op: op, TxHash: hash.Hex(), Err: ctx.Err()}
		case <-ticker.C:
		}
	}
}

// ReceiptStatus is the state of a previously submitted transaction.
type ReceiptStatus string

const (
	StatusPending   ReceiptStatus = "PENDING"
	StatusConfirmed ReceiptStatus = "CONFIRMED"
	StatusReverted  ReceiptStatus = "REVERTED"
)

// CheckTransaction looks up txHash once through the server RPC endpoint.
func (s *Submitter) CheckTransaction(ctx context.Context, txHash string) (ReceiptStatus, error) {
	const op = "chain.CheckTransaction"
	if !IsTxHash(txHash) {
		return "", certerr.Newf(certerr.InvalidRequest, op, "invalid transaction hash %q", txHash)
	}
	if s.env.RPCURL == "" {
		return "", certerr.Newf(certerr.ChainUnreachable, op, "rpc endpoint not configured")
	}
	backend, err := s.dial(ctx, s.env.RPCURL)
	if err != nil {
		return "", certerr.New(certerr.ChainUnreachable, op, err)
	}
	defer backend.Close()

	receipt, err := backend.TransactionReceipt(ctx, common.HexToHash(txHash))
	switch {
	case errors.Is(err, ethereum.NotFound):
		return StatusPending, nil
	case err != nil:
		return "", certerr.New(certerr.ChainUnreachable, op, err)
	case receipt.Status == types.ReceiptStatusFailed:
		return StatusReverted, nil
	default:
		return StatusConfirmed, nil
	}
}

// signTx signs for chainID. The key has already parsed, so a failure here is
// a transaction the network would not accept.
func signTx(tx *types.Transaction, chainID *big.Int, key *ecdsa.PrivateKey) (*types.Transaction, error) {
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), key)
	if err != nil {
		return nil, certerr.New(certerr.TransactionRejected, "chain.Submit", err)
	}
	return signed, nil
}

// providerReceipts reads receipts through the wallet's JSON-RPC channel.
type providerReceipts struct {
	p WalletProvider
}

func (pr providerReceipts) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	var r *types.Receipt
	if err := pr.p.CallContext(ctx, &r, "eth_getTransactionReceipt", hash); err != nil {
		return nil, err
	}
	if r == nil {
		return nil, ethereum.NotFound
	}
	return r, nil
}
