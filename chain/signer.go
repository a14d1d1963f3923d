package chain

import (
	"context"
	"errors"
	"strings"

	"campuscert/certerr"
)

// WalletProvider is an interactive wallet reachable over JSON-RPC
// (EIP-1193 requests). *rpc.Client from go-ethereum satisfies it.
type WalletProvider interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

// Environment describes what the current process can sign with.
type Environment struct {
	// Wallet is nil when no interactive wallet is attached.
	Wallet     WalletProvider
	RPCURL     string
	PrivateKey string
}

// Signer is either Interactive or ServerKey.
type Signer interface {
	signerName() string
}

// Interactive signs through the user's wallet.
type Interactive struct {
	Provider WalletProvider
}

// ServerKey signs locally with a configured private key against Endpoint.
type ServerKey struct {
	Endpoint string
	Key      string
}

func (Interactive) signerName() string { return "interactive" }
func (ServerKey) signerName() string   { return "server_key" }

// SelectSigner resolves the signing path for one attempt. A wallet wins when
// present; otherwise a private key is required.
func SelectSigner(env Environment) (Signer, error) {
	if env.Wallet != nil {
		return Interactive{Provider: env.Wallet}, nil
	}
	if strings.TrimSpace(env.PrivateKey) == "" {
		return nil, certerr.New(certerr.SigningKeyMissing, "chain.SelectSigner",
			errors.New("no wallet provider and no private key configured"))
	}
	return ServerKey{Endpoint: env.RPCURL, Key: strings.TrimSpace(env.PrivateKey)}, nil
}
