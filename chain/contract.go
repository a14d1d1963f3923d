package chain

import (
	"regexp"
	"strings"
)

// certificateNFTABI is the client-side view of the deployed certificate contract.
const certificateNFTABI = `[
	{"type":"function","name":"issueCertificate","stateMutability":"nonpayable",
	 "inputs":[{"name":"student","type":"address"},{"name":"metadataURI","type":"string"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"owner","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"getStudentCertificates","stateMutability":"view",
	 "inputs":[{"name":"student","type":"address"}],"outputs":[{"name":"","type":"uint256[]"}]},
	{"type":"function","name":"hasStudentCertificate","stateMutability":"view",
	 "inputs":[{"name":"student","type":"address"},{"name":"tokenId","type":"uint256"}],
	 "outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"tokenURI","stateMutability":"view",
	 "inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"string"}]}
]`

const issueMethod = "issueCertificate"

var (
	addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	txHashPattern  = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)
)

// IsAddress reports whether s is "0x" followed by 40 hex characters.
func IsAddress(s string) bool {
	return addressPattern.MatchString(s)
}

// IsTxHash reports whether s is "0x" followed by 64 hex characters.
func IsTxHash(s string) bool {
	return txHashPattern.MatchString(s)
}

// ExplorerTxURL builds the block-explorer link for a transaction.
func ExplorerTxURL(base, txHash string) string {
	return strings.TrimRight(base, "/") + "/" + txHash
}
