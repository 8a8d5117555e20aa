// Package attestation implements the check-in attestation protocol: the
// ticket holder's wallet signs a short text message embedding the ticket id
// and a timestamp (usually presented as a QR code), and the organizer
// submits message + signature to the ledger, which recovers the signer and
// compares it against the ticket's current owner.
package attestation

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// messageFormat must stay byte-compatible with the message the holder's
// wallet signs; check-in clients build it independently.
const messageFormat = "Check-in ticketId: %d at %d"

const signatureLength = 65

var (
	ErrMalformedMessage   = errors.New("attestation: message does not match the check-in format")
	ErrMalformedSignature = errors.New("attestation: signature must be 65 bytes")
	ErrRecoveryFailed     = errors.New("attestation: could not recover signer")
)

// Message builds the canonical check-in message for a ticket at a given
// unix timestamp.
func Message(ticketID, timestamp int64) string {
	return fmt.Sprintf(messageFormat, ticketID, timestamp)
}

// ParseMessage extracts the ticket id and timestamp from a check-in
// message. Parsing is strict: anything that does not re-serialize to the
// identical string is rejected, so a message can never be ambiguous about
// what it attests.
func ParseMessage(message string) (ticketID, timestamp int64, err error) {
	n, err := fmt.Sscanf(message, messageFormat, &ticketID, &timestamp)
	if err != nil || n != 2 {
		return 0, 0, ErrMalformedMessage
	}
	if Message(ticketID, timestamp) != message {
		return 0, 0, ErrMalformedMessage
	}
	return ticketID, timestamp, nil
}

// RecoverSigner returns the address that produced an EIP-191 personal
// signature over message. Both wallet-style recovery ids (27/28) and raw
// ones (0/1) are accepted.
func RecoverSigner(message string, signature []byte) (common.Address, error) {
	if len(signature) != signatureLength {
		return common.Address{}, ErrMalformedSignature
	}

	sig := make([]byte, signatureLength)
	copy(sig, signature)
	if sig[signatureLength-1] >= 27 {
		sig[signatureLength-1] -= 27
	}

	pub, err := crypto.SigToPub(textHash(message), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrRecoveryFailed, err)
	}

	return crypto.PubkeyToAddress(*pub), nil
}

// Sign produces a wallet-compatible personal signature over message. Used
// by check-in clients that generate QR payloads, and by tests.
func Sign(message string, key *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := crypto.Sign(textHash(message), key)
	if err != nil {
		return nil, fmt.Errorf("could not sign attestation: %w", err)
	}
	sig[signatureLength-1] += 27
	return sig, nil
}

// textHash applies the EIP-191 "personal message" envelope before hashing,
// the same transformation wallets apply in personal_sign.
func textHash(message string) []byte {
	return crypto.Keccak256([]byte(fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)))
}
