package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/ds124wfegd/roombooker/internal/entity"
)

var pinRange = big.NewInt(900000)

// newAccessToken mints a token for the method: six digits for PIN, 32 hex
// characters for QR and NFC.
func newAccessToken(method entity.AccessMethod) (string, error) {
	switch method {
	case entity.AccessMethodPIN:
		n, err := rand.Int(rand.Reader, pinRange)
		if err != nil {
			return "", fmt.Errorf("failed to generate pin: %w", err)
		}
		return fmt.Sprintf("%06d", n.Int64()+100000), nil
	case entity.AccessMethodQR, entity.AccessMethodNFC:
		b := make([]byte, 16)
		if _, err := rand.Read(b); err != nil {
			return "", fmt.Errorf("failed to generate token: %w", err)
		}
		return hex.EncodeToString(b), nil
	}
	return "", fmt.Errorf("%w: unknown access method %q", entity.ErrInvalidInput, method)
}
