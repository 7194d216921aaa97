package orders

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

const (
	orderNumberPrefix   = "BX-"
	orderNumberAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	orderNumberLength   = 8
	maxNumberAttempts   = 5
	accessTokenBytes    = 32
)

// newAccessToken returns a random bearer token and its bcrypt hash.
func newAccessToken(cost int) (plain, hash string, err error) {
	buf := make([]byte, accessTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	plain = hex.EncodeToString(buf)

	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", "", err
	}
	return plain, string(hashed), nil
}

// tokenMatches compares in constant time.
func tokenMatches(hash, plain string) bool {
	if hash == "" || plain == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// newOrderNumber returns a payment reference like BX-7KQ2M9XA. The alphabet
// leaves out characters that are easy to misread (0/O, 1/I).
func newOrderNumber() (string, error) {
	out := make([]byte, orderNumberLength)
	limit := big.NewInt(int64(len(orderNumberAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		out[i] = orderNumberAlphabet[n.Int64()]
	}
	return orderNumberPrefix + string(out), nil
}
