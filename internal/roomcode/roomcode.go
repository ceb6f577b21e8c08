// Package roomcode generates the 6-character codes users type to join a
// household. Codes are drawn uniformly from A-Z0-9, giving ~5.2e9 possible
// values, so collisions are rare but not impossible: the registry's unique
// index on the code column is the enforcement mechanism, and the allocator's
// registry pre-check only keeps the common-case retry count at zero.
package roomcode

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/sethvargo/go-retry"
)

// ErrSpaceExhausted means every candidate in the attempt budget was taken.
var ErrSpaceExhausted = errors.New("no unused room code found")

const (
	alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// Length of every room code.
	Length = 6

	maxAttempts = 5
)

// Registry is the read side of the household registry the allocator checks
// candidates against.
type Registry interface {
	CodeExists(code string) (bool, error)
}

// Generate returns a random code of Length characters from the alphabet.
func Generate() (string, error) {
	buf := make([]byte, Length)
	max := big.NewInt(int64(len(alphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate room code: %w", err)
		}
		buf[i] = alphabet[n.Int64()]
	}
	return string(buf), nil
}

type Allocator struct {
	registry Registry
}

func NewAllocator(registry Registry) *Allocator {
	return &Allocator{registry: registry}
}

// Allocate returns a code that was unused at check time. A candidate that is
// already taken is regenerated, capped at a handful of attempts. The caller
// must still treat a unique-index violation at persist time as a collision
// and re-allocate.
func (a *Allocator) Allocate(ctx context.Context) (string, error) {
	var code string
	b := retry.WithMaxRetries(maxAttempts, retry.NewConstant(time.Millisecond))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		c, err := Generate()
		if err != nil {
			return err
		}
		exists, err := a.registry.CodeExists(c)
		if err != nil {
			return err
		}
		if exists {
			return retry.RetryableError(ErrSpaceExhausted)
		}
		code = c
		return nil
	})
	if errors.Is(err, ErrSpaceExhausted) {
		return "", ErrSpaceExhausted
	}
	if err != nil {
		return "", fmt.Errorf("allocate room code: %w", err)
	}
	return code, nil
}
