package service

import (
	"crypto/rand"
	"fmt"
	"io"
	"time"
)

// Base32 alphabet without 0/O and 1/I so numbers read cleanly over the phone.
const orderNumberAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const orderNumberSuffixLen = 6

// orderNumbers generates human-readable order numbers of the form
// PREFIX-YYMMDD-XXXXXX.
type orderNumbers struct {
	prefix string
	now    func() time.Time
	rand   io.Reader
}

func newOrderNumbers(prefix string) *orderNumbers {
	if prefix == "" {
		prefix = "QM"
	}
	return &orderNumbers{
		prefix: prefix,
		now:    time.Now,
		rand:   rand.Reader,
	}
}

func (g *orderNumbers) Next() (string, error) {
	buf := make([]byte, orderNumberSuffixLen)
	if _, err := io.ReadFull(g.rand, buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}

	// 256 is a multiple of 32, so the modulo is unbiased.
	for i, b := range buf {
		buf[i] = orderNumberAlphabet[int(b)%len(orderNumberAlphabet)]
	}

	return fmt.Sprintf("%s-%s-%s", g.prefix, g.now().UTC().Format("060102"), buf), nil
}
