// Package pos allocates fractional position keys. A key is a string over a
// 62 character alphabet whose plain bytewise order is the sequence order, so a
// new key can always be found between two existing ones without renumbering.
package pos

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// digit values: 1..62 map onto Alphabet, 0 and 63 are the open bounds
const (
	lowSentinel  = 0
	minDigit     = 1
	highSentinel = len(Alphabet) + 1
)

var (
	ErrInvalidDigit = errors.New("pos: invalid position character")
	ErrInvalidRange = errors.New("pos: left bound is not below right bound")
	ErrNoRoom       = errors.New("pos: no key fits between bounds")
)

var digitOf [256]int8

func init() {
	for i := range digitOf {
		digitOf[i] = -1
	}
	for i := 0; i < len(Alphabet); i++ {
		digitOf[Alphabet[i]] = int8(i + minDigit)
	}
}

func decode(p string) ([]int, error) {
	digits := make([]int, len(p))
	for i := 0; i < len(p); i++ {
		d := digitOf[p[i]]
		if d < 0 {
			return nil, fmt.Errorf("%w: %q at offset %d of %q", ErrInvalidDigit, p[i], i, p)
		}
		digits[i] = int(d)
	}
	return digits, nil
}

func encode(digits []int) string {
	var sb strings.Builder
	sb.Grow(len(digits))
	for _, d := range digits {
		sb.WriteByte(Alphabet[d-minDigit])
	}
	return sb.String()
}

// Validate reports whether p decodes over the alphabet.
func Validate(p string) error {
	_, err := decode(p)
	return err
}

// Compare is the total order over keys. It is a plain bytewise comparison and
// must stay identical on every replica.
func Compare(a, b string) int {
	return strings.Compare(a, b)
}

// Between returns a key strictly between left and right. An empty left means
// no lower bound, an empty right means no upper bound. Keys produced here
// never end in the lowest digit, so there is always room below them. Every
// extension of the result is still strictly between the bounds.
func Between(left, right string) (string, error) {
	lo, err := decode(left)
	if err != nil {
		return "", err
	}
	hi, err := decode(right)
	if err != nil {
		return "", err
	}
	if left != "" && right != "" && Compare(left, right) >= 0 {
		return "", fmt.Errorf("%w: %q >= %q", ErrInvalidRange, left, right)
	}

	out := make([]int, 0, max(len(lo), len(hi))+1)
	bounded := right != ""
	for depth := 0; ; depth++ {
		l := lowSentinel
		if depth < len(lo) {
			l = lo[depth]
		}
		h := highSentinel
		if bounded {
			if depth >= len(hi) {
				// the prefix already equals right
				return "", fmt.Errorf("%w: %q and %q", ErrNoRoom, left, right)
			}
			h = hi[depth]
		}

		if h-l > 1 {
			mid := (l + h + 1) / 2
			if mid > minDigit {
				out = append(out, mid)
				return encode(out), nil
			}
			// only 0 < 1 < 2 remains here, keep the key from ending in the
			// lowest digit and go one level deeper
			out = append(out, minDigit)
			bounded = false
			continue
		}

		if l == lowSentinel {
			// left is exhausted and right's digit is the lowest one, right
			// has to continue below this depth
			out = append(out, minDigit)
			continue
		}
		out = append(out, l)
		if h > l {
			bounded = false
		}
	}
}

// TagLen is the length of the suffix Tag returns.
const TagLen = 6

// Tag derives a fixed length suffix from a replica id. Between is
// deterministic, so two replicas filling the same gap get the same key;
// appending their tags keeps those keys apart while staying inside the gap.
// Tag digits skip the lowest one, so a tagged key never ends in it.
func Tag(actorID string) string {
	const base = uint64(len(Alphabet) - 1)
	h := xxhash.Sum64String(actorID)
	var b [TagLen]byte
	for i := range b {
		b[i] = Alphabet[1+h%base]
		h /= base
	}
	return string(b[:])
}
