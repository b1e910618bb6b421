package codes

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// defaultAlphabet omits visually ambiguous characters (0/O, 1/I/l, 5/S,
// 8/B) so codes survive being read aloud or retyped from print.
const defaultAlphabet = "ACDEFGHJKLMNPQRTUVWXYZ234679"

const defaultRandomLength = 8

type GenerateOptions struct {
	Prefix       string
	Suffix       string
	RandomLength int
	ExcludeChars string
}

func buildAlphabet(opts GenerateOptions) (string, error) {
	alphabet := defaultAlphabet
	if opts.ExcludeChars != "" {
		var b strings.Builder
		for _, c := range alphabet {
			if !strings.ContainsRune(opts.ExcludeChars, c) {
				b.WriteRune(c)
			}
		}
		alphabet = b.String()
	}
	if len(alphabet) < 8 {
		return "", errors.New("code alphabet too small after exclusions")
	}
	return alphabet, nil
}

// GenerateCode returns one code in PREFIX-RANDOM-SUFFIX form.
func GenerateCode(opts GenerateOptions) (string, error) {
	alphabet, err := buildAlphabet(opts)
	if err != nil {
		return "", err
	}

	length := opts.RandomLength
	if length == 0 {
		length = defaultRandomLength
	}
	if length < 4 || length > 32 {
		return "", errors.New("random length must be between 4 and 32")
	}

	b := make([]byte, length)
	max := big.NewInt(int64(len(alphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = alphabet[n.Int64()]
	}

	code := string(b)
	if opts.Prefix != "" {
		code = opts.Prefix + "-" + code
	}
	if opts.Suffix != "" {
		code = code + "-" + opts.Suffix
	}
	return code, nil
}

// GenerateDistinct produces count distinct codes. Collisions are retried;
// with an 8-character draw from a 28-character alphabet they are rare
// enough that hitting the retry cap indicates a misconfigured length.
func GenerateDistinct(count int, opts GenerateOptions) ([]string, error) {
	if count <= 0 {
		return nil, errors.New("count must be positive")
	}

	seen := make(map[string]bool, count)
	out := make([]string, 0, count)
	maxAttempts := count * 10

	for attempts := 0; len(out) < count; attempts++ {
		if attempts >= maxAttempts {
			return nil, fmt.Errorf("could not generate %d distinct codes", count)
		}
		code, err := GenerateCode(opts)
		if err != nil {
			return nil, err
		}
		if seen[code] {
			continue
		}
		seen[code] = true
		out = append(out, code)
	}
	return out, nil
}
