package discovery

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

// maxSessionStringBytes is the wire-size cap a session string must fit
// under.
const maxSessionStringBytes = 48

// sessionStringPattern matches the adj-noun-noun shape with an optional
// trailing numeric suffix, lowercase ASCII words joined by single
// hyphens, e.g. "quiet-river-otter" or "quiet-river-otter-42".
var sessionStringPattern = regexp.MustCompile(`^[a-z]+(-[a-z]+){2}(-[0-9]{1,4})?$`)

// ValidSessionString reports whether s is a well-formed session
// string: adj-noun-noun (plus optional numeric suffix), lowercase,
// hyphen-joined, and within the wire-size cap.
func ValidSessionString(s string) bool {
	if len(s) == 0 || len(s) > maxSessionStringBytes {
		return false
	}
	return sessionStringPattern.MatchString(s)
}

var adjectives = []string{
	"quiet", "amber", "lucid", "brisk", "gentle", "cosmic", "mellow", "vivid",
	"stark", "placid", "nimble", "sable", "dusky", "hollow", "ember", "frosty",
}

var nouns = []string{
	"river", "falcon", "cedar", "harbor", "meadow", "otter", "canyon", "comet",
	"beacon", "thicket", "ridge", "lantern", "glacier", "marsh", "willow", "summit",
}

// GenerateSessionString produces a random adj-noun-noun string for
// ACDS to offer when a client doesn't request a specific one.
func GenerateSessionString() (string, error) {
	adj, err := pickWord(adjectives)
	if err != nil {
		return "", err
	}
	n1, err := pickWord(nouns)
	if err != nil {
		return "", err
	}
	n2, err := pickWord(nouns)
	if err != nil {
		return "", err
	}
	return strings.Join([]string{adj, n1, n2}, "-"), nil
}

func pickWord(words []string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(words))))
	if err != nil {
		return "", fmt.Errorf("discovery: generating session string: %w", err)
	}
	return words[n.Int64()], nil
}
