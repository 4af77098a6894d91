package auth

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// credentialSeparator joins name and password inside a token
const credentialSeparator = ":"

// IssueToken derives the bearer token for a credential pair.
// Format: base64(name + ":" + password)
// The same credentials always yield the same token.
func IssueToken(name, password string) string {
	return base64.StdEncoding.EncodeToString([]byte(name + credentialSeparator + password))
}

// DecodeToken recovers the credential pair from a token. The name ends at
// the first separator; the password may itself contain separators.
func DecodeToken(token string) (name string, password string, err error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", "", fmt.Errorf("invalid token encoding: %w", err)
	}

	name, password, ok := strings.Cut(string(raw), credentialSeparator)
	if !ok {
		return "", "", fmt.Errorf("token does not contain a credential pair")
	}

	return name, password, nil
}
