package chat

import (
	"fmt"
	"strings"
)

// CredentialStore maps a participant name to its secret. It is consulted
// only at authentication time; sessions never hold credentials.
type CredentialStore interface {
	// Lookup returns the secret stored for name, and whether name exists.
	Lookup(name string) (secret string, ok bool)
}

// StaticCredentials is an in-memory CredentialStore.
type StaticCredentials map[string]string

// Lookup implements CredentialStore.
func (c StaticCredentials) Lookup(name string) (string, bool) {
	secret, ok := c[name]
	return secret, ok
}

// ParseCredentials parses a comma-separated list of user:pass pairs,
// e.g. "alice:hunter2,rabbit:carrot".
func ParseCredentials(s string) (StaticCredentials, error) {
	creds := make(StaticCredentials)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		user, pass, ok := strings.Cut(pair, ":")
		if !ok || user == "" {
			return nil, fmt.Errorf("invalid credential pair %q, want user:pass", pair)
		}
		creds[user] = pass
	}
	return creds, nil
}
