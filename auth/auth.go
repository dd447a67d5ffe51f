package auth

import (
	"context"
	"sort"
	"strings"
)

// Credential is a username/password pair for one remote.
type Credential struct {
	Username string
	Password string
}

func (c Credential) IsEmpty() bool {
	return len(c.Username) == 0 && len(c.Password) == 0
}

// CredentialQueryFunc resolves the credential for a logical path. Lookup
// happens on the ORIGINAL scheme-specific form (webdav://, storagebox://),
// not on the translated http url, so credential scoping follows the address
// the user actually configured.
type CredentialQueryFunc func(ctx context.Context, link string) (Credential, bool, error)

// MapCredentialMatch builds a query func from a prefix->credential table.
// The longest matching prefix wins.
func MapCredentialMatch(ud map[string]Credential) CredentialQueryFunc {
	prefixes := make([]string, 0, len(ud))
	for k := range ud {
		prefixes = append(prefixes, k)
	}
	sort.Slice(prefixes, func(i, j int) bool {
		return len(prefixes[i]) > len(prefixes[j])
	})
	return func(ctx context.Context, link string) (Credential, bool, error) {
		for _, p := range prefixes {
			if strings.HasPrefix(link, p) {
				return ud[p], true, nil
			}
		}
		return Credential{}, false, nil
	}
}

// NoCredential always answers "none", for anonymous servers.
func NoCredential() CredentialQueryFunc {
	return func(ctx context.Context, link string) (Credential, bool, error) {
		return Credential{}, false, nil
	}
}
