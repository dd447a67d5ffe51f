package auth

import (
	"encoding/base64"
	"net/http"
)

// Apply injects a Basic Authorization header built from the credential.
// Empty credentials leave the header untouched.
func (c Credential) Apply(hdr http.Header) {
	if c.IsEmpty() {
		return
	}
	token := base64.StdEncoding.EncodeToString([]byte(c.Username + ":" + c.Password))
	hdr.Set("Authorization", "Basic "+token)
}
