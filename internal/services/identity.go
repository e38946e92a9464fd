package services

import (
	"github.com/huangang/promptlib/pkg/response"
)

// Identity is the authenticated caller, resolved once per request from a
// verified identity token and passed explicitly to every write operation.
type Identity struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
}

// requireIdentity rejects a missing or anonymous identity.
func requireIdentity(id *Identity) error {
	if id == nil || id.UID == "" {
		return response.NewUnauthorized("sign in required")
	}
	return nil
}
