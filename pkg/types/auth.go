// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Identity is the resolved result of a successful login. Credential
// verification itself lives outside this module; the engine only consumes
// the identity it produces.
type Identity struct {
	// UID is the annotator identifier written into Record.Owner on claim.
	UID string `json:"uid" yaml:"uid"`

	// Name is the display name, if the authenticator provides one.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Role distinguishes administrators from annotators (e.g. "admin",
	// "annotator"). The core treats it as opaque.
	Role string `json:"role,omitempty" yaml:"role,omitempty"`
}

// Authenticator verifies credentials and resolves an Identity. Implemented
// by the hosting application, not by this module.
type Authenticator interface {
	Authenticate(user, pass string) (Identity, error)
}
