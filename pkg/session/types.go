package session

// TokenType identifies which credential a token was selected from.
type TokenType string

const (
	// TokenTypeID is an identity-assertion credential, accepted
	// interchangeably with access tokens for authorization.
	TokenTypeID TokenType = "id_token"
	// TokenTypeAccess is a short-lived credential authorizing API calls.
	TokenTypeAccess TokenType = "access_token"
)

// Bundle is the credential set issued by the identity provider.
// Empty fields mean the credential is absent.
type Bundle struct {
	AccessToken  string `json:"access_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Empty reports whether the bundle holds no credentials at all.
func (b Bundle) Empty() bool {
	return b.AccessToken == "" && b.IDToken == "" && b.RefreshToken == ""
}

// Recoverable reports whether the bundle can be exchanged for fresh
// credentials even when the access and ID tokens are expired or absent.
func (b Bundle) Recoverable() bool {
	return b.RefreshToken != ""
}

// Token is a credential selected by the Manager as valid for use
// in an Authorization header.
type Token struct {
	Value string
	Type  TokenType
}
