package feed

// Credentials is everything needed to open and authenticate one
// connection. The provider is consulted on every connect attempt so a
// rotated session token takes effect without a restart.
type Credentials struct {
	SessionToken string
	IsDemo       int // 0 = live, 1 = demo
	TournamentID int
	EndpointURL  string
	UserAgent    string
	Cookie       string
	Origin       string
}

// CredentialProvider supplies fresh credentials per connect attempt.
type CredentialProvider interface {
	Current() (Credentials, error)
}

// CredentialProviderFunc adapts a function to the interface.
type CredentialProviderFunc func() (Credentials, error)

func (f CredentialProviderFunc) Current() (Credentials, error) { return f() }

// authPayload is the body of the authorization event.
type authPayload struct {
	Session      string `json:"session"`
	IsDemo       int    `json:"isDemo"`
	TournamentID int    `json:"tournamentId"`
}
