package common

const (
	// AuthorizationHeaderName carries the access token as "Bearer <token>".
	AuthorizationHeaderName = "Authorization"

	// BearerPrefix precedes the access token in the Authorization header.
	BearerPrefix = "Bearer "
)
