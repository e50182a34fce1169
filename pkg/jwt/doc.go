// Package jwt signs and validates RS256 access tokens.
//
// Tokens carry the user ID, email, username and role alongside the
// registered claims. Refresh tokens are opaque and live in the token
// service, not here.
//
//	svc, err := jwt.NewService(jwt.Config{
//	    PrivateKeyPath: "keys/private.pem",
//	    Issuer:         "exitlane.forgo.software",
//	    ExpirationMins: 15,
//	})
//	token, err := svc.Sign(jwt.Claims{UserID: user.ID, Role: "user"})
//	claims, err := svc.Validate(token)
package jwt
