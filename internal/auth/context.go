// Package auth carries the caller's credentials through request contexts.
package auth

import (
	"context"
	"strings"
)

type tokenKey struct{}

// WithToken returns a copy of ctx carrying the caller's token_auth.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, strings.TrimSpace(token))
}

// TokenFromContext returns the token stored by WithToken. An empty token means anonymous.
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// TokenFromRequest extracts a token from the token_auth parameter or a Bearer header.
func TokenFromRequest(queryToken, authorization string) string {
	if t := strings.TrimSpace(queryToken); t != "" {
		return t
	}
	const prefix = "Bearer "
	if len(authorization) > len(prefix) && strings.EqualFold(authorization[:len(prefix)], prefix) {
		return strings.TrimSpace(authorization[len(prefix):])
	}
	return ""
}
