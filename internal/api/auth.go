// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const userIDKey = "uid"

// TokenVerifier turns a bearer token into the uid of the caller.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// JWTVerifier validates signed ID tokens. The uid is the `sub` claim.
type JWTVerifier struct {
	keyfunc  jwt.Keyfunc
	audience string
	options  []jwt.ParserOption
}

// NewFirebaseVerifier verifies Firebase ID tokens against the securetoken
// key set. The issuer is issuerPrefix followed by the project id and the
// audience is the project id.
func NewFirebaseVerifier(ctx context.Context, jwksURL, issuerPrefix, project string) (*JWTVerifier, error) {
	jwks, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS keyfunc: %w", err)
	}
	return &JWTVerifier{
		keyfunc:  jwks.Keyfunc,
		audience: project,
		options: []jwt.ParserOption{
			jwt.WithValidMethods([]string{"RS256"}),
			jwt.WithIssuer(issuerPrefix + project),
			jwt.WithExpirationRequired(),
		},
	}, nil
}

// NewHMACVerifier accepts HS256 tokens signed with secret. Only meant for
// local runs and tests.
func NewHMACVerifier(secret string) *JWTVerifier {
	key := []byte(secret)
	return &JWTVerifier{
		keyfunc: func(*jwt.Token) (any, error) { return key, nil },
		options: []jwt.ParserOption{
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		},
	}
}

func (v *JWTVerifier) Verify(_ context.Context, raw string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, v.keyfunc, v.options...)
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}
	if v.audience != "" {
		aud, err := claims.GetAudience()
		if err != nil {
			return "", fmt.Errorf("failed to get audience: %w", err)
		}
		if !contains(aud, v.audience) {
			return "", errors.New("invalid audience")
		}
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

func contains(values []string, item string) bool {
	for _, v := range values {
		if v == item {
			return true
		}
	}
	return false
}

// Authenticate rejects requests without a valid bearer token and stores the
// caller's uid on the gin context.
func Authenticate(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		uid, err := verifier.Verify(c.Request.Context(), strings.TrimSpace(raw))
		if err != nil {
			slog.DebugContext(c.Request.Context(), "token rejected", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Set(userIDKey, uid)
		c.Next()
	}
}

// CallerID returns the uid stored by Authenticate.
func CallerID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
