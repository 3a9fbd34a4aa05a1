package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/openpmo/costcontrol/internal/model"
)

// Parser validates HS256 access tokens issued by the identity service and
// extracts the caller principal.
type Parser struct {
	secret []byte
}

func NewParser(secret string) *Parser {
	return &Parser{secret: []byte(secret)}
}

type accessClaims struct {
	UserID       string            `json:"user_id"`
	Roles        []string          `json:"roles"`
	ProjectRoles map[string]string `json:"project_roles"`
	jwt.RegisteredClaims
}

func (p *Parser) Parse(tokenString string) (model.Principal, error) {
	var claims accessClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return p.secret, nil
	})
	if err != nil {
		return model.Principal{}, err
	}
	if !token.Valid {
		return model.Principal{}, fmt.Errorf("invalid token")
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return model.Principal{}, fmt.Errorf("invalid user_id claim: %w", err)
	}

	projectRoles := make(map[uuid.UUID]string, len(claims.ProjectRoles))
	for rawID, role := range claims.ProjectRoles {
		projectID, err := uuid.Parse(rawID)
		if err != nil {
			return model.Principal{}, fmt.Errorf("invalid project id in project_roles: %w", err)
		}
		projectRoles[projectID] = role
	}

	return model.Principal{
		UserID:       userID,
		Roles:        claims.Roles,
		ProjectRoles: projectRoles,
	}, nil
}
