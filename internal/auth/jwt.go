package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"makerhub/b2b/internal/models"
	"makerhub/b2b/internal/utils"
)

// Claims defines the structure of the JWT claims. Role and CompanyID are
// embedded so the API can build a principal without a user lookup.
type Claims struct {
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	CompanyID string `json:"company_id,omitempty"`
	jwt.RegisteredClaims
}

// GenerateJWT creates a new JWT for a given user.
func GenerateJWT(userID utils.ShortID, role models.Role, companyID *utils.ShortID, secretKey string, ttl time.Duration) (string, error) {
	expirationTime := time.Now().Add(ttl)
	claims := &Claims{
		UserID: userID.String(),
		Role:   string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   userID.String(),
		},
	}
	if companyID != nil && !companyID.IsZero() {
		claims.CompanyID = companyID.String()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}

	return tokenString, nil
}

// ValidateJWT verifies a JWT string and returns the claims if valid.
func ValidateJWT(tokenString string, secretKey string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secretKey), nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to parse JWT: %w", err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid JWT")
	}

	return claims, nil
}

// Principal converts validated claims into a request principal.
func (c *Claims) Principal() (models.Principal, error) {
	userID, err := utils.ParseShortID(c.UserID)
	if err != nil {
		return models.Principal{}, fmt.Errorf("bad user_id claim: %w", err)
	}
	role := models.Role(c.Role)
	if !role.Valid() {
		return models.Principal{}, fmt.Errorf("bad role claim %q", c.Role)
	}
	p := models.Principal{UserID: userID, Role: role}
	if c.CompanyID != "" {
		companyID, err := utils.ParseShortID(c.CompanyID)
		if err != nil {
			return models.Principal{}, fmt.Errorf("bad company_id claim: %w", err)
		}
		p.CompanyID = &companyID
	}
	return p, nil
}
