package middleware

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v4"

	"github.com/Dosada05/tennis-tournament/models"
	"github.com/Dosada05/tennis-tournament/utils"
)

var errNoClaims = errors.New("user claims not found in context")

func claimsFromContext(ctx context.Context) (jwt.MapClaims, error) {
	claims, ok := ctx.Value(userContextKey).(jwt.MapClaims)
	if !ok {
		return nil, errNoClaims
	}
	return claims, nil
}

func GetUserIDFromContext(ctx context.Context) (int, error) {
	claims, err := claimsFromContext(ctx)
	if err != nil {
		return 0, err
	}

	// JSON numbers decode as float64
	raw, ok := claims[utils.ClaimUserID].(float64)
	if !ok {
		return 0, fmt.Errorf("missing or invalid '%s' claim", utils.ClaimUserID)
	}
	if raw != float64(int(raw)) || raw <= 0 {
		return 0, fmt.Errorf("invalid user ID value in '%s' claim: %v", utils.ClaimUserID, raw)
	}
	return int(raw), nil
}

func GetUserRoleFromContext(ctx context.Context) (models.UserRole, error) {
	claims, err := claimsFromContext(ctx)
	if err != nil {
		return "", err
	}
	raw, ok := claims[utils.ClaimRole].(string)
	if !ok {
		return "", fmt.Errorf("missing or invalid '%s' claim", utils.ClaimRole)
	}
	return models.ParseUserRole(raw)
}

func GetUserEmailFromContext(ctx context.Context) (string, error) {
	claims, err := claimsFromContext(ctx)
	if err != nil {
		return "", err
	}
	raw, ok := claims[utils.ClaimEmail].(string)
	if !ok {
		return "", fmt.Errorf("missing or invalid '%s' claim", utils.ClaimEmail)
	}
	return raw, nil
}
