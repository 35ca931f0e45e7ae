package usecase

import (
	"fmt"

	authdomain "replypilot-backend/internal/auth/domain"
	"replypilot-backend/internal/auth/repository"
	"replypilot-backend/internal/errs"
	"replypilot-backend/pkg/gauth"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// AuthUsecase resolves identities for request handling. Token issuance
// happens in the external auth service; this side only validates.
type AuthUsecase interface {
	ValidateToken(tokenString string) (*authdomain.User, error)
	// Tokens returns the user's provider OAuth tokens.
	Tokens(userID string) (accessToken, refreshToken string, err error)
	// OnTokenRefresh persists rotated provider tokens for the user.
	OnTokenRefresh(userID string) gauth.TokenUpdateFunc
}

type authUsecase struct {
	userRepo  repository.UserRepository
	jwtSecret string
}

func NewAuthUsecase(userRepo repository.UserRepository, jwtSecret string) AuthUsecase {
	return &authUsecase{userRepo: userRepo, jwtSecret: jwtSecret}
}

func (u *authUsecase) ValidateToken(tokenString string) (*authdomain.User, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(u.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, errs.ErrUnauthenticated
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errs.ErrUnauthenticated
	}
	userID, _ := claims["sub"].(string)
	if userID == "" {
		return nil, errs.ErrUnauthenticated
	}

	user, err := u.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errs.ErrUnauthenticated
	}
	return user, nil
}

func (u *authUsecase) Tokens(userID string) (string, string, error) {
	user, err := u.userRepo.FindByID(userID)
	if err != nil {
		return "", "", err
	}
	if user == nil {
		return "", "", errs.ErrNotFound
	}
	return user.AccessToken, user.RefreshToken, nil
}

func (u *authUsecase) OnTokenRefresh(userID string) gauth.TokenUpdateFunc {
	return func(newToken *oauth2.Token) error {
		user, err := u.userRepo.FindByID(userID)
		if err != nil {
			return err
		}
		if user == nil {
			return errs.ErrNotFound
		}
		user.AccessToken = newToken.AccessToken
		if newToken.RefreshToken != "" {
			user.RefreshToken = newToken.RefreshToken
		}
		return u.userRepo.Update(user)
	}
}
