package fakeapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/kingrea/report-evaluator/internal/api"
)

const contextUserKey = "user"

var errCredentials = echo.NewHTTPError(http.StatusUnauthorized, "Could not validate credentials")

// issueToken signs an HS256 token whose subject is the username.
func (s *Server) issueToken(username string) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.settings.TokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.settings.Secret))
}

// parseToken verifies signature and expiry against the server clock.
func (s *Server) parseToken(raw string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return []byte(s.settings.Secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// requireUser rejects requests without a valid bearer token and stores the
// account user in the context.
func (s *Server) requireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
			return errCredentials
		}
		username, err := s.parseToken(strings.TrimSpace(raw))
		if err != nil {
			c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
			return errCredentials
		}
		acct, found := s.data.findAccount(username)
		if !found {
			return errCredentials
		}
		c.Set(contextUserKey, acct.user)
		return next(c)
	}
}

func contextUser(c echo.Context) api.User {
	user, _ := c.Get(contextUserKey).(api.User)
	return user
}

// handleLogin accepts username or email with a password, form-encoded.
func (s *Server) handleLogin(c echo.Context) error {
	login := strings.TrimSpace(c.FormValue("username"))
	password := c.FormValue("password")
	if login == "" || password == "" {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "username and password are required")
	}
	acct, ok := s.data.findAccount(login)
	if !ok {
		c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
		return echo.NewHTTPError(http.StatusUnauthorized, "User not found. Please check your email/username.")
	}
	if err := bcrypt.CompareHashAndPassword(acct.passwordHash, []byte(password)); err != nil {
		c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
		return echo.NewHTTPError(http.StatusUnauthorized, "Incorrect password. Please check your password.")
	}
	token, err := s.issueToken(acct.user.Username)
	if err != nil {
		return err
	}
	s.logger.Printf("fakeapi: %s logged in", acct.user.Username)
	return c.JSON(http.StatusOK, api.Token{AccessToken: token, TokenType: "bearer"})
}

func (s *Server) handleMe(c echo.Context) error {
	return c.JSON(http.StatusOK, contextUser(c))
}

// AddUser registers an account; the password is stored as a bcrypt hash.
func (s *Server) AddUser(username, email, password string, admin bool) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return err
	}
	s.data.addAccount(api.User{Username: username, Email: email, IsAdmin: admin, CreatedAt: api.Timestamp{Time: s.now().Truncate(time.Second)}}, hash)
	return nil
}
