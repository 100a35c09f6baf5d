// Command devtoken mints HS256 access tokens for local testing.  In
// production tokens come from the identity service; the claims here
// mirror what JWTAuth expects: sub, role, exp and iat.
//
//	devtoken --user 42 --role STUDENT [--ttl 60m]
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/iliyamo/seat-allotment/internal/middleware"
)

// newAccessToken builds and signs an HS256 JWT for a user.
func newAccessToken(secret string, userID uint64, role string, ttl time.Duration, now time.Time) (string, time.Time, error) {
	exp := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"exp":  exp.Unix(),
		"iat":  now.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func main() {
	_ = godotenv.Load()

	var (
		userID uint64
		role   string
		ttl    time.Duration
		secret string
	)
	flags := pflag.NewFlagSet("devtoken", pflag.ExitOnError)
	flags.Uint64VarP(&userID, "user", "u", 0, "user id placed in the sub claim")
	flags.StringVarP(&role, "role", "r", middleware.RoleStudent, "STUDENT or ADMIN")
	flags.DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	flags.StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "signing secret (defaults to $JWT_SECRET)")
	_ = flags.Parse(os.Args[1:])

	role = strings.ToUpper(role)
	switch {
	case userID == 0:
		fail("--user is required")
	case role != middleware.RoleStudent && role != middleware.RoleAdmin:
		fail(fmt.Sprintf("unknown role %q", role))
	case secret == "":
		fail("no secret: set JWT_SECRET or pass --secret")
	case ttl <= 0:
		fail("--ttl must be positive")
	}

	tok, exp, err := newAccessToken(secret, userID, role, ttl, time.Now().UTC())
	if err != nil {
		fail(err.Error())
	}
	fmt.Println(tok)
	fmt.Fprintf(os.Stderr, "expires %s\n", exp.Format(time.RFC3339))
}

func fail(msg string) {
	fmt.Fprintln(os.Stderr, "devtoken:", msg)
	os.Exit(2)
}
