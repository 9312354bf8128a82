package user

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/trezcool/fieldpro/core"
)

var (
	errInvalidToken = errors.New("invalid token")
	errTokenExpired = errors.New("token expired")
)

// resetTokens makes and checks the password reset tokens mailed to users.
// A token reads "<issued at, unix seconds in base 36>-<signature>" and stops verifying
// as soon as the user's password or last login changes.
type resetTokens struct {
	key []byte
	ttl time.Duration
}

func newResetTokens(secret string, ttl time.Duration) resetTokens {
	key := sha256.Sum256([]byte("fieldpro.user.password-reset:" + secret))
	return resetTokens{key: key[:], ttl: ttl}
}

// EncodeUID hides the user ID in reset links.
func EncodeUID(usr User) string {
	return base64.RawURLEncoding.EncodeToString([]byte(usr.ID))
}

func decodeUID(uid string) (string, error) {
	id, err := base64.RawURLEncoding.DecodeString(uid)
	return string(id), err
}

func (rt resetTokens) Make(usr User) string {
	return rt.sign(usr, core.Now().Unix())
}

func (rt resetTokens) Verify(usr User, token string) error {
	issuedAt, _, ok := strings.Cut(token, "-")
	if !ok {
		return errInvalidToken
	}
	issued, err := strconv.ParseInt(issuedAt, 36, 64)
	if err != nil || issued < 0 {
		return errInvalidToken
	}
	if !hmac.Equal([]byte(rt.sign(usr, issued)), []byte(token)) {
		return errInvalidToken
	}
	if core.Now().Sub(time.Unix(issued, 0)) > rt.ttl {
		return errTokenExpired
	}
	return nil
}

// sign covers what a password reset must invalidate: the password and the last login.
func (rt resetTokens) sign(usr User, issued int64) string {
	mac := hmac.New(sha256.New, rt.key)
	mac.Write([]byte(usr.ID))
	mac.Write(usr.PasswordHash)
	if !usr.LastLogin.IsZero() {
		mac.Write([]byte(usr.LastLogin.UTC().Format(time.RFC3339Nano)))
	}
	mac.Write([]byte(strconv.FormatInt(issued, 10)))
	return strconv.FormatInt(issued, 36) + "-" + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
