// Package csrf protects the dashboard's form posts with a stateless
// double-submit token. Tokens are HMAC-signed and bound to the session
// cookie, so a token minted for one browser session cannot be replayed
// from another.
package csrf

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-router"
)

var (
	ErrTokenMismatch = errors.New("request token mismatch")
	ErrTokenMissing  = errors.New("request token missing")
	ErrTokenExpired  = errors.New("request token expired")
)

// DefaultContextKey is the locals key the minted token is stored under.
const DefaultContextKey = "csrf_token"

// DefaultFieldName is the form field checked on unsafe methods.
const DefaultFieldName = "_token"

// DefaultHeaderName is the header checked when the form field is absent.
const DefaultHeaderName = "X-CSRF-Token"

// DefaultTemplateHelpersKey is where the helper map is merged for views.
const DefaultTemplateHelpersKey = "template_helpers"

type Config struct {
	// Skip bypasses protection for matching requests (optional)
	Skip func(router.Context) bool

	// SecureKey signs tokens; at least 32 bytes. Generated when empty,
	// which invalidates outstanding tokens on restart.
	SecureKey []byte

	// SessionCookie is the cookie tokens are bound to (default: "token")
	SessionCookie string

	ContextKey string
	FieldName  string
	HeaderName string

	// Expiration bounds token age (default: 24h)
	Expiration time.Duration

	// SafeMethods skip validation (default: GET, HEAD, OPTIONS)
	SafeMethods []string

	ErrorHandler router.ErrorHandler

	// TemplateHelpersKey is the locals key helper maps merge into
	TemplateHelpersKey string
}

// New returns the form-protection middleware. Every request gets a fresh
// signed token exposed to templates; unsafe methods must echo a valid one
// back through the form field or header.
func New(config ...Config) router.MiddlewareFunc {
	cfg := configDefault(config...)

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if cfg.Skip != nil && cfg.Skip(ctx) {
				return ctx.Next()
			}

			token, err := mint(cfg, bindingFor(ctx, cfg))
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			ctx.Locals(cfg.ContextKey, token)
			ctx.LocalsMerge(cfg.TemplateHelpersKey, helpers(cfg, token))

			if slices.Contains(cfg.SafeMethods, strings.ToUpper(ctx.Method())) {
				return next(ctx)
			}

			presented := ctx.FormValue(cfg.FieldName)
			if presented == "" {
				presented = ctx.GetString(cfg.HeaderName, "")
			}

			if err := verify(cfg, bindingFor(ctx, cfg), presented); err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			return next(ctx)
		}
	}
}

// bindingFor derives the value tokens are tied to. The session cookie when
// one exists, the client IP for anonymous visitors filling the login form.
func bindingFor(ctx router.Context, cfg Config) string {
	if cookie := ctx.Cookies(cfg.SessionCookie); cookie != "" {
		return "session:" + cookie
	}
	return "ip:" + ctx.IP()
}

func mint(cfg Config, binding string) (string, error) {
	nonce := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	issued := time.Now().UTC().Unix()
	payload := fmt.Sprintf("%d.%s", issued, base64.RawURLEncoding.EncodeToString(nonce))

	return payload + "." + sign(cfg.SecureKey, payload, binding), nil
}

func verify(cfg Config, binding, token string) error {
	if token == "" {
		return ErrTokenMissing
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return ErrTokenMismatch
	}

	issued, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return ErrTokenMismatch
	}

	payload := parts[0] + "." + parts[1]
	expected := sign(cfg.SecureKey, payload, binding)
	if subtle.ConstantTimeCompare([]byte(parts[2]), []byte(expected)) != 1 {
		return ErrTokenMismatch
	}

	if cfg.Expiration > 0 {
		if time.Now().UTC().After(time.Unix(issued, 0).Add(cfg.Expiration)) {
			return ErrTokenExpired
		}
	}

	return nil
}

func sign(key []byte, payload, binding string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(payload))
	mac.Write([]byte{0})
	mac.Write([]byte(binding))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func helpers(cfg Config, token string) map[string]any {
	return map[string]any{
		"csrf_token":       token,
		"csrf_field":       `<input type="hidden" name="` + cfg.FieldName + `" value="` + token + `">`,
		"csrf_meta":        `<meta name="csrf-token" content="` + token + `">`,
		"csrf_header_name": cfg.HeaderName,
	}
}

func configDefault(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.SessionCookie == "" {
		cfg.SessionCookie = "token"
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = DefaultContextKey
	}

	if cfg.FieldName == "" {
		cfg.FieldName = DefaultFieldName
	}

	if cfg.HeaderName == "" {
		cfg.HeaderName = DefaultHeaderName
	}

	if cfg.SafeMethods == nil {
		cfg.SafeMethods = []string{"GET", "HEAD", "OPTIONS"}
	}

	if cfg.Expiration == 0 {
		cfg.Expiration = 24 * time.Hour
	}

	if cfg.TemplateHelpersKey == "" {
		cfg.TemplateHelpersKey = DefaultTemplateHelpersKey
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(ctx router.Context, err error) error {
			switch err {
			case ErrTokenMissing:
				return ctx.Status(router.StatusBadRequest).SendString("request token missing")
			case ErrTokenMismatch, ErrTokenExpired:
				return ctx.Status(router.StatusForbidden).SendString("request token rejected")
			default:
				return ctx.Status(router.StatusInternalServerError).SendString("request validation error")
			}
		}
	}

	if len(cfg.SecureKey) == 0 {
		key := make([]byte, 32)
		if _, err := io.ReadFull(rand.Reader, key); err != nil {
			panic(fmt.Errorf("csrf: unable to initialize secure key: %w", err))
		}
		cfg.SecureKey = key
	} else if len(cfg.SecureKey) < 32 {
		panic(fmt.Errorf("csrf: secure key must be at least 32 bytes, got %d", len(cfg.SecureKey)))
	}

	return cfg
}
