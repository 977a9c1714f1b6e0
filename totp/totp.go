package totp

import (
	"bytes"
	"errors"
	"image/png"
	"net/url"
	"strconv"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// Config carries the TOTP parameters. The zero value is unusable; New fills
// in RFC 6238 defaults for unset fields.
type Config struct {
	Issuer string
	Digits int
	Period uint
	Skew   uint
}

// Engine generates and verifies TOTP codes. Stateless and safe for
// concurrent use.
type Engine struct {
	config Config
}

func New(cfg Config) *Engine {
	if cfg.Digits != 6 && cfg.Digits != 8 {
		cfg.Digits = 6
	}
	if cfg.Period == 0 {
		cfg.Period = 30
	}
	return &Engine{config: cfg}
}

// GenerateSecret creates a fresh random secret for accountName.
func (e *Engine) GenerateSecret(accountName string) (string, error) {
	if accountName == "" {
		return "", errors.New("account name required")
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      e.config.Issuer,
		AccountName: accountName,
		Period:      e.config.Period,
		SecretSize:  20,
		Digits:      e.digits(),
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", err
	}

	return key.Secret(), nil
}

// ProvisionURI builds the otpauth:// URL for an already-stored secret. The
// output is deterministic: repeated setup calls for the same secret render
// the same QR code.
func (e *Engine) ProvisionURI(secret, accountName string) string {
	label := accountName
	if e.config.Issuer != "" {
		label = e.config.Issuer + ":" + accountName
	}

	v := url.Values{}
	v.Set("secret", secret)
	if e.config.Issuer != "" {
		v.Set("issuer", e.config.Issuer)
	}
	v.Set("algorithm", "SHA1")
	v.Set("digits", strconv.Itoa(e.config.Digits))
	v.Set("period", strconv.FormatUint(uint64(e.config.Period), 10))

	u := url.URL{
		Scheme:   "otpauth",
		Host:     "totp",
		Path:     "/" + label,
		RawQuery: v.Encode(),
	}
	return u.String()
}

// VerifyCode reports whether code is valid for secret within the configured
// skew window. Malformed secrets and codes report false, never an error:
// callers cannot distinguish a wrong code from a corrupted one.
func (e *Engine) VerifyCode(secret, code string) bool {
	if secret == "" || code == "" {
		return false
	}

	ok, err := totp.ValidateCustom(code, secret, time.Now().UTC(), totp.ValidateOpts{
		Period:    e.config.Period,
		Skew:      e.config.Skew,
		Digits:    e.digits(),
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return false
	}
	return ok
}

// QRCode renders an otpauth URI as a size x size PNG. Rendering is a
// convenience for enrollment screens; failures here must never block the
// setup flow.
func (e *Engine) QRCode(uri string, size int) ([]byte, error) {
	if size <= 0 {
		size = 256
	}

	key, err := otp.NewKeyFromURL(uri)
	if err != nil {
		return nil, err
	}

	img, err := key.Image(size, size)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *Engine) digits() otp.Digits {
	if e.config.Digits == 8 {
		return otp.DigitsEight
	}
	return otp.DigitsSix
}
