package adapters

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"

	pkgerrors "github.com/feastline/relay-backend/pkg/errors"
)

// verifyBase64HMAC checks a base64-encoded HMAC-SHA256 signature over the raw
// body, as Shopify and WooCommerce deliver it.
func verifyBase64HMAC(raw []byte, signature, secret string) error {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(raw)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return pkgerrors.New(pkgerrors.CodeInvalidSignature, "webhook signature mismatch")
	}
	return nil
}

// verifyHexHMAC checks a hex-encoded HMAC-SHA256 signature over the raw body.
func verifyHexHMAC(raw []byte, signature, secret string) error {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(raw)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return pkgerrors.New(pkgerrors.CodeInvalidSignature, "webhook signature mismatch")
	}
	return nil
}
