package util

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, method jwt.SigningMethod, key any, claims Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func validClaims(sub string) Claims {
	return Claims{
		Email: "creator@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestValidateJWTHMAC(t *testing.T) {
	c := validClaims("user-1")
	c.AppMetadata.Role = AdminRole
	tok := sign(t, jwt.SigningMethodHS256, []byte("secret"), c)

	got, err := ValidateJWT(tok, "secret")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.Subject)
	assert.True(t, got.IsAdmin())

	_, err = ValidateJWT(tok, "other")
	assert.Error(t, err)
}

func TestValidateJWTRejectsExpiredAndSubjectless(t *testing.T) {
	c := validClaims("user-1")
	c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	_, err := ValidateJWT(sign(t, jwt.SigningMethodHS256, []byte("s"), c), "s")
	assert.Error(t, err)

	_, err = ValidateJWT(sign(t, jwt.SigningMethodHS256, []byte("s"), validClaims("")), "s")
	assert.Error(t, err)
}

func TestValidateJWTECDSA(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	require.NoError(t, err)
	pubPEM := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))

	tok := sign(t, jwt.SigningMethodES256, priv, validClaims("user-2"))
	got, err := ValidateJWT(tok, pubPEM)
	require.NoError(t, err)
	assert.Equal(t, "user-2", got.Subject)
	assert.False(t, got.IsAdmin())

	_, err = ValidateJWT(tok, "not a pem")
	assert.Error(t, err)
}

func TestValidateJWTRejectsHMACSignedWithPublicKey(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	require.NoError(t, err)
	pubPEM := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))

	c := validClaims("intruder")
	c.AppMetadata.Role = AdminRole
	forged := sign(t, jwt.SigningMethodHS256, []byte(pubPEM), c)
	_, err = ValidateJWT(forged, pubPEM)
	assert.Error(t, err)

	got, err := ValidateJWT(sign(t, jwt.SigningMethodRS256, priv, validClaims("user-3")), pubPEM)
	require.NoError(t, err)
	assert.Equal(t, "user-3", got.Subject)
}

func TestValidateJWTRejectsAsymmetricTokenForSecret(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	_, err = ValidateJWT(sign(t, jwt.SigningMethodES256, priv, validClaims("user-4")), "secret")
	assert.Error(t, err)
}
