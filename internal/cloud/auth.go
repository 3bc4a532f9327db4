package cloud

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha512"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrAuth marks an identity bootstrap failure. Fatal to startup: the hub
// must not serve without an identity.
var ErrAuth = errors.New("hub authentication failed")

// Identity is the authenticated hub session.
type Identity struct {
	HubID     string
	Token     string
	ExpiresAt time.Time
}

// Authenticator performs the keypair challenge-response sign-in against the
// cloud auth endpoints.
type Authenticator struct {
	authURL    string
	keysPath   string
	httpClient *http.Client
}

// NewAuthenticator creates an authenticator. keysPath is the directory
// holding (or receiving) the hub's RSA keypair.
func NewAuthenticator(authURL, keysPath string) *Authenticator {
	return &Authenticator{
		authURL:    authURL,
		keysPath:   keysPath,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// SignIn authenticates the hub: request a challenge sample for our public
// key, sign it, exchange the signature for a session token. A corrupted
// local keypair is discarded and regenerated once before giving up.
func (a *Authenticator) SignIn(ctx context.Context) (*Identity, error) {
	id, err := a.signIn(ctx)
	if err != nil && errors.Is(err, errBadKeys) {
		log.Println("CLOUD: discarding unreadable keypair, generating a new one")
		a.removeKeys()
		id, err = a.signIn(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuth, err)
	}
	return id, nil
}

var errBadKeys = errors.New("unreadable keypair")

func (a *Authenticator) privKeyFile() string { return filepath.Join(a.keysPath, "id_rsa") }
func (a *Authenticator) pubKeyFile() string  { return filepath.Join(a.keysPath, "id_rsa.pub") }

func (a *Authenticator) signIn(ctx context.Context) (*Identity, error) {
	privateKey, publicKeyPEM, err := a.loadOrGenerateKeys()
	if err != nil {
		return nil, err
	}

	var initiate struct {
		Sample string `json:"sample"`
	}
	if err := a.put(ctx, "authInitiate", map[string]string{"publicKey": publicKeyPEM}, &initiate); err != nil {
		return nil, err
	}

	digest := sha512.Sum512([]byte(initiate.Sample))
	signature, err := rsa.SignPSS(rand.Reader, privateKey, crypto.SHA512, digest[:], nil)
	if err != nil {
		return nil, err
	}

	var auth struct {
		Token string `json:"token"`
	}
	body := map[string]string{
		"publicKey": publicKeyPEM,
		"signature": base64.StdEncoding.EncodeToString(signature),
	}
	if err := a.put(ctx, "auth", body, &auth); err != nil {
		return nil, err
	}

	return identityFromToken(auth.Token)
}

// identityFromToken extracts the hub id and expiry from the session token.
// The token is verified by the cloud, not by us; we only read its claims.
func identityFromToken(token string) (*Identity, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("parse session token: %w", err)
	}
	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return nil, errors.New("session token has no subject")
	}
	id := &Identity{HubID: subject, Token: token}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		id.ExpiresAt = exp.Time
	}
	return id, nil
}

func (a *Authenticator) put(ctx context.Context, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, a.authURL+"/"+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// loadOrGenerateKeys reads the hub keypair, generating and persisting a
// fresh RSA-4096 pair when either half is missing.
func (a *Authenticator) loadOrGenerateKeys() (*rsa.PrivateKey, string, error) {
	privPEM, privErr := os.ReadFile(a.privKeyFile())
	pubPEM, pubErr := os.ReadFile(a.pubKeyFile())
	if privErr == nil && pubErr == nil {
		block, _ := pem.Decode(privPEM)
		if block == nil {
			return nil, "", errBadKeys
		}
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, "", errBadKeys
		}
		privateKey, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, "", errBadKeys
		}
		return privateKey, string(bytes.TrimSpace(pubPEM)), nil
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, 4096)
	if err != nil {
		return nil, "", err
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		return nil, "", err
	}
	privOut := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})
	pubDER, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	if err != nil {
		return nil, "", err
	}
	pubOut := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	if err := os.WriteFile(a.privKeyFile(), privOut, 0o600); err != nil {
		return nil, "", err
	}
	if err := os.WriteFile(a.pubKeyFile(), pubOut, 0o644); err != nil {
		return nil, "", err
	}
	return privateKey, string(bytes.TrimSpace(pubOut)), nil
}

func (a *Authenticator) removeKeys() {
	os.Remove(a.privKeyFile())
	os.Remove(a.pubKeyFile())
}
