package feed

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha512"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"announced/internal/trust"
)

const testPublisherCN = "announced"

// origin is a fake publisher: it owns the signing material and serves
// .signature / .rss / the CRL exactly as a correctly-operating origin would.
type origin struct {
	caCert   *x509.Certificate
	caKey    *rsa.PrivateKey
	leafCert *x509.Certificate
	leafKey  *rsa.PrivateKey

	mu        sync.Mutex
	body      []byte
	signature []byte // raw, pre-base64
	crlDER    []byte
	missing   map[string]bool // resource -> serve 404
}

func newOrigin(t *testing.T) *origin {
	t.Helper()
	o := &origin{missing: map[string]bool{}}

	var err error
	o.caKey, err = rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate CA key: %v", err)
	}
	caTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "Feed Signing Authority"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
	}
	caDER, err := x509.CreateCertificate(rand.Reader, caTmpl, caTmpl, &o.caKey.PublicKey, o.caKey)
	if err != nil {
		t.Fatalf("create CA cert: %v", err)
	}
	if o.caCert, err = x509.ParseCertificate(caDER); err != nil {
		t.Fatalf("parse CA cert: %v", err)
	}

	o.leafCert, o.leafKey = o.issueLeaf(t, testPublisherCN, 100)
	o.setCRL(t)
	o.sign(t, []byte(sampleRSS))
	return o
}

func (o *origin) issueLeaf(t *testing.T, cn string, serial int64) (*x509.Certificate, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate leaf key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(serial),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, o.caCert, &key.PublicKey, o.caKey)
	if err != nil {
		t.Fatalf("create leaf cert: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse leaf cert: %v", err)
	}
	return cert, key
}

// setCRL installs a CRL signed by the origin CA revoking the given serials.
func (o *origin) setCRL(t *testing.T, revoked ...*big.Int) {
	t.Helper()
	entries := make([]x509.RevocationListEntry, 0, len(revoked))
	for _, sn := range revoked {
		entries = append(entries, x509.RevocationListEntry{
			SerialNumber:   sn,
			RevocationTime: time.Now().Add(-time.Minute),
		})
	}
	tmpl := &x509.RevocationList{
		Number:                    big.NewInt(1),
		ThisUpdate:                time.Now().Add(-time.Minute),
		NextUpdate:                time.Now().Add(24 * time.Hour),
		RevokedCertificateEntries: entries,
	}
	der, err := x509.CreateRevocationList(rand.Reader, tmpl, o.caCert, o.caKey)
	if err != nil {
		t.Fatalf("create CRL: %v", err)
	}
	o.mu.Lock()
	o.crlDER = der
	o.mu.Unlock()
}

// setForeignCRL installs a CRL signed by an unrelated authority.
func (o *origin) setForeignCRL(t *testing.T) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate foreign key: %v", err)
	}
	caTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(99),
		Subject:               pkix.Name{CommonName: "Unrelated Authority"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
	}
	der, err := x509.CreateCertificate(rand.Reader, caTmpl, caTmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create foreign CA: %v", err)
	}
	caCert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse foreign CA: %v", err)
	}
	tmpl := &x509.RevocationList{
		Number:     big.NewInt(1),
		ThisUpdate: time.Now().Add(-time.Minute),
		NextUpdate: time.Now().Add(24 * time.Hour),
	}
	crlDER, err := x509.CreateRevocationList(rand.Reader, tmpl, caCert, key)
	if err != nil {
		t.Fatalf("create foreign CRL: %v", err)
	}
	o.mu.Lock()
	o.crlDER = crlDER
	o.mu.Unlock()
}

// sign sets the body and a matching detached signature.
func (o *origin) sign(t *testing.T, body []byte) {
	t.Helper()
	digest := sha512.Sum512(body)
	sig, err := rsa.SignPKCS1v15(rand.Reader, o.leafKey, crypto.SHA512, digest[:])
	if err != nil {
		t.Fatalf("sign body: %v", err)
	}
	o.mu.Lock()
	o.body = body
	o.signature = sig
	o.mu.Unlock()
}

func (o *origin) serve(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		o.mu.Lock()
		defer o.mu.Unlock()
		if o.missing[r.URL.Path] {
			http.NotFound(w, r)
			return
		}
		switch r.URL.Path {
		case "/feed" + SignatureResource:
			_, _ = w.Write([]byte(base64.StdEncoding.EncodeToString(o.signature)))
		case "/feed" + BodyResource:
			_, _ = w.Write(o.body)
		case "/root.crl":
			_, _ = w.Write(o.crlDER)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (o *origin) authenticator(t *testing.T, srv *httptest.Server) *Authenticator {
	t.Helper()
	// Resource names are appended to the base, so "/feed" + ".signature"
	// is the path the origin serves. The CRL fetcher carries the full URL.
	fetcher := NewFetcher(srv.URL+"/feed", time.Second)
	crl := &RemoteCRL{Fetcher: NewFetcher(srv.URL+"/root.crl", time.Second)}
	return NewAuthenticator(fetcher, trust.NewStore(o.caCert), o.leafCert, crl, testPublisherCN)
}

func authKind(t *testing.T, err error) AuthKind {
	t.Helper()
	var ae *AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	return ae.Kind
}

func TestAuthenticateValidTuple(t *testing.T) {
	t.Parallel()
	o := newOrigin(t)
	srv := o.serve(t)

	body, err := o.authenticator(t, srv).Authenticate(context.Background())
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if string(body) != sampleRSS {
		t.Fatal("authenticated body must be returned unchanged")
	}
}

func TestAuthenticateTamperedBody(t *testing.T) {
	t.Parallel()
	o := newOrigin(t)
	o.sign(t, []byte(sampleRSS))
	// Mutate one byte after signing.
	o.mu.Lock()
	o.body = append([]byte(nil), o.body...)
	o.body[len(o.body)/2] ^= 0x01
	o.mu.Unlock()
	srv := o.serve(t)

	_, err := o.authenticator(t, srv).Authenticate(context.Background())
	if kind := authKind(t, err); kind != KindSignatureMismatch {
		t.Fatalf("kind = %s, want %s", kind, KindSignatureMismatch)
	}
}

func TestAuthenticateRevokedCertificate(t *testing.T) {
	t.Parallel()
	o := newOrigin(t)
	// Valid signature, but the leaf's serial is on a validly-signed CRL.
	o.setCRL(t, o.leafCert.SerialNumber)
	srv := o.serve(t)

	_, err := o.authenticator(t, srv).Authenticate(context.Background())
	if kind := authKind(t, err); kind != KindCertificateRevoked {
		t.Fatalf("kind = %s, want %s", kind, KindCertificateRevoked)
	}
}

func TestAuthenticateForgedCRL(t *testing.T) {
	t.Parallel()
	o := newOrigin(t)
	// "Nothing revoked", but signed by the wrong authority.
	o.setForeignCRL(t)
	srv := o.serve(t)

	_, err := o.authenticator(t, srv).Authenticate(context.Background())
	if kind := authKind(t, err); kind != KindInvalidCRLSignature {
		t.Fatalf("kind = %s, want %s", kind, KindInvalidCRLSignature)
	}
}

func TestAuthenticateUntrustedCertificate(t *testing.T) {
	t.Parallel()
	o := newOrigin(t)
	srv := o.serve(t)

	// Swap the pinned anchor: the leaf is no longer issued by it.
	stranger := newOrigin(t)
	fetcher := NewFetcher(srv.URL+"/feed", time.Second)
	crl := &RemoteCRL{Fetcher: NewFetcher(srv.URL+"/root.crl", time.Second)}
	auth := NewAuthenticator(fetcher, trust.NewStore(stranger.caCert), o.leafCert, crl, testPublisherCN)

	_, err := auth.Authenticate(context.Background())
	// The foreign anchor rejects the CRL before it ever reaches the chain
	// check; both kinds are hard rejections of the run.
	if kind := authKind(t, err); kind != KindInvalidCRLSignature && kind != KindUntrustedCert {
		t.Fatalf("kind = %s, want a trust rejection", kind)
	}
}

func TestAuthenticateIdentityMismatch(t *testing.T) {
	t.Parallel()
	o := newOrigin(t)
	// Issue a leaf for the wrong identity and re-sign with it.
	wrongCert, wrongKey := o.issueLeaf(t, "someone_else", 101)
	o.leafCert, o.leafKey = wrongCert, wrongKey
	o.sign(t, []byte(sampleRSS))
	srv := o.serve(t)

	_, err := o.authenticator(t, srv).Authenticate(context.Background())
	if kind := authKind(t, err); kind != KindIdentityMismatch {
		t.Fatalf("kind = %s, want %s", kind, KindIdentityMismatch)
	}
}

func TestAuthenticateMissingSignature(t *testing.T) {
	t.Parallel()
	o := newOrigin(t)
	o.mu.Lock()
	o.signature = nil
	o.mu.Unlock()
	srv := o.serve(t)

	_, err := o.authenticator(t, srv).Authenticate(context.Background())
	if kind := authKind(t, err); kind != KindMissingSignature {
		t.Fatalf("kind = %s, want %s", kind, KindMissingSignature)
	}
}

func TestAuthenticateEmptyBody(t *testing.T) {
	t.Parallel()
	o := newOrigin(t)
	o.mu.Lock()
	o.body = nil
	o.mu.Unlock()
	srv := o.serve(t)

	_, err := o.authenticator(t, srv).Authenticate(context.Background())
	if kind := authKind(t, err); kind != KindEmptyBody {
		t.Fatalf("kind = %s, want %s", kind, KindEmptyBody)
	}
}

func TestAuthenticateFetchFailures(t *testing.T) {
	t.Parallel()
	for _, resource := range []string{"/feed" + SignatureResource, "/root.crl", "/feed" + BodyResource} {
		resource := resource
		t.Run(resource, func(t *testing.T) {
			t.Parallel()
			o := newOrigin(t)
			o.mu.Lock()
			o.missing[resource] = true
			o.mu.Unlock()
			srv := o.serve(t)

			_, err := o.authenticator(t, srv).Authenticate(context.Background())
			if kind := authKind(t, err); kind != KindFetchFailed {
				t.Fatalf("kind = %s, want %s", kind, KindFetchFailed)
			}
		})
	}
}

func TestAuthenticateOrderRevocationBeforeSignature(t *testing.T) {
	t.Parallel()
	o := newOrigin(t)
	// Revoked AND tampered: revocation must win, the payload signature is
	// never the thing that saves or damns a revoked publisher.
	o.setCRL(t, o.leafCert.SerialNumber)
	o.mu.Lock()
	o.body = append([]byte(nil), o.body...)
	o.body[0] ^= 0x01
	o.mu.Unlock()
	srv := o.serve(t)

	_, err := o.authenticator(t, srv).Authenticate(context.Background())
	if kind := authKind(t, err); kind != KindCertificateRevoked {
		t.Fatalf("kind = %s, want %s", kind, KindCertificateRevoked)
	}
}
