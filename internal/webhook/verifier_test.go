package webhook

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"testing"
	"time"
)

func testVerifier(t *testing.T) (*Verifier, *rsa.PrivateKey, time.Time) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	v := NewVerifier(&key.PublicKey, 300*time.Second)
	v.now = func() time.Time { return now }
	return v, key, now
}

func sign(t *testing.T, key *rsa.PrivateKey, body []byte) string {
	t.Helper()
	digest := sha256.Sum256(body)
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return base64.StdEncoding.EncodeToString(sig)
}

func TestVerify_AcceptsSignedBody(t *testing.T) {
	v, key, now := testVerifier(t)
	body := []byte(`{"Body":{"stkCallback":{"ResultCode":0}}}`)

	res := v.Verify(body, sign(t, key, body), now.Add(-30*time.Second).Format(time.RFC3339))
	if !res.Valid {
		t.Fatalf("expected valid, got %+v", res)
	}
	if res.SkewSeconds != 30 {
		t.Fatalf("skew: got %d, want 30", res.SkewSeconds)
	}
}

func TestVerify_RejectsTamperedBody(t *testing.T) {
	v, key, now := testVerifier(t)
	body := []byte(`{"amount":50}`)
	sig := sign(t, key, body)

	res := v.Verify([]byte(`{"amount":5000}`), sig, now.Format(time.RFC3339))
	if res.Valid || res.FailureReason != ReasonBadSignature {
		t.Fatalf("expected bad_signature, got %+v", res)
	}
}

func TestVerify_FailureReasons(t *testing.T) {
	v, key, now := testVerifier(t)
	body := []byte(`{}`)
	goodSig := sign(t, key, body)
	goodTS := now.Format(time.RFC3339)

	cases := []struct {
		name    string
		sig, ts string
		want    string
	}{
		{"missing signature", "", goodTS, ReasonMissingSignature},
		{"missing timestamp", goodSig, "", ReasonMissingTimestamp},
		{"unparseable timestamp", goodSig, "yesterday", ReasonBadTimestamp},
		{"stale timestamp", goodSig, now.Add(-10 * time.Minute).Format(time.RFC3339), ReasonStaleTimestamp},
		{"future timestamp", goodSig, now.Add(10 * time.Minute).Format(time.RFC3339), ReasonStaleTimestamp},
		{"undecodable signature", "!!not-base64!!", goodTS, ReasonBadSignature},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := v.Verify(body, tc.sig, tc.ts)
			if res.Valid || res.FailureReason != tc.want {
				t.Fatalf("got %+v, want reason %s", res, tc.want)
			}
		})
	}
}

func TestVerify_NoKeyConfiguredRejectsEverything(t *testing.T) {
	v := NewVerifier(nil, 300*time.Second)
	body := []byte(`{}`)

	res := v.Verify(body, base64.StdEncoding.EncodeToString([]byte("sig")), time.Now().UTC().Format(time.RFC3339))
	if res.Valid || res.FailureReason != ReasonNoKey {
		t.Fatalf("expected no_verification_key, got %+v", res)
	}
}
