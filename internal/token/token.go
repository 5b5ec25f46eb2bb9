// Package token mints EKS-compatible bearer tokens from AWS credentials.
//
// A token is a presigned STS GetCallerIdentity URL bound to one cluster by a
// signed header, base64-encoded behind a fixed prefix. The cluster API server
// authenticates the caller by replaying that URL against AWS, which means
// minting itself never talks to AWS: it is pure signing arithmetic over the
// credentials, the cluster identity and a timestamp.
package token

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"

	"github.com/liavyona/lambda-eks-integration/internal/cluster"
	"github.com/liavyona/lambda-eks-integration/internal/credential"
)

const (
	// Prefix marks the token encoding version EKS understands.
	Prefix = "k8s-aws-v1."

	// clusterIDHeader binds the presigned request to one cluster. It is part
	// of the signed header set, so the API server must present it on replay
	// and a token for cluster A can never authenticate against cluster B.
	clusterIDHeader = "x-k8s-aws-id"

	// presignExpires is the replay window baked into the signature.
	presignExpires = 60 * time.Second

	// stsHostTemplate is the regional STS endpoint the replayed call goes to.
	stsHostTemplate = "sts.%s.amazonaws.com"

	// emptyPayloadHash is the SHA-256 of an empty body; GetCallerIdentity is
	// presigned without one.
	emptyPayloadHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
)

// Token is a cluster-scoped bearer credential. Value is opaque to callers.
type Token struct {
	Value string
	// IssuedAt is the signing timestamp the validity window hangs off.
	IssuedAt time.Time
}

// Minter builds tokens. It is stateless: nothing is cached between calls, so
// every invocation signs with a fresh timestamp.
type Minter struct {
	signer *v4.Signer
}

// NewMinter creates a Minter.
func NewMinter() *Minter {
	return &Minter{signer: v4.NewSigner()}
}

// Mint returns a token for the cluster, signed at the current time.
func (m *Minter) Mint(ctx context.Context, creds aws.Credentials, id cluster.Identity) (Token, error) {
	return m.MintAt(ctx, creds, id, time.Now())
}

// MintAt signs at an explicit timestamp. For fixed credentials, identity and
// time the result is reproducible byte for byte.
func (m *Minter) MintAt(ctx context.Context, creds aws.Credentials, id cluster.Identity, at time.Time) (Token, error) {
	if !creds.HasKeys() {
		return Token{}, credential.ErrNoCredentials
	}
	if creds.CanExpire && !at.Before(creds.Expires) {
		return Token{}, fmt.Errorf("%w: expired at %s", credential.ErrExpired, creds.Expires.Format(time.RFC3339))
	}

	endpoint := fmt.Sprintf("https://"+stsHostTemplate+"/", id.Region)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Token{}, fmt.Errorf("building sts request: %w", err)
	}
	req.Header.Set(clusterIDHeader, id.Name)

	// X-Amz-Expires must already be in the query when presigning so the
	// replay window travels inside the signature.
	query := req.URL.Query()
	query.Set("Action", "GetCallerIdentity")
	query.Set("Version", "2011-06-15")
	query.Set("X-Amz-Expires", strconv.Itoa(int(presignExpires.Seconds())))
	req.URL.RawQuery = query.Encode()

	signedURL, _, err := m.signer.PresignHTTP(ctx, creds, req, emptyPayloadHash, "sts", id.Region, at)
	if err != nil {
		return Token{}, fmt.Errorf("presigning sts request for cluster %s: %w", id, err)
	}

	return Token{
		Value:    Prefix + base64.RawURLEncoding.EncodeToString([]byte(signedURL)),
		IssuedAt: at,
	}, nil
}

// Decode returns the presigned URL carried inside a token value. The inverse
// of minting, used for inspection only.
func Decode(value string) (string, error) {
	if !strings.HasPrefix(value, Prefix) {
		return "", fmt.Errorf("token does not start with %q", Prefix)
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(value, Prefix))
	if err != nil {
		return "", fmt.Errorf("decoding token payload: %w", err)
	}
	return string(raw), nil
}
