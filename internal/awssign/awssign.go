// Package awssign produces SigV4-signed request functions for the
// inventory and entitlement endpoints. Consumers only see the Doer type,
// so tests substitute plain fakes.
package awssign

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"modelscout/internal/domain"
)

// Doer performs one authenticated HTTP call and returns the response body.
// Non-2xx responses and transport errors both surface as TransportError.
type Doer func(ctx context.Context, method, url string) ([]byte, error)

// Factory yields a request function bound to one region.
type Factory func(region string) Doer

// SHA-256 of the empty payload; every call this package signs is bodyless.
const emptyPayloadHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

// DefaultCredentials resolves credentials from the ambient AWS chain
// (env, shared config, instance role).
func DefaultCredentials(ctx context.Context) (aws.CredentialsProvider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return cfg.Credentials, nil
}

// StaticCredentials wraps explicit keys, for callers that hold them.
func StaticCredentials(accessKeyID, secretAccessKey, sessionToken string) aws.CredentialsProvider {
	return credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, sessionToken)
}

// NewFactory returns per-region signed request functions scoped to the
// given service (e.g. "bedrock").
func NewFactory(creds aws.CredentialsProvider, service string, client *http.Client) Factory {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	signer := v4.NewSigner()
	return func(region string) Doer {
		return func(ctx context.Context, method, url string) ([]byte, error) {
			req, err := http.NewRequestWithContext(ctx, method, url, nil)
			if err != nil {
				return nil, &domain.TransportError{Op: "build request", URL: url, Err: err}
			}
			cred, err := creds.Retrieve(ctx)
			if err != nil {
				return nil, &domain.TransportError{Op: "resolve credentials", URL: url, Err: err}
			}
			if err := signer.SignHTTP(ctx, cred, req, emptyPayloadHash, service, region, time.Now()); err != nil {
				return nil, &domain.TransportError{Op: "sign request", URL: url, Err: err}
			}
			res, err := client.Do(req)
			if err != nil {
				return nil, &domain.TransportError{Op: "call " + service, URL: url, Err: err}
			}
			defer res.Body.Close()
			body, err := io.ReadAll(res.Body)
			if err != nil {
				return nil, &domain.TransportError{Op: "read response", URL: url, Err: err}
			}
			if res.StatusCode < 200 || res.StatusCode > 299 {
				return nil, &domain.TransportError{Op: "call " + service, URL: url, Status: res.StatusCode}
			}
			return body, nil
		}
	}
}
