package artifacts

import (
	"errors"
	"fmt"
	"strings"

	"github.com/quillsign/quillsign/internal/pkg/env"
)

// Config holds object-storage configuration for contract artifacts.
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	PublicBaseURL   string // Base for access URLs handed to clients
}

// LoadConfig loads artifact-store configuration from environment variables.
func LoadConfig() (*Config, error) {
	config := &Config{
		AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("S3_REGION", "us-east-1"),
		BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
		PublicBaseURL:   strings.TrimRight(env.GetEnv("S3_PUBLIC_BASE_URL", ""), "/"),
	}

	if config.AccessKeyID == "" {
		return nil, errors.New("S3_ACCESS_KEY_ID is required")
	}
	if config.SecretAccessKey == "" {
		return nil, errors.New("S3_SECRET_ACCESS_KEY is required")
	}
	if config.BucketName == "" {
		return nil, errors.New("S3_BUCKET_NAME is required")
	}

	return config, nil
}

// Artifact keys are deterministic per contract and kind: re-running an
// upload overwrites the previous object instead of accumulating copies.

// FinalDocumentKey returns the object key of the rendered final document.
func FinalDocumentKey(contractUUID string) string {
	return fmt.Sprintf("contracts/%s/final-document.html", contractUUID)
}

// SignatureImageKey returns the permanent key for a signature image.
func SignatureImageKey(contractUUID string) string {
	return fmt.Sprintf("contracts/%s/signature.png", contractUUID)
}

// AttachmentKey returns the key for a named contract attachment.
func AttachmentKey(contractUUID, name string) string {
	return fmt.Sprintf("contracts/%s/attachments/%s", contractUUID, name)
}

// AccessURL builds the client-facing URL of a stored object.
func (c *Config) AccessURL(key string) string {
	if c.PublicBaseURL != "" {
		return c.PublicBaseURL + "/" + key
	}
	if c.EndpointURL != "" {
		return strings.TrimRight(c.EndpointURL, "/") + "/" + c.BucketName + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", c.BucketName, c.Region, key)
}
