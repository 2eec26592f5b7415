package cloudinary

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/cloudinary/cloudinary-go/v2/config"
)

// Config holds Cloudinary credentials (from env or config).
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
}

// Client stores letter attachments (PDFs, scans, photos of notices).
type Client interface {
	UploadDocument(ctx context.Context, file io.Reader, folder, publicID string) (*UploadResult, error)
	Delete(ctx context.Context, publicID string) error
}

type UploadResult struct {
	URL      string
	PublicID string
	Bytes    int64
}

// ErrNotConfigured is returned by the disabled client.
var ErrNotConfigured = errors.New("attachment storage is not configured")

// Attachments are stored as "raw" so PDFs and office documents are kept byte-for-byte.
const documentResourceType = "raw"

type clientImpl struct {
	cloudName string
	uploader  *uploader.API
}

func (c *clientImpl) UploadDocument(ctx context.Context, file io.Reader, folder, publicID string) (*UploadResult, error) {
	result, err := c.uploader.Upload(ctx, file, uploader.UploadParams{
		Folder:       folder,
		PublicID:     publicID,
		ResourceType: documentResourceType,
	})
	if err != nil {
		return nil, err
	}
	if result.Error.Message != "" {
		return nil, fmt.Errorf("cloudinary: %s", result.Error.Message)
	}
	return &UploadResult{URL: result.SecureURL, PublicID: result.PublicID, Bytes: int64(result.Bytes)}, nil
}

func (c *clientImpl) Delete(ctx context.Context, publicID string) error {
	_, err := c.uploader.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: documentResourceType,
	})
	return err
}

// NewClientFromParams builds a Client from Cloudinary cloud name, API key, and secret.
func NewClientFromParams(cloudName, apiKey, apiSecret string) (Client, error) {
	cfg, err := config.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, err
	}
	up, err := uploader.NewWithConfiguration(cfg)
	if err != nil {
		return nil, err
	}
	return &clientImpl{
		cloudName: cloudName,
		uploader:  up,
	}, nil
}

// New returns a disabled client when no cloud name is configured.
func New(cfg Config) (Client, error) {
	if cfg.CloudName == "" {
		return disabled{}, nil
	}
	return NewClientFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
}

type disabled struct{}

func (disabled) UploadDocument(context.Context, io.Reader, string, string) (*UploadResult, error) {
	return nil, ErrNotConfigured
}

func (disabled) Delete(context.Context, string) error { return nil }
