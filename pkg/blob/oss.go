package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/google/uuid"
)

const slipPrefix = "slips"

type bucket interface {
	PutObject(objectKey string, reader io.Reader, options ...oss.Option) error
	DeleteObject(objectKey string, options ...oss.Option) error
}

type OSSConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	PublicBaseURL string
}

// OSSStorage keeps slips in an Aliyun OSS bucket under
// slips/YYYY/MM/<uuid><ext>.
type OSSStorage struct {
	bucket  bucket
	baseURL string
	now     func() time.Time
}

func NewOSSStorage(cfg OSSConfig) (*OSSStorage, error) {
	client, err := oss.New(cfg.Endpoint, cfg.AccessKey, cfg.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("oss.New: %w", err)
	}

	b, err := client.Bucket(cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("oss bucket %s: %w", cfg.Bucket, err)
	}

	base := cfg.PublicBaseURL
	if base == "" {
		base = fmt.Sprintf("https://%s.%s", cfg.Bucket, strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://"))
	}

	return newOSSStorage(b, base, time.Now), nil
}

func newOSSStorage(b bucket, baseURL string, now func() time.Time) *OSSStorage {
	return &OSSStorage{
		bucket:  b,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     now,
	}
}

func (s *OSSStorage) Store(ctx context.Context, data []byte, contentType string) (string, error) {
	if err := Check(data, contentType); err != nil {
		return "", err
	}
	ext, _ := ExtensionFor(contentType)

	now := s.now().UTC()
	key := path.Join(slipPrefix, now.Format("2006"), now.Format("01"), uuid.NewString()+ext)

	opts := []oss.Option{
		oss.WithContext(ctx),
		oss.ContentType(contentType),
		oss.ContentDisposition("inline"),
	}
	if err := s.bucket.PutObject(key, bytes.NewReader(data), opts...); err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}

	return s.baseURL + "/" + key, nil
}

func (s *OSSStorage) Delete(ctx context.Context, url string) error {
	key, ok := strings.CutPrefix(url, s.baseURL+"/")
	if !ok || key == "" {
		return ErrForeignURL
	}
	if err := s.bucket.DeleteObject(key, oss.WithContext(ctx)); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
