package face

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/storage/s3/v2"
)

// Archive keeps enrollment captures for later review. Archiving is best
// effort; the template is authoritative.
type Archive interface {
	Save(ctx context.Context, userID string, image []byte, at time.Time) error
}

type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// blobSetter is the part of *s3.Storage the archive uses.
type blobSetter interface {
	Set(key string, val []byte, exp time.Duration) error
}

type S3Archive struct {
	store  blobSetter
	prefix string
}

func NewS3Archive(cfg S3Config) *S3Archive {
	return &S3Archive{
		store: s3.New(s3.Config{
			Bucket:   cfg.Bucket,
			Endpoint: cfg.Endpoint,
			Region:   cfg.Region,
			Reset:    false,
			Credentials: s3.Credentials{
				AccessKey:       cfg.AccessKey,
				SecretAccessKey: cfg.SecretKey,
			},
		}),
		prefix: "enrollments/",
	}
}

func (a *S3Archive) Save(ctx context.Context, userID string, image []byte, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := archiveKey(a.prefix, userID, at)
	if err := a.store.Set(key, image, 0); err != nil {
		return fmt.Errorf("archive %s: %w", key, err)
	}
	return nil
}

// archiveKey: <prefix><user>/<unix ms>.img, so a user's captures list in
// time order.
func archiveKey(prefix, userID string, at time.Time) string {
	return fmt.Sprintf("%s%s/%013d.img", prefix, userID, at.UTC().UnixMilli())
}
