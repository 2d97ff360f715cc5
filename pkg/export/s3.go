package export

import (
	"bytes"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"

	"github.com/volgapavel/popov-exem/pkg/task"
	"github.com/volgapavel/popov-exem/pkg/util/context"
)

// RemoteUploadConfig is configuration for the S3-compatible remote exporter.
type RemoteUploadConfig struct {
	Endpoint  string `json:"endpoint" env:"EXPORT_S3_ENDPOINT"`
	AccessKey string `json:"accessKey" env:"EXPORT_S3_ACCESS_KEY"`
	SecretKey string `json:"secretKey" env:"EXPORT_S3_SECRET_KEY"`
	Bucket    string `json:"bucket" env:"EXPORT_S3_BUCKET"`
	Prefix    string `json:"prefix" env:"EXPORT_S3_PREFIX"`
	Secure    bool   `json:"secure" env:"EXPORT_S3_SECURE"`
}

// NewRemoteUpload returns an Exporter uploading artifacts to an
// S3-compatible object store. Network failures are retriable under the task
// retry policy; authentication failures are permanent and exhaust the task
// immediately.
func NewRemoteUpload(conf RemoteUploadConfig) (Exporter, error) {
	if conf.Endpoint == "" {
		return nil, errors.New("s3 endpoint is required")
	}
	if conf.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	cli, err := minio.New(conf.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(conf.AccessKey, conf.SecretKey, ""),
		Secure: conf.Secure,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "cannot create s3 client for endpoint %s", conf.Endpoint)
	}
	return remoteUpload{cli: cli, conf: conf}, nil
}

type remoteUpload struct {
	cli  *minio.Client
	conf RemoteUploadConfig
}

func (e remoteUpload) Export(ctx context.Context, artifacts map[string][]byte) error {
	exists, err := e.cli.BucketExists(ctx, e.conf.Bucket)
	if err != nil {
		return classify(errors.Wrapf(err, "cannot check bucket %s", e.conf.Bucket))
	}
	if !exists {
		if err := e.cli.MakeBucket(ctx, e.conf.Bucket, minio.MakeBucketOptions{}); err != nil {
			return classify(errors.Wrapf(err, "cannot create bucket %s", e.conf.Bucket))
		}
	}
	for name, data := range artifacts {
		key := path.Join(e.conf.Prefix, name)
		_, err := e.cli.PutObject(ctx, e.conf.Bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{})
		if err != nil {
			return classify(errors.Wrapf(err, "cannot upload %s to s3://%s/%s", name, e.conf.Bucket, key))
		}
		ctx.Logger().Infof("uploaded %s to s3://%s/%s", name, e.conf.Bucket, key)
	}
	return nil
}

// classify marks authentication and authorization failures as permanent so
// the retry policy does not waste attempts on them.
func classify(err error) error {
	switch minio.ToErrorResponse(errors.Cause(err)).Code {
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "AllAccessDisabled":
		return task.Permanent(err)
	}
	return err
}
