// Copyright 2023 Gabriel Adrian Samfira
//
//    Licensed under the Apache License, Version 2.0 (the "License"); you may
//    not use this file except in compliance with the License. You may obtain
//    a copy of the License at
//
//         http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
//    WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
//    License for the specific language governing permissions and limitations
//    under the License.

package filestore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/gabriel-samfira/techdesk/config"
	"github.com/gabriel-samfira/techdesk/params"
)

// NewS3Store connects to an S3 compatible bucket. A custom endpoint (MinIO
// for instance) switches the client to path style addressing.
func NewS3Store(ctx context.Context, cfg config.S3, log *slog.Logger) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Store{
		client:     client,
		presign:    s3.NewPresignClient(client),
		bucket:     cfg.Bucket,
		presignTTL: cfg.PresignDuration(),
		log:        log.With("component", "filestore", "backend", "s3"),
		now:        time.Now,
	}, nil
}

// S3Store keeps uploads in a bucket under <kind>/<name>. Downloads are
// redirected to short lived presigned URLs.
type S3Store struct {
	client     *s3.Client
	presign    *s3.PresignClient
	bucket     string
	presignTTL time.Duration
	log        *slog.Logger
	now        func() time.Time
}

var _ Store = &S3Store{}

func objectKey(kind Kind, name string) string {
	return string(kind) + "/" + name
}

func (s *S3Store) Save(ctx context.Context, kind Kind, originalName, contentType string, size int64, r io.Reader) (params.FileInfo, error) {
	if !kind.Valid() {
		return params.FileInfo{}, fmt.Errorf("invalid file kind %q", kind)
	}
	name := objectName(originalName, s.now())
	info := fileInfo(kind, name, originalName, contentType, size)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(objectKey(kind, name)),
		Body:          r,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(info.FileType),
	})
	if err != nil {
		return params.FileInfo{}, fmt.Errorf("uploading object: %w", err)
	}
	s.log.Debug("stored upload", "kind", kind, "name", name, "size", size)
	return info, nil
}

func (s *S3Store) Remove(ctx context.Context, filePath string) error {
	kind, name, err := ParsePath(filePath)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(kind, name)),
	})
	if err != nil {
		return fmt.Errorf("deleting object: %w", err)
	}
	return nil
}

func (s *S3Store) Serve(w http.ResponseWriter, r *http.Request, kind Kind, name string) {
	if !kind.Valid() || !ValidName(name) {
		http.NotFound(w, r)
		return
	}
	req, err := s.presign.PresignGetObject(r.Context(), &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(kind, name)),
	}, s3.WithPresignExpires(s.presignTTL))
	if err != nil {
		s.log.Error("failed to presign download", "kind", kind, "name", name, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, req.URL, http.StatusFound)
}
