// Package objectstore is a direct-to-storage report backend: media objects
// plus a JSON record per report in one S3-compatible bucket. It satisfies
// the same uploader/fetcher contracts as the HTTP API client.
package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"fieldreport/internal/artifact"
	"fieldreport/internal/report"
)

const (
	reportPrefix = "reports/"
	recordName   = "record.json"
	urlExpiry    = time.Hour
)

type Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type Store struct {
	client     *minio.Client
	bucketName string
	region     string
	initOnce   sync.Once
	initErr    error
}

func New(cfg Config) (*Store, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("objectstore: endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("objectstore: access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("objectstore: bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("objectstore: init client: %w", err)
	}

	return &Store{
		client:     client,
		bucketName: bucket,
		region:     region,
	}, nil
}

func (s *Store) ensureBucket(ctx context.Context) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("objectstore: store is nil")
	}
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucketName)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.initErr = s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{Region: s.region})
	})
	return s.initErr
}

// Create stores every artifact under the new report's prefix, then writes
// the record JSON. Returns the generated report id.
func (s *Store) Create(ctx context.Context, sub report.Submission) (string, error) {
	if s == nil {
		return "", fmt.Errorf("objectstore: store is nil")
	}
	if err := sub.Validate(); err != nil {
		return "", err
	}
	if err := s.ensureBucket(ctx); err != nil {
		return "", fmt.Errorf("objectstore: ensure bucket: %w", err)
	}

	id := uuid.NewString()
	rec := report.Report{
		ID:         id,
		FormType:   sub.FormType,
		Notes:      sub.Notes,
		MoodNotes:  sub.MoodNotes,
		Date:       sub.Date,
		Coordinate: sub.Coordinate,
		CreatedAt:  time.Now().UTC(),
	}

	for _, a := range sub.Artifacts {
		key := mediaKey(id, a.Name)
		_, err := s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(a.Data), a.SizeBytes(), minio.PutObjectOptions{
			ContentType: a.MIME,
		})
		if err != nil {
			return "", fmt.Errorf("objectstore: put media %s: %w", a.Name, err)
		}
		u, err := s.client.PresignedGetObject(ctx, s.bucketName, key, urlExpiry, nil)
		if err != nil {
			return "", fmt.Errorf("objectstore: presign %s: %w", a.Name, err)
		}
		if a.Kind == artifact.KindVideo {
			rec.VideoURLs = append(rec.VideoURLs, u.String())
		} else {
			rec.ImageURLs = append(rec.ImageURLs, u.String())
		}
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("objectstore: encode record: %w", err)
	}
	key := recordKey(id)
	_, err = s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("objectstore: put record: %w", err)
	}
	return id, nil
}

// List reads every report record under the prefix, oldest first.
func (s *Store) List(ctx context.Context) ([]report.Report, error) {
	if s == nil {
		return nil, fmt.Errorf("objectstore: store is nil")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("objectstore: ensure bucket: %w", err)
	}

	out := make([]report.Report, 0, 32)
	for obj := range s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{
		Prefix:    reportPrefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		if !strings.HasSuffix(obj.Key, "/"+recordName) {
			continue
		}
		rec, err := s.readRecord(ctx, obj.Key)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) readRecord(ctx context.Context, key string) (report.Report, error) {
	obj, err := s.client.GetObject(ctx, s.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return report.Report{}, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return report.Report{}, fmt.Errorf("objectstore: read %s: %w", key, err)
	}
	var rec report.Report
	if err := json.Unmarshal(data, &rec); err != nil {
		return report.Report{}, fmt.Errorf("objectstore: decode %s: %w", key, err)
	}
	return rec, nil
}

// MediaURL returns a fresh presigned URL for one stored media object.
func (s *Store) MediaURL(ctx context.Context, id, name string) (string, error) {
	if s == nil || s.client == nil {
		return "", fmt.Errorf("objectstore: store is nil")
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucketName, mediaKey(id, name), urlExpiry, nil)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func mediaKey(id, name string) string {
	return reportPrefix + strings.TrimSpace(id) + "/media/" + strings.TrimLeft(strings.TrimSpace(name), "/")
}

func recordKey(id string) string {
	return reportPrefix + strings.TrimSpace(id) + "/" + recordName
}
