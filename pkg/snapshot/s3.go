package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/raven-ui/raven/pkg/protocol"
)

// S3Store persists snapshots in an S3 bucket so sessions can resume
// across server restarts and node failover.
//
//	cfg, _ := config.LoadDefaultConfig(ctx)
//	store := snapshot.NewS3Store(s3.NewFromConfig(cfg), "my-bucket", "snapshots/")
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Store creates an S3-backed snapshot store. prefix is prepended
// to every object key.
func NewS3Store(client *s3.Client, bucket, prefix string) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3Store) key(sessionID string) string {
	return s.prefix + sessionID
}

// Put stores a snapshot, replacing any previous one for the session.
func (s *S3Store) Put(ctx context.Context, snap *Snapshot) error {
	created := snap.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	body := encodeSnapshot(snap)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(snap.SessionID)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/octet-stream"),
		Metadata: map[string]string{
			"created-at": created.UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return fmt.Errorf("snapshot: put %s: %w", snap.SessionID, err)
	}
	return nil
}

// Get returns the snapshot for a session, or ErrNotFound.
func (s *S3Store) Get(ctx context.Context, sessionID string) (*Snapshot, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(sessionID)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("snapshot: get %s: %w", sessionID, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("snapshot: read %s: %w", sessionID, err)
	}
	snap, err := decodeSnapshot(data)
	if err != nil {
		return nil, fmt.Errorf("snapshot: decode %s: %w", sessionID, err)
	}
	snap.SessionID = sessionID
	if out.LastModified != nil {
		snap.CreatedAt = *out.LastModified
	}
	return snap, nil
}

// Delete removes a session's snapshot.
func (s *S3Store) Delete(ctx context.Context, sessionID string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(sessionID)),
	})
	if err != nil {
		return fmt.Errorf("snapshot: delete %s: %w", sessionID, err)
	}
	return nil
}

// Cleanup removes snapshots older than maxAge.
func (s *S3Store) Cleanup(ctx context.Context, maxAge time.Duration) error {
	cutoff := time.Now().Add(-maxAge)

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("snapshot: list: %w", err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil || obj.LastModified == nil {
				continue
			}
			if obj.LastModified.Before(cutoff) {
				_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
					Bucket: aws.String(s.bucket),
					Key:    obj.Key,
				})
				if err != nil {
					return fmt.Errorf("snapshot: cleanup %s: %w", *obj.Key, err)
				}
			}
		}
	}
	return nil
}

// Snapshots reuse the wire codec: markup string, tree bytes, sequence.
func encodeSnapshot(snap *Snapshot) []byte {
	e := protocol.NewEncoder()
	e.WriteUvarint(snap.Seq)
	e.WriteString(snap.Markup)
	e.WriteLenBytes(snap.Tree)
	return e.Bytes()
}

func decodeSnapshot(data []byte) (*Snapshot, error) {
	d := protocol.NewDecoder(data)
	snap := &Snapshot{}
	var err error
	if snap.Seq, err = d.ReadUvarint(); err != nil {
		return nil, err
	}
	if snap.Markup, err = d.ReadString(); err != nil {
		return nil, err
	}
	if snap.Tree, err = d.ReadLenBytes(); err != nil {
		return nil, err
	}
	return snap, nil
}
