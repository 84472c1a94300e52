// Package upload issues the reference a patient uses to send a referral
// document for an attachment_pending appointment.
package upload

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/hackgods/clinic-chat-scheduling/internal/appointment"
)

// Linker returns an upload reference for an appointment.
type Linker interface {
	UploadRef(ctx context.Context, appointmentID uuid.UUID) (string, error)
}

// PathLinker returns "{base}/attachments/{id}".
type PathLinker struct {
	BaseURL string
}

func (l PathLinker) UploadRef(_ context.Context, appointmentID uuid.UUID) (string, error) {
	return strings.TrimRight(l.BaseURL, "/") + "/" + appointment.AttachmentKey(appointmentID), nil
}

// PresignAPI is the subset of s3.PresignClient used by S3Linker.
type PresignAPI interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Linker hands out presigned PUT URLs under attachments/{id}.
type S3Linker struct {
	presign PresignAPI
	bucket  string
	ttl     time.Duration
}

func NewS3Linker(presign PresignAPI, bucket string, ttl time.Duration) *S3Linker {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &S3Linker{presign: presign, bucket: bucket, ttl: ttl}
}

func (l *S3Linker) UploadRef(ctx context.Context, appointmentID uuid.UUID) (string, error) {
	key := appointment.AttachmentKey(appointmentID)
	req, err := l.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(l.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(l.ttl))
	if err != nil {
		return "", fmt.Errorf("upload: presign %s: %w", key, err)
	}
	return req.URL, nil
}
