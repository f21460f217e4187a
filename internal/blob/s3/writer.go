package s3blob

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// multipartThreshold is the payload size above which the writer switches from
// a single PutObject to a multipart upload. Grid-search reports with
// thousands of candidates can exceed this easily.
const multipartThreshold = 8 * 1024 * 1024

// multipartPartSize is the part size for multipart uploads. S3 requires at
// least 5 MiB per part.
const multipartPartSize int64 = 5 * 1024 * 1024

// reportContentType is the content type of every object this writer uploads.
// Run reports are always JSON documents.
const reportContentType = "application/json"

// Writer uploads run-report payloads to the client's bucket. It implements
// domain.BlobWriter.
type Writer struct {
	client *s3.Client
	bucket string
}

// NewWriter creates a Writer that uploads reports to the given client's
// configured bucket.
func NewWriter(c *Client) *Writer {
	return &Writer{
		client: c.S3(),
		bucket: c.Bucket(),
	}
}

// PutReport uploads one JSON report payload at the given key. Payloads above
// the multipart threshold go through the SDK upload manager, which splits
// them into parts and uploads the parts concurrently; everything else is a
// single PutObject call.
func (w *Writer) PutReport(ctx context.Context, path string, payload []byte) error {
	if int64(len(payload)) > multipartThreshold {
		return w.putMultipart(ctx, path, payload)
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(path),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String(reportContentType),
	}

	if _, err := w.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("s3blob: put report %s: %w", path, err)
	}
	return nil
}

func (w *Writer) putMultipart(ctx context.Context, path string, payload []byte) error {
	uploader := manager.NewUploader(w.client, func(u *manager.Uploader) {
		u.PartSize = multipartPartSize
	})

	input := &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(path),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String(reportContentType),
	}

	if _, err := uploader.Upload(ctx, input); err != nil {
		return fmt.Errorf("s3blob: multipart report %s: %w", path, err)
	}
	return nil
}
