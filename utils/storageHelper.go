package utils

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// getGoogleClient initializes a Google Cloud Storage client
func getGoogleClient(ctx context.Context) (*storage.Client, error) {
	// Prefer ADC (Cloud Run service account / GOOGLE_APPLICATION_CREDENTIALS).
	// If you need to provide explicit JSON (e.g. locally), set GCS_CREDENTIALS_JSON.
	if credJSON := os.Getenv("GCS_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		client, err := storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// ReadObject reads one object from a "gs://bucket/object" source into memory.
// Wholesaler extracts are a few MB at most.
func ReadObject(ctx context.Context, source string) ([]byte, error) {
	bucket, object, err := splitGSPath(source)
	if err != nil {
		return nil, err
	}

	client, err := getGoogleClient(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	rc, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return io.ReadAll(rc)
}

func IsGSPath(source string) bool {
	return strings.HasPrefix(strings.TrimSpace(source), "gs://")
}

func splitGSPath(source string) (bucket string, object string, err error) {
	s := strings.TrimPrefix(strings.TrimSpace(source), "gs://")
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.New("invalid gs:// path: " + source)
	}
	return parts[0], parts[1], nil
}
