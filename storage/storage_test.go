package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/tennis-tournament/config"
)

func TestPublicURL(t *testing.T) {
	tests := []struct {
		base, key, want string
	}{
		{"https://cdn.example.com", "exports/a.csv", "https://cdn.example.com/exports/a.csv"},
		{"https://cdn.example.com/", "/exports/a.csv", "https://cdn.example.com/exports/a.csv"},
		{"https://cdn.example.com/bucket", "a.csv", "https://cdn.example.com/bucket/a.csv"},
		{"", "a.csv", ""},
		{"https://cdn.example.com", "", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, publicURL(tt.base, tt.key), "%s + %s", tt.base, tt.key)
	}
}

func TestMemoryUploader(t *testing.T) {
	u := NewMemoryUploader("https://cdn.example.com")

	res, err := u.Upload(context.Background(), "exports/m.csv", "text/csv", strings.NewReader("id,name\n"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/exports/m.csv", res.Location)
	assert.NotEmpty(t, res.ETag)

	data, ok := u.Object("exports/m.csv")
	require.True(t, ok)
	assert.Equal(t, "id,name\n", string(data))

	require.NoError(t, u.Delete(context.Background(), "exports/m.csv"))
	_, ok = u.Object("exports/m.csv")
	assert.False(t, ok)
}

func TestNewCloudflareR2UploaderRequiresSettings(t *testing.T) {
	_, err := NewCloudflareR2Uploader(context.Background(), config.R2Config{AccountID: "acc"})
	assert.Error(t, err)
}

func TestNewCloudflareR2Uploader(t *testing.T) {
	u, err := NewCloudflareR2Uploader(context.Background(), config.R2Config{
		AccountID:       "acc",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		BucketName:      "exports",
		PublicBaseURL:   "https://pub.example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://pub.example.com/x.txt", u.GetPublicURL("x.txt"))
}
