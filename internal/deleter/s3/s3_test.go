package s3

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Options{Region: "us-east-1"})
	assert.ErrorContains(t, err, "bucket is required")
}
