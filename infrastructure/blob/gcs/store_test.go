package gcs

import (
	"context"
	"fmt"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "qdesign-backend/pkg/errors"
)

func TestParseRef(t *testing.T) {
	tests := []struct {
		ref        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{ref: "gs://artifacts/qdesign/projects/p1/pool/i1", wantBucket: "artifacts", wantObject: "qdesign/projects/p1/pool/i1"},
		{ref: "mem://projects/p1", wantErr: true},
		{ref: "gs://artifacts", wantErr: true},
		{ref: "gs:///object", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			bucket, object, err := parseRef(tt.ref)
			if tt.wantErr {
				assert.True(t, apperrors.IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBucket, bucket)
			assert.Equal(t, tt.wantObject, object)
		})
	}
}

func TestObjectName(t *testing.T) {
	s := NewStore(nil, "artifacts", "/qdesign/", zap.NewNop())
	assert.Equal(t, "qdesign/projects/p1/pool/i1", s.objectName("projects/p1/pool/i1"))

	bare := NewStore(nil, "artifacts", "", zap.NewNop())
	assert.Equal(t, "projects/p1", bare.objectName("projects/p1"))
}

func TestForeignBucketIsRejected(t *testing.T) {
	s := NewStore(nil, "artifacts", "", zap.NewNop())
	_, err := s.object("gs://someone-else/object")
	assert.True(t, apperrors.IsValidation(err))
}

func TestClassify(t *testing.T) {
	assert.True(t, apperrors.IsNotFound(classify(storage.ErrObjectNotExist, "x")))
	assert.True(t, apperrors.IsUpstreamTimeout(classify(fmt.Errorf("read: %w", context.DeadlineExceeded), "x")))
	assert.True(t, apperrors.IsInternal(classify(storage.ErrBucketNotExist, "x")))
}
