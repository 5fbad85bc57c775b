package styles_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/style-hub/style-hub/internal/cache"
	"github.com/style-hub/style-hub/internal/styles"
	"github.com/style-hub/style-hub/internal/styles/mocks"
)

var sample = styles.Configuration{
	Name:        "Sample",
	SwiftFormat: "https://example.com/swiftformat",
	Uncrustify:  "https://example.com/uncrustify.cfg",
}

func leaseFile(t *testing.T, identity, content string) *cache.Lease {
	t.Helper()
	path := filepath.Join(t.TempDir(), filepath.Base(identity))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return &cache.Lease{Identity: identity, Path: path}
}

func TestWithConfiguration_Hit(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := mocks.NewMockMaterializer(ctrl)

	swift := leaseFile(t, sample.SwiftFormat, "--indent 4")
	uncrustify := leaseFile(t, sample.Uncrustify, "indent_columns = 4")
	m.EXPECT().Materialize(gomock.Any(), sample.SwiftFormat).Return(swift, nil)
	m.EXPECT().Materialize(gomock.Any(), sample.Uncrustify).Return(uncrustify, nil)

	var got styles.Paths
	err := styles.WithConfiguration(context.Background(), m, sample, func(p styles.Paths) error {
		got = p
		data, err := os.ReadFile(p.Uncrustify)
		require.NoError(t, err)
		assert.Equal(t, "indent_columns = 4", string(data))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, swift.Path, got.SwiftFormat)

	assert.NoFileExists(t, swift.Path)
	assert.NoFileExists(t, uncrustify.Path)
}

func TestWithConfiguration_MissSkipsCallback(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := mocks.NewMockMaterializer(ctrl)

	swift := leaseFile(t, sample.SwiftFormat, "--indent 4")
	m.EXPECT().Materialize(gomock.Any(), sample.SwiftFormat).Return(swift, nil)
	m.EXPECT().Materialize(gomock.Any(), sample.Uncrustify).Return(nil, cache.ErrCacheMiss)

	called := false
	err := styles.WithConfiguration(context.Background(), m, sample, func(styles.Paths) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, cache.ErrCacheMiss)
	assert.False(t, called)
	assert.NoFileExists(t, swift.Path)
}

func TestWithConfiguration_BothMissesAttempted(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := mocks.NewMockMaterializer(ctrl)

	m.EXPECT().Materialize(gomock.Any(), sample.SwiftFormat).Return(nil, cache.ErrCacheMiss)
	m.EXPECT().Materialize(gomock.Any(), sample.Uncrustify).Return(nil, cache.ErrCacheMiss)

	err := styles.WithConfiguration(context.Background(), m, sample, func(styles.Paths) error {
		t.Fatal("callback must not run")
		return nil
	})
	require.ErrorIs(t, err, cache.ErrCacheMiss)
}

func TestWithConfiguration_ReleasesOnCallbackErrorAndPanic(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := mocks.NewMockMaterializer(ctrl)

	first := leaseFile(t, sample.SwiftFormat, "a")
	second := leaseFile(t, sample.Uncrustify, "b")
	m.EXPECT().Materialize(gomock.Any(), sample.SwiftFormat).Return(first, nil)
	m.EXPECT().Materialize(gomock.Any(), sample.Uncrustify).Return(second, nil)

	boom := errors.New("boom")
	err := styles.WithConfiguration(context.Background(), m, sample, func(styles.Paths) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.NoFileExists(t, first.Path)
	assert.NoFileExists(t, second.Path)

	third := leaseFile(t, sample.SwiftFormat, "a")
	fourth := leaseFile(t, sample.Uncrustify, "b")
	m.EXPECT().Materialize(gomock.Any(), sample.SwiftFormat).Return(third, nil)
	m.EXPECT().Materialize(gomock.Any(), sample.Uncrustify).Return(fourth, nil)

	assert.Panics(t, func() {
		_ = styles.WithConfiguration(context.Background(), m, sample, func(styles.Paths) error {
			panic("formatter crashed")
		})
	})
	assert.NoFileExists(t, third.Path)
	assert.NoFileExists(t, fourth.Path)
}
