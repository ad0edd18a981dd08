package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookclubapp/bookclub-server/internal/domain"
	apperrors "github.com/bookclubapp/bookclub-server/internal/errors"
)

func TestFallbackURLs_EmptyByDefault(t *testing.T) {
	env := newTestEnv(t)

	urls, err := env.settings.FallbackURLs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, urls)
}

func TestSaveFallbackURLs_Sanitizes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	urls, err := env.settings.SaveFallbackURLs(ctx, []string{
		"https://example.com/a.jpg",
		"  https://example.com/a.jpg ", // duplicate after trimming
		"javascript:alert(1)",          // rejected scheme
		"/api/uploads/featured-images/b.png",
		"",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://example.com/a.jpg",
		"/api/uploads/featured-images/b.png",
	}, urls)

	stored, err := env.settings.FallbackURLs(ctx)
	require.NoError(t, err)
	assert.Equal(t, urls, stored)
}

func TestFallbackURLs_SelfHealsStoredValue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// A stored pool with junk entries is rewritten clean on read.
	require.NoError(t, env.store.SetSetting(ctx, domain.SettingFeaturedImageFallbacks,
		`["https://example.com/a.jpg","not a url","https://example.com/a.jpg"]`))

	urls, err := env.settings.FallbackURLs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/a.jpg"}, urls)

	raw, err := env.store.GetSetting(ctx, domain.SettingFeaturedImageFallbacks)
	require.NoError(t, err)
	assert.JSONEq(t, `["https://example.com/a.jpg"]`, raw)
}

func TestAddFallbackURL_EnforcesCap(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	urls := make([]string, domain.FeaturedImageFallbackLimit)
	for i := range urls {
		urls[i] = "https://example.com/" + string(rune('a'+i)) + ".jpg"
	}
	_, err := env.settings.SaveFallbackURLs(ctx, urls)
	require.NoError(t, err)

	_, err = env.settings.AddFallbackURL(ctx, "https://example.com/extra.jpg")
	var appErr *apperrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, 400, appErr.HTTPStatus())
}

func TestRemoveFallbackURL(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.settings.SaveFallbackURLs(ctx, []string{
		"https://example.com/a.jpg",
		"https://example.com/b.jpg",
	})
	require.NoError(t, err)

	urls, err := env.settings.RemoveFallbackURL(ctx, "https://example.com/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/b.jpg"}, urls)

	_, err = env.settings.RemoveFallbackURL(ctx, "https://example.com/missing.jpg")
	var appErr *apperrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, 404, appErr.HTTPStatus())
}

func TestReleaseFeaturedImageIfUnused(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// External URLs and referenced URLs are left alone; the check only
	// matters for store-owned files, exercised via the books service in
	// TestSetFeaturedImage.
	require.NoError(t, env.settings.ReleaseFeaturedImageIfUnused(ctx, "https://example.com/keep.jpg"))
	require.NoError(t, env.settings.ReleaseFeaturedImageIfUnused(ctx, ""))
}
