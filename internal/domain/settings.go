package domain

// SettingFeaturedImageFallbacks is the app_settings key holding the rotating
// pool of featured-image URLs used when a featured book has no image of its own.
const SettingFeaturedImageFallbacks = "featured_image_fallback_urls"

// FeaturedImageFallbackLimit caps the fallback pool size.
const FeaturedImageFallbackLimit = 20
