package common

const (
	SocialProviderGoogle   = "google"
	SocialProviderFacebook = "facebook"

	TokenTypeBearer = "bearer"

	RefreshTokenKeyPrefix = "refresh_token:"
)
