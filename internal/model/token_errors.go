package model

import "errors"

var (
	ErrRefreshRevoked      = errors.New("refresh token revoked")
	ErrProviderUnavailable = errors.New("oauth provider unavailable")
	ErrProviderRejected    = errors.New("oauth provider rejected request")
	ErrUndecryptable       = errors.New("stored refresh token cannot be decrypted")
)
