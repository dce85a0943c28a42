package model

import "context"

type ContextManager interface {
	SetUserIDToContext(ctx context.Context, userID string) context.Context
	GetUserIDFromContext(ctx context.Context) (string, bool)
}
