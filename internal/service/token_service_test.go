package service

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	servermocks "github.com/dtroode/gcal-connect/internal/mocks"
	"github.com/dtroode/gcal-connect/internal/model"
	"github.com/dtroode/gcal-connect/internal/oauth"
	"github.com/dtroode/gcal-connect/internal/testutil"
)

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func newTestService(store model.TokenStore, provider model.OAuthProvider, opts ...Option) *TokenService {
	policy := NewReturnURLPolicy("https://app.example.com/", []string{"https://example.com"})
	opts = append([]Option{WithClock(fixedClock)}, opts...)
	return NewTokenService(store, provider, policy, testutil.MakeNoopLogger(), opts...)
}

func mustState(t *testing.T, userID, returnURL string) string {
	t.Helper()
	s, err := EncodeState(OAuthState{UserID: userID, ReturnURL: returnURL})
	require.NoError(t, err)
	return s
}

func TestTokenService_BeginConnect_StateRoundTrip(t *testing.T) {
	provider := oauth.NewGoogle(oauth.Credentials{ClientID: "id", ClientSecret: "secret", RedirectURL: "http://localhost/cb"})
	svc := newTestService(servermocks.NewTokenStore(t), provider)

	consent, err := svc.BeginConnect(context.Background(), "u1", "https://example.com/app")
	require.NoError(t, err)

	u, err := url.Parse(consent)
	require.NoError(t, err)
	assert.Equal(t, "offline", u.Query().Get("access_type"))
	assert.Equal(t, "consent", u.Query().Get("prompt"))

	state, err := DecodeState(u.Query().Get("state"))
	require.NoError(t, err)
	assert.Equal(t, OAuthState{UserID: "u1", ReturnURL: "https://example.com/app"}, state)
}

func TestTokenService_BeginConnect_MissingUserID(t *testing.T) {
	svc := newTestService(servermocks.NewTokenStore(t), servermocks.NewOAuthProvider(t))

	_, err := svc.BeginConnect(context.Background(), "", "https://example.com/app")
	require.ErrorIs(t, err, model.ErrMissingUserID)
}

func TestTokenService_CompleteConnect(t *testing.T) {
	ctx := context.Background()
	expiry := testNow.Add(time.Hour)

	store := servermocks.NewTokenStore(t)
	provider := servermocks.NewOAuthProvider(t)

	provider.On("Exchange", ctx, "code-1").Return(model.ProviderToken{AccessToken: "at-1", RefreshToken: "rt-1", Expiry: expiry}, nil).Once()
	provider.On("FetchEmail", ctx, "at-1").Return("u1@example.com", nil).Once()
	store.On("Upsert", ctx, model.OAuthTokenRecord{
		UserID:       "u1",
		RefreshToken: "rt-1",
		AccessToken:  "at-1",
		TokenExpiry:  expiry,
		AccountEmail: "u1@example.com",
	}).Return(nil).Once()

	svc := newTestService(store, provider)

	res, err := svc.CompleteConnect(ctx, "code-1", mustState(t, "u1", "https://example.com/app"))
	require.NoError(t, err)
	assert.Equal(t, ConnectResult{Email: "u1@example.com", ReturnURL: "https://example.com/app"}, res)
}

func TestTokenService_CompleteConnect_NoRefreshTokenReusesStored(t *testing.T) {
	ctx := context.Background()
	expiry := testNow.Add(time.Hour)

	store := servermocks.NewTokenStore(t)
	provider := servermocks.NewOAuthProvider(t)

	provider.On("Exchange", ctx, "code").Return(model.ProviderToken{AccessToken: "at-2", Expiry: expiry}, nil).Once()
	provider.On("FetchEmail", ctx, "at-2").Return("u1@example.com", nil).Once()
	store.On("Get", ctx, "u1").Return(model.OAuthTokenRecord{UserID: "u1", RefreshToken: "rt-old"}, true, nil).Once()
	store.On("Upsert", ctx, mock.MatchedBy(func(r model.OAuthTokenRecord) bool {
		return r.RefreshToken == "rt-old" && r.AccessToken == "at-2"
	})).Return(nil).Once()

	svc := newTestService(store, provider)

	_, err := svc.CompleteConnect(ctx, "code", mustState(t, "u1", ""))
	require.NoError(t, err)
}

func TestTokenService_CompleteConnect_NoRefreshTokenFirstConnect(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemoryTokenStore(fixedClock)
	provider := servermocks.NewOAuthProvider(t)

	provider.On("Exchange", ctx, "code").Return(model.ProviderToken{AccessToken: "at", Expiry: testNow.Add(time.Hour)}, nil).Once()
	provider.On("FetchEmail", ctx, "at").Return("u1@example.com", nil).Once()

	svc := newTestService(store, provider)

	res, err := svc.CompleteConnect(ctx, "code", mustState(t, "u1", ""))
	require.NoError(t, err)
	assert.Equal(t, "u1@example.com", res.Email)
	assert.Equal(t, "https://app.example.com/", res.ReturnURL)

	rec, found, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Empty(t, rec.RefreshToken)

	status, err := svc.ConnectionStatus(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, status.Connected)
}

func TestTokenService_CompleteConnect_ProviderFailureWritesNothing(t *testing.T) {
	ctx := context.Background()

	t.Run("exchange", func(t *testing.T) {
		store := servermocks.NewTokenStore(t)
		provider := servermocks.NewOAuthProvider(t)
		provider.On("Exchange", ctx, "bad").Return(model.ProviderToken{}, model.ErrProviderRejected).Once()

		_, err := newTestService(store, provider).CompleteConnect(ctx, "bad", mustState(t, "u1", ""))
		require.ErrorIs(t, err, model.ErrProviderRejected)
		store.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	})

	t.Run("email", func(t *testing.T) {
		store := servermocks.NewTokenStore(t)
		provider := servermocks.NewOAuthProvider(t)
		provider.On("Exchange", ctx, "code").Return(model.ProviderToken{AccessToken: "at", RefreshToken: "rt"}, nil).Once()
		provider.On("FetchEmail", ctx, "at").Return("", model.ErrProviderUnavailable).Once()

		_, err := newTestService(store, provider).CompleteConnect(ctx, "code", mustState(t, "u1", ""))
		require.ErrorIs(t, err, model.ErrProviderUnavailable)
		store.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	})
}

func TestTokenService_CompleteConnect_InvalidInput(t *testing.T) {
	svc := newTestService(servermocks.NewTokenStore(t), servermocks.NewOAuthProvider(t))

	_, err := svc.CompleteConnect(context.Background(), "code", "garbage!")
	require.ErrorIs(t, err, model.ErrInvalidState)

	res, err := svc.CompleteConnect(context.Background(), "", mustState(t, "u1", "https://example.com/x"))
	require.ErrorIs(t, err, model.ErrMissingCode)
	assert.Equal(t, "https://example.com/x", res.ReturnURL)
}

func TestTokenService_GetValidAccessToken_NotConnected(t *testing.T) {
	ctx := context.Background()
	store := servermocks.NewTokenStore(t)
	store.On("Get", ctx, "u1").Return(model.OAuthTokenRecord{}, false, nil).Once()

	_, err := newTestService(store, servermocks.NewOAuthProvider(t)).GetValidAccessToken(ctx, "u1")
	require.ErrorIs(t, err, model.ErrNotConnected)
}

func TestTokenService_GetValidAccessToken_ExpiryBoundary(t *testing.T) {
	ctx := context.Background()

	t.Run("one millisecond before skew is fresh", func(t *testing.T) {
		store := servermocks.NewTokenStore(t)
		provider := servermocks.NewOAuthProvider(t)
		store.On("Get", ctx, "u1").Return(model.OAuthTokenRecord{
			UserID: "u1", RefreshToken: "rt", AccessToken: "at-cached",
			TokenExpiry: testNow.Add(model.RefreshSkew + time.Millisecond),
		}, true, nil).Once()

		token, err := newTestService(store, provider).GetValidAccessToken(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "at-cached", token)
		provider.AssertNotCalled(t, "Refresh", mock.Anything, mock.Anything)
	})

	t.Run("exactly at skew refreshes", func(t *testing.T) {
		store := servermocks.NewTokenStore(t)
		provider := servermocks.NewOAuthProvider(t)
		newExpiry := testNow.Add(time.Hour)

		store.On("Get", ctx, "u1").Return(model.OAuthTokenRecord{
			UserID: "u1", RefreshToken: "rt", AccessToken: "at-old",
			TokenExpiry: testNow.Add(model.RefreshSkew),
		}, true, nil).Once()
		provider.On("Refresh", ctx, "rt").Return(model.ProviderToken{AccessToken: "at-new", Expiry: newExpiry}, nil).Once()
		store.On("UpdateAccessToken", ctx, "u1", "at-new", newExpiry).Return(nil).Once()

		token, err := newTestService(store, provider).GetValidAccessToken(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "at-new", token)
	})
}

func TestTokenService_GetValidAccessToken_RotatedRefreshToken(t *testing.T) {
	ctx := context.Background()
	store := servermocks.NewTokenStore(t)
	provider := servermocks.NewOAuthProvider(t)
	newExpiry := testNow.Add(time.Hour)

	store.On("Get", ctx, "u1").Return(model.OAuthTokenRecord{
		UserID: "u1", RefreshToken: "rt-old", AccessToken: "at-old", AccountEmail: "u1@example.com",
		TokenExpiry: testNow.Add(-time.Minute),
	}, true, nil).Once()
	provider.On("Refresh", ctx, "rt-old").Return(model.ProviderToken{AccessToken: "at-new", RefreshToken: "rt-new", Expiry: newExpiry}, nil).Once()
	store.On("Upsert", ctx, model.OAuthTokenRecord{
		UserID: "u1", RefreshToken: "rt-new", AccessToken: "at-new", AccountEmail: "u1@example.com",
		TokenExpiry: newExpiry,
	}).Return(nil).Once()

	token, err := newTestService(store, provider).GetValidAccessToken(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "at-new", token)
}

func TestTokenService_GetValidAccessToken_SelfHealing(t *testing.T) {
	ctx := context.Background()
	stale := model.OAuthTokenRecord{UserID: "u1", RefreshToken: "rt", AccessToken: "at", TokenExpiry: testNow.Add(-time.Hour)}

	t.Run("revoked refresh token deletes record", func(t *testing.T) {
		store := testutil.NewMemoryTokenStore(fixedClock)
		require.NoError(t, store.Upsert(ctx, stale))
		provider := servermocks.NewOAuthProvider(t)
		provider.On("Refresh", ctx, "rt").Return(model.ProviderToken{}, model.ErrRefreshRevoked).Once()

		_, err := newTestService(store, provider).GetValidAccessToken(ctx, "u1")
		require.ErrorIs(t, err, model.ErrNotConnected)
		assert.Equal(t, 0, store.Len())
	})

	t.Run("missing refresh token deletes record", func(t *testing.T) {
		store := testutil.NewMemoryTokenStore(fixedClock)
		rec := stale
		rec.RefreshToken = ""
		require.NoError(t, store.Upsert(ctx, rec))

		_, err := newTestService(store, servermocks.NewOAuthProvider(t)).GetValidAccessToken(ctx, "u1")
		require.ErrorIs(t, err, model.ErrNotConnected)
		assert.Equal(t, 0, store.Len())
	})

	t.Run("undecryptable refresh token deletes record", func(t *testing.T) {
		store := servermocks.NewTokenStore(t)
		store.On("Get", ctx, "u1").Return(model.OAuthTokenRecord{UserID: "u1"}, true, model.ErrUndecryptable).Once()
		store.On("Delete", ctx, "u1").Return(nil).Once()

		_, err := newTestService(store, servermocks.NewOAuthProvider(t)).GetValidAccessToken(ctx, "u1")
		require.ErrorIs(t, err, model.ErrNotConnected)
	})

	t.Run("transient failure keeps record", func(t *testing.T) {
		store := testutil.NewMemoryTokenStore(fixedClock)
		require.NoError(t, store.Upsert(ctx, stale))
		provider := servermocks.NewOAuthProvider(t)
		provider.On("Refresh", ctx, "rt").Return(model.ProviderToken{}, model.ErrProviderUnavailable).Once()

		_, err := newTestService(store, provider).GetValidAccessToken(ctx, "u1")
		require.ErrorIs(t, err, model.ErrProviderUnavailable)
		assert.NotErrorIs(t, err, model.ErrNotConnected)
		assert.Equal(t, 1, store.Len())
	})

	t.Run("unclassified failure keeps record", func(t *testing.T) {
		store := testutil.NewMemoryTokenStore(fixedClock)
		require.NoError(t, store.Upsert(ctx, stale))
		provider := servermocks.NewOAuthProvider(t)
		provider.On("Refresh", ctx, "rt").Return(model.ProviderToken{}, model.ErrProviderRejected).Once()

		_, err := newTestService(store, provider).GetValidAccessToken(ctx, "u1")
		require.Error(t, err)
		assert.Equal(t, 1, store.Len())
	})

	t.Run("delete failure is reported", func(t *testing.T) {
		store := servermocks.NewTokenStore(t)
		provider := servermocks.NewOAuthProvider(t)
		store.On("Get", ctx, "u1").Return(stale, true, nil).Once()
		provider.On("Refresh", ctx, "rt").Return(model.ProviderToken{}, model.ErrRefreshRevoked).Once()
		store.On("Delete", ctx, "u1").Return(errors.New("db down")).Once()

		_, err := newTestService(store, provider).GetValidAccessToken(ctx, "u1")
		require.Error(t, err)
		assert.NotErrorIs(t, err, model.ErrNotConnected)
	})
}

func TestTokenService_GetValidAccessToken_DisconnectedDuringRefresh(t *testing.T) {
	ctx := context.Background()
	store := servermocks.NewTokenStore(t)
	provider := servermocks.NewOAuthProvider(t)
	newExpiry := testNow.Add(time.Hour)

	store.On("Get", ctx, "u1").Return(model.OAuthTokenRecord{UserID: "u1", RefreshToken: "rt", TokenExpiry: testNow}, true, nil).Once()
	provider.On("Refresh", ctx, "rt").Return(model.ProviderToken{AccessToken: "at", Expiry: newExpiry}, nil).Once()
	store.On("UpdateAccessToken", ctx, "u1", "at", newExpiry).Return(model.ErrNotFound).Once()

	_, err := newTestService(store, provider).GetValidAccessToken(ctx, "u1")
	require.ErrorIs(t, err, model.ErrNotConnected)
}

func TestTokenService_GetValidAccessToken_StoreError(t *testing.T) {
	ctx := context.Background()
	store := servermocks.NewTokenStore(t)
	store.On("Get", ctx, "u1").Return(model.OAuthTokenRecord{}, false, errors.New("db down")).Once()

	_, err := newTestService(store, servermocks.NewOAuthProvider(t)).GetValidAccessToken(ctx, "u1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, model.ErrNotConnected)
}

func TestTokenService_Disconnect_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemoryTokenStore(fixedClock)
	svc := newTestService(store, servermocks.NewOAuthProvider(t))

	require.NoError(t, svc.Disconnect(ctx, "never-connected"))
	require.NoError(t, svc.Disconnect(ctx, "never-connected"))

	status, err := svc.ConnectionStatus(ctx, "never-connected")
	require.NoError(t, err)
	assert.False(t, status.Connected)
}

func TestTokenService_Disconnect_Revokes(t *testing.T) {
	ctx := context.Background()

	t.Run("revoke succeeds", func(t *testing.T) {
		store := testutil.NewMemoryTokenStore(fixedClock)
		require.NoError(t, store.Upsert(ctx, model.OAuthTokenRecord{UserID: "u1", RefreshToken: "rt"}))
		provider := servermocks.NewOAuthProvider(t)
		provider.On("Revoke", ctx, "rt").Return(nil).Once()

		require.NoError(t, newTestService(store, provider).Disconnect(ctx, "u1"))
		assert.Equal(t, 0, store.Len())
	})

	t.Run("revoke failure still deletes", func(t *testing.T) {
		store := testutil.NewMemoryTokenStore(fixedClock)
		require.NoError(t, store.Upsert(ctx, model.OAuthTokenRecord{UserID: "u1", RefreshToken: "rt"}))
		provider := servermocks.NewOAuthProvider(t)
		provider.On("Revoke", ctx, "rt").Return(model.ErrProviderUnavailable).Once()

		require.NoError(t, newTestService(store, provider).Disconnect(ctx, "u1"))
		assert.Equal(t, 0, store.Len())
	})

	t.Run("revoke disabled", func(t *testing.T) {
		store := testutil.NewMemoryTokenStore(fixedClock)
		require.NoError(t, store.Upsert(ctx, model.OAuthTokenRecord{UserID: "u1", RefreshToken: "rt"}))
		provider := servermocks.NewOAuthProvider(t)

		require.NoError(t, newTestService(store, provider, WithRevokeOnDisconnect(false)).Disconnect(ctx, "u1"))
		assert.Equal(t, 0, store.Len())
		provider.AssertNotCalled(t, "Revoke", mock.Anything, mock.Anything)
	})

	t.Run("store failure", func(t *testing.T) {
		store := servermocks.NewTokenStore(t)
		store.On("Delete", ctx, "u1").Return(errors.New("db down")).Once()

		err := newTestService(store, servermocks.NewOAuthProvider(t), WithRevokeOnDisconnect(false)).Disconnect(ctx, "u1")
		require.Error(t, err)
	})
}

func TestTokenService_ConnectionStatus(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		rec   model.OAuthTokenRecord
		found bool
		err   error
		want  model.ConnectionStatus
	}{
		{
			name:  "connected",
			rec:   model.OAuthTokenRecord{UserID: "u1", RefreshToken: "rt", AccountEmail: "u1@example.com"},
			found: true,
			want:  model.ConnectionStatus{Connected: true, Email: "u1@example.com"},
		},
		{
			name:  "empty refresh token",
			rec:   model.OAuthTokenRecord{UserID: "u1", AccountEmail: "u1@example.com"},
			found: true,
			want:  model.ConnectionStatus{},
		},
		{name: "absent", want: model.ConnectionStatus{}},
		{name: "undecryptable", found: true, err: model.ErrUndecryptable, want: model.ConnectionStatus{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := servermocks.NewTokenStore(t)
			store.On("Get", ctx, "u1").Return(tt.rec, tt.found, tt.err).Once()

			got, err := newTestService(store, servermocks.NewOAuthProvider(t)).ConnectionStatus(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTokenService_RequiresUserID(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(servermocks.NewTokenStore(t), servermocks.NewOAuthProvider(t))

	_, err := svc.GetValidAccessToken(ctx, "")
	require.ErrorIs(t, err, model.ErrMissingUserID)
	require.ErrorIs(t, svc.Disconnect(ctx, ""), model.ErrMissingUserID)
	_, err = svc.ConnectionStatus(ctx, "")
	require.ErrorIs(t, err, model.ErrMissingUserID)
}
