package credentials

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	s, err := New(fs, "/data")
	require.NoError(t, err)

	token := Token{AccessToken: "abc", RefreshToken: "def", ExpiresAt: time.Now().UTC().Truncate(time.Second)}
	require.NoError(t, s.Save(token))

	loaded, err := s.Load()
	require.NoError(t, err)
	require.Equal(t, token.AccessToken, loaded.AccessToken)
	require.Equal(t, token.RefreshToken, loaded.RefreshToken)
}

func TestStore_LoadWithoutSaveReturnsErrNoCredentials(t *testing.T) {
	fs := afero.NewMemMapFs()
	s, err := New(fs, "/data")
	require.NoError(t, err)

	_, err = s.Load()
	require.ErrorIs(t, err, ErrNoCredentials)
}

func TestStore_DataIsEncryptedAtRest(t *testing.T) {
	fs := afero.NewMemMapFs()
	s, err := New(fs, "/data")
	require.NoError(t, err)

	require.NoError(t, s.Save(Token{AccessToken: "super-secret-token"}))

	raw, err := afero.ReadFile(fs, "/data/credentials.enc")
	require.NoError(t, err)
	require.NotContains(t, string(raw), "super-secret-token")
}

func TestStore_ClearRemovesToken(t *testing.T) {
	fs := afero.NewMemMapFs()
	s, err := New(fs, "/data")
	require.NoError(t, err)
	require.NoError(t, s.Save(Token{AccessToken: "x"}))
	require.NoError(t, s.Clear())

	_, err = s.Load()
	require.ErrorIs(t, err, ErrNoCredentials)
}

func TestGenerateRandomNonce_Unique(t *testing.T) {
	a, err := GenerateRandomNonce()
	require.NoError(t, err)
	b, err := GenerateRandomNonce()
	require.NoError(t, err)
	require.NotEqual(t, a, b)
	require.Len(t, a.ToBytes(), fileNonceSize)
}
