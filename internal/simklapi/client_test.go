package simklapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"simklscrobbler/models"
)

func withTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	orig := baseURL
	setBaseURL(srv.URL)
	t.Cleanup(func() {
		setBaseURL(orig)
		srv.Close()
	})
	return srv
}

func TestSearchMovie_ParsesResults(t *testing.T) {
	withTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search/movie", r.URL.Path)
		require.Equal(t, "Inception", r.URL.Query().Get("q"))
		require.Equal(t, "test-client", r.Header.Get("simkl-api-key"))

		_ = json.NewEncoder(w).Encode([]MovieResult{
			{Title: "Inception", Year: 2010, Runtime: 148, IDs: IDs{Simkl: 635}},
		})
	})

	c := NewClient("test-client")
	results, err := c.SearchMovie(context.Background(), "token", "Inception")
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, 635, results[0].IDs.Simkl)
}

func TestSearchFile_ReturnsShowAndEpisode(t *testing.T) {
	withTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search/file", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		require.Equal(t, "/m/Show.S02E05.mkv", body["file"])

		_ = json.NewEncoder(w).Encode(FileSearchResponse{
			Show:    &FileSearchShow{IDs: IDs{Simkl: 999}, Type: "show"},
			Episode: &FileSearchEpisode{Season: 2, Episode: 5},
		})
	})

	c := NewClient("test-client")
	result, err := c.SearchFile(context.Background(), "token", "/m/Show.S02E05.mkv")
	require.NoError(t, err)
	require.NotNil(t, result.Show)
	require.Equal(t, 999, result.Show.IDs.Simkl)
	require.Equal(t, 2, result.Episode.Season)
	require.Equal(t, 5, result.Episode.Episode)
}

func TestSyncHistory_MoviePayload(t *testing.T) {
	var received historySyncMoviePayload
	withTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/sync/history", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusCreated)
	})

	c := NewClient("test-client")
	err := c.SyncHistory(context.Background(), "token", models.MediaIdentity{
		SimklID: "635",
		Kind:    models.KindMovie,
	})
	require.NoError(t, err)
	require.Equal(t, 635, received.Movies[0].IDs.Simkl)
}

func TestSyncHistory_ShowPayload(t *testing.T) {
	var received historySyncShowPayload
	withTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	})

	c := NewClient("test-client")
	err := c.SyncHistory(context.Background(), "token", models.MediaIdentity{
		SimklID: "999",
		Kind:    models.KindShow,
		Season:  2,
		Episode: 5,
	})
	require.NoError(t, err)
	require.Equal(t, 999, received.Shows[0].IDs.Simkl)
	require.Equal(t, 2, received.Shows[0].Seasons[0].Number)
	require.Equal(t, 5, received.Shows[0].Seasons[0].Episodes[0].Number)
}

func TestSyncHistory_IncompleteEpisodeIdentityErrors(t *testing.T) {
	c := NewClient("test-client")
	err := c.SyncHistory(context.Background(), "token", models.MediaIdentity{
		SimklID: "999",
		Kind:    models.KindShow,
	})
	require.ErrorIs(t, err, ErrIdentityIncomplete)
}

func TestSyncHistory_TemporaryIdentityErrors(t *testing.T) {
	c := NewClient("test-client")
	err := c.SyncHistory(context.Background(), "token", models.MediaIdentity{
		SimklID: "temp:abc",
		Kind:    models.KindMovie,
	})
	require.Error(t, err)
}

func TestGetMovie_Decodes(t *testing.T) {
	withTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/movies/635", r.URL.Path)
		_ = json.NewEncoder(w).Encode(MovieDetail{Title: "Inception", Year: 2010, Runtime: 148, IDs: IDs{Simkl: 635}})
	})

	c := NewClient("test-client")
	detail, err := c.GetMovie(context.Background(), "token", 635)
	require.NoError(t, err)
	require.Equal(t, "Inception", detail.Title)
}

func TestDo_NonOKStatusIsError(t *testing.T) {
	withTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	c := NewClient("test-client")
	_, err := c.SearchMovie(context.Background(), "token", "x")
	require.Error(t, err)
}

func TestStartDeviceAuth_Decodes(t *testing.T) {
	withTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/oauth/pin", r.URL.Path)
		_ = json.NewEncoder(w).Encode(DeviceCodeResponse{
			UserCode: "ABCD1234", VerificationURL: "https://simkl.com/pin", ExpiresIn: 900, Interval: 5,
		})
	})

	c := NewClient("test-client")
	dc, err := c.StartDeviceAuth(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ABCD1234", dc.UserCode)
}

func TestPollDeviceAuth_PendingReturnsNil(t *testing.T) {
	withTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	c := NewClient("test-client")
	token, err := c.PollDeviceAuth(context.Background(), "ABCD1234")
	require.NoError(t, err)
	require.Nil(t, token)
}

func TestPollDeviceAuth_SuccessReturnsToken(t *testing.T) {
	withTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"result": "OK", "access_token": "tok-123"})
	})

	c := NewClient("test-client")
	token, err := c.PollDeviceAuth(context.Background(), "ABCD1234")
	require.NoError(t, err)
	require.Equal(t, "tok-123", token.AccessToken)
}
