package simklapi

import (
	"context"
	"fmt"
	"net/url"

	"simklscrobbler/models"
)

// SearchMovie calls GET /search/movie?q=<title>&extended=full and returns
// the decoded result array.
func (c *Client) SearchMovie(ctx context.Context, accessToken, title string) ([]MovieResult, error) {
	reqURL := fmt.Sprintf("%s/search/movie?q=%s&extended=full", baseURL, url.QueryEscape(title))

	req, err := newJSONRequest(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, err
	}

	var results []MovieResult
	if _, err := c.do(req, accessToken, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// SearchFile calls POST /search/file with the absolute path, used to
// identify a playing file directly by hash/name without a title query.
func (c *Client) SearchFile(ctx context.Context, accessToken, absolutePath string) (*FileSearchResponse, error) {
	reqURL := baseURL + "/search/file"

	req, err := newJSONRequest(ctx, "POST", reqURL, map[string]string{"file": absolutePath})
	if err != nil {
		return nil, err
	}

	var result FileSearchResponse
	if _, err := c.do(req, accessToken, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetMovie calls GET /movies/<simkl_id>?extended=full.
func (c *Client) GetMovie(ctx context.Context, accessToken string, simklID int) (*MovieDetail, error) {
	reqURL := fmt.Sprintf("%s/movies/%d?extended=full", baseURL, simklID)

	req, err := newJSONRequest(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, err
	}

	var detail MovieDetail
	if _, err := c.do(req, accessToken, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// SyncHistory calls POST /sync/history with a payload built per identity's
// kind. It returns ErrIdentityIncomplete without making a call when an
// episodic identity is missing season/episode, per spec.md §4.6 step 4.
func (c *Client) SyncHistory(ctx context.Context, accessToken string, identity models.MediaIdentity) error {
	payload, err := buildSyncPayload(identity)
	if err != nil {
		return err
	}

	req, err := newJSONRequest(ctx, "POST", baseURL+"/sync/history", payload)
	if err != nil {
		return err
	}

	_, err = c.do(req, accessToken, nil)
	return err
}

// buildSyncPayload constructs the request body for POST /sync/history
// according to identity.Kind, per spec.md §6.1.
func buildSyncPayload(identity models.MediaIdentity) (interface{}, error) {
	simklID, err := identity.SimklIDInt()
	if err != nil {
		return nil, err
	}

	switch identity.Kind {
	case models.KindMovie:
		return historySyncMoviePayload{
			Movies: []historySyncMovieEntry{{IDs: IDs{Simkl: simklID}}},
		}, nil

	case models.KindShow:
		if !identity.HasEpisodeInfo() {
			return nil, ErrIdentityIncomplete
		}
		return historySyncShowPayload{
			Shows: []historySyncShowEntry{{
				IDs: IDs{Simkl: simklID},
				Seasons: []historySyncSeason{{
					Number:   identity.Season,
					Episodes: []historySyncEpisode{{Number: identity.Episode}},
				}},
			}},
		}, nil

	case models.KindAnime:
		if !identity.HasEpisodeInfo() {
			return nil, ErrIdentityIncomplete
		}
		return historySyncShowPayload{
			Shows: []historySyncShowEntry{{
				IDs:      IDs{Simkl: simklID},
				Episodes: []historySyncEpisode{{Number: identity.Episode}},
			}},
		}, nil

	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrIdentityIncomplete, identity.Kind)
	}
}
