package places

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-key", WithBaseURL(srv.URL), WithPageDelay(0))
}

func TestGeocode_OK(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/geocode/json", r.URL.Path)
		assert.Equal(t, "Nugegoda, Sri Lanka", r.URL.Query().Get("address"))
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		fmt.Fprint(w, `{"status":"OK","results":[{"geometry":{"location":{"lat":6.8649,"lng":79.8997}}}]}`)
	}))

	loc, err := c.Geocode(context.Background(), "Nugegoda, Sri Lanka")
	require.NoError(t, err)
	assert.InDelta(t, 6.8649, loc.Lat, 0.0001)
	assert.InDelta(t, 79.8997, loc.Lng, 0.0001)
}

func TestGeocode_NonOKStatus(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"REQUEST_DENIED","error_message":"The provided API key is invalid.","results":[]}`)
	}))

	_, err := c.Geocode(context.Background(), "anywhere")
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, "REQUEST_DENIED", statusErr.Status)
	assert.Contains(t, statusErr.Message, "invalid")
}

func TestGeocode_ZeroResults(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"ZERO_RESULTS","results":[]}`)
	}))

	_, err := c.Geocode(context.Background(), "nowhere at all")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, "ZERO_RESULTS", statusErr.Status)
}

func TestNearbySearch_FollowsPageTokens(t *testing.T) {
	page := 0
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/place/nearbysearch/json", r.URL.Path)
		assert.Equal(t, "5000", r.URL.Query().Get("radius"))

		switch page {
		case 0:
			assert.Empty(t, r.URL.Query().Get("pagetoken"))
			fmt.Fprint(w, `{"results":[{"name":"A","place_id":"p1","vicinity":"v1"},{"name":"B","place_id":"p2","vicinity":"v2"}],"next_page_token":"tok-1"}`)
		case 1:
			assert.Equal(t, "tok-1", r.URL.Query().Get("pagetoken"))
			fmt.Fprint(w, `{"results":[{"name":"C","place_id":"p3","vicinity":"v3"}]}`)
		default:
			t.Fatalf("unexpected extra page request %d", page)
		}
		page++
	}))

	places, err := c.NearbySearch(context.Background(), NearbySearchRequest{
		Location:   LatLng{Lat: 6.9, Lng: 79.9},
		MaxResults: 10,
	})
	require.NoError(t, err)
	require.Len(t, places, 3)
	assert.Equal(t, "A", places[0].Name)
	assert.Equal(t, "p3", places[2].PlaceID)
	assert.Equal(t, 2, page)
}

func TestNearbySearch_StopsAtMaxResults(t *testing.T) {
	pages := 0
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages++
		fmt.Fprint(w, `{"results":[{"name":"A","place_id":"p1"},{"name":"B","place_id":"p2"},{"name":"C","place_id":"p3"}],"next_page_token":"more"}`)
	}))

	places, err := c.NearbySearch(context.Background(), NearbySearchRequest{
		Location:   LatLng{Lat: 1, Lng: 2},
		MaxResults: 2,
	})
	require.NoError(t, err)
	assert.Len(t, places, 2)
	assert.Equal(t, 1, pages)
}

func TestNearbySearch_NoCapFetchesAllPages(t *testing.T) {
	page := 0
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch page {
		case 0:
			fmt.Fprint(w, `{"results":[{"name":"A","place_id":"p1"},{"name":"B","place_id":"p2"}],"next_page_token":"tok-1"}`)
		case 1:
			fmt.Fprint(w, `{"results":[{"name":"C","place_id":"p3"}]}`)
		default:
			t.Fatalf("unexpected extra page request %d", page)
		}
		page++
	}))

	places, err := c.NearbySearch(context.Background(), NearbySearchRequest{
		Location: LatLng{Lat: 1, Lng: 2},
	})
	require.NoError(t, err)
	assert.Len(t, places, 3)
	assert.Equal(t, 2, page)
}

func TestNearbySearch_TypeFilter(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "restaurant", r.URL.Query().Get("type"))
		fmt.Fprint(w, `{"results":[]}`)
	}))

	places, err := c.NearbySearch(context.Background(), NearbySearchRequest{
		Location:   LatLng{Lat: 1, Lng: 2},
		Type:       "restaurant",
		MaxResults: 5,
	})
	require.NoError(t, err)
	assert.Empty(t, places)
}

func TestDetails_FixedFieldSet(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/place/details/json", r.URL.Path)
		assert.Equal(t, "p1", r.URL.Query().Get("place_id"))
		assert.Contains(t, r.URL.Query().Get("fields"), "website")
		assert.Contains(t, r.URL.Query().Get("fields"), "editorial_summary")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{
				"name":                   "Acme Bakery",
				"website":                "https://acmebakery.lk",
				"formatted_phone_number": "011 234 5678",
				"editorial_summary":      map[string]any{"overview": "A beloved local bakery."},
			},
		})
	}))

	detail, err := c.Details(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "Acme Bakery", detail.Name)
	assert.Equal(t, "https://acmebakery.lk", detail.Website)
	assert.Equal(t, "011 234 5678", detail.FormattedPhoneNumber)
	assert.Equal(t, "A beloved local bakery.", detail.EditorialSummary.Overview)
}

func TestDetails_MissingFieldsAreZeroValues(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":{"name":"No Frills Kiosk"}}`)
	}))

	detail, err := c.Details(context.Background(), "p2")
	require.NoError(t, err)
	assert.Equal(t, "No Frills Kiosk", detail.Name)
	assert.Empty(t, detail.Website)
	assert.Empty(t, detail.FormattedPhoneNumber)
	assert.Empty(t, detail.EditorialSummary.Overview)
}

func TestGetJSON_Non200Status(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "server error", http.StatusInternalServerError)
	}))

	_, err := c.Details(context.Background(), "p1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 500")
}
