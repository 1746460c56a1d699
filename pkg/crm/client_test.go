package crm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pagedServer(t *testing.T, total int, calls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		assert.Equal(t, "/locations/loc-1/customValues", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, DefaultAPIVersion, r.Header.Get("Version"))

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))

		values := []CustomValue{}
		for i := skip; i < skip+limit && i < total; i++ {
			values = append(values, CustomValue{ID: fmt.Sprintf("id-%d", i), Name: fmt.Sprintf("key_%d", i), Value: "v"})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"customValues": values})
	}))
}

func TestFetchAll_StopsOnShortPage(t *testing.T) {
	var calls int32
	srv := pagedServer(t, 250, &calls)
	defer srv.Close()

	client := NewClient(Options{BaseURL: srv.URL})
	values, err := client.FetchAll(context.Background(), "loc-1", "tok")

	require.NoError(t, err)
	assert.Len(t, values, 250)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, "key_249", values[249].Name)
}

func TestFetchAll_ExactMultipleNeedsOneMorePage(t *testing.T) {
	var calls int32
	srv := pagedServer(t, 200, &calls)
	defer srv.Close()

	client := NewClient(Options{BaseURL: srv.URL})
	values, err := client.FetchAll(context.Background(), "loc-1", "tok")

	require.NoError(t, err)
	assert.Len(t, values, 200)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetchAll_HardCap(t *testing.T) {
	var calls int32
	srv := pagedServer(t, 1_000_000, &calls)
	defer srv.Close()

	client := NewClient(Options{BaseURL: srv.URL})
	values, err := client.FetchAll(context.Background(), "loc-1", "tok")

	require.NoError(t, err)
	assert.Len(t, values, DefaultMaxRecords)
	assert.Equal(t, int32(DefaultMaxRecords/DefaultPageSize), atomic.LoadInt32(&calls))
}

func TestFetchAll_ErrorIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("skip") == "100" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Invalid JWT"}`))
			return
		}
		values := make([]CustomValue, 100)
		_ = json.NewEncoder(w).Encode(map[string]any{"customValues": values})
	}))
	defer srv.Close()

	client := NewClient(Options{BaseURL: srv.URL})
	values, err := client.FetchAll(context.Background(), "loc-1", "tok")

	require.Error(t, err)
	assert.Nil(t, values)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
	assert.Equal(t, "Invalid JWT", httpErr.Message)
}

func TestCreateAndUpdate(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody writeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"customValue": map[string]any{"id": "cv-9", "name": gotBody.Name, "value": gotBody.Value},
		})
	}))
	defer srv.Close()

	client := NewClient(Options{BaseURL: srv.URL + "/"})
	ctx := context.Background()

	created, err := client.Create(ctx, "loc-1", "tok", "02_optin_headline_text", "Hello")
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/locations/loc-1/customValues", gotPath)
	assert.Equal(t, CustomValue{ID: "cv-9", Name: "02_optin_headline_text", Value: "Hello"}, created)

	updated, err := client.Update(ctx, "loc-1", "tok", "cv-9", "02 Optin Headline Text", "Bye")
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/locations/loc-1/customValues/cv-9", gotPath)
	assert.Equal(t, "Bye", updated.Value)
	assert.Equal(t, "02 Optin Headline Text", gotBody.Name)
}

func TestWrite_ErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("upstream exploded"))
	}))
	defer srv.Close()

	client := NewClient(Options{BaseURL: srv.URL})
	_, err := client.Create(context.Background(), "loc-1", "tok", "k", "v")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream exploded")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestEmptyToken(t *testing.T) {
	client := NewClient(Options{BaseURL: "http://127.0.0.1:1"})
	_, err := client.List(context.Background(), "loc-1", " ", 100, 0)
	assert.EqualError(t, err, "crm access token is empty")
}

func TestCustomValue_UnmarshalNonString(t *testing.T) {
	var values []CustomValue
	require.NoError(t, json.Unmarshal([]byte(`[{"id":"1","name":"n","value":12},{"id":"2","name":"m","value":null}]`), &values))
	assert.Equal(t, "12", values[0].Value)
	assert.Equal(t, "", values[1].Value)
}
