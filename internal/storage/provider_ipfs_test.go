package storage

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellarnodeN/recrusearch/pkg/platform/sentinel"
)

const testCID = "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG"

func TestIPFSClient_PutAndGet(t *testing.T) {
	var stored []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v0/add":
			assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
			file, _, err := r.FormFile("file")
			require.NoError(t, err)
			stored, err = io.ReadAll(file)
			require.NoError(t, err)
			_ = json.NewEncoder(w).Encode(map[string]string{"Hash": testCID})
		case "/api/v0/cat":
			assert.Equal(t, testCID, r.URL.Query().Get("arg"))
			_, _ = w.Write(stored)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewIPFSClient(server.URL, "secret", 5*time.Second)
	ctx := context.Background()

	id, err := client.Put(ctx, []byte("envelope bytes"))
	require.NoError(t, err)
	assert.Equal(t, ContentID(testCID), id)

	blob, err := client.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []byte("envelope bytes"), blob)
}

func TestIPFSClient_ErrorClasses(t *testing.T) {
	t.Run("404 maps to not found", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		client := NewIPFSClient(server.URL, "", time.Second)
		_, err := client.Get(context.Background(), ContentID(testCID))
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("5xx maps to unavailable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		client := NewIPFSClient(server.URL, "", time.Second)
		_, err := client.Get(context.Background(), ContentID(testCID))
		assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	})

	t.Run("unreachable endpoint maps to unavailable", func(t *testing.T) {
		client := NewIPFSClient("http://127.0.0.1:1", "", time.Second)
		_, err := client.Put(context.Background(), []byte("x"))
		assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	})

	t.Run("malformed cid rejected before the network", func(t *testing.T) {
		client := NewIPFSClient("http://127.0.0.1:1", "", time.Second)
		_, err := client.Get(context.Background(), "bad")
		require.Error(t, err)
		assert.NotErrorIs(t, err, sentinel.ErrUnavailable)
	})
}

func TestNewFactory(t *testing.T) {
	t.Run("memory provider needs no endpoint", func(t *testing.T) {
		client, err := New(Settings{Provider: "memory", Retries: 1, Timeout: time.Second}, nil, nil)
		require.NoError(t, err)
		assert.NotNil(t, client)
	})

	t.Run("ipfs provider validates endpoint", func(t *testing.T) {
		_, err := New(Settings{Provider: "ipfs", Endpoint: "not a url"}, nil, nil)
		require.Error(t, err)
	})

	t.Run("unknown provider fails at construction", func(t *testing.T) {
		_, err := New(Settings{Provider: "gcs"}, nil, nil)
		require.Error(t, err)
	})
}
