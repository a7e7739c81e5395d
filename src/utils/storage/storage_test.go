package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/loteraa/verifier/src/utils/config"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/atomic"
)

func TestSharedDiskTestSuite(t *testing.T) {
	suite.Run(t, new(SharedDiskTestSuite))
}

type SharedDiskTestSuite struct {
	suite.Suite
	ctx     context.Context
	dir     string
	storage *SharedDisk
}

func (s *SharedDiskTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.dir = s.T().TempDir()
	s.storage = NewSharedDisk(s.dir, "http://localhost:4000/files/")
}

func (s *SharedDiskTestSuite) TestPutDelete() {
	url, err := s.storage.Put(s.ctx, "user-1/1700000000000_my data.csv", "text/csv", strings.NewReader("a,b\n1,2\n"))
	require.Nil(s.T(), err)
	require.Equal(s.T(), "http://localhost:4000/files/user-1/1700000000000_my%20data.csv", url)

	content, err := os.ReadFile(filepath.Join(s.dir, "user-1", "1700000000000_my data.csv"))
	require.Nil(s.T(), err)
	require.Equal(s.T(), "a,b\n1,2\n", string(content))

	require.Nil(s.T(), s.storage.Delete(s.ctx, "user-1/1700000000000_my data.csv"))
	_, err = os.Stat(filepath.Join(s.dir, "user-1", "1700000000000_my data.csv"))
	require.True(s.T(), os.IsNotExist(err))

	// Deleting twice is fine
	require.Nil(s.T(), s.storage.Delete(s.ctx, "user-1/1700000000000_my data.csv"))
}

func (s *SharedDiskTestSuite) TestInvalidPaths() {
	for _, path := range []string{"", "/etc/passwd", "../x", "a/../../x", "a//b", "a\\b", "a/./b"} {
		_, err := s.storage.Put(s.ctx, path, "", strings.NewReader("x"))
		require.ErrorIs(s.T(), err, ErrInvalidPath, path)
	}
}

type failingReader struct{}

func (failingReader) Read(p []byte) (int, error) {
	return 0, errors.New("read failed")
}

func (s *SharedDiskTestSuite) TestFailedWriteLeavesNothing() {
	_, err := s.storage.Put(s.ctx, "user-1/file.csv", "", io.MultiReader(strings.NewReader("a,b"), failingReader{}))
	require.NotNil(s.T(), err)

	entries, err := os.ReadDir(filepath.Join(s.dir, "user-1"))
	require.Nil(s.T(), err)
	require.Empty(s.T(), entries)
}

func TestSupabaseTestSuite(t *testing.T) {
	suite.Run(t, new(SupabaseTestSuite))
}

type SupabaseTestSuite struct {
	suite.Suite
	ctx      context.Context
	server   *httptest.Server
	handler  http.HandlerFunc
	storage  *Supabase
	requests *atomic.Int32
}

func (s *SupabaseTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.requests = atomic.NewInt32(0)
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Inc()
		s.handler(w, r)
	}))

	conf := config.Default().Storage
	conf.SupabaseUrl = s.server.URL + "/"
	conf.Bucket = "datasets"
	conf.ServiceKey = "service-key"
	conf.RequestTimeout = 5 * time.Second
	s.storage = NewSupabase(&conf)
}

func (s *SupabaseTestSuite) TearDownTest() {
	s.server.Close()
}

func (s *SupabaseTestSuite) TestPut() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		require.Equal(s.T(), http.MethodPost, r.Method)
		require.Equal(s.T(), "/storage/v1/object/datasets/user-1/17_a b.csv", r.URL.Path)
		require.Equal(s.T(), "Bearer service-key", r.Header.Get("Authorization"))
		require.Equal(s.T(), "service-key", r.Header.Get("apikey"))
		require.Equal(s.T(), "text/csv", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.Nil(s.T(), err)
		require.Equal(s.T(), "a,b\n", string(body))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"Key":"datasets/user-1/17_a b.csv"}`))
	}

	url, err := s.storage.Put(s.ctx, "user-1/17_a b.csv", "text/csv", strings.NewReader("a,b\n"))
	require.Nil(s.T(), err)
	require.Equal(s.T(), s.server.URL+"/storage/v1/object/public/datasets/user-1/17_a%20b.csv", url)
}

func (s *SupabaseTestSuite) TestPutRetriesServerErrors() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		if s.requests.Load() == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}

	_, err := s.storage.Put(s.ctx, "user-1/file.json", "application/json", strings.NewReader("{}"))
	require.Nil(s.T(), err)
	require.Equal(s.T(), int32(2), s.requests.Load())
}

func (s *SupabaseTestSuite) TestPutFails() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}
	_, err := s.storage.Put(s.ctx, "user-1/file.json", "", strings.NewReader("{}"))
	require.NotNil(s.T(), err)
	require.Equal(s.T(), int32(1), s.requests.Load())

	s.handler = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}
	_, err = s.storage.Put(s.ctx, "user-1/file.json", "", strings.NewReader("{}"))
	require.ErrorIs(s.T(), err, ErrAlreadyExists)
}

func (s *SupabaseTestSuite) TestDelete() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		require.Equal(s.T(), http.MethodDelete, r.Method)
		require.Equal(s.T(), "/storage/v1/object/datasets/user-1/file.json", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	}
	require.Nil(s.T(), s.storage.Delete(s.ctx, "user-1/file.json"))
}

func TestNewStorage(t *testing.T) {
	conf := config.Default()
	conf.Storage.Backend = config.StorageBackendDisk
	s, err := NewStorage(conf)
	require.Nil(t, err)
	require.IsType(t, &SharedDisk{}, s)

	conf.Storage.Backend = config.StorageBackendSupabase
	s, err = NewStorage(conf)
	require.Nil(t, err)
	require.IsType(t, &Supabase{}, s)

	conf.Storage.Backend = "ftp"
	_, err = NewStorage(conf)
	require.NotNil(t, err)
}
