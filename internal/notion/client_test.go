package notion

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(server *httptest.Server, opts ClientOptions) *Client {
	opts.BaseURL = server.URL
	opts.HTTPClient = server.Client()
	if opts.Token == "" {
		opts.Token = "ntn_test_token"
	}
	if opts.BaseDelay == 0 {
		opts.BaseDelay = time.Millisecond
	}
	if opts.MaxDelay == 0 {
		opts.MaxDelay = 5 * time.Millisecond
	}
	return NewClient(opts)
}

func TestCreatePage_SendsExpectedRequest(t *testing.T) {
	var (
		method, path, auth, version string
		body                        map[string]any
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		path = r.URL.Path
		auth = r.Header.Get("Authorization")
		version = r.Header.Get("Notion-Version")
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{"object":"page","id":"page-1"}`))
	}))
	defer server.Close()

	c := newTestClient(server, ClientOptions{})
	page, err := c.CreatePage(context.Background(), "db-1", Properties{
		"Name": {Title: Text("hello")},
	})
	require.NoError(t, err)
	assert.Equal(t, "page-1", page.ID)
	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, "/v1/pages", path)
	assert.Equal(t, "Bearer ntn_test_token", auth)
	assert.Equal(t, DefaultAPIVersion, version)

	parent := body["parent"].(map[string]any)
	assert.Equal(t, "db-1", parent["database_id"])
	props := body["properties"].(map[string]any)
	title := props["Name"].(map[string]any)["title"].([]any)
	assert.Equal(t, "hello", title[0].(map[string]any)["text"].(map[string]any)["content"])
}

func TestAppendChildren_Path(t *testing.T) {
	var path string
	var req appendChildrenRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&req)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := newTestClient(server, ClientOptions{})
	err := c.AppendChildren(context.Background(), "page-1", []Block{
		{Type: TypeParagraph, Paragraph: &ParagraphBody{RichText: Text("a")}},
		{Type: TypeCode, Code: &CodeBody{RichText: Text("b"), Language: "go"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "/v1/blocks/page-1/children", path)
	require.Len(t, req.Children, 2)
	assert.Equal(t, "go", req.Children[1].Code.Language)
}

func TestClient_RetriesServerError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"code":"service_unavailable","message":"try again"}`))
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := newTestClient(server, ClientOptions{MaxRetries: 2})
	require.NoError(t, c.UpdatePageProperties(context.Background(), "page-1", Properties{}))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClient_WritesAreNotRetriedOnServerError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := newTestClient(server, ClientOptions{MaxRetries: 3})
	_, err := c.CreatePage(context.Background(), "db", Properties{})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	err = c.AppendChildren(context.Background(), "page-1", nil)
	require.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindServer, kind)
}

func TestClient_WritesAreNotRetriedOnDroppedConnection(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		hj, ok := w.(http.Hijacker)
		require.True(t, ok)
		conn, _, err := hj.Hijack()
		require.NoError(t, err)
		_ = conn.Close()
	}))
	defer server.Close()

	c := newTestClient(server, ClientOptions{MaxRetries: 3})
	_, err := c.CreatePage(context.Background(), "db", Properties{})
	require.Error(t, err)
	assert.True(t, IsTransport(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	_, err = c.RetrieveDatabase(context.Background(), "db")
	require.Error(t, err)
	assert.Equal(t, int32(5), atomic.LoadInt32(&calls))
}

func TestClient_RetrieveDatabaseRetriesServerError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"id":"db","properties":{}}`))
	}))
	defer server.Close()

	c := newTestClient(server, ClientOptions{MaxRetries: 3})
	db, err := c.RetrieveDatabase(context.Background(), "db")
	require.NoError(t, err)
	assert.Equal(t, "db", db.ID)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestIsNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"object":"error","status":404,"code":"object_not_found","message":"Could not find database"}`))
	}))
	defer server.Close()

	c := newTestClient(server, ClientOptions{})
	_, err := c.RetrieveDatabase(context.Background(), "db")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsNotFound(context.Canceled))
}

func TestClient_ValidationErrorIsNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"object":"error","status":400,"code":"validation_error","message":"body.children[0] is too long"}`))
	}))
	defer server.Close()

	c := newTestClient(server, ClientOptions{MaxRetries: 3})
	err := c.AppendChildren(context.Background(), "page-1", nil)
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.True(t, IsValidation(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "validation_error", apiErr.Code)
	assert.Equal(t, "body.children[0] is too long", apiErr.Message)
	assert.Equal(t, OpAppendChildren, apiErr.Op)
}

func TestClient_RateLimitExhausted(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := newTestClient(server, ClientOptions{MaxRetries: 1})
	_, err := c.CreatePage(context.Background(), "db", Properties{})
	require.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindRateLimited, kind)
}

func TestClient_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c := newTestClient(server, ClientOptions{MaxRetries: 1})
	server.Close()

	_, err := c.CreatePage(context.Background(), "db", Properties{})
	require.Error(t, err)
	assert.True(t, IsTransport(err))
	assert.False(t, IsValidation(err))
}

func TestClient_Observer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"db","properties":{}}`))
	}))
	defer server.Close()

	var seen []string
	c := newTestClient(server, ClientOptions{Observer: func(op string, status int) {
		seen = append(seen, op)
		assert.Equal(t, http.StatusOK, status)
	}})
	_, err := c.RetrieveDatabase(context.Background(), "db")
	require.NoError(t, err)
	assert.Equal(t, []string{OpRetrieveDatabase}, seen)
}

func TestCreateFileUpload_MissingURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"up-1"}`))
	}))
	defer server.Close()

	c := newTestClient(server, ClientOptions{})
	_, err := c.CreateFileUpload(context.Background(), "a.png", "image/png")
	require.Error(t, err)
}

func TestSendFileUpload_Multipart(t *testing.T) {
	var (
		auth, filename, partType string
		content                  []byte
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		file, header, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		filename = header.Filename
		partType = header.Header.Get("Content-Type")
		content, _ = io.ReadAll(file)
		_, _ = w.Write([]byte(`{"id":"up-1","status":"uploaded"}`))
	}))
	defer server.Close()

	c := newTestClient(server, ClientOptions{})
	upload := FileUpload{ID: "up-1", UploadURL: server.URL + "/v1/file_uploads/up-1/send"}
	err := c.SendFileUpload(context.Background(), upload, "cat.png", "image/png", []byte("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "Bearer ntn_test_token", auth)
	assert.Equal(t, "cat.png", filename)
	assert.Equal(t, "image/png", partType)
	assert.Equal(t, []byte("png-bytes"), content)
}

func TestSendFileUpload_PresignedPut(t *testing.T) {
	var (
		method, auth, contentType string
		content                   []byte
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		auth = r.Header.Get("Authorization")
		contentType = r.Header.Get("Content-Type")
		content, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := newTestClient(server, ClientOptions{})
	upload := FileUpload{ID: "up-2", UploadURL: server.URL + "/bucket/object?sig=abc"}
	err := c.SendFileUpload(context.Background(), upload, "doc.pdf", "application/pdf", []byte("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, method)
	assert.Empty(t, auth)
	assert.Equal(t, "application/pdf", contentType)
	assert.Equal(t, []byte("%PDF-1.4"), content)
}

func TestRetryDelay(t *testing.T) {
	c := NewClient(ClientOptions{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second})
	assert.Equal(t, 100*time.Millisecond, c.retryDelay(""))
	assert.Equal(t, time.Second, c.retryDelay("30"))
	assert.Equal(t, 100*time.Millisecond, c.retryDelay("soon"))
	assert.Equal(t, 100*time.Millisecond, c.retryDelay("0"))
}

func TestDiscoverSchema(t *testing.T) {
	db := Database{Properties: map[string]DatabaseProperty{
		"Name":            {Name: "Name", Type: PropTitle},
		"Created":         {Name: "Created", Type: PropDate},
		"Last Updated":    {Name: "Last Updated", Type: PropCreatedTime},
		"Conversation ID": {Name: "Conversation ID", Type: PropNumber},
		"Tags":            {Name: "Tags", Type: "multi_select"},
	}}

	schema := DiscoverSchema(db)
	assert.Equal(t, "Name", schema.TitleProperty)
	assert.Equal(t, "Created", schema.CreatedProperty)
	assert.Equal(t, "Last Updated", schema.UpdatedProperty)
	assert.Equal(t, "Conversation ID", schema.ConversationIDProperty)
	assert.Equal(t, PropNumber, schema.ConversationIDType)
	assert.True(t, schema.IsDate("Created"))
	assert.False(t, schema.IsDate("Last Updated"))
	assert.False(t, schema.IsDate(""))
}

func TestDiscoverSchema_Defaults(t *testing.T) {
	schema := DiscoverSchema(Database{})
	assert.Equal(t, "Title", schema.TitleProperty)
	assert.Empty(t, schema.CreatedProperty)
	assert.Empty(t, schema.ConversationIDProperty)
}
