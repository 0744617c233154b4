package web_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vbonduro/glowly/internal/agent"
	"github.com/vbonduro/glowly/internal/conversation"
	"github.com/vbonduro/glowly/internal/db"
	"github.com/vbonduro/glowly/internal/logging"
	"github.com/vbonduro/glowly/internal/photostore"
	"github.com/vbonduro/glowly/internal/service"
	"github.com/vbonduro/glowly/internal/store"
	"github.com/vbonduro/glowly/internal/web"
	"github.com/vbonduro/glowly/internal/workflow"
)

const photo = "data:image/png;base64,iVBORw0KGgo="

// memPhotoStore is a simple in-memory implementation of photostore.PhotoStore.
type memPhotoStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	mimes   map[string]string
	counter int
}

func newMemPhotoStore() *memPhotoStore {
	return &memPhotoStore{
		data:  make(map[string][]byte),
		mimes: make(map[string]string),
	}
}

func (m *memPhotoStore) Save(_ context.Context, owner, mimeType string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	key := fmt.Sprintf("%s_%d", owner, m.counter)
	m.data[key] = data
	m.mimes[key] = mimeType
	return key, nil
}

func (m *memPhotoStore) Get(_ context.Context, key string) (io.ReadCloser, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.data[key]
	if !ok {
		return nil, "", photostore.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), m.mimes[key], nil
}

func (m *memPhotoStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	delete(m.mimes, key)
	return nil
}

// scriptedResponder replays replies in order, then keeps returning the last.
type scriptedResponder struct {
	mu      sync.Mutex
	replies []string
	err     error
	n       int
}

func (s *scriptedResponder) Respond(_ context.Context, _ []string, _ []conversation.Turn) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	i := s.n
	if i >= len(s.replies) {
		i = len(s.replies) - 1
	}
	s.n++
	return s.replies[i], nil
}

// newTestServer sets up a real web.Server backed by in-memory SQLite and the
// provided responder.
func newTestServer(t *testing.T, responder workflow.Responder) *httptest.Server {
	t.Helper()
	database, err := db.OpenForTesting()
	require.NoError(t, err)

	svc := service.NewConsultService(
		store.NewScanStore(database),
		newMemPhotoStore(),
		store.NewMessageStore(database),
		func(string) workflow.Responder { return responder },
		workflow.DefaultPrompts(),
		"us",
		logging.Discard(),
	)
	srv := httptest.NewServer(web.NewServer(svc, logging.Discard()))
	t.Cleanup(func() {
		srv.Close()
		_ = database.Close()
	})
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

// buildMultipartBody creates a multipart/form-data body with an "image" field
// and a "uid" field.
func buildMultipartBody(t *testing.T, uid string, imageData []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	require.NoError(t, w.WriteField("uid", uid))
	fw, err := w.CreateFormFile("image", "face.png")
	require.NoError(t, err)
	_, err = fw.Write(imageData)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func facePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 150, B: 130, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestIntegration_Health(t *testing.T) {
	srv := newTestServer(t, &scriptedResponder{replies: []string{"hi"}})

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
}

func TestIntegration_UploadScan(t *testing.T) {
	srv := newTestServer(t, &scriptedResponder{replies: []string{"hi"}})
	data := facePNG(t)

	body, contentType := buildMultipartBody(t, "user-1", data)
	resp, err := http.Post(srv.URL+"/scans", contentType, body)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var scan struct {
		ID      int64 `json:"id"`
		Metrics []struct {
			Key   string `json:"key"`
			Value int    `json:"value"`
		} `json:"metrics"`
		Summary string `json:"summary"`
	}
	decode(t, resp, &scan)
	require.Len(t, scan.Metrics, 5)
	assert.NotEmpty(t, scan.Summary)

	got, err := http.Get(fmt.Sprintf("%s/scans/%d", srv.URL, scan.ID))
	require.NoError(t, err)
	defer func() { _ = got.Body.Close() }()
	assert.Equal(t, http.StatusOK, got.StatusCode)

	photoResp, err := http.Get(fmt.Sprintf("%s/scans/%d/photo", srv.URL, scan.ID))
	require.NoError(t, err)
	defer func() { _ = photoResp.Body.Close() }()
	assert.Equal(t, "image/png", photoResp.Header.Get("Content-Type"))
	stored, err := io.ReadAll(photoResp.Body)
	require.NoError(t, err)
	assert.Equal(t, data, stored)

	latest, err := http.Get(srv.URL + "/scans/latest?uid=user-1")
	require.NoError(t, err)
	defer func() { _ = latest.Body.Close() }()
	assert.Equal(t, http.StatusOK, latest.StatusCode)
}

func TestIntegration_UploadScanRejectsNonImage(t *testing.T) {
	srv := newTestServer(t, &scriptedResponder{replies: []string{"hi"}})

	body, contentType := buildMultipartBody(t, "user-1", []byte("%PDF-1.4 not a face"))
	resp, err := http.Post(srv.URL+"/scans", contentType, body)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIntegration_UploadScanRequiresUID(t *testing.T) {
	srv := newTestServer(t, &scriptedResponder{replies: []string{"hi"}})

	body, contentType := buildMultipartBody(t, "", facePNG(t))
	resp, err := http.Post(srv.URL+"/scans", contentType, body)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIntegration_GetScanNotFound(t *testing.T) {
	srv := newTestServer(t, &scriptedResponder{replies: []string{"hi"}})

	resp, err := http.Get(srv.URL + "/scans/42")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	bad, err := http.Get(srv.URL + "/scans/abc")
	require.NoError(t, err)
	defer func() { _ = bad.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestIntegration_ChatTurnArchivesMessages(t *testing.T) {
	srv := newTestServer(t, &scriptedResponder{replies: []string{"Drink water and use SPF."}})

	resp := postJSON(t, srv.URL+"/chat/turn", map[string]any{
		"uid":             "user-1",
		"chat_id":         "chat-1",
		"message":         "Any tips?",
		"history":         []map[string]string{{"role": "assistant", "content": "Welcome!"}},
		"photo_data_urls": []string{photo},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Reply   string              `json:"reply"`
		History []conversation.Turn `json:"history"`
	}
	decode(t, resp, &out)
	assert.Equal(t, "Drink water and use SPF.", out.Reply)
	require.Len(t, out.History, 3)
	assert.Equal(t, "Any tips?", out.History[1].Content)

	msgs, err := http.Get(srv.URL + "/chat/get-messages?uid=user-1&chat_id=chat-1")
	require.NoError(t, err)
	defer func() { _ = msgs.Body.Close() }()
	var archived struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	decode(t, msgs, &archived)
	require.Len(t, archived.Messages, 2)
	assert.Equal(t, "assistant", archived.Messages[1].Role)
}

func TestIntegration_ChatTurnBadRequests(t *testing.T) {
	srv := newTestServer(t, &scriptedResponder{replies: []string{"x"}})

	resp := postJSON(t, srv.URL+"/chat/turn", map[string]any{"message": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/chat/turn", map[string]any{"message": "hi", "photo_data_urls": []string{"not-a-data-url"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	raw, err := http.Post(srv.URL+"/chat/turn", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	defer func() { _ = raw.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)
}

func TestIntegration_ChatTurnBudgetExceeded(t *testing.T) {
	srv := newTestServer(t, &scriptedResponder{err: fmt.Errorf("%w (budget 6)", agent.ErrTurnBudgetExceeded)})

	resp := postJSON(t, srv.URL+"/chat/turn", map[string]any{"message": "find me a serum"})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	var out struct {
		Error string `json:"error"`
	}
	decode(t, resp, &out)
	assert.Contains(t, out.Error, "try again")
}

var workflowReplies = []string{
	`{"success": true, "message": "All angles present."}`,
	"- slight redness",
	`{"hydration": 4, "oilBalance": 3, "tone": 4, "barrierStrength": 3, "sensitivity": 2}`,
	"```json\n{\"products\": [{\"title\": \"Barrier Cream\", \"link\": \"https://shop.example/b\", \"price\": \"$18.00\"}]}\n```",
}

func TestIntegration_Workflow(t *testing.T) {
	srv := newTestServer(t, &scriptedResponder{replies: workflowReplies})

	resp := postJSON(t, srv.URL+"/chat/workflow", map[string]any{
		"uid":             "user-1",
		"photo_data_urls": []string{photo, photo, photo},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Success  bool              `json:"success"`
		Ratings  *workflow.Ratings `json:"ratings"`
		Products []struct {
			Title string `json:"title"`
		} `json:"products"`
		History []conversation.Turn `json:"history"`
	}
	decode(t, resp, &out)
	assert.True(t, out.Success)
	require.NotNil(t, out.Ratings)
	assert.Equal(t, 2.0, out.Ratings.Sensitivity)
	require.Len(t, out.Products, 1)
	assert.Equal(t, "Barrier Cream", out.Products[0].Title)
	assert.Len(t, out.History, 8)
}

func TestIntegration_WorkflowVerificationFailure(t *testing.T) {
	srv := newTestServer(t, &scriptedResponder{replies: []string{`{"success": false, "message": "Please add a left side photo."}`}})

	resp := postJSON(t, srv.URL+"/chat/workflow", map[string]any{"photo_data_urls": []string{photo}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	decode(t, resp, &out)
	assert.False(t, out.Success)
	assert.Equal(t, "Please add a left side photo.", out.Error)
}

func TestIntegration_WorkflowRequiresPhotos(t *testing.T) {
	srv := newTestServer(t, &scriptedResponder{replies: workflowReplies})

	resp := postJSON(t, srv.URL+"/chat/workflow", map[string]any{"uid": "user-1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIntegration_WorkflowStream(t *testing.T) {
	srv := newTestServer(t, &scriptedResponder{replies: workflowReplies})

	resp := postJSON(t, srv.URL+"/chat/workflow/stream", map[string]any{"photo_data_urls": []string{photo}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var events []string
	var steps []string
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	current := ""
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			current = strings.TrimPrefix(line, "event: ")
			events = append(events, current)
		case strings.HasPrefix(line, "data: ") && current == "step":
			var p struct {
				Step string `json:"step"`
			}
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &p))
			steps = append(steps, p.Step)
		}
	}
	require.NoError(t, scanner.Err())

	assert.Equal(t, []string{"step", "step", "step", "step", "done"}, events)
	assert.Equal(t, []string{"verification", "analysis", "ratings", "shopping"}, steps)
}

func TestIntegration_WorkflowStreamError(t *testing.T) {
	srv := newTestServer(t, &scriptedResponder{err: agent.ErrTurnBudgetExceeded})

	resp := postJSON(t, srv.URL+"/chat/workflow/stream", map[string]any{"photo_data_urls": []string{photo}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "event: error")
	assert.NotContains(t, string(body), "event: step")
}

func TestIntegration_StoreAndGetMessages(t *testing.T) {
	srv := newTestServer(t, &scriptedResponder{replies: []string{"x"}})

	resp := postJSON(t, srv.URL+"/chat/store-message", map[string]any{
		"chat_id": "chat-7",
		"uid":     "user-7",
		"messages": []map[string]any{
			{"role": "user", "content": "hello", "content_type": "text", "timestamp": "2026-02-01T10:00:00Z"},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Without chat_id the first chat of the uid is returned.
	got, err := http.Get(srv.URL + "/chat/get-messages?uid=user-7")
	require.NoError(t, err)
	defer func() { _ = got.Body.Close() }()
	var out struct {
		Messages []struct {
			Content string `json:"content"`
		} `json:"messages"`
	}
	decode(t, got, &out)
	require.Len(t, out.Messages, 1)
	assert.Equal(t, "hello", out.Messages[0].Content)

	missing := postJSON(t, srv.URL+"/chat/store-message", map[string]any{"uid": "user-7"})
	assert.Equal(t, http.StatusBadRequest, missing.StatusCode)
}

func TestIntegration_GetMessagesRequiresUID(t *testing.T) {
	srv := newTestServer(t, &scriptedResponder{replies: []string{"x"}})

	resp, err := http.Get(srv.URL + "/chat/get-messages")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
