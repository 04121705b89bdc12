package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hllstatus/internal/config"
	"hllstatus/internal/section"
	"hllstatus/internal/store"
	logx "hllstatus/pkg/logx"
)

// fakeBotAPI answers sendMessage and editMessageText. Edits of message 404
// fail as missing, 429 floods and 304 reports an unchanged message.
type fakeBotAPI struct {
	mu      sync.Mutex
	methods []string
	forms   []map[string]any
}

func (f *fakeBotAPI) serve(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	body, _ := io.ReadAll(r.Body)
	params := map[string]any{}
	_ = json.Unmarshal(body, &params)

	f.mu.Lock()
	f.methods = append(f.methods, method)
	f.forms = append(f.forms, params)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	fail := func(code int, desc string, extra string) {
		w.WriteHeader(code)
		_, _ = io.WriteString(w, `{"ok":false,"error_code":`+itoa(code)+`,"description":"`+desc+`"`+extra+`}`)
	}
	msgID := "31"
	if v, ok := params["message_id"]; ok {
		msgID = strings.Trim(jsonString(v), `"`)
	}
	switch {
	case method == "editMessageText" && msgID == "404":
		fail(400, "Bad Request: message to edit not found", "")
		return
	case method == "editMessageText" && msgID == "429":
		fail(429, "Too Many Requests: retry after 7", `,"parameters":{"retry_after":7}`)
		return
	case method == "editMessageText" && msgID == "304":
		fail(400, "Bad Request: message is not modified: specified new message content and reply markup are exactly the same", "")
		return
	}
	_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":`+msgID+`,"date":1700000000,"chat":{"id":-1001,"type":"supergroup"},"text":"x"}}`)
}

func itoa(n int) string { return jsonString(n) }

func jsonString(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func newTestPublisher(t *testing.T) (*Publisher, *fakeBotAPI) {
	t.Helper()
	api := &fakeBotAPI{}
	srv := httptest.NewServer(http.HandlerFunc(api.serve))
	t.Cleanup(srv.Close)

	bot, err := NewBot("123:abc", srv.URL, srv.Client())
	require.NoError(t, err)
	return New(bot, config.TelegramConfig{ChatID: -1001, ThreadID: 9}, logx.Nop()), api
}

func TestCreateAndEdit(t *testing.T) {
	t.Parallel()
	p, api := newTestPublisher(t)

	h, err := p.Create(context.Background(), section.Content{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, store.Handle(31), h)

	h, err = p.Edit(context.Background(), 31, section.Content{Text: "again"})
	require.NoError(t, err)
	assert.Equal(t, store.Handle(31), h)

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Equal(t, []string{"sendMessage", "editMessageText"}, api.methods)
	assert.Equal(t, "HTML", api.forms[0]["parse_mode"])
	assert.EqualValues(t, "9", strings.Trim(jsonString(api.forms[0]["message_thread_id"]), `"`))
}

func TestEditErrorMapping(t *testing.T) {
	t.Parallel()
	p, _ := newTestPublisher(t)

	_, err := p.Edit(context.Background(), 404, section.Content{Text: "x"})
	assert.ErrorIs(t, err, section.ErrNotFound)

	_, err = p.Edit(context.Background(), 429, section.Content{Text: "x"})
	assert.ErrorIs(t, err, section.ErrRateLimited)

	h, err := p.Edit(context.Background(), 304, section.Content{Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, store.Handle(304), h)
}

func TestCanceledContextSkipsCall(t *testing.T) {
	t.Parallel()
	p, api := newTestPublisher(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Create(ctx, section.Content{Text: "x"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, api.methods)
}

func TestRenderHTML(t *testing.T) {
	t.Parallel()
	text, image := RenderHTML(section.Content{Text: "Map Rotation\n```bash\nFoy <Warfare>\n```\n```\nKursk\n```"})
	assert.Empty(t, image)
	assert.Equal(t, "Map Rotation\n<pre>Foy &lt;Warfare&gt;</pre>\n<pre>Kursk</pre>", text)

	e := &section.Embed{
		Title:     "Alpha & Co",
		ImageURL:  "https://rcon.example.com/static/maps/foy.webp",
		Footer:    "Last refreshed",
		Timestamp: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	e.AddField("Players", "42/100", true)
	e.AddField("​", "​", false)
	e.AddField("Rotation", "1. Foy\n2. Kursk", false)

	text, image = RenderHTML(section.Content{Embed: e})
	assert.Equal(t, e.ImageURL, image)
	assert.Contains(t, text, `<a href="https://rcon.example.com/static/maps/foy.webp">&#8203;</a><b>Alpha &amp; Co</b>`)
	assert.Contains(t, text, "<b>Players:</b> 42/100\n\n<b>Rotation</b>\n1. Foy\n2. Kursk")
	assert.True(t, strings.HasSuffix(text, "<i>Last refreshed • 2024-05-01 10:00 UTC</i>"))
}

func TestNewBotRequiresToken(t *testing.T) {
	t.Parallel()
	_, err := NewBot(" ", "", nil)
	assert.Error(t, err)
}
