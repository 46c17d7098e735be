package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockBotAPI records the Bot API methods called
type mockBotAPI struct {
	mu      sync.Mutex
	methods []string
	texts   []string
}

func (m *mockBotAPI) handler(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(r.URL.Path, "/")
	method := parts[len(parts)-1]

	m.mu.Lock()
	m.methods = append(m.methods, method)
	if method == "sendMessage" {
		r.ParseForm()
		m.texts = append(m.texts, r.FormValue("text"))
	}
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch method {
	case "getMe":
		fmt.Fprint(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"b","username":"kenai_bot"}}`)
	default:
		fmt.Fprint(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"}}}`)
	}
}

func TestNewTelegramNotifierRequiresConfig(t *testing.T) {
	_, err := NewTelegramNotifier("", 42, "")
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = NewTelegramNotifier("token", 0, "")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSendReport(t *testing.T) {
	mock := &mockBotAPI{}
	server := httptest.NewServer(http.HandlerFunc(mock.handler))
	defer server.Close()

	n, err := NewTelegramNotifier("token", 42, server.URL+"/bot%s/%s")
	require.NoError(t, err)

	require.NoError(t, n.SendReport("fish <1 rows>\n", []byte("\x89PNG"), "Sea level"))
	assert.Equal(t, []string{"getMe", "sendMessage", "sendPhoto"}, mock.methods)
	require.Len(t, mock.texts, 1)
	assert.Equal(t, "<pre>fish &lt;1 rows&gt;\n</pre>", mock.texts[0])
}

func TestSplitMessage(t *testing.T) {
	text := strings.Repeat("0123456789\n", 10)
	parts := splitMessage(text, 40)
	assert.Equal(t, text, strings.Join(parts, ""))
	for _, p := range parts {
		assert.LessOrEqual(t, len(p), 40-len("<pre></pre>"))
	}

	long := splitMessage(strings.Repeat("x", 70), 40)
	assert.Equal(t, []string{strings.Repeat("x", 29), strings.Repeat("x", 29), strings.Repeat("x", 12)}, long)
}
