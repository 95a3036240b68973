// Package telegramtest provides a fake Bot API server for tests.
package telegramtest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path"
	"sync"
	"testing"

	"github.com/go-telegram/bot"
)

// Token is the bot token Bot uses.
const Token = "123456:test-token"

// messageResult is returned for every method that answers with a Message.
const messageResult = `{"message_id":1,"date":0,"chat":{"id":1,"type":"private"}}`

// Call is one recorded Bot API request.
type Call struct {
	Method string
	Form   url.Values
}

// Server records Bot API requests and answers them with canned results.
type Server struct {
	srv *httptest.Server

	mu       sync.Mutex
	calls    []Call
	failures map[string]int
}

// NewServer starts a server that is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{failures: make(map[string]int)}
	s.srv = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.srv.Close)
	return s
}

// Bot returns a client talking to s.
func (s *Server) Bot(t testing.TB) *bot.Bot {
	t.Helper()
	b, err := bot.New(Token, bot.WithServerURL(s.srv.URL), bot.WithSkipGetMe())
	if err != nil {
		t.Fatalf("bot.New() error = %v", err)
	}
	return b
}

// Fail makes the given method answer with errorCode on every request.
func (s *Server) Fail(method string, errorCode int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = errorCode
}

// Calls returns all recorded requests in arrival order.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallsTo returns the recorded requests of one method.
func (s *Server) CallsTo(method string) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		_ = r.ParseForm()
	}
	method := path.Base(r.URL.Path)

	s.mu.Lock()
	s.calls = append(s.calls, Call{Method: method, Form: cloneValues(r.Form)})
	code, failing := s.failures[method]
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if failing {
		w.WriteHeader(code)
		fmt.Fprintf(w, `{"ok":false,"error_code":%d,"description":"%s"}`, code, http.StatusText(code))
		return
	}

	switch method {
	case "sendMediaGroup":
		fmt.Fprintf(w, `{"ok":true,"result":[%s]}`, messageResult)
	case "answerCallbackQuery", "deleteWebhook":
		fmt.Fprint(w, `{"ok":true,"result":true}`)
	default:
		fmt.Fprintf(w, `{"ok":true,"result":%s}`, messageResult)
	}
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vs := range v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}
