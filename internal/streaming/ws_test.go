package streaming

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func startEchoBackend(t *testing.T) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if mt == websocket.CloseMessage {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
}

func TestProxyRelaysMessagesBidirectionally(t *testing.T) {
	backend := startEchoBackend(t)
	defer backend.Close()
	backendWSURL := "ws" + strings.TrimPrefix(backend.URL, "http")

	router := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := Proxy(w, r, backendWSURL, nil); err != nil {
			t.Logf("proxy error: %v", err)
		}
	}))
	defer router.Close()

	clientURL := "ws" + strings.TrimPrefix(router.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(clientURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	if err := client.WriteMessage(websocket.TextMessage, []byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("expected echoed message, got %q", data)
	}
}

func TestProxyForwardsCloseWithoutReasonText(t *testing.T) {
	backend := startEchoBackend(t)
	defer backend.Close()
	backendWSURL := "ws" + strings.TrimPrefix(backend.URL, "http")

	router := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = Proxy(w, r, backendWSURL, nil)
	}))
	defer router.Close()

	clientURL := "ws" + strings.TrimPrefix(router.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(clientURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "a very specific client reason")
	if err := client.WriteMessage(websocket.CloseMessage, msg); err != nil {
		t.Fatalf("write close: %v", err)
	}

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = client.ReadMessage()
	ce, ok := err.(*websocket.CloseError)
	if !ok {
		t.Fatalf("expected a close error back, got %v", err)
	}
	if ce.Text != "" {
		t.Fatalf("expected close reason text stripped, got %q", ce.Text)
	}
}

func TestCloseCodeFromFrame(t *testing.T) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "ignored")
	if got := closeCodeFromFrame(msg); got != websocket.CloseNormalClosure {
		t.Fatalf("expected code %d, got %d", websocket.CloseNormalClosure, got)
	}
}

func TestBackendURLPreservesPathAndQuery(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/org1/ws?filter=a", nil)
	got, err := BackendURL("ws://backend:5080", r)
	if err != nil {
		t.Fatalf("backend url: %v", err)
	}
	if got != "ws://backend:5080/api/org1/ws?filter=a" {
		t.Fatalf("unexpected backend url: %q", got)
	}
}
