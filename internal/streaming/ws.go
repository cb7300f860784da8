package streaming

import (
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
)

// upgrader is shared by every proxied connection; origin checking is
// the caller's responsibility via http.Request before Proxy is invoked.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Proxy forwards a WebSocket connection bidirectionally between a
// client and a backend: client<->router<->backend, using two
// concurrent goroutines (client-to-backend, backend-to-client). A
// close frame on either side triggers a forwarded close frame and
// terminates both directions. A close frame's reason text is stripped
// before forwarding (only the close code survives) to avoid mixing
// frame state between the two legs of the proxy.
func Proxy(w http.ResponseWriter, r *http.Request, backendURL string, header http.Header) error {
	clientConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer clientConn.Close()

	dialer := websocket.Dialer{}
	backendConn, _, err := dialer.Dial(backendURL, header)
	if err != nil {
		closeWithCode(clientConn, websocket.CloseInternalServerErr)
		return err
	}
	defer backendConn.Close()

	return runProxy(clientConn, backendConn)
}

func runProxy(client, backend *websocket.Conn) error {
	var once sync.Once
	done := make(chan struct{})
	closeBoth := func() {
		once.Do(func() { close(done) })
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		relay(client, backend, done, closeBoth)
	}()
	go func() {
		defer wg.Done()
		relay(backend, client, done, closeBoth)
	}()

	wg.Wait()
	return nil
}

// relay copies messages from src to dst until src closes, dst fails,
// or done fires. A close message's reason is stripped before it is
// forwarded onward.
func relay(src, dst *websocket.Conn, done <-chan struct{}, closeBoth func()) {
	for {
		select {
		case <-done:
			return
		default:
		}

		msgType, data, err := src.ReadMessage()
		if err != nil {
			if ce, ok := err.(*websocket.CloseError); ok {
				forwardClose(dst, ce.Code)
			} else {
				forwardClose(dst, websocket.CloseAbnormalClosure)
			}
			closeBoth()
			return
		}

		if msgType == websocket.CloseMessage {
			code := closeCodeFromFrame(data)
			forwardClose(dst, code)
			closeBoth()
			return
		}

		if err := dst.WriteMessage(msgType, data); err != nil {
			closeBoth()
			return
		}
	}
}

func closeCodeFromFrame(data []byte) int {
	if len(data) >= 2 {
		return int(data[0])<<8 | int(data[1])
	}
	return websocket.CloseNormalClosure
}

// forwardClose sends a close frame carrying only the code, stripping
// any reason text so the two legs of the proxy never mix frame state.
func forwardClose(conn *websocket.Conn, code int) {
	msg := websocket.FormatCloseMessage(code, "")
	_ = conn.WriteMessage(websocket.CloseMessage, msg)
}

func closeWithCode(conn *websocket.Conn, code int) {
	forwardClose(conn, code)
}

// BackendURL rewrites an inbound request's URL onto the backend base,
// preserving path and query.
func BackendURL(base string, r *http.Request) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	b.Path = r.URL.Path
	b.RawQuery = r.URL.RawQuery
	return b.String(), nil
}
