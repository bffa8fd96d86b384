package http

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestHTTP_Listen(t *testing.T) {
	proxy := NewHTTP("127.0.0.1:0")
	go proxy.Listen()
	waitAddr(t, proxy)

	defer proxy.Stop()

	proxy.RegisterHandler("/fake", fakeHandler)

	res, err := http.Get(fmt.Sprintf("http://%s/fake", proxy.GetAddr()))
	require.NoError(t, err)

	output, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	require.Equal(t, "hello", string(output))
	require.NotEmpty(t, res.Header.Get("X-Request-Id"))
}

func TestHTTP_Listen_EmptyAddr(t *testing.T) {
	// in this case it will use a random free port
	proxy := NewHTTP("")

	require.Nil(t, proxy.GetAddr())

	go proxy.Listen()
	waitAddr(t, proxy)

	proxy.Stop()
}

func TestHTTP_Listen_BadAddr(t *testing.T) {
	proxy := NewHTTP("bad://xx")

	out := new(bytes.Buffer)
	proxy.logger = zerolog.New(zerolog.ConsoleWriter{Out: out})

	res := make(chan interface{}, 1)

	go func() {
		defer func() {
			res <- recover()
		}()

		proxy.Listen()
	}()

	require.Regexp(t, "^failed to create conn 'bad://xx':", <-res)
	require.Regexp(t, "failed to create conn 'bad://xx':", out.String())
}

func TestGetAddr(t *testing.T) {
	proxy := NewHTTP("127.0.0.1:0")
	go proxy.Listen()
	waitAddr(t, proxy)

	defer proxy.Stop()

	require.Contains(t, proxy.GetAddr().String(), "127.0.0.1:")
}

// -----------------------------------------------------------------------------
// Utility functions

func fakeHandler(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("hello"))
}

func waitAddr(t *testing.T, proxy *HTTP) {
	t.Helper()

	for i := 0; i < 50; i++ {
		if proxy.GetAddr() != nil {
			return
		}

		time.Sleep(20 * time.Millisecond)
	}

	t.Fatal("server did not start")
}
