package base_test

import (
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/glidecore/lib/args"
	"github.com/ValentinKolb/glidecore/lib/request"
	"github.com/ValentinKolb/glidecore/rpc/common"
	"github.com/ValentinKolb/glidecore/rpc/transport/unix"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCloseWhileAccepting dials connections while the server shuts down.
// Every connection that was accepted must be closed by the time Close
// returns, none may stay open without a read loop.
func TestCloseWhileAccepting(t *testing.T) {
	for round := 0; round < 20; round++ {
		endpoint := filepath.Join(t.TempDir(), "glide.sock")
		config := common.DefaultServerConfig(endpoint)

		srv := unix.NewUnixServerTransport()
		srv.RegisterHandler(func(_ *args.Resolver, req *request.Request) *request.Response {
			return request.NewOKResponse(req.CallbackIdx)
		})

		listenErr := make(chan error, 1)
		go func() { listenErr <- srv.Listen(config) }()

		require.Eventually(t, func() bool {
			conn, err := net.Dial("unix", endpoint)
			if err != nil {
				return false
			}
			conn.Close()
			return true
		}, 2*time.Second, 5*time.Millisecond)

		var (
			mu    sync.Mutex
			conns []net.Conn
			wg    sync.WaitGroup
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 10; j++ {
					conn, err := net.Dial("unix", endpoint)
					if err != nil {
						return
					}
					mu.Lock()
					conns = append(conns, conn)
					mu.Unlock()
				}
			}()
		}

		time.Sleep(time.Millisecond)
		require.NoError(t, srv.Close())
		wg.Wait()
		require.NoError(t, <-listenErr)

		buf := make([]byte, 1)
		for _, conn := range conns {
			require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
			_, err := conn.Read(buf)
			require.Error(t, err)

			var netErr net.Error
			if errors.As(err, &netErr) {
				assert.False(t, netErr.Timeout(), "connection left open after Close")
			}
			conn.Close()
		}
	}
}
