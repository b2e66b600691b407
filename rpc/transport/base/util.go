package base

import (
	"net"
	"time"

	"github.com/ValentinKolb/glidecore/rpc/common"
)

// writeFrames writes all frames with a single vectored write. The frames
// slice is consumed by the write.
func writeFrames(conn net.Conn, frames net.Buffers, timeout time.Duration) (int64, error) {
	if timeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return 0, err
		}
	}
	return frames.WriteTo(conn)
}

// setReadDeadline arms the idle read deadline if a timeout is configured
func setReadDeadline(conn net.Conn, timeout time.Duration) error {
	if timeout <= 0 {
		return nil
	}
	return conn.SetReadDeadline(time.Now().Add(timeout))
}

// bufferedConn is implemented by *net.TCPConn and *net.UnixConn
type bufferedConn interface {
	SetReadBuffer(bytes int) error
	SetWriteBuffer(bytes int) error
}

// ApplySocketConf sets the kernel buffer sizes of conn if configured
func ApplySocketConf(conn net.Conn, conf common.SocketConf) error {
	bc, ok := conn.(bufferedConn)
	if !ok {
		return nil
	}
	if conf.WriteBufferSize > 0 {
		if err := bc.SetWriteBuffer(conf.WriteBufferSize); err != nil {
			return err
		}
	}
	if conf.ReadBufferSize > 0 {
		if err := bc.SetReadBuffer(conf.ReadBufferSize); err != nil {
			return err
		}
	}
	return nil
}

// ApplyTCPConf applies tcp specific settings if conn is a tcp connection
func ApplyTCPConf(conn net.Conn, conf common.TCPConf) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}

	// disable Nagle's algorithm if configured
	if err := tcpConn.SetNoDelay(conf.TCPNoDelay); err != nil {
		return err
	}

	if conf.TCPKeepAliveSec > 0 {
		if err := tcpConn.SetKeepAlive(true); err != nil {
			return err
		}
		if err := tcpConn.SetKeepAlivePeriod(time.Duration(conf.TCPKeepAliveSec) * time.Second); err != nil {
			return err
		}
	}

	if conf.TCPLingerSec >= 0 {
		if err := tcpConn.SetLinger(conf.TCPLingerSec); err != nil {
			return err
		}
	}
	return nil
}
