package notify

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// silentBroker accepts one connection and never answers CONNECT.
func silentBroker(t *testing.T) (addr string, closed <-chan struct{}) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	done := make(chan struct{})
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = io.Copy(io.Discard, conn)
		close(done)
	}()
	return "tcp://" + ln.Addr().String(), done
}

func TestDialMQTT_TimeoutReleasesConnection(t *testing.T) {
	addr, closed := silentBroker(t)

	start := time.Now()
	pub, err := DialMQTT(MQTTConfig{Broker: addr, ClientID: "test", ConnectTimeout: 200 * time.Millisecond}, nil)
	require.Error(t, err)
	assert.Nil(t, pub)
	assert.Less(t, time.Since(start), 5*time.Second)

	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("half-open broker connection was never closed")
	}
}
