package admin

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoListener(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.(*net.TCPConn).SetKeepAlive(true)
		}
	}()
	t.Cleanup(func() { ln.Close() })
	return ln.Addr().String()
}

func TestSocketPool_CheckoutDialsThenReusesFromFreeList(t *testing.T) {
	addr := echoListener(t)
	pool := NewSocketPool(PoolConfig{MaxPerDestination: 2, CheckoutTimeout: time.Second})
	defer pool.Close()

	conn, err := pool.Checkout(addr)
	require.NoError(t, err)
	pool.Checkin(addr, conn)

	conn2, err := pool.Checkout(addr)
	require.NoError(t, err)
	assert.Same(t, conn, conn2)
	pool.Checkin(addr, conn2)
}

func TestSocketPool_CheckoutTimesOutAtLimit(t *testing.T) {
	addr := echoListener(t)
	pool := NewSocketPool(PoolConfig{MaxPerDestination: 1, CheckoutTimeout: 100 * time.Millisecond})
	defer pool.Close()

	conn, err := pool.Checkout(addr)
	require.NoError(t, err)
	defer conn.Close()

	_, err = pool.Checkout(addr)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPoolTimeout)
}

func TestSocketPool_DiscardFreesDestinationSlot(t *testing.T) {
	addr := echoListener(t)
	pool := NewSocketPool(PoolConfig{MaxPerDestination: 1, CheckoutTimeout: 100 * time.Millisecond})
	defer pool.Close()

	conn, err := pool.Checkout(addr)
	require.NoError(t, err)
	pool.Discard(addr, conn)

	conn2, err := pool.Checkout(addr)
	require.NoError(t, err)
	pool.Checkin(addr, conn2)
}
