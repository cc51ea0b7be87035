package utils_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/localnerve/contentdb/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPingService(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()

	ctx := context.Background()
	assert.NoError(t, utils.PingService(ctx, "http://"+addr, time.Second))

	_, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	assert.NoError(t, utils.PingServer(ctx, port))

	require.NoError(t, ln.Close())
	assert.Error(t, utils.PingService(ctx, "http://"+addr, 200*time.Millisecond))
	assert.Error(t, utils.PingService(ctx, "://bad", time.Second))
}
