package utils

import (
	"context"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestOpenRedisFromEnv(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("REDIS_HOST", "")
	require.Nil(t, OpenRedisFromEnv())
	require.Nil(t, OpenRedis("", "", 0))

	mr := miniredis.RunT(t)
	host, port, _ := strings.Cut(mr.Addr(), ":")
	t.Setenv("REDIS_HOST", host)
	t.Setenv("REDIS_PORT", port)
	t.Setenv("REDIS_DB", "bogus")
	rc := OpenRedisFromEnv()
	require.NotNil(t, rc)
	defer rc.Close()
	require.Equal(t, 0, rc.Options().DB)
	require.NoError(t, rc.Ping(context.Background()).Err())
}

func TestOpenRedisFromEnv_AddrWins(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("REDIS_ADDR", mr.Addr())
	t.Setenv("REDIS_HOST", "unreachable.invalid")
	t.Setenv("REDIS_DB", "3")
	rc := OpenRedisFromEnv()
	require.NotNil(t, rc)
	defer rc.Close()
	require.Equal(t, mr.Addr(), rc.Options().Addr)
	require.Equal(t, 3, rc.Options().DB)
	require.NoError(t, rc.Ping(context.Background()).Err())
}
