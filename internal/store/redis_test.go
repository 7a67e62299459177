package store

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// respServer speaks enough RESP2 for RedisSessions: PING, SET, GET and
// DEL. Anything else, HELLO included, gets an error reply so the client
// falls back to RESP2.
type respServer struct {
	ln net.Listener
	wg sync.WaitGroup

	mu   sync.Mutex
	data map[string]string
	ttl  map[string]string
}

func newRESPServer(t *testing.T) *respServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &respServer{ln: ln, data: map[string]string{}, ttl: map[string]string{}}
	s.wg.Add(1)
	go s.accept()
	t.Cleanup(func() {
		_ = ln.Close()
		s.wg.Wait()
	})
	return s
}

func (s *respServer) accept() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer conn.Close()
			s.serve(conn)
		}()
	}
}

func (s *respServer) serve(conn net.Conn) {
	r := bufio.NewReader(conn)
	for {
		args, err := readCommand(r)
		if err != nil {
			return
		}
		if _, err := io.WriteString(conn, s.reply(args)); err != nil {
			return
		}
	}
}

func (s *respServer) reply(args []string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch strings.ToUpper(args[0]) {
	case "PING":
		return "+PONG\r\n"
	case "SET":
		s.data[args[1]] = args[2]
		if len(args) == 5 {
			s.ttl[args[1]] = strings.ToLower(args[3]) + " " + args[4]
		}
		return "+OK\r\n"
	case "GET":
		v, ok := s.data[args[1]]
		if !ok {
			return "$-1\r\n"
		}
		return fmt.Sprintf("$%d\r\n%s\r\n", len(v), v)
	case "DEL":
		n := 0
		for _, k := range args[1:] {
			if _, ok := s.data[k]; ok {
				delete(s.data, k)
				n++
			}
		}
		return fmt.Sprintf(":%d\r\n", n)
	default:
		return "-ERR unknown command '" + args[0] + "'\r\n"
	}
}

func readCommand(r *bufio.Reader) ([]string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(line, "*") {
		return nil, fmt.Errorf("unexpected %q", line)
	}
	n, err := strconv.Atoi(strings.TrimSpace(line[1:]))
	if err != nil {
		return nil, err
	}
	args := make([]string, n)
	for i := range args {
		hdr, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		size, err := strconv.Atoi(strings.TrimSpace(hdr[1:]))
		if err != nil {
			return nil, err
		}
		buf := make([]byte, size+2)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		args[i] = string(buf[:size])
	}
	return args, nil
}

func newTestRedisSessions(t *testing.T) (*RedisSessions, *respServer) {
	t.Helper()
	srv := newRESPServer(t)
	rdb := redis.NewClient(&redis.Options{
		Addr:             srv.ln.Addr().String(),
		Protocol:         2,
		DisableIndentity: true,
	})
	sessions := NewRedisSessions(rdb)
	t.Cleanup(func() { _ = sessions.Close() })
	return sessions, srv
}

func TestRedisSessions_SetGetDel(t *testing.T) {
	ctx := context.Background()
	sessions, srv := newTestRedisSessions(t)

	require.NoError(t, sessions.Set(ctx, "sess:abc", []byte(`{"user_id":"1"}`), 24*time.Hour))

	got, err := sessions.Get(ctx, "sess:abc")
	require.NoError(t, err)
	assert.Equal(t, `{"user_id":"1"}`, string(got))

	srv.mu.Lock()
	assert.Equal(t, "ex 86400", srv.ttl["sess:abc"])
	srv.mu.Unlock()

	require.NoError(t, sessions.Del(ctx, "sess:abc"))
	got, err = sessions.Get(ctx, "sess:abc")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisSessions_MissIsNotAnError(t *testing.T) {
	sessions, _ := newTestRedisSessions(t)

	got, err := sessions.Get(context.Background(), "sess:never-set")
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.NoError(t, sessions.Del(context.Background(), "sess:never-set"))
}

func TestNewRedisClient(t *testing.T) {
	srv := newRESPServer(t)

	rdb, err := NewRedisClient(context.Background(), srv.ln.Addr().String(), "")
	require.NoError(t, err)
	assert.NoError(t, rdb.Close())
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err = NewRedisClient(ctx, addr, "")
	require.Error(t, err)
	oerr, ok := oops.AsOops(err)
	require.True(t, ok)
	assert.Equal(t, "SESSION_BACKEND_UNAVAILABLE", oerr.Code())
}
