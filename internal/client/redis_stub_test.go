package client

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// redisStub speaks enough RESP2 for GET, SET, DEL and PING. Anything else,
// including the HELLO and CLIENT handshake, gets an error reply which the
// go-redis client tolerates.
type redisStub struct {
	ln net.Listener

	mu       sync.Mutex
	data     map[string]string
	commands []string
}

func startRedisStub(t *testing.T) *redisStub {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &redisStub{ln: ln, data: map[string]string{}}
	go s.serve()
	t.Cleanup(func() { _ = ln.Close() })
	return s
}

func (s *redisStub) Addr() string { return s.ln.Addr().String() }

func (s *redisStub) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *redisStub) handle(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)
	for {
		args, err := readCommand(r)
		if err != nil {
			return
		}
		s.reply(w, args)
		if err := w.Flush(); err != nil {
			return
		}
	}
}

func (s *redisStub) reply(w *bufio.Writer, args []string) {
	if len(args) == 0 {
		fmt.Fprint(w, "-ERR empty command\r\n")
		return
	}
	name := strings.ToUpper(args[0])

	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = append(s.commands, name)

	switch {
	case name == "PING":
		fmt.Fprint(w, "+PONG\r\n")
	case name == "GET" && len(args) == 2:
		v, ok := s.data[args[1]]
		if !ok {
			fmt.Fprint(w, "$-1\r\n")
			return
		}
		fmt.Fprintf(w, "$%d\r\n%s\r\n", len(v), v)
	case name == "SET" && len(args) >= 3:
		s.data[args[1]] = args[2]
		fmt.Fprint(w, "+OK\r\n")
	case name == "DEL" && len(args) >= 2:
		n := 0
		for _, k := range args[1:] {
			if _, ok := s.data[k]; ok {
				delete(s.data, k)
				n++
			}
		}
		fmt.Fprintf(w, ":%d\r\n", n)
	default:
		fmt.Fprintf(w, "-ERR unknown command '%s'\r\n", args[0])
	}
}

func (s *redisStub) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key]
	return ok
}

func (s *redisStub) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.commands {
		if c == name {
			n++
		}
	}
	return n
}

func readCommand(r *bufio.Reader) ([]string, error) {
	line, err := readLine(r)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(line, "*") {
		return strings.Fields(line), nil
	}
	n, err := strconv.Atoi(line[1:])
	if err != nil {
		return nil, err
	}
	args := make([]string, 0, n)
	for i := 0; i < n; i++ {
		header, err := readLine(r)
		if err != nil {
			return nil, err
		}
		if !strings.HasPrefix(header, "$") {
			return nil, fmt.Errorf("unexpected header %q", header)
		}
		size, err := strconv.Atoi(header[1:])
		if err != nil {
			return nil, err
		}
		buf := make([]byte, size+2)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		args = append(args, string(buf[:size]))
	}
	return args, nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
