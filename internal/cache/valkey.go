package cache

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

// ValkeyProvider implements Provider against a Valkey/Redis-compatible server
// using a minimal RESP client. Connections are dialed per call; the snapshot
// cache sees a handful of operations per TTL so pooling is not worth carrying.
type ValkeyProvider struct {
	cfg ValkeyConfig
}

// ValkeyConfig holds connection parameters for the Valkey server.
type ValkeyConfig struct {
	Addr         string
	Username     string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	TLS          bool
}

// NewValkeyProvider creates a Provider using the supplied configuration. It
// pings the target to fail fast on bad credentials or connectivity.
func NewValkeyProvider(cfg ValkeyConfig) (*ValkeyProvider, error) {
	if cfg.Addr == "" {
		return nil, errors.New("valkey addr is required")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 2 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 500 * time.Millisecond
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 500 * time.Millisecond
	}

	p := &ValkeyProvider{cfg: cfg}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	reply, err := p.roundTrip(ctx, "PING")
	if err != nil {
		return nil, err
	}
	if reply.kind != '+' || string(reply.data) != "PONG" {
		return nil, fmt.Errorf("unexpected PING response: %s", reply.data)
	}
	return p, nil
}

// Get fetches bytes by key, returning ErrCacheMiss when the key is absent.
func (p *ValkeyProvider) Get(ctx context.Context, key string) ([]byte, error) {
	reply, err := p.roundTrip(ctx, "GET", key)
	if err != nil {
		return nil, err
	}
	switch reply.kind {
	case 'n':
		return nil, ErrCacheMiss
	case '$':
		return reply.data, nil
	default:
		return nil, fmt.Errorf("unexpected valkey reply %q for GET", reply.kind)
	}
}

// Set stores bytes with the provided TTL.
func (p *ValkeyProvider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	args := []string{"SET", key, string(value)}
	if ttl > 0 {
		args = append(args, "PX", strconv.FormatInt(ttl.Milliseconds(), 10))
	}
	reply, err := p.roundTrip(ctx, args...)
	if err != nil {
		return err
	}
	if reply.kind != '+' || string(reply.data) != "OK" {
		return fmt.Errorf("unexpected SET response: %s", reply.data)
	}
	return nil
}

// Del removes a key from the cache.
func (p *ValkeyProvider) Del(ctx context.Context, key string) error {
	_, err := p.roundTrip(ctx, "DEL", key)
	return err
}

// Close closes the underlying client (no-op for the per-call dialer).
func (p *ValkeyProvider) Close() error { return nil }

type respReply struct {
	kind byte // '+', '$', ':', or 'n' for nil bulk
	data []byte
}

func (p *ValkeyProvider) roundTrip(ctx context.Context, args ...string) (respReply, error) {
	conn, err := p.dial(ctx)
	if err != nil {
		return respReply{}, err
	}
	defer conn.Close()

	reader := bufio.NewReader(conn)
	if err := p.authenticate(conn, reader); err != nil {
		return respReply{}, err
	}
	if err := p.send(conn, args...); err != nil {
		return respReply{}, err
	}
	return p.read(conn, reader)
}

func (p *ValkeyProvider) dial(ctx context.Context) (net.Conn, error) {
	dialer := net.Dialer{Timeout: p.cfg.DialTimeout}
	if p.cfg.TLS {
		host := p.cfg.Addr
		if h, _, err := net.SplitHostPort(p.cfg.Addr); err == nil {
			host = h
		}
		return tls.DialWithDialer(&dialer, "tcp", p.cfg.Addr, &tls.Config{
			MinVersion: tls.VersionTLS12,
			ServerName: host,
		})
	}
	return dialer.DialContext(ctx, "tcp", p.cfg.Addr)
}

func (p *ValkeyProvider) authenticate(conn net.Conn, reader *bufio.Reader) error {
	if p.cfg.Password != "" {
		cmd := []string{"AUTH", p.cfg.Password}
		if p.cfg.Username != "" {
			cmd = []string{"AUTH", p.cfg.Username, p.cfg.Password}
		}
		if err := p.send(conn, cmd...); err != nil {
			return err
		}
		reply, err := p.read(conn, reader)
		if err != nil {
			return err
		}
		if reply.kind != '+' || !strings.EqualFold(string(reply.data), "OK") {
			return fmt.Errorf("auth failed: %s", reply.data)
		}
	}
	if p.cfg.DB > 0 {
		if err := p.send(conn, "SELECT", strconv.Itoa(p.cfg.DB)); err != nil {
			return err
		}
		reply, err := p.read(conn, reader)
		if err != nil {
			return err
		}
		if reply.kind != '+' || !strings.EqualFold(string(reply.data), "OK") {
			return fmt.Errorf("select failed: %s", reply.data)
		}
	}
	return nil
}

func (p *ValkeyProvider) send(conn net.Conn, args ...string) error {
	if err := conn.SetWriteDeadline(time.Now().Add(p.cfg.WriteTimeout)); err != nil {
		return err
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "*%d\r\n", len(args))
	for _, arg := range args {
		fmt.Fprintf(&sb, "$%d\r\n%s\r\n", len(arg), arg)
	}
	_, err := io.WriteString(conn, sb.String())
	return err
}

func (p *ValkeyProvider) read(conn net.Conn, reader *bufio.Reader) (respReply, error) {
	if err := conn.SetReadDeadline(time.Now().Add(p.cfg.ReadTimeout)); err != nil {
		return respReply{}, err
	}
	prefix, err := reader.ReadByte()
	if err != nil {
		return respReply{}, err
	}
	line, err := readLine(reader)
	if err != nil {
		return respReply{}, err
	}
	switch prefix {
	case '+', ':':
		return respReply{kind: prefix, data: line}, nil
	case '-':
		return respReply{}, errors.New(string(line))
	case '$':
		size, err := strconv.Atoi(string(line))
		if err != nil {
			return respReply{}, err
		}
		if size < 0 {
			return respReply{kind: 'n'}, nil
		}
		buf := make([]byte, size+2)
		if _, err := io.ReadFull(reader, buf); err != nil {
			return respReply{}, err
		}
		return respReply{kind: '$', data: buf[:size]}, nil
	default:
		return respReply{}, fmt.Errorf("unexpected RESP prefix %q", prefix)
	}
}

func readLine(reader *bufio.Reader) ([]byte, error) {
	line, err := reader.ReadString('\n')
	if err != nil {
		return nil, err
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return []byte(line), nil
}
