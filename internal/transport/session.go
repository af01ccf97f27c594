// Package transport carries 32-bit register operations to the
// acquisition engine's backdoor server over a framed, length-prefixed,
// optionally AES-encrypted TCP socket protocol.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/blackmesalabs/sump3/internal/sumperr"
)

// Session is one connected, possibly-authenticated, possibly-encrypted
// transport link to a backdoor server.
type Session struct {
	conn      net.Conn
	codec     *aesCodec
	encrypted bool
	timeout   time.Duration
	log       *log.Logger
}

// Options controls how Connect establishes a session.
type Options struct {
	AESKey       []byte        // 32 bytes, required only if Authenticate is true
	Authenticate bool
	Timeout      time.Duration // applied to dial and each framed round-trip
	Logger       *log.Logger
}

const defaultTimeout = 5 * time.Second

// Connect dials host:port and, if requested and the peer is not
// loopback, performs the challenge/response authentication handshake
// described in the device's transport protocol.
func Connect(ctx context.Context, host string, port int, opts Options) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))

	dialer := net.Dialer{Timeout: timeout}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		resolved := host

		if ips, lookupErr := net.LookupHost(host); lookupErr == nil && len(ips) > 0 {
			resolved = ips[0]
		} else {
			resolved = "host-not-found"
		}

		return nil, sumperr.Wrap(sumperr.TransportUnavailable, err,
			"connect to %s (resolved %s) failed", addr, resolved)
	}

	sess := &Session{
		conn:    conn,
		timeout: timeout,
		log:     logger.With("remote", addr),
	}

	needsAuth := opts.Authenticate && !isLoopback(conn)
	if needsAuth {
		if len(opts.AESKey) != 32 {
			conn.Close()

			return nil, sumperr.New(sumperr.TransportAuth, "authenticate requested but AES-256 key is not 32 bytes")
		}

		codec, codecErr := newAESCodec(opts.AESKey)
		if codecErr != nil {
			conn.Close()

			return nil, sumperr.Wrap(sumperr.TransportAuth, codecErr, "building AES codec")
		}

		sess.codec = codec
		sess.encrypted = true

		if err := sess.authenticate(); err != nil {
			conn.Close()

			return nil, err
		}
	}

	return sess, nil
}

func isLoopback(conn net.Conn) bool {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return false
	}

	ip := net.ParseIP(host)

	return ip != nil && ip.IsLoopback()
}

// authenticate runs the "opensesame" / "challenge N" / "response H"
// handshake. Every frame in the handshake is encrypted, since the
// client already possesses the shared key out of band; whether
// *subsequent* traffic stays encrypted depends on the server's ACK
// advertising "e2e".
func (s *Session) authenticate() error {
	if err := s.sendFrame([]byte("opensesame")); err != nil {
		return err
	}

	challenge, err := s.recvFrame()
	if err != nil {
		return err
	}

	n, err := parseChallenge(string(challenge))
	if err != nil {
		return sumperr.Wrap(sumperr.TransportAuth, err, "parsing challenge %q", challenge)
	}

	response := fmt.Sprintf("response %08x", n)
	if err := s.sendFrame([]byte(response)); err != nil {
		return err
	}

	ack, err := s.recvFrame()
	if err != nil {
		return err
	}

	ackStr := string(ack)
	if !strings.HasPrefix(ackStr, "Greetings") {
		return sumperr.New(sumperr.TransportAuth, "authentication rejected: %q", ackStr)
	}

	s.encrypted = strings.Contains(ackStr, "e2e")
	s.log.Debug("authenticated", "e2e", s.encrypted)

	return nil
}

func parseChallenge(msg string) (uint32, error) {
	fields := strings.Fields(msg)
	if len(fields) != 2 || fields[0] != "challenge" {
		return 0, fmt.Errorf("expected \"challenge N\", got %q", msg)
	}

	n, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return 0, err
	}

	return uint32(n), nil
}

func (s *Session) wrapIOErr(err error) error {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return sumperr.Wrap(sumperr.TransportTimeout, err, "timed out waiting on %s", s.conn.RemoteAddr())
	}

	return sumperr.Wrap(sumperr.TransportUnavailable, err, "I/O error on %s", s.conn.RemoteAddr())
}

// Quit sends the close verb and tears down the connection. Per the
// wire protocol there is no response to wait for.
func (s *Session) Quit() error {
	_ = s.sendFrame([]byte("q\n"))

	return s.conn.Close()
}

func (s *Session) deadline() time.Time { return time.Now().Add(s.timeout) }
