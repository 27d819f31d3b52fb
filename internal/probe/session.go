package probe

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

const (
	// RFC 5321 §4.5.3.1.6 allows 512-octet reply lines; real servers
	// routinely exceed that, so the reader accepts up to 4096 before
	// declaring the peer broken.
	maxLineLen = 4096

	connectTimeout = 12 * time.Second
	commandTimeout = 12 * time.Second
)

// reply is one parsed SMTP response, multiline continuations joined.
type reply struct {
	code int
	text string
}

func (r reply) String() string {
	return fmt.Sprintf("%d %s", r.code, r.text)
}

// session is one SMTP conversation with a single exchanger. It is
// never shared between goroutines.
type session struct {
	conn       net.Conn
	reader     *bufio.Reader
	serverName string

	// Capabilities from the last EHLO.
	extStartTLS   bool
	extPipelining bool
}

// open dials the exchanger (through the SOCKS5 tunnel when one is
// configured) and consumes the banner. The returned session is ready
// for EHLO.
func open(ctx context.Context, dial dialFunc, host string, port int) (*session, error) {
	addr := net.JoinHostPort(strings.TrimSuffix(host, "."), strconv.Itoa(port))

	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	conn, err := dial(dialCtx, addr)
	if err != nil {
		return nil, err
	}

	s := &session{
		conn:       conn,
		reader:     bufio.NewReaderSize(conn, maxLineLen),
		serverName: strings.TrimSuffix(host, "."),
	}

	banner, err := s.readReply()
	if err != nil {
		s.close()
		return nil, err
	}
	if banner.code != 220 {
		s.close()
		return nil, fmt.Errorf("unexpected banner: %s", banner)
	}
	return s, nil
}

func (s *session) close() {
	_ = s.conn.Close()
}

// quit ends the dialog politely and closes the socket. Errors are
// irrelevant: the verdict is already decided by the time QUIT goes out.
func (s *session) quit() {
	_, _ = s.cmd("QUIT")
	s.close()
}

// hello runs EHLO and records the advertised extensions, falling back
// to HELO for servers that reject EHLO outright.
func (s *session) hello(helloName string) (reply, error) {
	r, err := s.cmd("EHLO %s", helloName)
	if err != nil {
		return r, err
	}
	if r.code >= 500 {
		return s.cmd("HELO %s", helloName)
	}

	for _, line := range strings.Split(r.text, "\n") {
		switch keyword := strings.ToUpper(strings.Fields(line + " ")[0]); keyword {
		case "STARTTLS":
			s.extStartTLS = true
		case "PIPELINING":
			s.extPipelining = true
		}
	}
	return r, nil
}

// maybeStartTLS upgrades the connection opportunistically and re-runs
// EHLO as RFC 3207 requires. Servers without STARTTLS stay plaintext.
func (s *session) maybeStartTLS(helloName string) error {
	if !s.extStartTLS {
		return nil
	}

	r, err := s.cmd("STARTTLS")
	if err != nil {
		return err
	}
	if r.code != 220 {
		// Advertised but refused; carry on in plaintext.
		return nil
	}

	tlsConn := tls.Client(s.conn, &tls.Config{ServerName: s.serverName})
	if err := tlsConn.SetDeadline(time.Now().Add(commandTimeout)); err != nil {
		return err
	}
	if err := tlsConn.Handshake(); err != nil {
		return errTLS{err}
	}

	s.conn = tlsConn
	s.reader = bufio.NewReaderSize(tlsConn, maxLineLen)
	s.extStartTLS = false
	s.extPipelining = false

	_, err = s.hello(helloName)
	return err
}

// mailFrom issues MAIL FROM. The null-ish probe sender is configured,
// never derived from the target.
func (s *session) mailFrom(from string) (reply, error) {
	return s.cmd("MAIL FROM:<%s>", from)
}

// rcptTo issues RCPT TO for one candidate mailbox.
func (s *session) rcptTo(to string) (reply, error) {
	return s.cmd("RCPT TO:<%s>", to)
}

// mailAndRcpt sends MAIL FROM and RCPT TO as one pipelined write when
// the server advertises PIPELINING, otherwise as two round trips.
// Returns the two replies in order.
func (s *session) mailAndRcpt(from, to string) (reply, reply, error) {
	if !s.extPipelining {
		mr, err := s.mailFrom(from)
		if err != nil || mr.code >= 400 {
			return mr, reply{}, err
		}
		rr, err := s.rcptTo(to)
		return mr, rr, err
	}

	if err := s.send(fmt.Sprintf("MAIL FROM:<%s>\r\nRCPT TO:<%s>", from, to)); err != nil {
		return reply{}, reply{}, err
	}
	mr, err := s.readReply()
	if err != nil {
		return reply{}, reply{}, err
	}
	rr, err := s.readReply()
	if err != nil {
		return mr, reply{}, err
	}
	return mr, rr, nil
}

// cmd writes one command line and reads its reply, each side under the
// per-command deadline.
func (s *session) cmd(format string, args ...any) (reply, error) {
	if err := s.send(fmt.Sprintf(format, args...)); err != nil {
		return reply{}, err
	}
	return s.readReply()
}

func (s *session) send(line string) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(commandTimeout)); err != nil {
		return err
	}
	_, err := s.conn.Write([]byte(line + "\r\n"))
	return err
}

// readReply parses one possibly-multiline reply. Lines over the length
// limit or with a malformed code terminate the session: a server this
// far off RFC 5321 is not worth interpreting.
func (s *session) readReply() (reply, error) {
	var (
		code  int
		texts []string
	)

	for {
		if err := s.conn.SetReadDeadline(time.Now().Add(commandTimeout)); err != nil {
			return reply{}, err
		}

		line, err := s.reader.ReadString('\n')
		if err != nil {
			return reply{}, err
		}
		if len(line) > maxLineLen {
			return reply{}, fmt.Errorf("reply line exceeds %d bytes", maxLineLen)
		}

		line = strings.TrimRight(line, "\r\n")
		if len(line) < 3 {
			return reply{}, fmt.Errorf("malformed reply line %q", line)
		}

		c, err := strconv.Atoi(line[:3])
		if err != nil || c < 100 || c > 599 {
			return reply{}, fmt.Errorf("malformed reply code in %q", line)
		}
		code = c

		rest := ""
		cont := false
		if len(line) > 3 {
			cont = line[3] == '-'
			rest = line[4:]
		}
		texts = append(texts, rest)

		if !cont {
			return reply{code: code, text: strings.Join(texts, "\n")}, nil
		}
	}
}

// errTLS marks a failed TLS upgrade so the prober can attribute it to
// the tls_error reason instead of a generic read failure.
type errTLS struct{ err error }

func (e errTLS) Error() string { return "tls handshake failed: " + e.err.Error() }
func (e errTLS) Unwrap() error { return e.err }
