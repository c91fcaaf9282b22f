package artifact

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/textproto"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/natural-conversion/internal/resilience"
)

// FTPStore keeps artifacts under a directory of an FTP server. Each call
// opens its own control connection.
type FTPStore struct {
	host     string
	user     string
	password string
	prefix   string
	timeout  time.Duration
	retry    resilience.Policy
	limiter  *rate.Limiter
}

// NewFTPStore builds a store from ftp://[user[:pass]@]host[:port]/prefix.
// Without credentials it logs in anonymously.
func NewFTPStore(u *url.URL, opts Options) (*FTPStore, error) {
	if u.Scheme != "ftp" {
		return nil, eris.Errorf("artifact: expected ftp scheme, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, eris.New("artifact: ftp url has no host")
	}

	host := u.Host
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "21")
	}
	s := &FTPStore{
		host:     host,
		user:     "anonymous",
		password: "anonymous@",
		prefix:   strings.Trim(u.Path, "/"),
		timeout:  30 * time.Second,
		retry:    opts.Retry,
		limiter:  newLimiter(opts.RequestsPerSecond),
	}
	if u.User != nil {
		s.user = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			s.password = pw
		}
	}
	s.retry.OnRetry = resilience.LogRetries("ftp", s.host)
	return s, nil
}

func (s *FTPStore) remotePath(key string) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return "/" + path.Join(s.prefix, k), nil
}

func (s *FTPStore) connect(ctx context.Context) (*ftp.ServerConn, error) {
	if err := wait(ctx, s.limiter); err != nil {
		return nil, err
	}
	conn, err := ftp.Dial(s.host, ftp.DialWithTimeout(s.timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrap(err, "ftp dial")
	}
	if err := conn.Login(s.user, s.password); err != nil {
		_ = conn.Quit()
		return nil, eris.Wrap(err, "ftp login")
	}
	return conn, nil
}

// Exists implements Store using SIZE; a 550 reply means the file is absent.
func (s *FTPStore) Exists(ctx context.Context, key string) (bool, error) {
	p, err := s.remotePath(key)
	if err != nil {
		return false, err
	}
	return resilience.DoVal(ctx, s.retry, func(ctx context.Context) (bool, error) {
		conn, err := s.connect(ctx)
		if err != nil {
			return false, err
		}
		defer func() { _ = conn.Quit() }()

		_, err = conn.FileSize(p)
		if isFTPNotFound(err) {
			return false, nil
		}
		if err != nil {
			return false, eris.Wrapf(err, "ftp size %s", p)
		}
		return true, nil
	})
}

// Put implements Store. The body is buffered so a retried upload resends it.
func (s *FTPStore) Put(ctx context.Context, key string, r io.Reader) error {
	p, err := s.remotePath(key)
	if err != nil {
		return err
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return eris.Wrapf(err, "artifact: read body for %s", key)
	}

	return resilience.Do(ctx, s.retry, func(ctx context.Context) error {
		conn, err := s.connect(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = conn.Quit() }()

		makeParents(conn, path.Dir(p))
		if err := conn.Stor(p, bytes.NewReader(body)); err != nil {
			return eris.Wrapf(err, "ftp stor %s", p)
		}
		zap.L().Debug("ftp: stored artifact", zap.String("path", p), zap.Int("bytes", len(body)))
		return nil
	})
}

// Get implements Store. Closing the reader ends the FTP session.
func (s *FTPStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := s.remotePath(key)
	if err != nil {
		return nil, err
	}
	return resilience.DoVal(ctx, s.retry, func(ctx context.Context) (io.ReadCloser, error) {
		conn, err := s.connect(ctx)
		if err != nil {
			return nil, err
		}
		resp, err := conn.Retr(p)
		if err != nil {
			_ = conn.Quit()
			if isFTPNotFound(err) {
				return nil, eris.Wrapf(ErrNotFound, "key %s", key)
			}
			return nil, eris.Wrapf(err, "ftp retr %s", p)
		}
		return &ftpReader{resp: resp, conn: conn}, nil
	})
}

// makeParents creates each directory of dir. Errors are ignored because
// servers report an existing directory as a failure too; a genuine failure
// surfaces from the following STOR.
func makeParents(conn *ftp.ServerConn, dir string) {
	cur := ""
	for _, part := range strings.Split(strings.Trim(dir, "/"), "/") {
		if part == "" {
			continue
		}
		cur += "/" + part
		_ = conn.MakeDir(cur)
	}
}

func isFTPNotFound(err error) bool {
	var tpErr *textproto.Error
	return errors.As(err, &tpErr) && tpErr.Code == ftp.StatusFileUnavailable
}

type ftpReader struct {
	resp *ftp.Response
	conn *ftp.ServerConn
}

func (r *ftpReader) Read(p []byte) (int, error) { return r.resp.Read(p) }

func (r *ftpReader) Close() error {
	respErr := r.resp.Close()
	quitErr := r.conn.Quit()
	if respErr != nil {
		return eris.Wrap(respErr, "close ftp response")
	}
	if quitErr != nil {
		return eris.Wrap(quitErr, "quit ftp connection")
	}
	return nil
}
