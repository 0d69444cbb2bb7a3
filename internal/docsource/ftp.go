package docsource

import (
	"context"
	"io"
	"net"
	"net/url"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ftpFetcher downloads documents over FTP, for agencies that deliver case
// files to a drop folder.
type ftpFetcher struct {
	timeout time.Duration
}

// parseFTPURL extracts host (with port) and path from an FTP URL.
func parseFTPURL(rawURL string) (host, path string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", eris.Wrap(err, "docsource: parse ftp url")
	}
	if u.Scheme != "ftp" {
		return "", "", eris.Errorf("docsource: expected ftp scheme, got %q", u.Scheme)
	}

	host = u.Host
	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		host = net.JoinHostPort(host, "21")
	}

	path = u.Path
	if path == "" {
		return "", "", eris.New("docsource: empty path in ftp url")
	}
	return host, path, nil
}

// ftpConnReader closes both the FTP response and the connection.
type ftpConnReader struct {
	resp *ftp.Response
	conn *ftp.ServerConn
}

func (r *ftpConnReader) Read(p []byte) (int, error) {
	return r.resp.Read(p)
}

func (r *ftpConnReader) Close() error {
	respErr := r.resp.Close()
	quitErr := r.conn.Quit()
	if respErr != nil {
		return eris.Wrap(respErr, "docsource: close ftp response")
	}
	if quitErr != nil {
		return eris.Wrap(quitErr, "docsource: quit ftp connection")
	}
	return nil
}

// download connects, retrieves the file, and returns a reader. The caller
// must close it to release the connection.
func (f *ftpFetcher) download(ctx context.Context, ftpURL string) (io.ReadCloser, error) {
	host, path, err := parseFTPURL(ftpURL)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("ftp: connecting", zap.String("host", host), zap.String("path", path))

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(f.timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrapf(err, "docsource: ftp dial %s", host)
	}

	if err := conn.Login("anonymous", "anonymous"); err != nil {
		conn.Quit()
		return nil, eris.Wrap(err, "docsource: ftp login")
	}

	resp, err := conn.Retr(path)
	if err != nil {
		conn.Quit()
		return nil, eris.Wrapf(err, "docsource: ftp retr %s", path)
	}

	return &ftpConnReader{resp: resp, conn: conn}, nil
}
