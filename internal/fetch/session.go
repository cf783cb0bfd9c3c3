package fetch

import (
	"context"
	"io"
	"time"

	"github.com/jlaffaye/ftp"
)

// Entry is one remote directory listing row.
type Entry struct {
	Name string
	Size int64
	Dir  bool
}

// Session abstracts the FTP connection so the transfer core is testable
// without a live server.
type Session interface {
	ChangeDir(dir string) error
	List() ([]Entry, error)
	Download(name string) (io.ReadCloser, error)
	Close() error
}

// ftpDialer returns the production Dial: connect, login, wrap the conn.
func ftpDialer(host, user, pass string, timeout time.Duration) func(ctx context.Context) (Session, error) {
	return func(ctx context.Context) (Session, error) {
		conn, err := ftp.Dial(host, ftp.DialWithContext(ctx), ftp.DialWithTimeout(timeout))
		if err != nil {
			return nil, err
		}
		if err := conn.Login(user, pass); err != nil {
			_ = conn.Quit()
			return nil, err
		}
		return &ftpSession{conn: conn}, nil
	}
}

type ftpSession struct {
	conn *ftp.ServerConn
}

func (s *ftpSession) ChangeDir(dir string) error { return s.conn.ChangeDir(dir) }

func (s *ftpSession) List() ([]Entry, error) {
	raw, err := s.conn.List("")
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(raw))
	for _, e := range raw {
		out = append(out, Entry{
			Name: e.Name,
			Size: int64(e.Size), // #nosec G115 -- FTP sizes fit in int64
			Dir:  e.Type == ftp.EntryTypeFolder,
		})
	}
	return out, nil
}

func (s *ftpSession) Download(name string) (io.ReadCloser, error) {
	return s.conn.Retr(name)
}

func (s *ftpSession) Close() error { return s.conn.Quit() }
