package sftp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/timmy/hrsync/internal/config"
	"github.com/timmy/hrsync/internal/logger"
	"github.com/timmy/hrsync/internal/source"
)

// Adapter reads the HR feed over SFTP. Each call dials, works and closes its own session.
type Adapter struct {
	cfg       config.SFTPConfig
	sshConfig *ssh.ClientConfig
}

// NewAdapter builds the SSH client configuration from cfg.
// Parameters:
//   - cfg: SFTP host, credentials and directory.
// Returns:
//   - *Adapter: adapter ready to dial.
//   - error: non-nil if no auth method is configured or a key cannot be parsed.
func NewAdapter(cfg config.SFTPConfig) (*Adapter, error) {
	if cfg.Host == "" {
		return nil, errors.New("sftp host is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 30 * time.Second
	}

	var auth []ssh.AuthMethod
	if cfg.KeyPath != "" {
		key, err := os.ReadFile(cfg.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read sftp key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("failed to parse sftp key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if cfg.Password != "" {
		auth = append(auth, ssh.Password(cfg.Password))
	}
	if len(auth) == 0 {
		return nil, errors.New("sftp password or key_path is required")
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if cfg.HostKey == "" {
		logger.GetDefault().WithFields(logger.Fields{
			logger.FieldComponent: "sftp",
			"host":                cfg.Host,
		}).Warn("No sftp host_key configured, the server's host key will not be verified")
	} else {
		pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(cfg.HostKey))
		if err != nil {
			return nil, fmt.Errorf("failed to parse sftp host key: %w", err)
		}
		hostKeyCallback = ssh.FixedHostKey(pub)
	}

	return &Adapter{
		cfg: cfg,
		sshConfig: &ssh.ClientConfig{
			User:            cfg.User,
			Auth:            auth,
			HostKeyCallback: hostKeyCallback,
			Timeout:         cfg.DialTimeout,
		},
	}, nil
}

// Name identifies the adapter in logs.
func (a *Adapter) Name() string {
	return "sftp:" + a.cfg.Host
}

// ListFiles lists the regular files of the configured directory.
func (a *Adapter) ListFiles(ctx context.Context) ([]source.FileInfo, error) {
	var files []source.FileInfo
	err := a.withClient(ctx, "list", func(client *sftp.Client) error {
		entries, err := client.ReadDir(a.dir())
		if err != nil {
			return &source.ConnectionError{Op: "list", Err: err}
		}
		for _, e := range entries {
			if !e.Mode().IsRegular() {
				continue
			}
			files = append(files, source.FileInfo{
				Name:       e.Name(),
				Size:       e.Size(),
				ModifiedAt: e.ModTime(),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).WithFields(logger.Fields{
		logger.FieldSource: a.Name(),
		logger.FieldCount:  len(files),
	}).Debug("Listed remote files")
	return files, nil
}

// Download reads one file of the configured directory into memory.
func (a *Adapter) Download(ctx context.Context, name string) ([]byte, error) {
	var buf bytes.Buffer
	err := a.withClient(ctx, "download", func(client *sftp.Client) error {
		f, err := client.Open(path.Join(a.dir(), name))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return &source.NotFoundError{Name: name}
			}
			return &source.ConnectionError{Op: "open " + name, Err: err}
		}
		defer f.Close()

		if _, err := f.WriteTo(&buf); err != nil {
			return &source.ConnectionError{Op: "read " + name, Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (a *Adapter) dir() string {
	if a.cfg.Directory == "" {
		return "."
	}
	return a.cfg.Directory
}

// withClient dials a fresh session, runs fn and closes the session on every path.
func (a *Adapter) withClient(ctx context.Context, op string, fn func(*sftp.Client) error) error {
	addr := net.JoinHostPort(a.cfg.Host, strconv.Itoa(a.cfg.Port))

	dialer := net.Dialer{Timeout: a.cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return &source.ConnectionError{Op: op, Err: err}
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, a.sshConfig)
	if err != nil {
		conn.Close()
		return &source.ConnectionError{Op: op, Err: err}
	}
	sshClient := ssh.NewClient(sshConn, chans, reqs)
	defer sshClient.Close()

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		return &source.ConnectionError{Op: op, Err: err}
	}
	defer client.Close()

	// Unblock in-flight reads when the caller gives up.
	stop := context.AfterFunc(ctx, func() { sshClient.Close() })
	defer stop()

	if err := fn(client); err != nil {
		if ctx.Err() != nil {
			return &source.ConnectionError{Op: op, Err: ctx.Err()}
		}
		return err
	}
	return nil
}
