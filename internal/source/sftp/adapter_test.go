package sftp

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/timmy/hrsync/internal/config"
	"github.com/timmy/hrsync/internal/logger"
	"github.com/timmy/hrsync/internal/source"
)

func TestNewAdapter_Validation(t *testing.T) {
	_, err := NewAdapter(config.SFTPConfig{User: "u", Password: "p"})
	assert.Error(t, err, "host is required")

	_, err = NewAdapter(config.SFTPConfig{Host: "h", User: "u"})
	assert.Error(t, err, "an auth method is required")

	_, err = NewAdapter(config.SFTPConfig{Host: "h", User: "u", KeyPath: "/does/not/exist"})
	assert.Error(t, err)

	_, err = NewAdapter(config.SFTPConfig{Host: "h", User: "u", Password: "p", HostKey: "garbage"})
	assert.Error(t, err)

	a, err := NewAdapter(config.SFTPConfig{Host: "h", User: "u", Password: "p"})
	require.NoError(t, err)
	assert.Equal(t, 22, a.cfg.Port)
	assert.Equal(t, "sftp:h", a.Name())
}

func TestNewAdapter_WarnsWithoutHostKey(t *testing.T) {
	var buf bytes.Buffer
	prev := logger.GetDefault()
	logger.SetDefaultLogger(logger.New(&logger.Config{Level: "info", Format: "json", Output: &buf, ServiceName: "test"}))
	t.Cleanup(func() { logger.SetDefaultLogger(prev) })

	_, err := NewAdapter(config.SFTPConfig{Host: "h", User: "u", Password: "p"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "host key will not be verified")
	assert.Contains(t, buf.String(), `"level":"warning"`)

	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	sshPub, err := ssh.NewPublicKey(pub)
	require.NoError(t, err)

	buf.Reset()
	_, err = NewAdapter(config.SFTPConfig{Host: "h", User: "u", Password: "p", HostKey: string(ssh.MarshalAuthorizedKey(sshPub))})
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "host key will not be verified")
}

func TestAdapter_UnreachableHostIsConnectionError(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().(*net.TCPAddr)
	require.NoError(t, l.Close())

	a, err := NewAdapter(config.SFTPConfig{
		Host:        "127.0.0.1",
		Port:        addr.Port,
		User:        "u",
		Password:    "p",
		DialTimeout: time.Second,
	})
	require.NoError(t, err)

	_, err = a.ListFiles(context.Background())
	require.Error(t, err)
	assert.True(t, source.IsConnectionError(err), "got %v", err)

	_, err = a.Download(context.Background(), "x.csv")
	assert.True(t, source.IsConnectionError(err))
	assert.Contains(t, err.Error(), strconv.Itoa(addr.Port))
}
