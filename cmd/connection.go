// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"
	"golang.org/x/term"

	"github.com/Thermoquad/necscope/pkg/capture"
)

// Link is an open capture link: packets in, packets out
type Link struct {
	transport io.ReadWriteCloser
	info      string
	packets   *capture.PacketReader

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func newLink(transport io.ReadWriteCloser, info string) *Link {
	return &Link{
		transport: transport,
		info:      info,
		packets:   capture.NewPacketReader(transport),
	}
}

// String describes the link for status output
func (l *Link) String() string {
	return l.info
}

// ReadPacket returns the next capture packet from the device.
// Invalid packets are returned as errors wrapping capture.ErrInvalidPacket.
func (l *Link) ReadPacket() (*capture.Packet, error) {
	return l.packets.ReadPacket()
}

// Samples returns a sample reader over the link's packet stream.
// It must not be used concurrently with ReadPacket.
func (l *Link) Samples() *capture.SampleReader {
	return l.packets.Samples()
}

// WritePacket sends one encoded packet. Safe for concurrent use.
func (l *Link) WritePacket(data []byte) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	if _, err := l.transport.Write(data); err != nil {
		return fmt.Errorf("failed to send packet: %w", err)
	}
	return nil
}

// Ping sends a PING_REQUEST
func (l *Link) Ping() error {
	return l.WritePacket(capture.EncodePingRequest())
}

// Close closes the transport. Later calls return the first result.
func (l *Link) Close() error {
	l.closeOnce.Do(func() {
		l.closeErr = l.transport.Close()
	})
	return l.closeErr
}

// CloseOnDone closes the link once ctx is done, unblocking any pending read
func (l *Link) CloseOnDone(ctx context.Context) {
	go func() {
		<-ctx.Done()
		l.Close()
	}()
}

// isClosed reports whether err means the capture stream has ended
func isClosed(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return true
	}
	var portErr *serial.PortError
	return errors.As(err, &portErr) && portErr.Code() == serial.PortClosed
}

// OpenLink opens the capture link selected by --url or --port
func OpenLink() (*Link, error) {
	if wsURL != "" {
		password := ""
		if wsUsername != "" {
			var err error
			password, err = readPassword()
			if err != nil {
				return nil, err
			}
		}

		conn, err := dialWebSocket(wsURL, wsUsername, password, wsNoSSLVerify)
		if err != nil {
			return nil, err
		}
		return newLink(&wsTransport{conn: conn}, "WebSocket: "+wsURL), nil
	}

	if portName != "" {
		port, err := serial.Open(portName, &serial.Mode{
			BaudRate: baudRate,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
		}
		return newLink(port, fmt.Sprintf("Serial: %s @ %d baud", portName, baudRate)), nil
	}

	return nil, fmt.Errorf("either --port or --url must be specified")
}

// wsTransport exposes the binary messages of a WebSocket as one byte stream.
// Packets may span messages; text messages are skipped.
type wsTransport struct {
	conn *websocket.Conn
	msg  io.Reader
	err  error // sticky read error, the connection cannot be read again
}

func (t *wsTransport) Read(p []byte) (int, error) {
	for {
		if t.err != nil {
			return 0, t.err
		}

		if t.msg == nil {
			messageType, r, err := t.conn.NextReader()
			if err != nil {
				t.err = err
				return 0, err
			}
			if messageType != websocket.BinaryMessage {
				continue
			}
			t.msg = r
		}

		n, err := t.msg.Read(p)
		if err == io.EOF {
			t.msg = nil
			if n == 0 {
				continue
			}
			err = nil
		}
		if err != nil {
			t.err = err
		}
		return n, err
	}
}

func (t *wsTransport) Write(p []byte) (int, error) {
	if err := t.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (t *wsTransport) Close() error {
	deadline := time.Now().Add(time.Second)
	t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return t.conn.Close()
}

// dialWebSocket connects to a ws:// or wss:// bridge with optional Basic auth
func dialWebSocket(rawURL, username, password string, skipSSLVerify bool) (*websocket.Conn, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	switch u.Scheme {
	case "ws":
	case "wss":
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: skipSSLVerify}
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, rawURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}
	return conn, nil
}

// readPassword takes the password from NECSCOPE_PASSWORD or prompts for it
func readPassword() (string, error) {
	if pw := os.Getenv(envPassword); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")
	defer fmt.Fprintln(os.Stderr)

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err == nil {
		return string(passwordBytes), nil
	}

	// Not a terminal, read a line instead
	password, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(password), nil
}
