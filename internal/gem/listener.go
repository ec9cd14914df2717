package gem

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"gem2prom/internal/core/domain"

	"go.uber.org/zap"
)

type ReadingHandler func(domain.DeviceReading)

type GoneHandler func(serial string)

// Listener accepts device connections and pushes decoded readings to its
// handlers. Handlers are called from per-connection goroutines and must not
// block; the ingest side hands the reading straight to an actor mailbox.
type Listener struct {
	port      uint
	onReading ReadingHandler
	onGone    GoneHandler
	logger    *zap.Logger

	ln     net.Listener
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewListener(port uint, onReading ReadingHandler, onGone GoneHandler, logger *zap.Logger) *Listener {
	return &Listener{
		port:      port,
		onReading: onReading,
		onGone:    onGone,
		logger:    logger.With(zap.String("component", "gem_listener")),
	}
}

// Start binds the listen socket and launches the accept loop. A bind error
// is returned synchronously so startup can abort. Cancelling ctx closes the
// socket and stops accepting.
func (l *Listener) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", l.port))
	if err != nil {
		return err
	}
	l.ln = ln

	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	l.wg.Add(1)
	go l.acceptLoop(ctx)

	l.logger.Info("listening for devices", zap.String("addr", ln.Addr().String()))
	return nil
}

// Addr returns the bound listen address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Close stops accepting and waits up to timeout for in-flight connection
// handlers to drain. Returns false if the wait timed out.
func (l *Listener) Close(timeout time.Duration) bool {
	if l.cancel != nil {
		l.cancel()
	}
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (l *Listener) acceptLoop(ctx context.Context) {
	defer l.wg.Done()
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			l.logger.Warn("accept failed", zap.Error(err))
			continue
		}
		l.wg.Add(1)
		go l.handleConn(ctx, conn)
	}
}

func (l *Listener) handleConn(ctx context.Context, conn net.Conn) {
	defer l.wg.Done()
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	logger := l.logger.With(zap.String("remote", conn.RemoteAddr().String()))
	logger.Debug("device connected")

	monitors := map[string]*Monitor{}
	defer func() {
		for serial := range monitors {
			logger.Debug("device gone", zap.String("serial", serial))
			if l.onGone != nil {
				l.onGone(serial)
			}
		}
	}()

	reader := bufio.NewReaderSize(conn, 2*PacketSize)
	for {
		buf, err := readFrame(reader)
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				logger.Debug("device read failed", zap.Error(err))
			}
			return
		}
		pkt, err := DecodePacket(buf)
		if err != nil {
			// corrupt packet, resync on the next header
			logger.Debug("packet dropped", zap.Error(err))
			continue
		}
		monitor, ok := monitors[pkt.Serial]
		if !ok {
			monitor = NewMonitor(pkt.Serial)
			monitors[pkt.Serial] = monitor
			logger.Debug("device discovered", zap.String("serial", pkt.Serial))
		}
		l.onReading(monitor.Reading(pkt))
	}
}

// readFrame scans the stream for a packet header and returns the following
// PacketSize bytes. Garbage between packets is skipped one byte at a time.
func readFrame(r *bufio.Reader) ([]byte, error) {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b != headerByte0 {
			continue
		}
		next, err := r.Peek(2)
		if err != nil {
			return nil, err
		}
		if next[0] != headerByte1 || next[1] != packetFormat {
			continue
		}
		buf := make([]byte, PacketSize)
		buf[0] = headerByte0
		if _, err := io.ReadFull(r, buf[1:]); err != nil {
			return nil, err
		}
		return buf, nil
	}
}
