package perception

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"
)

// maxDatagramSize bounds one detection batch on the wire. Batches are
// small (tens of objects with short paths); 64 KiB leaves headroom.
const maxDatagramSize = 64 << 10

// UDPSource receives detection batches as JSON datagrams, one batch per
// datagram. It implements BatchSource.
type UDPSource struct {
	ctx  context.Context
	conn *net.UDPConn
	buf  []byte

	timeouts  atomic.Int64
	malformed atomic.Int64
}

// ListenUDP binds a UDP listener for detection batches. The returned
// source stops (Next returns ctx.Err) once ctx is canceled.
func ListenUDP(ctx context.Context, addr string) (*UDPSource, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve UDP address %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("listen UDP %s: %w", addr, err)
	}
	if err := conn.SetReadBuffer(4 << 20); err != nil {
		Logf("[listen] failed to set receive buffer: %v", err)
	}
	return &UDPSource{
		ctx:  ctx,
		conn: conn,
		buf:  make([]byte, maxDatagramSize),
	}, nil
}

// Next blocks until a well-formed batch arrives, the context is
// canceled, or the socket fails. Malformed datagrams are counted,
// logged, and skipped; they never end the stream.
func (s *UDPSource) Next() (DetectionBatch, error) {
	for {
		select {
		case <-s.ctx.Done():
			return DetectionBatch{}, s.ctx.Err()
		default:
		}

		// Short read deadline so cancellation is noticed promptly.
		if err := s.conn.SetReadDeadline(time.Now().Add(1 * time.Second)); err != nil {
			return DetectionBatch{}, fmt.Errorf("set read deadline: %w", err)
		}
		n, _, err := s.conn.ReadFromUDP(s.buf)
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				s.timeouts.Add(1)
				continue
			}
			if s.ctx.Err() != nil {
				return DetectionBatch{}, s.ctx.Err()
			}
			return DetectionBatch{}, fmt.Errorf("read datagram: %w", err)
		}

		var batch DetectionBatch
		if err := json.Unmarshal(s.buf[:n], &batch); err != nil {
			s.malformed.Add(1)
			Logf("[listen] dropping malformed batch (%d bytes): %v", n, err)
			continue
		}
		return batch, nil
	}
}

// Close releases the socket. Next returns an error afterwards.
func (s *UDPSource) Close() error {
	return s.conn.Close()
}

// LocalAddr returns the bound address, useful when listening on an
// ephemeral port.
func (s *UDPSource) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// Timeouts returns how many read deadlines expired without data.
func (s *UDPSource) Timeouts() int64 { return s.timeouts.Load() }

// Malformed returns how many datagrams failed to decode.
func (s *UDPSource) Malformed() int64 { return s.malformed.Load() }
