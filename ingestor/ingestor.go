package ingestor

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"time"

	lj "github.com/elastic/go-lumber/lj"
	srv2 "github.com/elastic/go-lumber/server/v2"
)

var (
	errNoMessage    = errors.New("missing message field")
	errEmptyMessage = errors.New("empty message")
)

// IngestStats counts what the ingestor received since it started.
type IngestStats struct {
	Events  int64 // Beats events received
	Rows    int64 // data rows handed out
	Headers int64 // shipped CSV header lines dropped
	Dropped int64 // events without a usable message
}

// TCPIngestor receives search log rows shipped by a Beats client. Every
// event "message" carries one or more headerless CSV rows.
type TCPIngestor struct {
	listener    net.Listener
	readTimeout time.Duration
	batches     chan *lj.Batch
	server      *srv2.Server
	closed      atomic.Bool

	events  atomic.Int64
	rows    atomic.Int64
	headers atomic.Int64
	dropped atomic.Int64
}

func NewTCPIngestor(addr string, readTimeout time.Duration) (*TCPIngestor, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return &TCPIngestor{
		listener:    ln,
		readTimeout: readTimeout,
		batches:     make(chan *lj.Batch, 1000),
	}, nil
}

// Addr returns the address the ingestor listens on.
func (ing *TCPIngestor) Addr() net.Addr {
	return ing.listener.Addr()
}

// Accept starts the lumberjack v2 server. Batches are acked as soon as they
// are queued; the window decides what to keep.
func (ing *TCPIngestor) Accept() error {
	srv, err := srv2.NewWithListener(
		ing.listener,
		srv2.Timeout(ing.readTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create lumberjack server: %w", err)
	}
	ing.server = srv

	go func() {
		for batch := range ing.server.ReceiveChan() {
			ing.batches <- batch
			batch.ACK()
		}
		close(ing.batches)
	}()

	return nil
}

// isHeader reports whether a line is the column header of a shipped file.
func isHeader(line string) bool {
	return strings.HasPrefix(line, "id,") || line == "id"
}

// eventRows extracts the CSV rows carried by a Beats event. Multiline events
// are split; blank lines and header lines are dropped.
func eventRows(evt map[string]interface{}) (rows []string, headers int, err error) {
	msg, ok := evt["message"].(string)
	if !ok {
		return nil, 0, errNoMessage
	}
	for _, line := range strings.Split(msg, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if isHeader(line) {
			headers++
			continue
		}
		rows = append(rows, line)
	}
	if len(rows) == 0 && headers == 0 {
		return nil, 0, errEmptyMessage
	}
	return rows, headers, nil
}

// ReadBatch drains every batch received so far and returns the raw rows.
func (ing *TCPIngestor) ReadBatch() ([]string, error) {
	var out []string

	for {
		select {
		case batch, ok := <-ing.batches:
			if !ok {
				ing.closed.Store(true)
				return out, nil
			}
			for _, evt := range batch.Events {
				ing.events.Add(1)
				m, ok := evt.(map[string]interface{})
				if !ok {
					ing.dropped.Add(1)
					continue
				}
				rows, headers, err := eventRows(m)
				if err != nil {
					ing.dropped.Add(1)
					continue
				}
				ing.headers.Add(int64(headers))
				ing.rows.Add(int64(len(rows)))
				out = append(out, rows...)
			}
		default:
			return out, nil
		}
	}
}

// Stats returns the counters accumulated so far.
func (ing *TCPIngestor) Stats() IngestStats {
	return IngestStats{
		Events:  ing.events.Load(),
		Rows:    ing.rows.Load(),
		Headers: ing.headers.Load(),
		Dropped: ing.dropped.Load(),
	}
}

// IsClosed reports whether the server stopped delivering batches.
func (ing *TCPIngestor) IsClosed() bool {
	return ing.server == nil || ing.closed.Load()
}

// Close shuts down the server and listener.
func (ing *TCPIngestor) Close() error {
	if ing.server != nil {
		ing.server.Close()
	}
	return ing.listener.Close()
}
