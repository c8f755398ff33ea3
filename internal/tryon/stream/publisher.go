// Package stream publishes processed try-on frames to gRPC subscribers.
//
// The service is declared by hand rather than generated: frames travel as
// google.protobuf.Struct values holding the same JSON shape that
// POST /api/frame returns, and the subscribe request is
// google.protobuf.Empty.
package stream

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"google.golang.org/grpc"

	"github.com/banshee-data/tryon/internal/monitoring"
	"github.com/banshee-data/tryon/internal/tryon/pipeline"
)

// clientBuffer is how many frames a slow subscriber may fall behind before
// frames are dropped for it.
const clientBuffer = 16

// maxMsgSize bounds one streamed frame.
const maxMsgSize = 4 << 20

type client struct {
	id     uint64
	frames chan *pipeline.Frame
}

// Publisher is a pipeline.FrameObserver that fans frames out to connected
// subscribers. Delivery never blocks the frame path; a full subscriber
// buffer drops the frame for that subscriber only.
type Publisher struct {
	mu      sync.RWMutex
	clients map[uint64]*client
	nextID  uint64

	frameCount atomic.Uint64
	dropped    atomic.Uint64

	server   *grpc.Server
	listener net.Listener
	wg       sync.WaitGroup
	running  atomic.Bool
}

// NewPublisher returns a publisher with no subscribers.
func NewPublisher() *Publisher {
	return &Publisher{clients: make(map[uint64]*client)}
}

// ObserveFrame hands a copy of f to every subscriber.
func (p *Publisher) ObserveFrame(f *pipeline.Frame) {
	p.frameCount.Add(1)
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.clients) == 0 {
		return
	}
	fc := *f
	for _, c := range p.clients {
		select {
		case c.frames <- &fc:
		default:
			p.dropped.Add(1)
		}
	}
}

func (p *Publisher) addClient() *client {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	c := &client{id: p.nextID, frames: make(chan *pipeline.Frame, clientBuffer)}
	p.clients[c.id] = c
	monitoring.Logf("[stream] subscriber %d connected (total: %d)", c.id, len(p.clients))
	return c
}

func (p *Publisher) removeClient(id uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.clients[id]; !ok {
		return
	}
	delete(p.clients, id)
	monitoring.Logf("[stream] subscriber %d disconnected (remaining: %d)", id, len(p.clients))
}

// Stats is a snapshot of publisher counters.
type Stats struct {
	Frames  uint64 `json:"frames"`
	Dropped uint64 `json:"dropped"`
	Clients int    `json:"clients"`
	Running bool   `json:"running"`
}

// Stats returns current counters.
func (p *Publisher) Stats() Stats {
	p.mu.RLock()
	n := len(p.clients)
	p.mu.RUnlock()
	return Stats{
		Frames:  p.frameCount.Load(),
		Dropped: p.dropped.Load(),
		Clients: n,
		Running: p.running.Load(),
	}
}

// Start serves the frame stream on addr until Stop.
func (p *Publisher) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return p.Serve(lis)
}

// Serve serves the frame stream on lis until Stop.
func (p *Publisher) Serve(lis net.Listener) error {
	if !p.running.CompareAndSwap(false, true) {
		return fmt.Errorf("publisher already running")
	}
	p.listener = lis
	p.server = grpc.NewServer(grpc.MaxSendMsgSize(maxMsgSize))
	Register(p.server, p)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		monitoring.Logf("[stream] gRPC frame stream listening on %s", lis.Addr())
		if err := p.server.Serve(lis); err != nil && p.running.Load() {
			monitoring.Logf("[stream] gRPC server error: %v", err)
		}
	}()
	return nil
}

// Addr returns the listening address, or nil before Start.
func (p *Publisher) Addr() net.Addr {
	if p.listener == nil {
		return nil
	}
	return p.listener.Addr()
}

// Stop ends all streams and waits for the server to exit.
func (p *Publisher) Stop() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	p.server.Stop()
	p.wg.Wait()
	monitoring.Logf("[stream] gRPC frame stream stopped after %d frames (%d dropped)", p.frameCount.Load(), p.dropped.Load())
}
