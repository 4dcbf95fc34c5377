// Package transport carries msgpack datagrams between the controller and
// the winches and flyer on the bot network.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/tucoflyer/botcontrol/internal/config"
	"github.com/tucoflyer/botcontrol/internal/dispatcher"
	"github.com/tucoflyer/botcontrol/pkg/core"
	"github.com/tucoflyer/botcontrol/pkg/streaming"
	"github.com/vmihailenco/msgpack/v5"
)

var (
	// ErrUnknownSender is returned for datagrams from an address not in the topology.
	ErrUnknownSender = errors.New("unknown sender")
	// ErrUnexpectedKind is returned when a sender reports a kind it does not own.
	ErrUnexpectedKind = errors.New("unexpected datagram kind")
)

// maxDatagram bounds one read; detector batches are the largest messages.
const maxDatagram = 64 * 1024

// SourceFlyer is the event source of everything the flyer sends.
const SourceFlyer = "flyer"

// WinchSource is the event source of winch id.
func WinchSource(id int) string {
	return "winch:" + strconv.Itoa(id)
}

// Datagram is one message on the wire.
type Datagram struct {
	Kind    string             `msgpack:"kind"`
	Payload msgpack.RawMessage `msgpack:"payload"`
}

// Encode wraps payload of kind into a datagram.
func Encode(kind string, payload any) ([]byte, error) {
	raw, err := msgpack.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", kind, err)
	}
	out, err := msgpack.Marshal(&Datagram{Kind: kind, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("encode %s datagram: %w", kind, err)
	}
	return out, nil
}

// Submitter accepts decoded events; the bot loop implements it.
type Submitter interface {
	Submit(ev dispatcher.Event) error
}

// UDP is the controller's socket. Reads run in Serve; sends may come from
// any goroutine.
type UDP struct {
	conn    *net.UDPConn
	winches []*net.UDPAddr
	senders map[string]int // addr -> winch id
	flyer   *net.UDPAddr
	sink    Submitter
	logger  *slog.Logger

	received atomic.Uint64
	dropped  atomic.Uint64
}

// Listen binds topo.ControllerAddr and resolves every peer in topo.
func Listen(topo config.Topology, sink Submitter, logger *slog.Logger) (*UDP, error) {
	if logger == nil {
		logger = slog.Default()
	}
	local, err := net.ResolveUDPAddr("udp", topo.ControllerAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve controller address: %w", err)
	}

	u := &UDP{
		senders: make(map[string]int, len(topo.Winches)),
		sink:    sink,
		logger:  logger,
	}
	for i, w := range topo.Winches {
		addr, err := net.ResolveUDPAddr("udp", w.Addr)
		if err != nil {
			return nil, fmt.Errorf("resolve winch %d address: %w", i, err)
		}
		u.winches = append(u.winches, addr)
		u.senders[addr.String()] = i
	}
	if topo.FlyerAddr != "" {
		u.flyer, err = net.ResolveUDPAddr("udp", topo.FlyerAddr)
		if err != nil {
			return nil, fmt.Errorf("resolve flyer address: %w", err)
		}
	}

	u.conn, err = net.ListenUDP("udp", local)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", topo.ControllerAddr, err)
	}
	return u, nil
}

// LocalAddr is the bound address.
func (u *UDP) LocalAddr() net.Addr {
	return u.conn.LocalAddr()
}

// Stats returns datagrams received and dropped.
func (u *UDP) Stats() (received, dropped uint64) {
	return u.received.Load(), u.dropped.Load()
}

// Serve reads datagrams until ctx is done, then closes the socket.
func (u *UDP) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = u.conn.Close()
	}()

	buf := make([]byte, maxDatagram)
	for {
		n, from, err := u.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			u.logger.Warn("udp read failed", "error", err)
			continue
		}
		u.received.Add(1)

		ev, err := u.Decode(from, buf[:n])
		if err != nil {
			u.dropped.Add(1)
			u.logger.Warn("dropping datagram", "from", from.String(), "error", err)
			continue
		}
		if err := u.sink.Submit(ev); err != nil {
			u.dropped.Add(1)
			u.logger.Debug("submit failed", "kind", ev.Kind, "error", err)
		}
	}
}

// Decode turns one datagram from a known peer into an event.
func (u *UDP) Decode(from *net.UDPAddr, data []byte) (dispatcher.Event, error) {
	var d Datagram
	if err := msgpack.Unmarshal(data, &d); err != nil {
		return dispatcher.Event{}, fmt.Errorf("decode datagram: %w", err)
	}
	ev := dispatcher.Event{Kind: d.Kind, Timestamp: time.Now()}

	if id, ok := u.senders[from.String()]; ok {
		if d.Kind != streaming.TypeWinchStatus {
			return dispatcher.Event{}, fmt.Errorf("%w: %s from winch %d", ErrUnexpectedKind, d.Kind, id)
		}
		var status core.WinchStatus
		if err := msgpack.Unmarshal(d.Payload, &status); err != nil {
			return dispatcher.Event{}, fmt.Errorf("decode winch %d status: %w", id, err)
		}
		ev.Source = WinchSource(id)
		ev.Payload = streaming.WinchStatusReport{ID: id, Status: status}
		return ev, nil
	}

	if u.flyer == nil || from.String() != u.flyer.String() {
		return dispatcher.Event{}, fmt.Errorf("%w: %s", ErrUnknownSender, from)
	}
	ev.Source = SourceFlyer

	var err error
	switch d.Kind {
	case streaming.TypeCameraObjectDetection:
		ev.Payload, err = unmarshal[core.CameraDetectedObjects](d.Payload)
	case streaming.TypeCameraRegionTracking:
		ev.Payload, err = unmarshal[core.CameraTrackedRegion](d.Payload)
	case streaming.TypeFlyerSensors:
		ev.Payload, err = unmarshal[core.FlyerSensors](d.Payload)
	default:
		return dispatcher.Event{}, fmt.Errorf("%w: %s from flyer", ErrUnexpectedKind, d.Kind)
	}
	if err != nil {
		return dispatcher.Event{}, fmt.Errorf("decode flyer %s: %w", d.Kind, err)
	}
	return ev, nil
}

func unmarshal[T any](raw []byte) (T, error) {
	var v T
	err := msgpack.Unmarshal(raw, &v)
	return v, err
}

// SendWinch sends cmd to winch id.
func (u *UDP) SendWinch(id int, cmd core.WinchCommand) error {
	if id < 0 || id >= len(u.winches) {
		return fmt.Errorf("no address for winch %d", id)
	}
	return u.send(u.winches[id], streaming.TypeWinchCommand, cmd)
}

// SendFlyer sends payload of kind to the flyer.
func (u *UDP) SendFlyer(kind string, payload any) error {
	if u.flyer == nil {
		return errors.New("no flyer address")
	}
	return u.send(u.flyer, kind, payload)
}

func (u *UDP) send(to *net.UDPAddr, kind string, payload any) error {
	data, err := Encode(kind, payload)
	if err != nil {
		return err
	}
	if _, err := u.conn.WriteToUDP(data, to); err != nil {
		return fmt.Errorf("send %s to %s: %w", kind, to, err)
	}
	return nil
}

// Close closes the socket; Serve returns.
func (u *UDP) Close() error {
	return u.conn.Close()
}
