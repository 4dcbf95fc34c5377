package transport

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tucoflyer/botcontrol/internal/config"
	"github.com/tucoflyer/botcontrol/internal/dispatcher"
	"github.com/tucoflyer/botcontrol/pkg/core"
	"github.com/tucoflyer/botcontrol/pkg/streaming"
	"github.com/vmihailenco/msgpack/v5"
)

type chanSink struct {
	ch chan dispatcher.Event
}

func (s *chanSink) Submit(ev dispatcher.Event) error {
	select {
	case s.ch <- ev:
		return nil
	default:
		return errors.New("full")
	}
}

func peer(t *testing.T) *net.UDPConn {
	t.Helper()
	c, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

type rig struct {
	u       *UDP
	sink    *chanSink
	winches []*net.UDPConn
	flyer   *net.UDPConn
}

func newRig(t *testing.T, winches int) *rig {
	t.Helper()
	r := &rig{sink: &chanSink{ch: make(chan dispatcher.Event, 16)}}
	topo := config.Topology{ControllerAddr: "127.0.0.1:0"}
	for i := 0; i < winches; i++ {
		c := peer(t)
		r.winches = append(r.winches, c)
		topo.Winches = append(topo.Winches, config.WinchNode{Addr: c.LocalAddr().String()})
	}
	r.flyer = peer(t)
	topo.FlyerAddr = r.flyer.LocalAddr().String()

	var err error
	r.u, err = Listen(topo, r.sink, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.u.Close() })
	return r
}

func (r *rig) serve(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, r.u.Serve(ctx))
	}()
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})
}

func send(t *testing.T, from *net.UDPConn, to net.Addr, kind string, payload any) {
	t.Helper()
	data, err := Encode(kind, payload)
	require.NoError(t, err)
	_, err = from.WriteTo(data, to)
	require.NoError(t, err)
}

func receive(t *testing.T, c *net.UDPConn) Datagram {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, maxDatagram)
	n, _, err := c.ReadFrom(buf)
	require.NoError(t, err)
	var d Datagram
	require.NoError(t, msgpack.Unmarshal(buf[:n], &d))
	return d
}

func TestDecode_WinchStatusTaggedWithID(t *testing.T) {
	r := newRig(t, 3)
	status := core.WinchStatus{TickCounter: 77, Sensors: core.WinchSensors{Position: -40}}
	data, err := Encode(streaming.TypeWinchStatus, status)
	require.NoError(t, err)

	ev, err := r.u.Decode(r.winches[2].LocalAddr().(*net.UDPAddr), data)
	require.NoError(t, err)

	assert.Equal(t, streaming.TypeWinchStatus, ev.Kind)
	assert.Equal(t, "winch:2", ev.Source)
	assert.Equal(t, streaming.WinchStatusReport{ID: 2, Status: status}, ev.Payload)
	assert.False(t, ev.Timestamp.IsZero())
}

func TestDecode_FlyerKinds(t *testing.T) {
	r := newRig(t, 1)
	from := r.flyer.LocalAddr().(*net.UDPAddr)

	det := core.CameraDetectedObjects{Frame: 4, Objects: []core.CameraDetectedObject{
		{Rect: mgl32.Vec4{0, 0, 1, 1}, Label: "person", Prob: 0.7},
	}}
	tr := core.CameraTrackedRegion{Frame: 5, PSR: 9, Rect: mgl32.Vec4{-1, -1, 1, 1}}
	sensors := core.FlyerSensors{Lidar: [4]uint16{1, 2, 3, 4}}

	tests := []struct {
		kind    string
		payload any
	}{
		{streaming.TypeCameraObjectDetection, det},
		{streaming.TypeCameraRegionTracking, tr},
		{streaming.TypeFlyerSensors, sensors},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			data, err := Encode(tt.kind, tt.payload)
			require.NoError(t, err)
			ev, err := r.u.Decode(from, data)
			require.NoError(t, err)
			assert.Equal(t, SourceFlyer, ev.Source)
			assert.Equal(t, tt.payload, ev.Payload)
		})
	}
}

func TestDecode_Rejects(t *testing.T) {
	r := newRig(t, 1)
	stranger := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1}

	data, _ := Encode(streaming.TypeFlyerSensors, core.FlyerSensors{})
	_, err := r.u.Decode(stranger, data)
	assert.True(t, errors.Is(err, ErrUnknownSender))

	_, err = r.u.Decode(r.winches[0].LocalAddr().(*net.UDPAddr), data)
	assert.True(t, errors.Is(err, ErrUnexpectedKind))

	data, _ = Encode(streaming.TypeWinchCommand, core.WinchCommand{})
	_, err = r.u.Decode(r.flyer.LocalAddr().(*net.UDPAddr), data)
	assert.True(t, errors.Is(err, ErrUnexpectedKind))

	_, err = r.u.Decode(r.flyer.LocalAddr().(*net.UDPAddr), []byte{0xc1})
	assert.Error(t, err)
}

func TestServe_SubmitsAndDrops(t *testing.T) {
	r := newRig(t, 2)
	r.serve(t)
	stranger := peer(t)

	send(t, stranger, r.u.LocalAddr(), streaming.TypeWinchStatus, core.WinchStatus{})
	send(t, r.winches[1], r.u.LocalAddr(), streaming.TypeWinchStatus, core.WinchStatus{TickCounter: 1})

	select {
	case ev := <-r.sink.ch:
		report, ok := ev.Payload.(streaming.WinchStatusReport)
		require.True(t, ok)
		assert.Equal(t, 1, report.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("no event submitted")
	}

	assert.Eventually(t, func() bool {
		received, dropped := r.u.Stats()
		return received == 2 && dropped == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSendWinchAndFlyer(t *testing.T) {
	r := newRig(t, 2)
	cmd := core.WinchCommand{Velocity: 0.25, Position: 900, ForceMin: 10, ForceMax: 90, PWMLimit: 0.8}

	require.NoError(t, r.u.SendWinch(1, cmd))
	d := receive(t, r.winches[1])
	assert.Equal(t, streaming.TypeWinchCommand, d.Kind)
	var got core.WinchCommand
	require.NoError(t, msgpack.Unmarshal(d.Payload, &got))
	assert.Equal(t, cmd, got)

	region := core.CameraTrackedRegion{Frame: 8, Rect: mgl32.Vec4{0, 0, 2, 2}}
	require.NoError(t, r.u.SendFlyer(streaming.TypeCameraRegionTracking, region))
	d = receive(t, r.flyer)
	assert.Equal(t, streaming.TypeCameraRegionTracking, d.Kind)

	assert.Error(t, r.u.SendWinch(5, cmd))
}

func TestListen_BadAddress(t *testing.T) {
	_, err := Listen(config.Topology{ControllerAddr: "not an address"}, &chanSink{}, nil)
	assert.Error(t, err)
}
