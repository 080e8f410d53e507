package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"a2dpmgr/internal/core/domain"
	"a2dpmgr/internal/core/ports"
	"a2dpmgr/pkg/retry"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// opcodeByName/edrByName invert domain's diagnostic Name()/String() tables
// so inbound wire messages can be decoded back into typed opcodes.
var opcodeByName = map[string]domain.Opcode{
	"Enable": domain.OpEnable, "Register": domain.OpRegister, "Open": domain.OpOpen,
	"Close": domain.OpClose, "Start": domain.OpStart, "Stop": domain.OpStop,
	"Suspend": domain.OpSuspend, "ProtectReq": domain.OpProtectReq, "ProtectRsp": domain.OpProtectRsp,
	"RcOpen": domain.OpRcOpen, "RcClose": domain.OpRcClose,
	"RcBrowseOpen": domain.OpRcBrowseOpen, "RcBrowseClose": domain.OpRcBrowseClose,
	"RemoteCmd": domain.OpRemoteCmd, "RemoteRsp": domain.OpRemoteRsp,
	"VendorCmd": domain.OpVendorCmd, "VendorRsp": domain.OpVendorRsp,
	"MetaMsg": domain.OpMetaMsg, "Reconfig": domain.OpReconfig,
	"Pending": domain.OpPending, "Reject": domain.OpReject,
	"RcFeat": domain.OpRcFeat, "RcPsm": domain.OpRcPsm,
	"OffloadStartRsp": domain.OpOffloadStartRsp, "ConnectReq": domain.OpConnectReq,
	"DisconnectReq": domain.OpDisconnectReq, "StartStreamReq": domain.OpStartStreamReq,
	"StopStreamReq": domain.OpStopStreamReq, "SuspendStreamReq": domain.OpSuspendStreamReq,
	"SinkConfigReq": domain.OpSinkConfigReq, "AclDisconnected": domain.OpAclDisconnected,
	"OffloadStartReq": domain.OpOffloadStartReq, "AvrcpOpen": domain.OpAvrcpOpen,
	"AvrcpClose": domain.OpAvrcpClose, "AvrcpRemotePlay": domain.OpAvrcpRemotePlay,
	"SetLatencyReq": domain.OpSetLatencyReq,
}

var edrByName = map[string]domain.EDR{
	"":           domain.EDRNone,
	"EDR":        domain.EDR2Mbps,
	"EDR-3Mbps":  domain.EDR3Mbps,
}

// wireMessage is the JSON envelope carried over the websocket connection.
// It is a dev/test stand-in for the real AVDTP/AVRCP wire protocol: one
// JSON object per TransportEvent, keyed by opcode name (§6).
type wireMessage struct {
	Opcode     string `json:"opcode"`
	Address    string `json:"address"`
	Handle     int32  `json:"handle,omitempty"`
	Status     bool   `json:"status,omitempty"`
	Suspending bool   `json:"suspending,omitempty"`
	Initiator  bool   `json:"initiator,omitempty"`
	EDR        string `json:"edr,omitempty"`
	VendorData []byte `json:"vendor_data,omitempty"`
	BrowseData []byte `json:"browse_data,omitempty"`

	SampleRateHz int `json:"sample_rate_hz,omitempty"`
	ChannelCount int `json:"channel_count,omitempty"`
}

type wireCommand struct {
	Command     string `json:"command"`
	Address     string `json:"address,omitempty"`
	Handle      int32  `json:"handle,omitempty"`
	Role        string `json:"role,omitempty"`
	ServiceName string `json:"service_name,omitempty"`
	UUID        string `json:"uuid,omitempty"`
	IsInitiator bool   `json:"is_initiator,omitempty"`
	LowLatency  bool   `json:"low_latency,omitempty"`
	Suspend     bool   `json:"suspend,omitempty"`
	Features    uint32 `json:"features,omitempty"`
}

// WebSocketTransport is a dev/test ports.Transport adapter: the lower
// AVDTP/AVRCP layer is simulated by a peer process speaking JSON messages
// over a websocket, rather than linking against a real Bluetooth stack.
// Grounded on internal/infrastructure/signal/websocket_server.go's
// goroutine-plus-channel-select connection loop and ping/pong handling.
type WebSocketTransport struct {
	url string

	mu     sync.RWMutex
	conn   *websocket.Conn
	remote domain.RoleKind

	pingInterval time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration

	retryCfg retry.Config

	stopCh chan struct{}
	doneCh chan struct{}

	logger *zap.SugaredLogger
}

// NewWebSocketTransport dials url lazily: the connection is established on
// the first Enable call and reconnected with retryCfg backoff if it drops.
func NewWebSocketTransport(url string, retryCfg retry.Config, logger *zap.SugaredLogger) *WebSocketTransport {
	return &WebSocketTransport{
		url:          url,
		pingInterval: 30 * time.Second,
		readTimeout:  60 * time.Second,
		writeTimeout: 10 * time.Second,
		retryCfg:     retryCfg,
		logger:       logger,
	}
}

func (t *WebSocketTransport) Register(ctx context.Context, role domain.RoleKind, serviceName string, slot domain.PeerSlot, uuid string) (domain.HandleID, error) {
	handle := domain.HandleID(slot)
	t.mu.Lock()
	t.remote = role
	t.mu.Unlock()

	return handle, t.send(wireCommand{
		Command:     "register",
		Role:        role.String(),
		ServiceName: serviceName,
		UUID:        uuid,
		Handle:      int32(handle),
	})
}

func (t *WebSocketTransport) Deregister(ctx context.Context, handle domain.HandleID) error {
	return t.send(wireCommand{Command: "deregister", Handle: int32(handle)})
}

// Enable dials the remote peer process and starts the reader loop that
// decodes wireMessages into ports.TransportEvent and posts them on events.
// Reconnects with exponential backoff (pkg/retry) if the dial or an
// established connection fails.
func (t *WebSocketTransport) Enable(ctx context.Context, features ports.FeatureBit, events chan<- ports.TransportEvent) error {
	t.mu.Lock()
	t.stopCh = make(chan struct{})
	t.doneCh = make(chan struct{})
	t.mu.Unlock()

	if err := t.connect(ctx); err != nil {
		return fmt.Errorf("initial connect failed: %w", err)
	}

	go t.readLoop(ctx, events)
	return t.send(wireCommand{Command: "enable", Features: uint32(features)})
}

func (t *WebSocketTransport) connect(ctx context.Context) error {
	return retry.Retry(ctx, t.retryCfg, func() error {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, t.url, nil)
		if err != nil {
			return err
		}
		t.mu.Lock()
		t.conn = conn
		t.mu.Unlock()
		return nil
	})
}

func (t *WebSocketTransport) readLoop(ctx context.Context, events chan<- ports.TransportEvent) {
	defer close(t.doneCh)

	pingTicker := time.NewTicker(t.pingInterval)
	defer pingTicker.Stop()

	msgCh := make(chan wireMessage, 16)
	errCh := make(chan error, 1)
	go t.readPump(msgCh, errCh)

	for {
		select {
		case msg := <-msgCh:
			ev, err := decodeWireMessage(msg)
			if err != nil {
				t.logger.Warnw("dropping malformed transport message", "error", err)
				continue
			}
			events <- ev

		case <-pingTicker.C:
			t.mu.RLock()
			conn := t.conn
			t.mu.RUnlock()
			if conn == nil {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				t.logger.Warnw("ping failed, reconnecting", "error", err)
				if err := t.connect(ctx); err != nil {
					t.logger.Errorw("reconnect failed", "error", err)
				} else {
					go t.readPump(msgCh, errCh)
				}
			}

		case err := <-errCh:
			t.logger.Warnw("transport read error, reconnecting", "error", err)
			if err := t.connect(ctx); err != nil {
				t.logger.Errorw("reconnect failed", "error", err)
			} else {
				go t.readPump(msgCh, errCh)
			}

		case <-t.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (t *WebSocketTransport) readPump(msgCh chan<- wireMessage, errCh chan<- error) {
	t.mu.RLock()
	conn := t.conn
	t.mu.RUnlock()
	if conn == nil {
		return
	}
	conn.SetReadDeadline(time.Now().Add(t.readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(t.readTimeout))
		return nil
	})
	for {
		var msg wireMessage
		if err := conn.ReadJSON(&msg); err != nil {
			errCh <- err
			return
		}
		msgCh <- msg
	}
}

func decodeWireMessage(msg wireMessage) (ports.TransportEvent, error) {
	opcode, ok := opcodeByName[msg.Opcode]
	if !ok {
		return ports.TransportEvent{}, fmt.Errorf("unknown opcode %q", msg.Opcode)
	}
	edr, ok := edrByName[msg.EDR]
	if !ok {
		return ports.TransportEvent{}, fmt.Errorf("unknown EDR %q", msg.EDR)
	}
	return ports.TransportEvent{
		Opcode:       opcode,
		Address:      domain.Address(msg.Address),
		Handle:       domain.HandleID(msg.Handle),
		Status:       msg.Status,
		Suspending:   msg.Suspending,
		Initiator:    msg.Initiator,
		EDR:          edr,
		VendorData:   msg.VendorData,
		BrowseData:   msg.BrowseData,
		SampleRateHz: msg.SampleRateHz,
		ChannelCount: msg.ChannelCount,
	}, nil
}

func (t *WebSocketTransport) Disable(ctx context.Context) error {
	t.mu.Lock()
	if t.stopCh != nil {
		close(t.stopCh)
	}
	conn := t.conn
	t.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if t.doneCh != nil {
		<-t.doneCh
	}
	return nil
}

func (t *WebSocketTransport) Open(ctx context.Context, address domain.Address, handle domain.HandleID, isInitiator bool) error {
	return t.send(wireCommand{Command: "open", Address: string(address), Handle: int32(handle), IsInitiator: isInitiator})
}

func (t *WebSocketTransport) Close(ctx context.Context, handle domain.HandleID) error {
	return t.send(wireCommand{Command: "close", Handle: int32(handle)})
}

func (t *WebSocketTransport) Start(ctx context.Context, handle domain.HandleID, useLatencyMode bool) error {
	return t.send(wireCommand{Command: "start", Handle: int32(handle), LowLatency: useLatencyMode})
}

func (t *WebSocketTransport) Stop(ctx context.Context, handle domain.HandleID, suspend bool) error {
	return t.send(wireCommand{Command: "stop", Handle: int32(handle), Suspend: suspend})
}

func (t *WebSocketTransport) OpenRc(ctx context.Context, handle domain.HandleID) error {
	return t.send(wireCommand{Command: "open_rc", Handle: int32(handle)})
}

func (t *WebSocketTransport) CloseRc(ctx context.Context, handle domain.HandleID) error {
	return t.send(wireCommand{Command: "close_rc", Handle: int32(handle)})
}

func (t *WebSocketTransport) SetLatency(ctx context.Context, handle domain.HandleID, low bool) error {
	return t.send(wireCommand{Command: "set_latency", Handle: int32(handle), LowLatency: low})
}

func (t *WebSocketTransport) OffloadStart(ctx context.Context, handle domain.HandleID) error {
	return t.send(wireCommand{Command: "offload_start", Handle: int32(handle)})
}

func (t *WebSocketTransport) send(cmd wireCommand) error {
	t.mu.RLock()
	conn := t.conn
	t.mu.RUnlock()
	if conn == nil {
		return fmt.Errorf("transport not connected")
	}
	conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

var _ ports.Transport = (*WebSocketTransport)(nil)
