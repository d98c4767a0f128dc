package ipc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/normen/goxlr-daemon/device"
	"github.com/normen/goxlr-daemon/mapper"
	"github.com/normen/goxlr-daemon/notify"
	"github.com/normen/goxlr-daemon/profile"
	"github.com/normen/goxlr-daemon/protocol"
	"github.com/normen/goxlr-daemon/state"
	"go.uber.org/multierr"
)

type fakeBackend struct {
	mu       sync.Mutex
	values   map[state.Target]int32
	setErr   error
	applyErr error
	applied  *profile.Profile
	notifier *notify.Notifier
}

func newFake() *fakeBackend {
	return &fakeBackend{values: make(map[state.Target]int32), notifier: notify.New(8)}
}

func (f *fakeBackend) GetState(t state.Target) (state.Value, error) {
	if !t.Valid() {
		return state.Value{}, mapper.ErrUnknownTarget
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[t]
	return state.Value{Raw: v, Known: ok}, nil
}

func (f *fakeBackend) Snapshot() []state.Change {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []state.Change
	for t, v := range f.values {
		out = append(out, state.Change{Target: t, Value: v})
	}
	state.SortChanges(out)
	return out
}

func (f *fakeBackend) SetState(ctx context.Context, t state.Target, v int32) error {
	f.mu.Lock()
	if f.setErr != nil {
		defer f.mu.Unlock()
		return f.setErr
	}
	f.values[t] = v
	f.mu.Unlock()
	f.notifier.Publish(state.Change{Target: t, Value: v})
	f.notifier.Flush()
	return nil
}

func (f *fakeBackend) Profile() *profile.Profile { return profile.Default() }

func (f *fakeBackend) ApplyProfile(ctx context.Context, p *profile.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied = p
	return f.applyErr
}

func (f *fakeBackend) ReadProfile(ctx context.Context) (*profile.Profile, error) {
	p := profile.Default()
	p.Name = "device"
	return p, nil
}

func (f *fakeBackend) Subscribe() *notify.Subscription { return f.notifier.Subscribe() }

func (f *fakeBackend) Connected() bool { return true }

func request(t *testing.T, s *Server, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("%s %s: %v: %s", method, path, err, rec.Body)
	}
	return rec.Code, out
}

func TestGetState(t *testing.T) {
	b := newFake()
	b.values[state.Volume(protocol.ChannelMic)] = 144
	s := NewServer(b)

	code, out := request(t, s, http.MethodGet, "/api/state/volume/mic", "")
	if code != http.StatusOK {
		t.Fatalf("status %d: %v", code, out)
	}
	if out["target"] != "volume/mic" || out["value"] != 144.0 || out["known"] != true || out["db"] != -10.0 {
		t.Errorf("got %v", out)
	}

	code, out = request(t, s, http.MethodGet, "/api/state/mute/chat", "")
	if code != http.StatusOK || out["known"] != false {
		t.Errorf("unknown value: %d %v", code, out)
	}
	if _, ok := out["db"]; ok {
		t.Errorf("mute reported db: %v", out)
	}

	code, _ = request(t, s, http.MethodGet, "/api/state/volume/nowhere", "")
	if code != http.StatusNotFound {
		t.Errorf("bad target status %d", code)
	}

	code, out = request(t, s, http.MethodGet, "/api/state", "")
	if code != http.StatusOK || out["connected"] != true {
		t.Errorf("state: %d %v", code, out)
	}
	if list, _ := out["state"].([]any); len(list) != 1 {
		t.Errorf("state list %v", out["state"])
	}
}

func TestPutState(t *testing.T) {
	b := newFake()
	s := NewServer(b)
	chat := state.Volume(protocol.ChannelChat)

	code, out := request(t, s, http.MethodPut, "/api/state/volume/chat", `{"value": 50}`)
	if code != http.StatusOK || out["value"] != 50.0 {
		t.Fatalf("status %d: %v", code, out)
	}
	if b.values[chat] != 50 {
		t.Errorf("backend value %d", b.values[chat])
	}

	code, _ = request(t, s, http.MethodPut, "/api/state/volume/chat", `{"db": -10}`)
	if code != http.StatusOK || b.values[chat] != 144 {
		t.Errorf("db write: status %d value %d", code, b.values[chat])
	}

	code, _ = request(t, s, http.MethodPut, "/api/state/volume/chat", `{}`)
	if code != http.StatusBadRequest {
		t.Errorf("missing value status %d", code)
	}
}

func TestPutStateErrors(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{mapper.ErrReadOnly, http.StatusBadRequest},
		{fmt.Errorf("%w: 300", mapper.ErrOutOfRange), http.StatusBadRequest},
		{device.ErrDeviceDisconnected, http.StatusServiceUnavailable},
		{&device.CommandError{Command: protocol.SetChannelVolume(protocol.ChannelMic), Err: fmt.Errorf("%w: %w", device.ErrCommandFailed, device.ErrDeviceTimeout)}, http.StatusGatewayTimeout},
		{&device.CommandError{Command: protocol.SetChannelVolume(protocol.ChannelMic), Status: 3, Err: device.ErrCommandFailed}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		b := newFake()
		b.setErr = tt.err
		code, out := request(t, NewServer(b), http.MethodPut, "/api/state/volume/mic", `{"value": 1}`)
		if code != tt.want {
			t.Errorf("%v: status %d, want %d", tt.err, code, tt.want)
		}
		if out["error"] != tt.err.Error() {
			t.Errorf("%v: error %v", tt.err, out["error"])
		}
	}
}

func TestProfileRoutes(t *testing.T) {
	b := newFake()
	s := NewServer(b)

	code, out := request(t, s, http.MethodPost, "/api/profile", `{"name": "Show"}`)
	if code != http.StatusOK || out["name"] != "Show" {
		t.Fatalf("status %d: %v", code, out)
	}
	if b.applied == nil || b.applied.Name != "Show" || b.applied.Channels[0].Volume != 191 {
		t.Errorf("applied %+v", b.applied)
	}

	b.applied = nil
	code, out = request(t, s, http.MethodPost, "/api/profile", `{"active_preset": 9, "microphone": {"gain": 99}}`)
	if code != http.StatusBadRequest {
		t.Errorf("invalid profile status %d", code)
	}
	if errs, _ := out["errors"].([]any); len(errs) != 2 {
		t.Errorf("errors %v", out["errors"])
	}
	if b.applied != nil {
		t.Error("invalid profile was applied")
	}

	b.applyErr = multierr.Combine(
		&mapper.FieldError{Target: state.Colour(0), Err: mapper.ErrProfileInconsistent},
		&mapper.FieldError{Target: state.Colour(1), Err: mapper.ErrProfileInconsistent},
	)
	code, out = request(t, s, http.MethodPost, "/api/profile", `{}`)
	if code != http.StatusConflict {
		t.Errorf("inconsistent profile status %d", code)
	}
	if errs, _ := out["errors"].([]any); len(errs) != 2 {
		t.Errorf("errors %v", out["errors"])
	}

	code, out = request(t, s, http.MethodGet, "/api/profile?source=device", "")
	if code != http.StatusOK || out["name"] != "device" {
		t.Errorf("read back: %d %v", code, out["name"])
	}
}

func TestWebSocket(t *testing.T) {
	b := newFake()
	srv := httptest.NewServer(NewServer(b).Handler())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/ws", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	send := func(m map[string]any) {
		if err := conn.WriteJSON(m); err != nil {
			t.Fatal(err)
		}
	}
	// wait for the subscription before writing
	for deadline := time.Now().Add(time.Second); b.notifier.Subscribers() == 0; {
		if time.Now().After(deadline) {
			t.Fatal("no subscriber")
		}
		time.Sleep(time.Millisecond)
	}

	send(map[string]any{"msgID": "1", "method": "set", "target": "volume/game", "value": 12})
	var gotReply, gotUpdate bool
	for !gotReply || !gotUpdate {
		var m map[string]any
		if err := conn.ReadJSON(&m); err != nil {
			t.Fatal(err)
		}
		switch m["method"] {
		case "set":
			gotReply = true
			if m["msgID"] != "1" || m["success"] != true {
				t.Errorf("reply %v", m)
			}
		case "update":
			gotUpdate = true
			payload := m["payload"].(map[string]any)
			changes := payload["changes"].([]any)
			c := changes[0].(map[string]any)
			if c["target"] != "volume/game" || c["value"] != 12.0 {
				t.Errorf("update %v", m)
			}
		}
	}

	send(map[string]any{"msgID": "2", "method": "dance"})
	var m map[string]any
	if err := conn.ReadJSON(&m); err != nil {
		t.Fatal(err)
	}
	if m["msgID"] != "2" || m["success"] != false {
		t.Errorf("unknown method reply %v", m)
	}
	if e, _ := m["error"].(map[string]any); e["code"] != 400.0 {
		t.Errorf("error %v", m["error"])
	}

	send(map[string]any{"msgID": "3", "method": "snapshot"})
	if err := conn.ReadJSON(&m); err != nil {
		t.Fatal(err)
	}
	if list, _ := m["payload"].([]any); m["msgID"] != "3" || len(list) != 1 {
		t.Errorf("snapshot %v", m)
	}
}
