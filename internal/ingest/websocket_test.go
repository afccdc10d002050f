package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pulselink/internal/config"
	"pulselink/internal/hrm"
	"pulselink/internal/models"
)

type testHarness struct {
	server   *Server
	statusCh chan models.Status
	appCh    chan models.AppUpdate
	ts       *httptest.Server
	cancel   context.CancelFunc
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()

	statusCh := make(chan models.Status, 8)
	appCh := make(chan models.AppUpdate, 8)
	agg := hrm.NewAggregator(0.1)
	srv := NewServer(&config.WebsocketConfig{}, agg, statusCh, appCh, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		srv.handleConn(ctx, w, r)
	}))
	t.Cleanup(ts.Close)
	t.Cleanup(cancel)

	return &testHarness{server: srv, statusCh: statusCh, appCh: appCh, ts: ts, cancel: cancel}
}

func (h *testHarness) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitStatus(t *testing.T, ch <-chan models.Status) models.Status {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for status")
		return models.Status{}
	}
}

func waitNotice(t *testing.T, ch <-chan models.AppUpdate) models.Notice {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case u := <-ch:
			if u.Notice != nil {
				return *u.Notice
			}
		case <-deadline:
			t.Fatal("timed out waiting for notice")
		}
	}
}

func TestServer_ValidMessageFoldsIntoStatus(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)

	err := conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"bpm": 72, "latest_rr_ms": 850, "battery": 90}`))
	require.NoError(t, err)

	s := waitStatus(t, h.statusCh)
	assert.Equal(t, uint16(72), s.BPM)
	assert.Equal(t, []time.Duration{850 * time.Millisecond}, s.RRIntervals)
	assert.Equal(t, models.BatteryReported, s.Battery.State)
	assert.Equal(t, uint8(90), s.Battery.Percent)
}

func TestServer_BPMAliases(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"heartRate": 65}`)))
	assert.Equal(t, uint16(65), waitStatus(t, h.statusCh).BPM)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"heartrate": 66}`)))
	assert.Equal(t, uint16(66), waitStatus(t, h.statusCh).BPM)
}

func TestServer_InvalidJSONKeepsConnection(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))

	n := waitNotice(t, h.appCh)
	assert.Equal(t, models.NoticeTransient, n.Severity)
	assert.Contains(t, n.Detail, "not json")

	// 坏消息之后连接仍可用
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"bpm": 70}`)))
	assert.Equal(t, uint16(70), waitStatus(t, h.statusCh).BPM)
}

func TestServer_MissingBPMIsInvalid(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"battery": 50}`)))

	n := waitNotice(t, h.appCh)
	assert.Equal(t, models.NoticeTransient, n.Severity)
}

func TestServer_BinaryFrameKeepsConnection(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02}))

	n := waitNotice(t, h.appCh)
	assert.Equal(t, models.NoticeMustDismiss, n.Severity)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"bpm": 71}`)))
	assert.Equal(t, uint16(71), waitStatus(t, h.statusCh).BPM)
}

func TestServer_SecondConnectionRejected(t *testing.T) {
	h := newHarness(t)
	h.dial(t)

	url := "ws" + strings.TrimPrefix(h.ts.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestServer_ClientDisconnectReportsTransient(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)

	require.NoError(t, conn.Close())

	n := waitNotice(t, h.appCh)
	assert.Equal(t, models.NoticeTransient, n.Severity)
}

func TestServer_RunBindAndCancel(t *testing.T) {
	statusCh := make(chan models.Status, 1)
	appCh := make(chan models.AppUpdate, 1)
	srv := NewServer(&config.WebsocketConfig{Port: 0}, hrm.NewAggregator(0.1), statusCh, appCh, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}
