package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-swarm/pkg/action"
	"github.com/teslashibe/go-swarm/pkg/protocol"
)

// fakeRobot is a controller stand-in: it writes script on connect and
// forwards every text message it reads to got.
func fakeRobot(t *testing.T, script string, got chan<- []byte) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		if script != "" {
			ws.WriteMessage(websocket.TextMessage, []byte(script))
		}
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			select {
			case got <- data:
			default:
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestClientReceivesFrames(t *testing.T) {
	script := `{"type":"sensors","dist_front":200,"dist_left":50,"dist_right":300}` + "\n" +
		`{"type":"status","level":"warning","battery_voltage":6.6}` + "\n" +
		`not json` + "\n" +
		`{"type":"sensors","dist_front":150,"dist_left":120,"dist_right":90,"speed_left":80}` + "\n"
	srv := fakeRobot(t, script, make(chan []byte, 8))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := Dial(ctx, wsURL(srv), DefaultOptions())
	require.NoError(t, err)

	first := <-c.Frames()
	assert.Equal(t, 200.0, first.Front)
	assert.Equal(t, 50.0, first.Left)
	assert.Equal(t, 300.0, first.Right)
	assert.False(t, first.Timestamp.IsZero())

	second := <-c.Frames()
	assert.Equal(t, 150.0, second.Front)
	assert.Equal(t, 80.0, second.SpeedLeft)

	require.NoError(t, c.Close())
	st := c.Stats()
	assert.Equal(t, uint64(2), st.FramesReceived)
	assert.Equal(t, uint64(1), st.BadMessages)
}

func TestClientSendsCommands(t *testing.T) {
	got := make(chan []byte, 4)
	srv := fakeRobot(t, "", got)

	c, err := Dial(context.Background(), wsURL(srv), DefaultOptions())
	require.NoError(t, err)
	defer c.Close()

	d := action.Decision{Action: action.TurnRight, SpeedLeft: 140, SpeedRight: 40, Source: action.SourceSafety, Cycle: 7}
	require.NoError(t, c.Send(context.Background(), d))

	select {
	case raw := <-got:
		msg, err := protocol.ParseMessage(raw)
		require.NoError(t, err)
		cmd, err := protocol.GetCommandData(msg)
		require.NoError(t, err)
		assert.Equal(t, "TURN_RIGHT", cmd.Action)
		assert.Equal(t, 140, cmd.SpeedLeft)
		assert.Equal(t, 40, cmd.SpeedRight)
		assert.Equal(t, uint64(7), cmd.Cycle)
	case <-time.After(5 * time.Second):
		t.Fatal("robot never received the command")
	}
	assert.Equal(t, uint64(1), c.Stats().CommandsSent)
}

func TestClientAnswersPing(t *testing.T) {
	got := make(chan []byte, 4)
	srv := fakeRobot(t, `{"type":"ping","seq":42}`+"\n", got)

	c, err := Dial(context.Background(), wsURL(srv), DefaultOptions())
	require.NoError(t, err)
	defer c.Close()

	select {
	case raw := <-got:
		msg, err := protocol.ParseMessage(raw)
		require.NoError(t, err)
		assert.Equal(t, protocol.TypePong, msg.Type)
	case <-time.After(5 * time.Second):
		t.Fatal("no pong")
	}
}

func TestSendAfterCloseFails(t *testing.T) {
	srv := fakeRobot(t, "", make(chan []byte, 1))

	c, err := Dial(context.Background(), wsURL(srv), DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, c.Close())

	err = c.Send(context.Background(), action.StopDecision(action.SourceSafety, "TEST"))
	assert.True(t, errors.Is(err, ErrNotConnected))

	_, open := <-c.Frames()
	assert.False(t, open, "frames channel should be closed")
}

func TestDialFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := Dial(ctx, "ws://127.0.0.1:1", DefaultOptions())
	assert.Error(t, err)
}
