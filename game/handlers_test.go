package game

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"skillduels/domain"
	"skillduels/match"
	"skillduels/protocol"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestWebsocketHandler_Validation(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	testCases := []struct {
		name         string
		setupMocks   func(*MockUserGetter)
		userId       string
		expectedCode int
		expectedBody string
	}{
		{
			name:         "missing user id",
			setupMocks:   func(u *MockUserGetter) {},
			userId:       "",
			expectedCode: http.StatusUnauthorized,
			expectedBody: "unauthenticated",
		},
		{
			name: "user not found",
			setupMocks: func(u *MockUserGetter) {
				u.On("GetUserById", mock.Anything, "user-123").Return(domain.User{}, domain.ErrUserNotFound)
			},
			userId:       "user-123",
			expectedCode: http.StatusUnauthorized,
			expectedBody: "user-not-found",
		},
		{
			name: "database error",
			setupMocks: func(u *MockUserGetter) {
				u.On("GetUserById", mock.Anything, "user-123").Return(domain.User{}, errors.New("db error"))
			},
			userId:       "user-123",
			expectedCode: http.StatusInternalServerError,
			expectedBody: "failed-to-get-user",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			mockRegistry := &MockRegistry{}
			mockUserGetter := &MockUserGetter{}
			tc.setupMocks(mockUserGetter)

			handler := NewGameHandler(mockRegistry, mockUserGetter)

			router := gin.New()
			router.GET("/ws", func(c *gin.Context) {
				if tc.userId != "" {
					c.Set("id", tc.userId)
				}
				handler.WebsocketHandler(c)
			})

			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			res := httptest.NewRecorder()
			router.ServeHTTP(res, req)

			assert.Equal(t, tc.expectedCode, res.Code)
			assert.Contains(t, res.Body.String(), tc.expectedBody)

			mockRegistry.AssertExpectations(t)
			mockUserGetter.AssertExpectations(t)
		})
	}
}

func TestServe_JoinHandshake(t *testing.T) {
	t.Parallel()
	user := domain.User{Id: "user-a", Username: "alice"}

	testCases := []struct {
		name        string
		firstFrame  []byte
		readErr     error
		joinErr     error
		expectJoin  bool
		expectWrite string
		closeReason string
	}{
		{
			name:        "read error",
			firstFrame:  []byte{},
			readErr:     assert.AnError,
			closeReason: "",
		},
		{
			name:        "first frame is not join-room",
			firstFrame:  []byte(`{"event":"player-ready","data":{"roomCode":"ABC123"}}`),
			closeReason: CloseExpectedJoin,
		},
		{
			name:        "garbage first frame",
			firstFrame:  []byte(`not json`),
			closeReason: CloseExpectedJoin,
		},
		{
			name:        "invalid room code",
			firstFrame:  []byte(`{"event":"join-room","data":{"roomCode":"AB"}}`),
			expectWrite: `{"event":"join-error","data":{"reason":"invalid-room-code"}}`,
			closeReason: "invalid-room-code",
		},
		{
			name:        "room full",
			firstFrame:  []byte(`{"event":"join-room","data":{"roomCode":"abc123"}}`),
			joinErr:     match.ErrRoomFull,
			expectJoin:  true,
			expectWrite: `{"event":"join-error","data":{"reason":"room-full"}}`,
			closeReason: "room-full",
		},
		{
			name:        "room closed",
			firstFrame:  []byte(`{"event":"join-room","data":{"roomCode":"ABC123"}}`),
			joinErr:     match.ErrRoomClosed,
			expectJoin:  true,
			expectWrite: `{"event":"join-error","data":{"reason":"room-closed"}}`,
			closeReason: "room-closed",
		},
		{
			name:        "lobby timeout",
			firstFrame:  []byte(`{"event":"join-room","data":{"roomCode":"ABC123"}}`),
			joinErr:     context.DeadlineExceeded,
			expectJoin:  true,
			expectWrite: `{"event":"join-error","data":{"reason":"server-timeout"}}`,
			closeReason: "server-timeout",
		},
		{
			name:        "unexpected error",
			firstFrame:  []byte(`{"event":"join-room","data":{"roomCode":"ABC123"}}`),
			joinErr:     assert.AnError,
			expectJoin:  true,
			expectWrite: `{"event":"join-error","data":{"reason":"unknown-error"}}`,
			closeReason: "unknown-error",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			mockSocket := &MockWebsocketConnection{}
			mockRegistry := &MockRegistry{}

			mockSocket.On("Read").Return(tc.firstFrame, tc.readErr).Once()
			mockSocket.On("Close", tc.closeReason).Return()
			if tc.expectWrite != "" {
				mockSocket.On("Write", mock.MatchedBy(func(data []byte) bool {
					return assert.JSONEq(t, tc.expectWrite, string(data))
				})).Return(nil)
			}
			if tc.expectJoin {
				mockRegistry.On("Join", mock.Anything, "ABC123", mock.Anything, mock.MatchedBy(func(j protocol.JoinRoom) bool {
					return j.RoomCode == "ABC123"
				})).Return(tc.joinErr)
			}

			handler := NewGameHandler(mockRegistry, &MockUserGetter{})
			handler.serve(mockSocket, user)

			mockSocket.AssertExpectations(t)
			mockRegistry.AssertExpectations(t)
		})
	}
}

func TestNewCodeHandler(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	mockRegistry := &MockRegistry{}
	mockRegistry.On("FreshCode", mock.Anything).Return("QWE456", nil).Once()
	mockRegistry.On("FreshCode", mock.Anything).Return("", ErrLobbyClosed).Once()
	handler := NewGameHandler(mockRegistry, &MockUserGetter{})

	router := gin.New()
	router.GET("/game/code", handler.NewCodeHandler)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/game/code", nil))
	assert.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `{"roomCode":"QWE456"}`, res.Body.String())

	res = httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/game/code", nil))
	assert.Equal(t, http.StatusServiceUnavailable, res.Code)
	assert.Contains(t, res.Body.String(), "lobby-closed")
}

func TestRoomStatusHandler(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	mockRegistry := &MockRegistry{}
	mockRegistry.On("RoomStatus", mock.Anything, "ABC123").Return(RoomStatus{Exists: true, Players: 2, Phase: "ready-room", GameMode: "tennis"}, nil)
	handler := NewGameHandler(mockRegistry, &MockUserGetter{})

	router := gin.New()
	router.GET("/game/rooms/:code", handler.RoomStatusHandler)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/game/rooms/abc123", nil))
	assert.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `{"exists":true,"players":2,"phase":"ready-room","gameMode":"tennis"}`, res.Body.String())

	res = httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/game/rooms/nope", nil))
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "invalid-room-code")
}

func TestGorillaWebSocketWrapper(t *testing.T) {
	t.Parallel()

	t.Run("read and write", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			upgrader := websocket.Upgrader{}
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			defer conn.Close()

			wrapper := NewWebsocketConnection(conn, time.Minute)
			data, err := wrapper.Read()
			if err != nil {
				return
			}
			wrapper.Write(data)
		}))
		defer server.Close()

		conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
		require.NoError(t, err)
		defer conn.Close()

		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"x"}`)))
		msgType, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, websocket.TextMessage, msgType)
		assert.Equal(t, `{"event":"x"}`, string(msg))
	})

	t.Run("close carries the reason", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			upgrader := websocket.Upgrader{}
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			wrapper := NewWebsocketConnection(conn, time.Minute)
			wrapper.Close(CloseRoomExpired)
			// second close is a no-op
			wrapper.Close(CloseServerShutdown)
		}))
		defer server.Close()

		conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
		require.NoError(t, err)
		defer conn.Close()

		conn.SetReadDeadline(time.Now().Add(time.Second))
		_, _, err = conn.ReadMessage()
		var closeErr *websocket.CloseError
		require.ErrorAs(t, err, &closeErr)
		assert.Equal(t, websocket.CloseNormalClosure, closeErr.Code)
		assert.Equal(t, CloseRoomExpired, closeErr.Text)
	})
}

// gateway wires a real lobby behind the websocket handler. Users are picked
// with the uid query parameter in place of the auth middleware.
type gateway struct {
	server *httptest.Server
	url    string
}

func newGateway(t *testing.T, cfg match.Config) *gateway {
	t.Helper()
	gin.SetMode(gin.TestMode)

	users := &MockUserGetter{}
	for _, name := range []string{"alice", "bob", "carol"} {
		users.On("GetUserById", mock.Anything, "user-"+name).Return(domain.User{Id: "user-" + name, Username: name}, nil)
	}

	wg := &sync.WaitGroup{}
	tickerGen := NewTickerGen()
	l := NewLobby(LobbyConfig{Match: cfg, RoomTick: time.Millisecond * 10, PingInterval: time.Second * 30}, NewCodeGen(), &tickerGen, fixedSeed("cup"), nil, wg)
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	go l.LobbyActor(ctx, started)
	<-started

	handler := NewGameHandler(l, users)
	router := gin.New()
	router.GET("/game/ws", func(c *gin.Context) {
		c.Set("id", c.Query("uid"))
		handler.WebsocketHandler(c)
	})
	server := httptest.NewServer(router)

	t.Cleanup(func() {
		cancel()
		server.Close()
		wg.Wait()
	})
	return &gateway{server: server, url: "ws" + strings.TrimPrefix(server.URL, "http") + "/game/ws"}
}

func (g *gateway) dial(t *testing.T, user string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(g.url+"?uid=user-"+user, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

// readUntil reads frames until one with the given event arrives.
func readUntil(t *testing.T, conn *websocket.Conn, event string) protocol.Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(time.Second * 3))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", event)
		var env protocol.Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		if env.Event == event {
			return env
		}
	}
}

func readClose(t *testing.T, conn *websocket.Conn) *websocket.CloseError {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(time.Second * 3))
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		var closeErr *websocket.CloseError
		require.ErrorAs(t, err, &closeErr)
		return closeErr
	}
}

func TestGateway_EndToEnd(t *testing.T) {
	t.Parallel()
	cfg := match.Config{
		WinThreshold:    1,
		CountdownTicks:  1,
		CountdownTick:   time.Millisecond * 20,
		SettleDelay:     time.Millisecond * 20,
		WaitingTTL:      time.Minute,
		DefaultGameMode: match.ModeObjectHunt,
	}
	g := newGateway(t, cfg)

	alice := g.dial(t, "alice")
	sendFrame(t, alice, `{"event":"join-room","data":{"roomCode":"abc123","isHost":true,"wager":1.5}}`)
	joined := readUntil(t, alice, protocol.EventRoomJoined)
	var roomJoined protocol.RoomJoined
	require.NoError(t, json.Unmarshal(joined.Data, &roomJoined))
	assert.Equal(t, "ABC123", roomJoined.RoomCode)
	assert.True(t, roomJoined.IsHost)
	assert.Equal(t, 1.5, roomJoined.Wager)
	aliceId := roomJoined.ConnectionId

	bob := g.dial(t, "bob")
	sendFrame(t, bob, `{"event":"join-room","data":{"roomCode":"ABC123"}}`)
	readUntil(t, bob, protocol.EventRoomReady)
	readUntil(t, alice, protocol.EventRoomReady)

	carol := g.dial(t, "carol")
	sendFrame(t, carol, `{"event":"join-room","data":{"roomCode":"ABC123"}}`)
	rejected := readUntil(t, carol, protocol.EventJoinError)
	assert.JSONEq(t, `{"reason":"room-full"}`, string(rejected.Data))
	assert.Equal(t, "room-full", readClose(t, carol).Text)

	sendFrame(t, alice, `{"event":"player-ready","data":{"roomCode":"ABC123"}}`)
	sendFrame(t, bob, `{"event":"player-ready","data":{"roomCode":"ABC123"}}`)
	readUntil(t, alice, protocol.EventBothReady)

	sendFrame(t, alice, `{"event":"show-rules","data":{"roomCode":"ABC123"}}`)
	readUntil(t, bob, protocol.EventShowRulesScreen)
	sendFrame(t, alice, `{"event":"rules-accepted","data":{"roomCode":"ABC123"}}`)
	sendFrame(t, bob, `{"event":"rules-accepted","data":{"roomCode":"ABC123"}}`)

	started := readUntil(t, bob, protocol.EventGameStarted)
	assert.JSONEq(t, `{"targetItem":"cup","gameMode":"object-hunt","round":1}`, string(started.Data))
	readUntil(t, alice, protocol.EventGameStarted)

	sendFrame(t, bob, `{"event":"found-object","data":{"roomCode":"ABC123","item":"cup"}}`)
	relayed := readUntil(t, alice, "opponent-found-object")
	assert.JSONEq(t, `{"roomCode":"ABC123","item":"cup"}`, string(relayed.Data))

	sendFrame(t, alice, `{"event":"round-winner","data":{"roomCode":"ABC123"}}`)
	for _, conn := range []*websocket.Conn{alice, bob} {
		finished := readUntil(t, conn, protocol.EventGameFinished)
		var data protocol.GameFinished
		require.NoError(t, json.Unmarshal(finished.Data, &data))
		require.NotNil(t, data.Winner)
		assert.Equal(t, aliceId, data.Winner.Id)
		assert.Equal(t, "alice", data.Winner.Username)
	}

	// bob leaves after the match, alice stays in the finished room
	bob.Close()
	left := readUntil(t, alice, protocol.EventPlayerLeft)
	assert.Contains(t, string(left.Data), `"abandoned":false`)
}

func TestGateway_ExpectedJoin(t *testing.T) {
	t.Parallel()
	g := newGateway(t, testMatchConfig())

	conn := g.dial(t, "alice")
	sendFrame(t, conn, `{"event":"player-ready","data":{"roomCode":"ABC123"}}`)
	assert.Equal(t, CloseExpectedJoin, readClose(t, conn).Text)
}

func TestGateway_OpponentLeavesMidMatch(t *testing.T) {
	t.Parallel()
	g := newGateway(t, testMatchConfig())

	alice := g.dial(t, "alice")
	sendFrame(t, alice, `{"event":"join-room","data":{"roomCode":"QQQ111"}}`)
	readUntil(t, alice, protocol.EventRoomJoined)
	bob := g.dial(t, "bob")
	sendFrame(t, bob, `{"event":"join-room","data":{"roomCode":"QQQ111"}}`)
	readUntil(t, alice, protocol.EventRoomReady)

	sendFrame(t, alice, `{"event":"player-ready","data":{"roomCode":"QQQ111"}}`)
	sendFrame(t, bob, `{"event":"player-ready","data":{"roomCode":"QQQ111"}}`)
	readUntil(t, alice, protocol.EventBothReady)
	sendFrame(t, alice, `{"event":"show-rules","data":{"roomCode":"QQQ111"}}`)
	readUntil(t, alice, protocol.EventShowRulesScreen)

	bob.Close()
	left := readUntil(t, alice, protocol.EventPlayerLeft)
	assert.Contains(t, string(left.Data), `"abandoned":true`)
	assert.Equal(t, CloseOpponentLeft, readClose(t, alice).Text)

	// the code is free again and a new room takes it
	carol := g.dial(t, "carol")
	sendFrame(t, carol, `{"event":"join-room","data":{"roomCode":"QQQ111"}}`)
	joined := readUntil(t, carol, protocol.EventRoomJoined)
	assert.Contains(t, string(joined.Data), `"isHost":true`)
}
