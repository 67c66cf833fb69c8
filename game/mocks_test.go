package game

import (
	"context"
	"skillduels/domain"
	"skillduels/match"
	"skillduels/protocol"
	"time"

	"github.com/stretchr/testify/mock"
)

// --- WebsocketConnection ---

type MockWebsocketConnection struct {
	mock.Mock
}

func (m *MockWebsocketConnection) Close(reason string) {
	m.Called(reason)
}

func (m *MockWebsocketConnection) Write(data []byte) error {
	args := m.Called(data)
	return args.Error(0)
}

func (m *MockWebsocketConnection) Read() ([]byte, error) {
	args := m.Called()
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockWebsocketConnection) Ping() error {
	args := m.Called()
	return args.Error(0)
}

// --- CodeGenerator ---

type MockCodeGenerator struct {
	mock.Mock
}

func (m *MockCodeGenerator) Generate() string {
	args := m.Called()
	return args.String(0)
}

// --- PeriodicTickerChannelCreator ---

type MockPeriodicTickerChannelCreator struct {
	mock.Mock
}

func (m *MockPeriodicTickerChannelCreator) Create(duration time.Duration) <-chan time.Time {
	args := m.Called(duration)
	return args.Get(0).(chan time.Time)
}

// --- UserGetter ---

type MockUserGetter struct {
	mock.Mock
}

func (m *MockUserGetter) GetUserById(ctx context.Context, id string) (domain.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.User), args.Error(1)
}

// --- OutcomeNotifier ---

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(outcome match.Outcome) {
	m.Called(outcome)
}

// --- Player ---

type MockPlayer struct {
	mock.Mock
}

func (m *MockPlayer) Id() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockPlayer) UserId() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockPlayer) Username() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockPlayer) Send(data []byte) error {
	args := m.Called(data)
	return args.Error(0)
}

func (m *MockPlayer) Ping() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockPlayer) SetRoom(r Room) {
	m.Called(r)
}

func (m *MockPlayer) CancelAndRelease(reason string) {
	m.Called(reason)
}

// --- Room ---

type MockRoom struct {
	mock.Mock
}

func (m *MockRoom) Code() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockRoom) Send(ctx context.Context, e ClientPacketEnvelope) {
	m.Called(ctx, e)
}

func (m *MockRoom) RemoveMe(ctx context.Context, p Player) {
	m.Called(ctx, p)
}

func (m *MockRoom) RequestJoin(ctx context.Context, jreq roomJoinRequest) error {
	args := m.Called(ctx, jreq)
	return args.Error(0)
}

func (m *MockRoom) Status(ctx context.Context) (RoomStatus, error) {
	args := m.Called(ctx)
	return args.Get(0).(RoomStatus), args.Error(1)
}

func (m *MockRoom) Tick(now time.Time) {
	m.Called(now)
}

func (m *MockRoom) PingPlayers() {
	m.Called()
}

func (m *MockRoom) Shutdown() {
	m.Called()
}

func (m *MockRoom) GameLoop() {
	m.Called()
}

func (m *MockRoom) SetParentLobby(l Lobby) {
	m.Called(l)
}

// --- Lobby ---

type MockLobby struct {
	mock.Mock
}

func (m *MockLobby) RemoveRoom(code string, r Room) {
	m.Called(code, r)
}

// --- RoomRegistry ---

type MockRegistry struct {
	mock.Mock
}

func (m *MockRegistry) Join(ctx context.Context, code string, p Player, join protocol.JoinRoom) error {
	args := m.Called(ctx, code, p, join)
	return args.Error(0)
}

func (m *MockRegistry) FreshCode(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockRegistry) RoomStatus(ctx context.Context, code string) (RoomStatus, error) {
	args := m.Called(ctx, code)
	return args.Get(0).(RoomStatus), args.Error(1)
}
