package game

import (
	"context"
	"log/slog"
	"skillduels/protocol"
	"sync"

	"golang.org/x/time/rate"
)

const sendBufferSize = 64

type ClientPacketEnvelope struct {
	packet protocol.ClientPacket
	from   Player
}

type player struct {
	id          string
	userId      string
	username    string
	chatLimiter *rate.Limiter
	inbox       chan []byte
	pingChan    chan struct{}
	room        Room
	ctx         context.Context
	cancelCtx   context.CancelFunc
	releaseOnce sync.Once
	closeReason string
}

func NewPlayer(id, userId, username string) *player {
	ctx, cancel := context.WithCancel(context.Background())
	return &player{
		id:          id,
		userId:      userId,
		username:    username,
		chatLimiter: rate.NewLimiter(2, 5),
		inbox:       make(chan []byte, sendBufferSize),
		pingChan:    make(chan struct{}, 1),
		ctx:         ctx,
		cancelCtx:   cancel,
	}
}

func (p *player) Id() string       { return p.id }
func (p *player) UserId() string   { return p.userId }
func (p *player) Username() string { return p.username }

// SetRoom is called by the room actor when the join is accepted, before the
// pumps start.
func (p *player) SetRoom(r Room) {
	p.room = r
}

// Send queues data for the write pump. It never blocks.
func (p *player) Send(data []byte) error {
	select {
	case p.inbox <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (p *player) Ping() error {
	select {
	case p.pingChan <- struct{}{}:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// CancelAndRelease stops both pumps. The write pump flushes what is already
// queued, then closes the socket with reason.
func (p *player) CancelAndRelease(reason string) {
	p.releaseOnce.Do(func() {
		p.closeReason = reason
		p.cancelCtx()
	})
}

func (p *player) ReadPump(socket WebsocketConnection) {
	defer func() {
		p.room.RemoveMe(p.ctx, p)
		socket.Close("")
	}()

	for {
		data, err := socket.Read()
		if err != nil {
			return
		}

		packet, err := protocol.DecodeClientPacket(data)
		if err != nil {
			slog.Debug("dropped undecodable packet", "conn", p.id, "error", err)
			continue
		}

		if relay, ok := packet.Payload.(protocol.Relay); ok {
			if relay.Event == protocol.EventChatMessage || relay.Event == protocol.EventSendEmoji {
				if !p.chatLimiter.Allow() {
					continue
				}
			}
		}

		p.room.Send(p.ctx, ClientPacketEnvelope{packet: packet, from: p})

		if p.ctx.Err() != nil {
			return
		}
	}
}

func (p *player) WritePump(socket WebsocketConnection) {
	for {
		select {
		case data := <-p.inbox:
			if err := socket.Write(data); err != nil {
				p.room.RemoveMe(p.ctx, p)
				socket.Close("")
				return
			}
		case <-p.pingChan:
			if err := socket.Ping(); err != nil {
				p.room.RemoveMe(p.ctx, p)
				socket.Close("")
				return
			}
		case <-p.ctx.Done():
			p.flush(socket)
			socket.Close(p.closeReason)
			return
		}
	}
}

// flush writes what the room queued before releasing the player, so notices
// like player-left or room-expired reach the client before the close frame.
func (p *player) flush(socket WebsocketConnection) {
	for {
		select {
		case data := <-p.inbox:
			if err := socket.Write(data); err != nil {
				return
			}
		default:
			return
		}
	}
}
