package match

import "skillduels/protocol"

type Audience int

const (
	// ToAll reaches every occupant at resolution time.
	ToAll Audience = iota
	// ToOthers reaches every occupant except ConnectionID.
	ToOthers
	// ToOne reaches ConnectionID only.
	ToOne
)

// Delivery is an outbound packet addressed relative to the room's occupants.
type Delivery struct {
	Audience     Audience
	ConnectionID string
	Packet       *protocol.ServerPacket
}

func toAll(p *protocol.ServerPacket) Delivery {
	return Delivery{Audience: ToAll, Packet: p}
}

func toOthers(conn string, p *protocol.ServerPacket) Delivery {
	return Delivery{Audience: ToOthers, ConnectionID: conn, Packet: p}
}

func toOne(conn string, p *protocol.ServerPacket) Delivery {
	return Delivery{Audience: ToOne, ConnectionID: conn, Packet: p}
}

// Recipients resolves the audience against the given occupants, preserving order.
func (d Delivery) Recipients(occupants []string) []string {
	switch d.Audience {
	case ToOne:
		for _, c := range occupants {
			if c == d.ConnectionID {
				return []string{c}
			}
		}
		return nil
	case ToOthers:
		res := make([]string, 0, len(occupants))
		for _, c := range occupants {
			if c != d.ConnectionID {
				res = append(res, c)
			}
		}
		return res
	default:
		return occupants
	}
}
