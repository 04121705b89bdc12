package crcon

import (
	"context"
)

// Queries binds a Caller to one server's Session and decodes typed results.
type Queries struct {
	caller  Caller
	session *Session
}

func NewQueries(caller Caller, s *Session) Queries {
	return Queries{caller: caller, session: s}
}

func (q Queries) Session() *Session { return q.session }

func (q Queries) Status(ctx context.Context) (ServerName, error) {
	raw, err := q.caller.Call(ctx, q.session, EndpointStatus, nil)
	if err != nil {
		return ServerName{}, err
	}
	return ParseStatus(raw)
}

func (q Queries) Gamestate(ctx context.Context) (Gamestate, error) {
	raw, err := q.caller.Call(ctx, q.session, EndpointGamestate, nil)
	if err != nil {
		return Gamestate{}, err
	}
	return ParseGamestate(raw)
}

func (q Queries) Slots(ctx context.Context) (Slots, error) {
	raw, err := q.caller.Call(ctx, q.session, EndpointSlots, nil)
	if err != nil {
		return Slots{}, err
	}
	return ParseSlots(raw)
}

func (q Queries) Rotation(ctx context.Context) ([]Map, error) {
	raw, err := q.caller.Call(ctx, q.session, EndpointRotation, nil)
	if err != nil {
		return nil, err
	}
	return ParseRotation(raw)
}

// VIPSlots is the number of reserved VIP slots.
func (q Queries) VIPSlots(ctx context.Context) (int, error) {
	raw, err := q.caller.Call(ctx, q.session, EndpointVIPSlots, nil)
	if err != nil {
		return 0, err
	}
	return ParseCount(EndpointVIPSlots, raw)
}

// VIPCount is the number of VIPs currently connected.
func (q Queries) VIPCount(ctx context.Context) (int, error) {
	raw, err := q.caller.Call(ctx, q.session, EndpointVIPCount, nil)
	if err != nil {
		return 0, err
	}
	return ParseCount(EndpointVIPCount, raw)
}

// PictureURL returns the control API's static image URL for m, or "" when
// the map has no known picture.
func (q Queries) PictureURL(m Map) string {
	pic := m.Picture()
	if pic == "" {
		return ""
	}
	return q.session.BaseURL + "/static/maps/" + pic
}
