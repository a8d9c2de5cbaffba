package bgp

import "github.com/pkg/errors"

// Message is a fully decoded BGP message: the header plus whichever body
// field matches Header.Type.
type Message struct {
	Header       Header
	Open         *Open
	Update       *Update
	Notification *Notification
	RouteRefresh *RouteRefresh
}

// Decode parses a complete BGP message (header and body) out of buf, which
// must hold exactly Header.Length bytes or more (trailing bytes are
// ignored). flags carries session-level decode options for UPDATE bodies.
func Decode(buf []byte, flags Flags) (Message, error) {
	hdr, err := DecodeHeader(buf)
	if err != nil {
		return Message{}, err
	}
	body := buf[headerLen:hdr.Length]
	msg := Message{Header: hdr}
	switch hdr.Type {
	case TypeOpen:
		o, err := DecodeOpen(body)
		if err != nil {
			return Message{}, err
		}
		msg.Open = &o
	case TypeUpdate:
		u, err := DecodeUpdate(body, flags)
		if err != nil {
			return Message{}, err
		}
		msg.Update = &u
	case TypeKeepalive:
		// no body
	case TypeNotification:
		n, err := DecodeNotification(body)
		if err != nil {
			return Message{}, err
		}
		msg.Notification = &n
	case TypeRouteRefresh:
		r, err := DecodeRouteRefresh(body)
		if err != nil {
			return Message{}, err
		}
		msg.RouteRefresh = &r
	default:
		return Message{}, errors.Wrapf(ErrBadType, "type %d", hdr.Type)
	}
	return msg, nil
}
