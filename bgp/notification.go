package bgp

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Notification is a decoded NOTIFICATION message body.
type Notification struct {
	Code    uint8
	Subcode uint8
	Data    []byte
}

// DecodeNotification parses a NOTIFICATION body.
func DecodeNotification(body []byte) (Notification, error) {
	if len(body) < 2 {
		return Notification{}, errors.Wrap(ErrBadHeader, "NOTIFICATION body too short")
	}
	return Notification{Code: body[0], Subcode: body[1], Data: body[2:]}, nil
}

// EncodeNotification serializes n's body into dst.
func EncodeNotification(dst []byte, n Notification) int {
	dst[0] = n.Code
	dst[1] = n.Subcode
	copy(dst[2:], n.Data)
	return 2 + len(n.Data)
}

// RouteRefresh is a decoded ROUTE-REFRESH message body (RFC 2918).
type RouteRefresh struct {
	AFI  uint16
	SAFI uint8
}

// DecodeRouteRefresh parses a ROUTE-REFRESH body.
func DecodeRouteRefresh(body []byte) (RouteRefresh, error) {
	if len(body) < 4 {
		return RouteRefresh{}, errors.Wrap(ErrBadHeader, "ROUTE-REFRESH body too short")
	}
	return RouteRefresh{AFI: binary.BigEndian.Uint16(body[0:2]), SAFI: body[3]}, nil
}

// EncodeRouteRefresh serializes r's body into dst.
func EncodeRouteRefresh(dst []byte, r RouteRefresh) int {
	binary.BigEndian.PutUint16(dst[0:2], r.AFI)
	dst[2] = 0
	dst[3] = r.SAFI
	return 4
}
