package winrt

import (
	"encoding/binary"

	"github.com/google/uuid"
)

// GUID is the native interface identifier layout
type GUID struct {
	Data1 uint32
	Data2 uint16
	Data3 uint16
	Data4 [8]byte
}

// Well-known interface identifiers
var (
	IUnknownIID             = MustParseGUID("00000000-0000-0000-c000-000000000046")
	IInspectableIID         = MustParseGUID("af86e2e0-b12d-4c6a-9c5a-d7aa65101e90")
	IAgileObjectIID         = MustParseGUID("94ea2b94-e9cc-49e0-c0ff-ee64ca8f5b90")
	IActivationFactoryIID   = MustParseGUID("00000035-0000-0000-c000-000000000046")
	IRestrictedErrorInfoIID = MustParseGUID("82ba7092-4c88-427d-a7bc-16dd93feb67e")
)

// GUIDFromUUID converts the RFC 4122 byte order to the native field layout
func GUIDFromUUID(u uuid.UUID) GUID {
	g := GUID{
		Data1: binary.BigEndian.Uint32(u[0:4]),
		Data2: binary.BigEndian.Uint16(u[4:6]),
		Data3: binary.BigEndian.Uint16(u[6:8]),
	}
	copy(g.Data4[:], u[8:])
	return g
}

// ParseGUID parses "xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx", with or without braces
func ParseGUID(s string) (GUID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return GUID{}, err
	}
	return GUIDFromUUID(u), nil
}

// MustParseGUID is ParseGUID that panics on malformed input
func MustParseGUID(s string) GUID {
	g, err := ParseGUID(s)
	if err != nil {
		panic("winrt: bad GUID " + s + ": " + err.Error())
	}
	return g
}

// UUID returns g in RFC 4122 byte order
func (g GUID) UUID() uuid.UUID {
	var u uuid.UUID
	binary.BigEndian.PutUint32(u[0:4], g.Data1)
	binary.BigEndian.PutUint16(u[4:6], g.Data2)
	binary.BigEndian.PutUint16(u[6:8], g.Data3)
	copy(u[8:], g.Data4[:])
	return u
}

func (g GUID) String() string {
	return g.UUID().String()
}
