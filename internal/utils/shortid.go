package utils

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"
)

// ShortIDHookFunc defines the signature for the NewShortID test hook.
// It returns a ShortID and a boolean indicating whether to override the default generation.
type ShortIDHookFunc func() (id ShortID, override bool)

// NewShortIDHook is a package-level variable that tests can set to override NewShortID behavior.
var NewShortIDHook ShortIDHookFunc

// ShortID is an 8-byte ID stored as BSON BinData with custom subtype 0x80.
// Its string form is Crockford Base32 (13 characters for 64 bits).
type ShortID [8]byte

// NewShortID creates a new 8-byte ShortID using random data.
func NewShortID() ShortID {
	if NewShortIDHook != nil {
		if id, override := NewShortIDHook(); override {
			return id
		}
	}

	var id ShortID
	_, err := rand.Read(id[:])
	if err != nil {
		// fallback to zeros if random fails
		for i := range id {
			id[i] = 0
		}
	}
	return id
}

// IsZero reports whether the ID is the zero value.
func (u ShortID) IsZero() bool {
	return u == ShortID{}
}

// ParseShortID parses a string into a ShortID from its Crockford Base32 representation.
func ParseShortID(s string) (ShortID, error) {
	return parseCrockfordShortID(s)
}

// Crockford Base32 encoding alphabet (uppercase)
const crockfordAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// Mapping from Crockford Base32 chars to their values
var crockfordDecodeMap map[byte]byte

func init() {
	crockfordDecodeMap = make(map[byte]byte, 32)
	for i := range crockfordAlphabet {
		crockfordDecodeMap[crockfordAlphabet[i]] = byte(i)
	}

	// Add lowercase variants
	lower := strings.ToLower(crockfordAlphabet)
	for i := range lower {
		if i >= 10 { // Skip numbers
			crockfordDecodeMap[lower[i]] = byte(i)
		}
	}

	// Add commonly confused characters
	crockfordDecodeMap['o'] = crockfordDecodeMap['O'] // o->O
	crockfordDecodeMap['i'] = crockfordDecodeMap['1'] // i->1
	crockfordDecodeMap['l'] = crockfordDecodeMap['1'] // l->1
}

// String returns the Crockford Base32 (uppercase) representation of the 8-byte ShortID.
// 8 bytes = 64 bits, requiring ceil(64/5) = 13 characters.
func (u ShortID) String() string {
	result := make([]byte, 13)
	var bits, offset uint
	resultIndex := 0

	for i := 0; i < len(u); i++ {
		bits |= uint(u[i]) << offset
		offset += 8

		for offset >= 5 {
			result[resultIndex] = crockfordAlphabet[bits&0x1F]
			resultIndex++
			bits >>= 5
			offset -= 5
		}
	}

	if offset > 0 {
		result[resultIndex] = crockfordAlphabet[bits&0x1F]
		resultIndex++
	}

	return string(result[:resultIndex])
}

// parseCrockfordShortID converts a Crockford Base32 string back to an 8-byte ShortID.
func parseCrockfordShortID(s string) (ShortID, error) {
	if s == "" {
		return ShortID{}, nil
	}

	// Remove hyphens and spaces for leniency
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, " ", "")

	// Must be exactly 13 characters for 8 bytes (64 bits)
	if len(s) != 13 {
		return ShortID{}, errors.New("invalid Crockford Base32 ShortID: string length must be 13")
	}

	var bits uint64
	var offset uint
	bytes := make([]byte, 8)
	byteIndex := 0

	for i := 0; i < 13; i++ {
		val, ok := crockfordDecodeMap[s[i]]
		if !ok {
			return ShortID{}, errors.New("invalid character in Crockford Base32 ShortID")
		}

		bits |= uint64(val) << offset
		offset += 5

		for offset >= 8 && byteIndex < 8 {
			bytes[byteIndex] = byte(bits & 0xFF)
			byteIndex++
			bits >>= 8
			offset -= 8
		}
	}

	if byteIndex != 8 {
		return ShortID{}, errors.New("invalid Crockford Base32 ShortID: couldn't decode 8 bytes")
	}

	var id ShortID
	copy(id[:], bytes)
	return id, nil
}

// MarshalBinary implements the encoding.BinaryMarshaler interface.
func (u ShortID) MarshalBinary() ([]byte, error) {
	return u[:], nil
}

// UnmarshalBinary implements the encoding.BinaryUnmarshaler interface.
func (u *ShortID) UnmarshalBinary(data []byte) error {
	if len(data) != 8 {
		return errors.New("invalid ShortID length")
	}
	copy((*u)[:], data)
	return nil
}

// shortIDBinarySubtype is the user-defined BSON binary subtype ShortIDs are
// stored under, distinguishing them from plain byte blobs.
const shortIDBinarySubtype = 0x80

// MarshalBSONValue implements bson.ValueMarshaler.
func (u ShortID) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bsontype.Binary, bsoncore.AppendBinary(nil, shortIDBinarySubtype, u[:]), nil
}

// MarshalJSON marshals the ShortID as a JSON string in Crockford Base32 format.
func (u ShortID) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.String())
}

// UnmarshalJSON unmarshals a ShortID from a JSON string in Crockford Base32 format.
func (u *ShortID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseShortID(s)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// UnmarshalBSONValue implements bson.ValueUnmarshaler. Generic binary
// (subtype 0x00) is also accepted so documents written by the driver's
// default byte-array encoding still decode.
func (u *ShortID) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	switch t {
	case bsontype.Null:
		*u = ShortID{}
		return nil
	case bsontype.Binary:
		subtype, bin, _, ok := bsoncore.ReadBinary(data)
		if !ok {
			return errors.New("invalid BSON binary data for ShortID")
		}
		if (subtype != shortIDBinarySubtype && subtype != 0x00) || len(bin) != 8 {
			return errors.New("invalid BSON binary data for ShortID: incorrect subtype or length")
		}
		copy((*u)[:], bin)
		return nil
	default:
		return errors.New("invalid BSON type for ShortID: expected binary")
	}
}
