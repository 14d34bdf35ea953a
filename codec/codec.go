// Package codec turns cached values into the opaque payloads handed to a
// store, and back.
//
// Every codec must round-trip: Decode(Encode(v)) equals v for the values it
// accepts. The cache never looks inside a payload.
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
