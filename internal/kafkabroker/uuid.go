package kafkabroker

import "github.com/google/uuid"

// uuidBytes converts a metastore/google-uuid id into the raw [16]byte
// shape the Kafka wire protocol carries topic ids in.
func uuidBytes(id uuid.UUID) [16]byte {
	var b [16]byte
	copy(b[:], id[:])
	return b
}

// uuidFromBytes is the inverse of uuidBytes.
func uuidFromBytes(b [16]byte) uuid.UUID {
	var id uuid.UUID
	copy(id[:], b[:])
	return id
}
