package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// ConnectionSyncMessage asks a worker to sync one Open Finance connection.
// The owner travels with the job because the worker has no request to
// resolve it from.
type ConnectionSyncMessage struct {
	ConnectionID string    `json:"connection_id"`
	OwnerID      string    `json:"owner_id"`
	OwnerEmail   string    `json:"owner_email,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

func NewConnectionSyncMessage(connectionID, ownerID, ownerEmail string) *ConnectionSyncMessage {
	return &ConnectionSyncMessage{
		ConnectionID: connectionID,
		OwnerID:      ownerID,
		OwnerEmail:   ownerEmail,
		Timestamp:    time.Now().UTC(),
	}
}

func (m *ConnectionSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ConnectionSyncMessageFromJSON decodes a job and rejects jobs that cannot
// be attributed to a connection and an owner.
func ConnectionSyncMessageFromJSON(data []byte) (*ConnectionSyncMessage, error) {
	var msg ConnectionSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ConnectionID == "" || msg.OwnerID == "" {
		return nil, errors.New("sync message needs connection_id and owner_id")
	}
	return &msg, nil
}
