package phoenix

import (
	"encoding/json"
	"time"

	"budgetapp/chatsync/internal/realtime"
)

const (
	phoenixTopic = "phoenix"

	eventJoin            = "phx_join"
	eventLeave           = "phx_leave"
	eventReply           = "phx_reply"
	eventError           = "phx_error"
	eventClose           = "phx_close"
	eventHeartbeat       = "heartbeat"
	eventPostgresChanges = "postgres_changes"

	replyOK = "ok"
)

type frame struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     *string         `json:"ref"`
}

type replyPayload struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

type joinPayload struct {
	Config      joinConfig `json:"config"`
	AccessToken string     `json:"access_token,omitempty"`
}

type joinConfig struct {
	Broadcast       broadcastConfig `json:"broadcast"`
	Presence        presenceConfig  `json:"presence"`
	PostgresChanges []changeBinding `json:"postgres_changes"`
}

type broadcastConfig struct {
	Self bool `json:"self"`
}

type presenceConfig struct {
	Key string `json:"key"`
}

type changeBinding struct {
	Event  string `json:"event"`
	Schema string `json:"schema"`
	Table  string `json:"table,omitempty"`
	Filter string `json:"filter,omitempty"`
}

type changesPayload struct {
	IDs  []int64    `json:"ids"`
	Data changeData `json:"data"`
}

type changeData struct {
	Type            string          `json:"type"`
	Schema          string          `json:"schema"`
	Table           string          `json:"table"`
	CommitTimestamp string          `json:"commit_timestamp"`
	Record          realtime.Record `json:"record"`
	OldRecord       realtime.Record `json:"old_record"`
}

func (d changeData) toRaw() realtime.RawChangeEvent {
	raw := realtime.RawChangeEvent{
		Operation: realtime.ParseOperation(d.Type),
		Schema:    d.Schema,
		Table:     d.Table,
		NewRecord: d.Record,
		OldRecord: d.OldRecord,
	}
	if ts, err := time.Parse(time.RFC3339Nano, d.CommitTimestamp); err == nil {
		raw.CommitTimestamp = ts
	}
	return raw
}

func newJoinPayload(filter realtime.ChangeFilter, accessToken string) joinPayload {
	schema := filter.Schema
	if schema == "" {
		schema = "public"
	}
	return joinPayload{
		Config: joinConfig{
			PostgresChanges: []changeBinding{{
				Event:  "*",
				Schema: schema,
				Table:  filter.Table,
				Filter: filter.Filter,
			}},
		},
		AccessToken: accessToken,
	}
}
