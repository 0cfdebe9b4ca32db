package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want ID
	}{
		{"uuid string", `"5f0c1d9e-8a55-4b0e-9a57-0d2f4b1f6e21"`, "5f0c1d9e-8a55-4b0e-9a57-0d2f4b1f6e21"},
		{"number", `1`, "1"},
		{"large number", `9007199254740993`, "9007199254740993"},
		{"null", `null`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got ID
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIDUnmarshalRejectsObject(t *testing.T) {
	var id ID
	assert.Error(t, json.Unmarshal([]byte(`{"a":1}`), &id))
}

func TestTodoDecodesServerPayload(t *testing.T) {
	raw := `{
		"id": "c1",
		"user_id": "u1",
		"description": "buy milk",
		"completed": true,
		"created_at": "2024-05-01T10:20:30.123456",
		"updated_at": "2024-05-01T10:20:30Z"
	}`
	var todo Todo
	require.NoError(t, json.Unmarshal([]byte(raw), &todo))

	assert.Equal(t, ID("c1"), todo.ID)
	assert.Equal(t, ID("u1"), todo.UserID)
	assert.True(t, todo.Completed)
	want := time.Date(2024, 5, 1, 10, 20, 30, 123456000, time.UTC)
	assert.True(t, todo.CreatedAt.Equal(want), "CreatedAt = %v, want %v", todo.CreatedAt.Time, want)
	assert.False(t, todo.UpdatedAt.IsZero(), "UpdatedAt not parsed")
}

func TestTimestampBadFormat(t *testing.T) {
	var ts Timestamp
	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
}

func TestTimestampZeroMarshalsNull(t *testing.T) {
	b, err := json.Marshal(Timestamp{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(b))
}

func TestSessionActive(t *testing.T) {
	tests := []struct {
		name   string
		s      Session
		active bool
		token  bool
	}{
		{"empty", Session{}, false, false},
		{"token only", Session{SessionToken: "t1"}, false, true},
		{"username only", Session{Username: "alice"}, false, false},
		{"full", Session{SessionToken: "t1", UserID: "u1", Username: "alice"}, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.active, tt.s.Active())
			assert.Equal(t, tt.token, tt.s.HasToken())
		})
	}
}
