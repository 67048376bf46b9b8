package redisclient

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestResourceKeys(t *testing.T) {
	room := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	p1 := uuid.MustParse("00000000-0000-0000-0000-000000000011")
	p2 := uuid.MustParse("00000000-0000-0000-0000-000000000012")

	keys := ResourceKeys(&room, []uuid.UUID{p2, p1, p2})

	assert.Equal(t, []string{
		"lock:professional:" + p1.String(),
		"lock:professional:" + p2.String(),
		"lock:room:" + room.String(),
	}, keys)
	assert.Empty(t, ResourceKeys(nil, nil))
}
