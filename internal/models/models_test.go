package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDirection_Valid(t *testing.T) {
	assert.True(t, Like.Valid())
	assert.True(t, Pass.Valid())
	assert.False(t, Direction("superlike").Valid())
	assert.False(t, Direction("").Valid())
}

func TestMatchRecord_Partner(t *testing.T) {
	m := &MatchRecord{Users: [2]string{"alice", "bob"}}

	assert.Equal(t, "bob", m.Partner("alice"))
	assert.Equal(t, "alice", m.Partner("bob"))
	assert.Equal(t, "", m.Partner("carol"))
	assert.True(t, m.HasUser("alice"))
	assert.False(t, m.HasUser(""))
}

func TestMatchRecord_ActivityAt(t *testing.T) {
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	m := &MatchRecord{CreatedAt: created}
	assert.Equal(t, created, m.ActivityAt())

	m.LastMessageAt = created.Add(time.Hour)
	assert.Equal(t, created.Add(time.Hour), m.ActivityAt())
}
