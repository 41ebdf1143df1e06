package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/promptmart/internal/domain"
)

func TestWriteResults(t *testing.T) {
	results := []domain.Prompt{
		{ID: "1", Title: "Cyberpunk City", Category: "midjourney", IsFree: true, IsActive: true, Rating: 4.5},
		{ID: "2", Title: "Portrait Pro", Category: "midjourney", Price: 29.9, Downloads: 3},
	}

	var buf bytes.Buffer
	require.NoError(t, writeResults(&buf, "table", results))
	out := buf.String()
	assert.Contains(t, out, "Cyberpunk City")
	assert.Contains(t, out, "29.90")
	assert.Contains(t, out, "2 results")

	buf.Reset()
	require.NoError(t, writeResults(&buf, "json", results))
	var decoded []domain.Prompt
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Len(t, decoded, 2)

	assert.Error(t, writeResults(&buf, "xml", results))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}

func TestRootCommandWiring(t *testing.T) {
	cmd := newRootCmd()
	names := map[string]bool{}
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["import"])
	assert.True(t, names["search"])

	cmd.SetArgs([]string{"import"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	assert.Error(t, cmd.Execute())
}
