package directory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const identities = `
identities:
  - id: "12345"
    role: Student
  - id: "67890"
    role: Teacher
  - id: "21301429"
    role: Section-10
    channel: section-10
  - id: "2221021"
    role: Section-11
    channel: section-11
  - id: " 2221023 "
    role: Section-11
    channel: section-11
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identities.yaml")
	require.NoError(t, os.WriteFile(path, []byte(identities), 0644))

	dir, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, dir.Len())

	record, ok := dir.Lookup("21301429")
	require.True(t, ok)
	assert.Equal(t, IdentityRecord{Id: "21301429", Role: "Section-10", Channel: "section-10"}, record)
	assert.True(t, record.HasChannel())

	record, ok = dir.Lookup("12345")
	require.True(t, ok)
	assert.False(t, record.HasChannel())

	// Ids are trimmed
	_, ok = dir.Lookup("2221023")
	assert.True(t, ok)

	_, ok = dir.Lookup("99999")
	assert.False(t, ok)

	assert.True(t, dir.HasRole("Section-11"))
	assert.True(t, dir.HasRole("Teacher"))
	assert.False(t, dir.HasRole("Section-12"))

	records := dir.Records()
	require.Len(t, records, 5)
	assert.Equal(t, "12345", records[0].Id)
	assert.Equal(t, "2221023", records[4].Id)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		err     error
	}{
		{
			name:    "empty document",
			content: "identities: []",
			err:     ErrNoIdentities,
		},
		{
			name:    "not yaml",
			content: "identities: [",
			err:     ErrUnknownFormat,
		},
		{
			name: "duplicate id",
			content: `
identities:
  - {id: "1", role: Student}
  - {id: "1", role: Teacher}
`,
			err: ErrDuplicateId,
		},
		{
			name: "empty role",
			content: `
identities:
  - {id: "1", role: "  "}
`,
			err: ErrEmptyRole,
		},
		{
			name: "empty id",
			content: `
identities:
  - {id: "", role: Student}
`,
			err: ErrEmptyId,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Parse([]byte(test.content))
			assert.ErrorIs(t, err, test.err)
		})
	}
}
