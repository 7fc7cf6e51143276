package directory

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	ErrEmptyId       = errors.New("identity with empty id")
	ErrEmptyRole     = errors.New("identity with empty role name")
	ErrDuplicateId   = errors.New("duplicate identity id")
	ErrNoIdentities  = errors.New("no identities defined")
	ErrUnknownFormat = errors.New("identity file is not valid yaml")
)

// An identity record maps an external identifier (student or teacher id)
// to the role it grants and, optionally, the channel reserved for that role
type IdentityRecord struct {
	Id      string `yaml:"id"`
	Role    string `yaml:"role"`
	Channel string `yaml:"channel,omitempty"`
}

// HasChannel reports whether a channel must be provisioned for the record
func (record IdentityRecord) HasChannel() bool {
	return record.Channel != ""
}

type file struct {
	Identities []IdentityRecord `yaml:"identities"`
}

// The directory is immutable once built, so it can be shared
// by all the handlers without locking
type Directory struct {
	records map[string]IdentityRecord
	roles   map[string]struct{}
	order   []string
}

// Load the directory from a yaml file of the form
//
//	identities:
//	  - id: "21301429"
//	    role: Section-10
//	    channel: section-10
func Load(path string) (*Directory, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read identity file %s: %w", path, err)
	}
	return Parse(buf)
}

func Parse(buf []byte) (*Directory, error) {
	var f file
	if err := yaml.Unmarshal(buf, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownFormat, err)
	}
	if len(f.Identities) == 0 {
		return nil, ErrNoIdentities
	}
	return New(f.Identities)
}

func New(records []IdentityRecord) (*Directory, error) {

	dir := &Directory{
		records: make(map[string]IdentityRecord, len(records)),
		roles:   map[string]struct{}{},
		order:   make([]string, 0, len(records)),
	}

	for index, record := range records {
		record.Id = strings.TrimSpace(record.Id)
		record.Role = strings.TrimSpace(record.Role)
		record.Channel = strings.TrimSpace(record.Channel)

		if record.Id == "" {
			return nil, fmt.Errorf("%w (entry %d)", ErrEmptyId, index+1)
		}
		if record.Role == "" {
			return nil, fmt.Errorf("%w (id %s)", ErrEmptyRole, record.Id)
		}
		if _, ok := dir.records[record.Id]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateId, record.Id)
		}

		dir.records[record.Id] = record
		dir.roles[record.Role] = struct{}{}
		dir.order = append(dir.order, record.Id)
	}

	return dir, nil
}

func (dir *Directory) Lookup(id string) (IdentityRecord, bool) {
	record, ok := dir.records[id]
	return record, ok
}

// HasRole reports whether some identity grants the role with the given name
func (dir *Directory) HasRole(name string) bool {
	_, ok := dir.roles[name]
	return ok
}

// Records returns the identities in the order they were defined
func (dir *Directory) Records() []IdentityRecord {
	records := make([]IdentityRecord, 0, len(dir.order))
	for _, id := range dir.order {
		records = append(records, dir.records[id])
	}
	return records
}

func (dir *Directory) Len() int {
	return len(dir.records)
}
