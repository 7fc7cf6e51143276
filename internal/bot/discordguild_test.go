package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sectionbot/internal/verify"
)

// Sends every request of the session to the test server
type redirect struct {
	target    *url.URL
	transport *http.Transport
}

func (r redirect) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.URL.Scheme = r.target.Scheme
	req.URL.Host = r.target.Host
	req.Host = r.target.Host
	return r.transport.RoundTrip(req)
}

func testSession(t *testing.T, handler http.Handler) *discordgo.Session {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	target, err := url.Parse(server.URL)
	require.NoError(t, err)

	discord, err := discordgo.New("Bot test")
	require.NoError(t, err)
	transport := &http.Transport{}
	t.Cleanup(transport.CloseIdleConnections)
	discord.Client = &http.Client{Transport: redirect{target: target, transport: transport}}
	discord.MaxRestRetries = 0
	return discord
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, value interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	assert.NoError(t, json.NewEncoder(w).Encode(value))
}

func TestMembersPagination(t *testing.T) {
	const total = membersPageSize + 3

	var mutex sync.Mutex
	afters := []string{}
	discord := testSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v9/guilds/guild/members", r.URL.Path)
		assert.Equal(t, strconv.Itoa(membersPageSize), r.URL.Query().Get("limit"))

		after := r.URL.Query().Get("after")
		mutex.Lock()
		afters = append(afters, after)
		mutex.Unlock()

		start := 0
		if after != "" {
			n, err := strconv.Atoi(after)
			assert.NoError(t, err)
			start = n + 1
		}
		page := []map[string]interface{}{}
		for i := start; i < total && len(page) < membersPageSize; i++ {
			page = append(page, map[string]interface{}{
				"user":  map[string]string{"id": strconv.Itoa(i)},
				"roles": []string{fmt.Sprintf("role-%d", i%2)},
			})
		}
		writeJSON(t, w, http.StatusOK, page)
	}))

	members, err := NewDiscordGuild(discord, "guild").Members(context.Background())
	require.NoError(t, err)
	require.Len(t, members, total)
	assert.Equal(t, verify.Member{Id: "0", RoleIds: []string{"role-0"}}, members[0])
	assert.Equal(t, strconv.Itoa(total-1), members[total-1].Id)
	assert.Equal(t, []string{"", strconv.Itoa(membersPageSize - 1)}, afters)
}

func TestForbiddenAnswersAreRecognised(t *testing.T) {
	discord := testSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusForbidden, map[string]interface{}{"code": 50013, "message": "Missing Permissions"})
	}))

	_, err := NewDiscordGuild(discord, "guild").CreateRole(context.Background(), "Section-10")
	assert.ErrorIs(t, err, verify.ErrForbidden)
	var restErr *discordgo.RESTError
	assert.ErrorAs(t, err, &restErr)
}

func TestTranslateError(t *testing.T) {
	notFound := &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusNotFound}}
	tests := []struct {
		name      string
		err       error
		forbidden bool
	}{
		{"forbidden", &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusForbidden}}, true},
		{"wrapped forbidden", fmt.Errorf("create role: %w", &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusForbidden}}), true},
		{"not found", notFound, false},
		{"no response", &discordgo.RESTError{}, false},
		{"other", context.DeadlineExceeded, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := translateError(test.err)
			if test.forbidden {
				assert.ErrorIs(t, err, verify.ErrForbidden)
			} else {
				assert.NotErrorIs(t, err, verify.ErrForbidden)
				assert.Equal(t, test.err, err)
			}
		})
	}

	assert.NoError(t, translateError(nil))
}

func TestMemberFrom(t *testing.T) {
	member := memberFrom(&discordgo.Member{User: &discordgo.User{ID: "42"}, Roles: []string{"a", "b"}})
	assert.Equal(t, verify.Member{Id: "42", RoleIds: []string{"a", "b"}}, member)
}

func TestTrack(t *testing.T) {
	discord, err := discordgo.New("Bot test")
	require.NoError(t, err)

	// Unknown guilds are not cached
	track(discord, "guild", &discordgo.Member{User: &discordgo.User{ID: "42"}, Roles: []string{"a"}})
	_, err = discord.State.Member("guild", "42")
	assert.Error(t, err)

	require.NoError(t, discord.State.GuildAdd(&discordgo.Guild{ID: "guild"}))
	track(discord, "guild", &discordgo.Member{User: &discordgo.User{ID: "42"}, Roles: []string{"a"}})
	cached, err := discord.State.Member("guild", "42")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, cached.Roles)
	assert.Equal(t, "guild", cached.GuildID)

	// The cache is kept up to date by the updates, not replaced
	track(discord, "guild", &discordgo.Member{User: &discordgo.User{ID: "42"}, Roles: []string{"b"}})
	cached, err = discord.State.Member("guild", "42")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, cached.Roles)
}
