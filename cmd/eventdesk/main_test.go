package main

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventdesk/internal/config"
	"eventdesk/internal/ics"
	"eventdesk/internal/model"
)

func TestParseFlags(t *testing.T) {
	flags, err := parseFlags([]string{"--config", "/tmp/c.yaml", "--listen", ":9000", "--once", "--log-level", "debug"})
	require.NoError(t, err)
	assert.Equal(t, flagConfig{configPath: "/tmp/c.yaml", listen: ":9000", logLevel: "debug", once: true}, flags)

	flags, err = parseFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, "/etc/eventdesk/config.yaml", flags.configPath)
	assert.False(t, flags.once)

	_, err = parseFlags([]string{"extra"})
	assert.Error(t, err)

	_, err = parseFlags([]string{"--help"})
	assert.ErrorIs(t, err, pflag.ErrHelp)
}

func TestFeedsFromConfig(t *testing.T) {
	feeds := feedsFromConfig([]config.FeedConfig{
		{ID: "aud", URL: "https://cal.example.org/aud.ics", Room: "auditorium"},
		{URL: "https://cal.example.org/mr.ics", Room: "meeting-room"},
		{ID: "nourl", Room: "auditorium"},
		{ID: "garage", URL: "https://cal.example.org/g.ics", Room: "garage"},
	})
	assert.Equal(t, []ics.Feed{
		{ID: "aud", URL: "https://cal.example.org/aud.ics", Room: model.RoomAuditorium},
		{ID: "meeting-room", URL: "https://cal.example.org/mr.ics", Room: model.RoomMeeting},
	}, feeds)
}
