package logfields

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

// The keys are part of the log schema; a rename here breaks downstream
// filters, so the tests pin the literal strings.
func TestHelpersUseCanonicalKeys(t *testing.T) {
	tests := []struct {
		attr slog.Attr
		key  string
		val  string
	}{
		{Page("docs/index.md"), "page", "docs/index.md"},
		{Route("/findings/2026-08/"), "route", "/findings/2026-08/"},
		{Path("out/staging"), "path", "out/staging"},
		{File("fieldsite.yaml"), "file", "fieldsite.yaml"},
		{Section("findings"), "section", "findings"},
		{Target("netlify"), "target", "netlify"},
		{Query("copasa OR saneamento"), "query", "copasa OR saneamento"},
		{Month("2026-08"), "month", "2026-08"},
		{BuildID("8d0f"), "build_id", "8d0f"},
		{DeployID("a91c"), "deploy_id", "a91c"},
		{Topic("privatization"), "topic", "privatization"},
		{URL("https://example.org/feed"), "url", "https://example.org/feed"},
		{Addr("127.0.0.1:8080"), "addr", "127.0.0.1:8080"},
		{Subject("fieldsite.deploys"), "subject", "fieldsite.deploys"},
		{Trigger("watch"), "trigger", "watch"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.key, tt.attr.Key)
		require.Equal(t, tt.val, tt.attr.Value.String())
	}
}

func TestCountHelpers(t *testing.T) {
	require.Equal(t, "status", Status(200).Key)
	require.Equal(t, int64(200), Status(200).Value.Int64())
	require.Equal(t, "posts", Posts(41).Key)
	require.Equal(t, "pages", Pages(7).Key)
	require.Equal(t, "assets", Assets(3).Key)
	require.Equal(t, "duration_ms", DurationMS(84.2).Key)
	require.Equal(t, 84.2, DurationMS(84.2).Value.Float64())
}

func TestError(t *testing.T) {
	require.Equal(t, "error", Error(nil).Key)
	require.Equal(t, "", Error(nil).Value.String())

	err := errors.New("open fieldsite.yaml: no such file")
	require.Equal(t, "open fieldsite.yaml: no such file", Error(err).Value.String())
}
