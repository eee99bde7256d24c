package deploy

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fieldsite/fieldsite/internal/config"
)

func TestFor_ResolvesConfiguredDefault(t *testing.T) {
	cfg := &config.Config{Deploy: config.DeployConfig{Default: "netlify"}}

	d, err := For(cfg, "")
	require.NoError(t, err)
	require.Equal(t, "netlify", d.Name())
}

func TestFor_ExplicitNameWinsOverDefault(t *testing.T) {
	cfg := &config.Config{Deploy: config.DeployConfig{Default: "netlify"}}

	d, err := For(cfg, "s3")
	require.NoError(t, err)
	require.Equal(t, "s3", d.Name())
}

func TestFor_UnknownTargetListsValidNames(t *testing.T) {
	_, err := For(&config.Config{}, "ftp")
	require.Error(t, err)
	require.Contains(t, err.Error(), `unknown deploy target "ftp"`)
	require.Contains(t, err.Error(), "ghpages, netlify, s3")
}

func TestFor_NoTargetAnywhere(t *testing.T) {
	_, err := For(&config.Config{}, "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "deploy.default")
}

func TestNames_Sorted(t *testing.T) {
	require.Equal(t, []string{"ghpages", "netlify", "s3"}, Names())
}

func TestCredentialsError_Message(t *testing.T) {
	err := &CredentialsError{Target: "netlify", Env: "NETLIFY_AUTH_TOKEN"}
	require.Equal(t, "netlify: missing credentials: set NETLIFY_AUTH_TOKEN", err.Error())
}
