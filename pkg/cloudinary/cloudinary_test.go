package cloudinary

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestSplitName(t *testing.T) {
	folder, id := SplitName("promora/recordings/", "session 1/chunk-000003")
	require.Equal(t, "promora/recordings/session-1", folder)
	require.Equal(t, "chunk-000003", id)

	folder, id = SplitName("", "chunk-000000")
	require.Equal(t, "", folder)
	require.Equal(t, "chunk-000000", id)

	_, id = SplitName("promora", "///")
	require.Empty(t, id)
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Config{CloudName: "demo"}, zerolog.Nop())
	require.Error(t, err)

	svc, err := New(Config{CloudName: "demo", APIKey: "key", APISecret: "secret", Folder: "/promora/"}, zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, "promora", svc.folder)
}
