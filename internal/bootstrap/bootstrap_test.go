package bootstrap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-chat-scheduling/internal/config"
	"github.com/hackgods/clinic-chat-scheduling/internal/intent"
	"github.com/hackgods/clinic-chat-scheduling/internal/upload"
	"github.com/hackgods/clinic-chat-scheduling/pkg/logging"
)

func TestOpenStorage_Memory(t *testing.T) {
	cfg := config.Config{StorageBackend: config.StorageMemory}

	s, err := OpenStorage(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)
	defer s.Close(logging.Discard())

	assert.Nil(t, s.Pool)
	assert.Nil(t, s.Redis)
	require.NotNil(t, s.Repo)
	require.NotNil(t, s.Conversations)

	locs, err := s.Repo.ListActiveLocations(context.Background())
	require.NoError(t, err)
	assert.Len(t, locs, 2)

	ran := false
	err = s.SessionLocks.WithSlotLock(context.Background(), "session:abc", func(context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestBuildProviders_NoRemoteModel(t *testing.T) {
	cfg := config.Config{UploadBaseURL: "https://clinic.example"}

	p, err := BuildProviders(context.Background(), cfg, logging.Discard(), nil)
	require.NoError(t, err)
	defer p.Close(logging.Discard())

	d := p.Intents.Decide(context.Background(), "quero cancelar minha consulta")
	assert.Equal(t, intent.Cancellation, d.Label)
	assert.Equal(t, intent.SourceRules, d.Source)

	assert.Equal(t, upload.PathLinker{BaseURL: "https://clinic.example"}, p.Uploads)
}
