package deploy

import (
	"context"
	"errors"
	"testing"

	"github.com/cuemby/swarmroll/pkg/platform/fake"
	"github.com/cuemby/swarmroll/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestBackupSource(t *testing.T) {
	target := types.ImageTarget{Repository: "registry.local/api", Tag: "2"}
	digest := "@sha256:2cb1a5bd2b2b3f0a8f4e5c1f1a1b0c7d5e4f3a2b1c0d9e8f7a6b5c4d3e2f1a0b"

	tests := []struct {
		name    string
		running string
		want    string
	}{
		{"running tag", "registry.local/api:1", "registry.local/api:1"},
		{"digest pinned", "registry.local/api:1" + digest, "registry.local/api:1"},
		{"digest only", "registry.local/api" + digest, "registry.local/api:2"},
		{"other repository", "registry.local/legacy:9", "registry.local/api:2"},
		{"unknown image", "", "registry.local/api:2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := types.PlatformService{Name: "api", Image: tt.running}
			assert.Equal(t, tt.want, backupSource(svc, target))
		})
	}
}

func TestBackup(t *testing.T) {
	active := []types.PlatformService{
		{Name: "a", Image: "registry.local/a:1"},
		{Name: "b", Image: "registry.local/b:1"},
		{Name: "c", Image: "registry.local/c:1"},
	}
	mapping := types.ImageMapping{
		"a": {Repository: "registry.local/a", Tag: "2"},
		"c": {Repository: "registry.local/c", Tag: "2"},
	}

	t.Run("tags every mapped service", func(t *testing.T) {
		p := fake.New(active...)
		p.AddLocalImages("registry.local/a:1", "registry.local/b:1", "registry.local/c:1")

		assert.True(t, Backup(context.Background(), p, active, mapping))
		assert.Equal(t, []string{"registry.local/a:previous", "registry.local/c:previous"}, p.Tags())

		running, _ := p.ImageID("registry.local/a:1")
		previous, ok := p.ImageID("registry.local/a:previous")
		assert.True(t, ok)
		assert.Equal(t, running, previous)
	})

	t.Run("first missing image stops the step", func(t *testing.T) {
		p := fake.New(active...)
		p.AddLocalImages("registry.local/c:1")

		assert.False(t, Backup(context.Background(), p, active, mapping))
		assert.Equal(t, []string{"registry.local/a:1"}, p.Lookups())
		assert.Empty(t, p.Tags())
	})

	t.Run("empty mapping", func(t *testing.T) {
		p := fake.New(active...)
		assert.True(t, Backup(context.Background(), p, active, types.ImageMapping{}))
		assert.Empty(t, p.Lookups())
	})
}

func TestPull(t *testing.T) {
	active := []types.PlatformService{
		{Name: "a"},
		{Name: "b"},
		{Name: "c"},
	}
	mapping := types.ImageMapping{
		"a": {Repository: "registry.local/a", Tag: "2"},
		"b": {Repository: "registry.local/b", Tag: "2"},
		"c": {Repository: "registry.local/c", Tag: "2"},
	}

	t.Run("pulls in listing order", func(t *testing.T) {
		p := fake.New(active...)
		p.AddRegistryImages("registry.local/a:2", "registry.local/b:2", "registry.local/c:2")

		assert.True(t, Pull(context.Background(), p, active, mapping))
		assert.Equal(t, []string{"registry.local/a:2", "registry.local/b:2", "registry.local/c:2"}, p.Pulls())
	})

	t.Run("missing image aborts remaining pulls", func(t *testing.T) {
		p := fake.New(active...)
		p.AddRegistryImages("registry.local/a:2", "registry.local/c:2")

		assert.False(t, Pull(context.Background(), p, active, mapping))
		assert.Equal(t, []string{"registry.local/a:2", "registry.local/b:2"}, p.Pulls())
	})

	t.Run("registry error aborts remaining pulls", func(t *testing.T) {
		p := fake.New(active...)
		p.SetPullError("registry.local/a:2", errors.New("unauthorized"))

		assert.False(t, Pull(context.Background(), p, active, mapping))
		assert.Equal(t, []string{"registry.local/a:2"}, p.Pulls())
	})
}
