package metadata

import (
	"testing"
	"time"

	"github.com/procflow/procflow/model"
	"github.com/procflow/procflow/persistence"
	"github.com/procflow/procflow/persistence/inmem"
	"github.com/stretchr/testify/require"
)

const flowDoc = `{
	"id":"g1",
	"nodes":[
		{"id":"start","type":"START"},
		{"id":"a","type":"TASK"},
		{"id":"end","type":"END"}
	],
	"edges":[
		{"id":"e1","source":"start","target":"a"},
		{"id":"e2","source":"a","target":"end"}
	]
}`

func newService() (*MetadataService, *persistence.Storage) {
	storage := inmem.NewStorage()
	return NewMetadataService(storage.Definitions, storage.Versions, 5*time.Minute), storage
}

func createPublished(t *testing.T, s *MetadataService) (*model.FlowDefinition, *model.FlowVersion) {
	t.Helper()
	def, err := s.CreateDefinition(&model.FlowDefinition{Name: "heating control"})
	require.NoError(t, err)
	version, err := s.CreateVersion(def.Id, flowDoc, "initial")
	require.NoError(t, err)
	version, err = s.PublishVersion(version.Id, "tester")
	require.NoError(t, err)
	return def, version
}

func TestDefinitionLifecycle(t *testing.T) {
	s, _ := newService()

	def, err := s.CreateDefinition(&model.FlowDefinition{Name: "demo"})
	require.NoError(t, err)
	require.NotEmpty(t, def.Id)
	require.Equal(t, model.FLOW_STATUS_DRAFT, def.Status)

	_, err = s.CreateDefinition(&model.FlowDefinition{})
	require.Error(t, err)

	updated, err := s.UpdateDefinition(def.Id, "renamed", "a demo flow", []string{"demo"})
	require.NoError(t, err)
	require.Equal(t, "renamed", updated.Name)

	require.NoError(t, s.DeleteDefinition(def.Id))
	_, err = s.GetDefinition(def.Id)
	var nferr model.NotFoundError
	require.ErrorAs(t, err, &nferr)
}

func TestPublishLifecycle(t *testing.T) {
	s, _ := newService()
	def, v1 := createPublished(t, s)

	require.Equal(t, model.FLOW_STATUS_PUBLISHED, v1.Status)
	require.True(t, v1.IsCurrent)
	require.NotNil(t, v1.PublishTime)

	stored, err := s.GetDefinition(def.Id)
	require.NoError(t, err)
	require.Equal(t, 1, stored.CurrentVersion)
	require.Equal(t, model.FLOW_STATUS_PUBLISHED, stored.Status)

	// a published definition can not be deleted
	require.Error(t, s.DeleteDefinition(def.Id))

	// a published version is immutable
	_, err = s.UpdateVersion(v1.Id, flowDoc, "rewrite")
	require.Error(t, err)
	_, err = s.PublishVersion(v1.Id, "tester")
	require.Error(t, err)

	// publishing v2 demotes v1
	v2, err := s.CreateVersion(def.Id, flowDoc, "second")
	require.NoError(t, err)
	require.Equal(t, 2, v2.Version)
	v2, err = s.PublishVersion(v2.Id, "tester")
	require.NoError(t, err)
	require.True(t, v2.IsCurrent)

	demoted, err := s.GetVersion(v1.Id)
	require.NoError(t, err)
	require.False(t, demoted.IsCurrent)
	require.Equal(t, model.FLOW_STATUS_DISABLED, demoted.Status)

	current, err := s.GetCurrentVersion(def.Id)
	require.NoError(t, err)
	require.Equal(t, v2.Id, current.Id)
}

func TestPublishValidatesGraph(t *testing.T) {
	s, _ := newService()
	def, err := s.CreateDefinition(&model.FlowDefinition{Name: "broken"})
	require.NoError(t, err)
	version, err := s.CreateVersion(def.Id, `{"nodes":[{"id":"a","type":"TASK"}]}`, "no start")
	require.NoError(t, err)

	_, err = s.PublishVersion(version.Id, "tester")
	var verr model.ValidationError
	require.ErrorAs(t, err, &verr)

	// the draft stays a draft after a failed publish
	stored, err := s.GetVersion(version.Id)
	require.NoError(t, err)
	require.Equal(t, model.FLOW_STATUS_DRAFT, stored.Status)
}

func TestDisableCurrentVersion(t *testing.T) {
	s, _ := newService()
	def, v1 := createPublished(t, s)

	_, err := s.DisableVersion(v1.Id)
	require.NoError(t, err)

	_, err = s.GetCurrentVersion(def.Id)
	var nferr model.NotFoundError
	require.ErrorAs(t, err, &nferr)

	stored, err := s.GetDefinition(def.Id)
	require.NoError(t, err)
	require.Equal(t, 0, stored.CurrentVersion)
}

func TestGetGraph(t *testing.T) {
	s, storage := newService()
	_, v1 := createPublished(t, s)

	g, err := s.GetGraph(v1.Id)
	require.NoError(t, err)
	require.Len(t, g.Nodes, 3)

	// served from cache even if the row disappears underneath
	require.NoError(t, storage.Versions.Save(&model.FlowVersion{Id: v1.Id, DefinitionId: v1.DefinitionId, Version: v1.Version, FlowData: "{}"}))
	cached, err := s.GetGraph(v1.Id)
	require.NoError(t, err)
	require.Len(t, cached.Nodes, 3)

	_, err = s.GetGraph("missing-version")
	var nferr model.NotFoundError
	require.ErrorAs(t, err, &nferr)
}
