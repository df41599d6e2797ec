package metadata

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"
	"github.com/procflow/procflow/engine"
	"github.com/procflow/procflow/graph"
	"github.com/procflow/procflow/logger"
	"github.com/procflow/procflow/model"
	"github.com/procflow/procflow/persistence"
	"github.com/procflow/procflow/util"
	"go.uber.org/zap"
)

var _ engine.GraphProvider = new(MetadataService)

// MetadataService manages flow definitions and their versions, and
// serves parsed graphs to the engine. Parsed graphs are cached per
// version id; a version's graph document only changes while the version
// is a draft, so the cache is invalidated on draft updates and publish.
type MetadataService struct {
	definitions persistence.DefinitionDao
	versions    persistence.VersionDao
	graphCache  *cache.Cache
}

func NewMetadataService(definitions persistence.DefinitionDao, versions persistence.VersionDao, cacheTTL time.Duration) *MetadataService {
	return &MetadataService{
		definitions: definitions,
		versions:    versions,
		graphCache:  cache.New(cacheTTL, 2*cacheTTL),
	}
}

func (s *MetadataService) CreateDefinition(def *model.FlowDefinition) (*model.FlowDefinition, error) {
	if def.Name == "" {
		return nil, fmt.Errorf("definition name is required")
	}
	if def.Id == "" {
		def.Id = uuid.New().String()
	}
	now := time.Now()
	def.Status = model.FLOW_STATUS_DRAFT
	def.CurrentVersion = 0
	def.CreatedAt = now
	def.UpdatedAt = now
	if err := s.definitions.Save(def); err != nil {
		return nil, err
	}
	logger.Info("flow definition created", zap.String("definitionId", def.Id), zap.String("name", def.Name))
	return def, nil
}

func (s *MetadataService) GetDefinition(id string) (*model.FlowDefinition, error) {
	return s.definitions.Get(id)
}

func (s *MetadataService) UpdateDefinition(id string, name string, description string, tags []string) (*model.FlowDefinition, error) {
	def, err := s.definitions.Get(id)
	if err != nil {
		return nil, err
	}
	if name != "" {
		def.Name = name
	}
	if description != "" {
		def.Description = description
	}
	if tags != nil {
		def.Tags = tags
	}
	def.UpdatedAt = time.Now()
	if err := s.definitions.Save(def); err != nil {
		return nil, err
	}
	return def, nil
}

// DeleteDefinition removes a definition that is not published. A
// published definition must be archived first so running instances keep
// a resolvable origin.
func (s *MetadataService) DeleteDefinition(id string) error {
	def, err := s.definitions.Get(id)
	if err != nil {
		return err
	}
	if def.Status == model.FLOW_STATUS_PUBLISHED {
		return fmt.Errorf("definition %s is published and can not be deleted", id)
	}
	return s.definitions.Delete(id)
}

func (s *MetadataService) ArchiveDefinition(id string) (*model.FlowDefinition, error) {
	def, err := s.definitions.Get(id)
	if err != nil {
		return nil, err
	}
	def.Status = model.FLOW_STATUS_ARCHIVED
	def.UpdatedAt = time.Now()
	if err := s.definitions.Save(def); err != nil {
		return nil, err
	}
	return def, nil
}

func (s *MetadataService) ListDefinitions(page model.PageRequest) (*model.PageResult[*model.FlowDefinition], error) {
	all, err := s.definitions.List()
	if err != nil {
		return nil, err
	}
	page = page.Normalize()
	return util.Paginate(all, page), nil
}

// CreateVersion appends a new draft version, numbered after the highest
// existing version of the definition. The graph document must at least
// decode; full structural validation happens at publish.
func (s *MetadataService) CreateVersion(definitionId string, flowData string, description string) (*model.FlowVersion, error) {
	if _, err := s.definitions.Get(definitionId); err != nil {
		return nil, err
	}
	existing, err := s.versions.ListByDefinition(definitionId)
	if err != nil {
		return nil, err
	}
	highest := 0
	for _, v := range existing {
		if v.Version > highest {
			highest = v.Version
		}
	}
	now := time.Now()
	version := &model.FlowVersion{
		Id:           uuid.New().String(),
		DefinitionId: definitionId,
		Version:      highest + 1,
		Description:  description,
		FlowData:     flowData,
		Status:       model.FLOW_STATUS_DRAFT,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.versions.Save(version); err != nil {
		return nil, err
	}
	logger.Info("flow version created",
		zap.String("definitionId", definitionId),
		zap.String("versionId", version.Id),
		zap.Int("version", version.Version))
	return version, nil
}

func (s *MetadataService) GetVersion(id string) (*model.FlowVersion, error) {
	return s.versions.Get(id)
}

func (s *MetadataService) ListVersions(definitionId string) ([]*model.FlowVersion, error) {
	return s.versions.ListByDefinition(definitionId)
}

// UpdateVersion replaces the graph document of a draft. Published and
// disabled versions are immutable.
func (s *MetadataService) UpdateVersion(id string, flowData string, description string) (*model.FlowVersion, error) {
	version, err := s.versions.Get(id)
	if err != nil {
		return nil, err
	}
	if version.Status != model.FLOW_STATUS_DRAFT {
		return nil, fmt.Errorf("version %s is %s and can not be modified", id, version.Status)
	}
	if flowData != "" {
		version.FlowData = flowData
	}
	if description != "" {
		version.Description = description
	}
	version.UpdatedAt = time.Now()
	if err := s.versions.Save(version); err != nil {
		return nil, err
	}
	s.graphCache.Delete(version.Id)
	return version, nil
}

// PublishVersion validates the draft's graph and makes it the current
// version of its definition. The previously current version, if any, is
// demoted to DISABLED.
func (s *MetadataService) PublishVersion(id string, publishedBy string) (*model.FlowVersion, error) {
	version, err := s.versions.Get(id)
	if err != nil {
		return nil, err
	}
	if version.Status != model.FLOW_STATUS_DRAFT {
		return nil, fmt.Errorf("version %s is %s and can not be published", id, version.Status)
	}
	if _, err := graph.Parse([]byte(version.FlowData)); err != nil {
		return nil, err
	}
	def, err := s.definitions.Get(version.DefinitionId)
	if err != nil {
		return nil, err
	}
	siblings, err := s.versions.ListByDefinition(version.DefinitionId)
	if err != nil {
		return nil, err
	}
	for _, sibling := range siblings {
		if sibling.Id == version.Id || !sibling.IsCurrent {
			continue
		}
		sibling.IsCurrent = false
		sibling.Status = model.FLOW_STATUS_DISABLED
		sibling.UpdatedAt = time.Now()
		if err := s.versions.Save(sibling); err != nil {
			return nil, err
		}
		s.graphCache.Delete(sibling.Id)
	}
	now := time.Now()
	version.Status = model.FLOW_STATUS_PUBLISHED
	version.IsCurrent = true
	version.PublishTime = &now
	version.PublishedBy = publishedBy
	version.UpdatedAt = now
	if err := s.versions.Save(version); err != nil {
		return nil, err
	}
	def.CurrentVersion = version.Version
	def.Status = model.FLOW_STATUS_PUBLISHED
	def.UpdatedAt = now
	if err := s.definitions.Save(def); err != nil {
		return nil, err
	}
	s.graphCache.Delete(version.Id)
	logger.Info("flow version published",
		zap.String("definitionId", def.Id),
		zap.String("versionId", version.Id),
		zap.Int("version", version.Version))
	return version, nil
}

// DisableVersion takes a version out of service. Disabling the current
// version leaves the definition without a current version until the
// next publish.
func (s *MetadataService) DisableVersion(id string) (*model.FlowVersion, error) {
	version, err := s.versions.Get(id)
	if err != nil {
		return nil, err
	}
	wasCurrent := version.IsCurrent
	version.Status = model.FLOW_STATUS_DISABLED
	version.IsCurrent = false
	version.UpdatedAt = time.Now()
	if err := s.versions.Save(version); err != nil {
		return nil, err
	}
	s.graphCache.Delete(version.Id)
	if wasCurrent {
		def, err := s.definitions.Get(version.DefinitionId)
		if err != nil {
			return nil, err
		}
		def.CurrentVersion = 0
		def.UpdatedAt = time.Now()
		if err := s.definitions.Save(def); err != nil {
			return nil, err
		}
	}
	return version, nil
}

// GetCurrentVersion resolves the version new instances of a definition
// run against.
func (s *MetadataService) GetCurrentVersion(definitionId string) (*model.FlowVersion, error) {
	versions, err := s.versions.ListByDefinition(definitionId)
	if err != nil {
		return nil, err
	}
	for _, v := range versions {
		if v.IsCurrent {
			return v, nil
		}
	}
	return nil, model.NotFoundError{Kind: "current version of definition", Id: definitionId}
}

// GetGraph parses and caches the graph of a version.
func (s *MetadataService) GetGraph(versionId string) (*model.FlowGraph, error) {
	if cached, ok := s.graphCache.Get(versionId); ok {
		return cached.(*model.FlowGraph), nil
	}
	version, err := s.versions.Get(versionId)
	if err != nil {
		return nil, err
	}
	g, err := graph.Parse([]byte(version.FlowData))
	if err != nil {
		return nil, err
	}
	s.graphCache.Set(versionId, g, cache.DefaultExpiration)
	return g, nil
}
