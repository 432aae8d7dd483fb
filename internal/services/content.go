package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ssfarm/internal/core"
	applog "ssfarm/internal/log"
	"ssfarm/internal/ports"
)

type ContentService struct {
	store  ports.ContentStore
	logger *applog.Logger
}

func NewContentService(store ports.ContentStore) *ContentService {
	return &ContentService{store: store, logger: applog.ForComponent(applog.ComponentApp)}
}

// Get returns the stored section, or an empty one when none was saved yet.
func (s *ContentService) Get(ctx context.Context, kind core.SectionKind) (core.Section, error) {
	sec, err := s.store.GetSection(ctx, kind)
	if errors.Is(err, ports.ErrNotFound) {
		return core.EmptySection(kind)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s section: %w", kind, err)
	}
	return sec, nil
}

func (s *ContentService) Save(ctx context.Context, sec core.Section) error {
	if err := sec.Validate(); err != nil {
		return err
	}
	if err := s.store.SaveSection(ctx, sec); err != nil {
		return fmt.Errorf("save %s section: %w", sec.Kind(), err)
	}
	s.logger.InfoContext(ctx, "Content section saved", "kind", sec.Kind(), applog.FieldOperation, applog.OpUpdate)
	return nil
}

// SaveJSON decodes a section payload of the given kind and saves it.
func (s *ContentService) SaveJSON(ctx context.Context, kind core.SectionKind, data []byte) (core.Section, error) {
	sec, err := core.DecodeSectionData(kind, data)
	if err != nil {
		return nil, err
	}
	if err := s.Save(ctx, sec); err != nil {
		return nil, err
	}
	return sec, nil
}

// All returns every kind in display order, empty where nothing is stored.
func (s *ContentService) All(ctx context.Context) ([]core.Section, error) {
	stored, err := s.store.ListSections(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	byKind := make(map[core.SectionKind]core.Section, len(stored))
	for _, sec := range stored {
		byKind[sec.Kind()] = sec
	}
	out := make([]core.Section, 0, len(core.SectionKinds))
	for _, k := range core.SectionKinds {
		sec, ok := byKind[k]
		if !ok {
			sec, _ = core.EmptySection(k)
		}
		out = append(out, sec)
	}
	return out, nil
}

// PublicJSON is the marketing site payload: an object keyed by section kind.
func (s *ContentService) PublicJSON(ctx context.Context) ([]byte, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	payload := make(map[core.SectionKind]core.Section, len(all))
	for _, sec := range all {
		payload[sec.Kind()] = sec
	}
	return json.Marshal(payload)
}
