package importing

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	domain "github.com/mohammadpnp/school-import/internal/domain/importing"
)

type ModuleInfo struct {
	Entity         domain.EntityType `json:"entity"`
	LastImportedAt *time.Time        `json:"last_imported_at"`
	RecordCount    int64             `json:"record_count"`
	Columns        []string          `json:"columns"`
	Required       []string          `json:"required_columns"`
}

type ListModulesOutput struct {
	Modules []ModuleInfo `json:"modules"`
}

type ListModules interface {
	Execute(ctx context.Context) (ListModulesOutput, error)
}

type listModules struct {
	batches domain.BatchRepository
	index   domain.ProductionIndex
}

func NewListModules(batches domain.BatchRepository, index domain.ProductionIndex) ListModules {
	return &listModules{batches: batches, index: index}
}

func (uc *listModules) Execute(ctx context.Context) (ListModulesOutput, error) {
	modules := make([]ModuleInfo, len(domain.EntityTypes))

	g, gctx := errgroup.WithContext(ctx)
	for i, entity := range domain.EntityTypes {
		modules[i] = describeModule(entity)
		g.Go(func() error {
			last, err := uc.batches.LastCompletedAt(gctx, entity)
			if err != nil {
				return fmt.Errorf("last %s import: %w", entity, err)
			}
			count, err := uc.index.Count(gctx, entity)
			if err != nil {
				return fmt.Errorf("count %s records: %w", entity, err)
			}
			modules[i].LastImportedAt = last
			modules[i].RecordCount = count
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ListModulesOutput{}, err
	}
	return ListModulesOutput{Modules: modules}, nil
}

func describeModule(entity domain.EntityType) ModuleInfo {
	info := ModuleInfo{Entity: entity}
	for _, fs := range domain.SchemaFor(entity).TemplateFields() {
		info.Columns = append(info.Columns, string(fs.Field))
		if fs.Required {
			info.Required = append(info.Required, string(fs.Field))
		}
	}
	return info
}
