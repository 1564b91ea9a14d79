package importing

import (
	"context"
	"fmt"

	domain "github.com/mohammadpnp/school-import/internal/domain/importing"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type DownloadTemplateInput struct {
	Entity domain.EntityType `json:"entity" validate:"required,oneof=student teacher"`
}

type DownloadTemplateOutput struct {
	Filename    string
	ContentType string
	Content     []byte
}

type DownloadTemplate interface {
	Execute(ctx context.Context, in DownloadTemplateInput) (DownloadTemplateOutput, error)
}

type downloadTemplate struct {
	writer domain.TemplateWriter
}

func NewDownloadTemplate(writer domain.TemplateWriter) DownloadTemplate {
	return &downloadTemplate{writer: writer}
}

func (uc *downloadTemplate) Execute(ctx context.Context, in DownloadTemplateInput) (DownloadTemplateOutput, error) {
	if err := validateInput(in); err != nil {
		return DownloadTemplateOutput{}, err
	}

	content, err := uc.writer.Template(ctx, domain.SchemaFor(in.Entity))
	if err != nil {
		return DownloadTemplateOutput{}, fmt.Errorf("render %s template: %w", in.Entity, err)
	}
	return DownloadTemplateOutput{
		Filename:    fmt.Sprintf("%s_import_template.xlsx", in.Entity),
		ContentType: xlsxContentType,
		Content:     content,
	}, nil
}
