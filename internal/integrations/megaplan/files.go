package megaplan

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	apperrors "ticket-bot/pkg/errors"
)

const fileUploadEndpoint = "/api/file"

// UploadFile загружает файл в Мегаплан и возвращает информацию о нем.
// API может вернуть как список файлов в data, так и одиночный объект.
func (p *Provider) UploadFile(ctx context.Context, fileName string, content []byte) (*FileInfo, error) {
	p.logger.Info("загрузка файла в CRM",
		zap.String("file_name", fileName),
		zap.Int("size", len(content)))

	data, err := p.requestMultipart(ctx, fileUploadEndpoint, fileName, content)
	if err != nil {
		return nil, err
	}

	var files []FileInfo
	if err := json.Unmarshal(data, &files); err == nil && len(files) > 0 {
		p.logger.Info("файл загружен", zap.String("file_id", files[0].ID))
		return &files[0], nil
	}

	var single FileInfo
	if err := json.Unmarshal(data, &single); err == nil && single.ID != "" {
		p.logger.Info("файл загружен", zap.String("file_id", single.ID))
		return &single, nil
	}

	return nil, fmt.Errorf("%w: ответ на загрузку файла %q не разобран", apperrors.ErrUnexpectedResponse, fileName)
}

// AttachFiles прикрепляет файлы к указанному полю сделки. Обновление поля
// в Мегаплане - это полная перезапись списка, поэтому сначала перечитывается
// текущее содержимое поля, новые id объединяются с существующими (без
// дубликатов) и обратно записывается полный список. Существующие файлы
// при этом никогда не теряются.
func (p *Provider) AttachFiles(ctx context.Context, dealID, fieldName string, fileIDs []string) error {
	if dealID == "" || fieldName == "" {
		return apperrors.NewInvalidInputError("не указан id сделки или имя поля для прикрепления файлов")
	}
	if len(fileIDs) == 0 {
		p.logger.Warn("не переданы id файлов для прикрепления, действие пропущено",
			zap.String("deal_id", dealID),
			zap.String("field", fieldName))
		return nil
	}

	existing, err := p.getDealFileIDs(ctx, dealID, fieldName)
	if err != nil {
		return fmt.Errorf("не удалось прочитать текущие файлы поля %q сделки %s: %w", fieldName, dealID, err)
	}

	merged := unionIDs(existing, fileIDs)

	refs := make([]interface{}, 0, len(merged))
	for _, id := range merged {
		refs = append(refs, map[string]interface{}{"contentType": "File", "id": id})
	}

	if err := p.UpdateDeal(ctx, dealID, map[string]interface{}{fieldName: refs}); err != nil {
		return err
	}

	p.logger.Info("файлы прикреплены к сделке",
		zap.String("deal_id", dealID),
		zap.String("field", fieldName),
		zap.Strings("file_ids", merged))
	return nil
}

// AttachVisitDocs прикрепляет документы и фото с выезда.
func (p *Provider) AttachVisitDocs(ctx context.Context, dealID string, fileIDs []string) error {
	return p.AttachFiles(ctx, dealID, FieldVisitDocs, fileIDs)
}

// AttachMainFiles прикрепляет файлы к основному полю вложений сделки.
func (p *Provider) AttachMainFiles(ctx context.Context, dealID string, fileIDs []string) error {
	return p.AttachFiles(ctx, dealID, FieldAttaches, fileIDs)
}

// getDealFileIDs возвращает id файлов, уже прикрепленных к полю сделки.
func (p *Provider) getDealFileIDs(ctx context.Context, dealID, fieldName string) ([]string, error) {
	deal, err := p.getDeal(ctx, dealID, []interface{}{fieldName})
	if err != nil {
		return nil, err
	}

	var files []FileInfo
	switch fieldName {
	case FieldAttaches:
		files = deal.Attaches
	case FieldVisitDocs:
		files = deal.VisitDocs
	case fieldVisitFiles:
		files = deal.VisitFiles
	default:
		return nil, apperrors.NewInvalidInputError("поле %q не является файловым полем сделки", fieldName)
	}

	ids := make([]string, 0, len(files))
	for _, f := range files {
		if f.ID != "" {
			ids = append(ids, f.ID)
		}
	}
	return ids, nil
}

// unionIDs объединяет два списка id, сохраняя порядок и убирая дубликаты.
func unionIDs(existing, added []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(added))
	merged := make([]string, 0, len(existing)+len(added))
	for _, id := range append(append([]string{}, existing...), added...) {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		merged = append(merged, id)
	}
	return merged
}
