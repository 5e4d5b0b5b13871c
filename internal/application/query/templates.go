package query

import (
	"github.com/alem-hub/engagement-agent/internal/domain/notification"
)

// ══════════════════════════════════════════════════════════════════════════════
// TEMPLATE QUERIES
// Каталог шаблонов и предпросмотр без отправки.
// ══════════════════════════════════════════════════════════════════════════════

// TemplatePreview - результат предпросмотра.
type TemplatePreview struct {
	Template notification.Template `json:"template"`
	notification.Rendered
	Missing []string `json:"missing"`
}

// TemplatesHandler обслуживает каталог.
type TemplatesHandler struct {
	catalog *notification.Catalog
}

// NewTemplatesHandler создаёт обработчик.
func NewTemplatesHandler(catalog *notification.Catalog) *TemplatesHandler {
	if catalog == nil {
		catalog = notification.DefaultCatalog()
	}
	return &TemplatesHandler{catalog: catalog}
}

// List возвращает шаблоны, опционально одной категории.
func (h *TemplatesHandler) List(category string) []notification.Template {
	if category != "" {
		if out := h.catalog.ByCategory(category); out != nil {
			return out
		}
		return []notification.Template{}
	}
	return h.catalog.All()
}

// Preview подставляет переменные в шаблон с указанным id.
func (h *TemplatesHandler) Preview(id string, bindings notification.Bindings) (*TemplatePreview, error) {
	tpl, err := h.catalog.ByID(id)
	if err != nil {
		return nil, err
	}
	missing := tpl.Missing(bindings)
	if missing == nil {
		missing = []string{}
	}
	return &TemplatePreview{
		Template: tpl,
		Rendered: tpl.Render(bindings),
		Missing:  missing,
	}, nil
}
