// Package notification отвечает за доставку сообщений о выпуске ваучера:
// рендеринг шаблона, получение bearer-токена и вызов шлюза сообщений.
package notification

import (
	"fmt"
	"os"
	"strings"
)

// TemplateRenderer подставляет значения в текстовый шаблон.
// Токены вида [ИмяПлейсхолдера] заменяются буквально и с учетом
// регистра; нераспознанные токены остаются в тексте как есть.
type TemplateRenderer struct{}

// NewTemplateRenderer создает новый рендерер шаблонов
func NewTemplateRenderer() *TemplateRenderer {
	return &TemplateRenderer{}
}

// Render читает шаблон из файла и выполняет подстановку. Файл читается
// при каждом вызове, кэширование не предполагается.
func (r *TemplateRenderer) Render(templatePath string, placeholders map[string]string) (string, error) {
	body, err := os.ReadFile(templatePath)
	if err != nil {
		return "", fmt.Errorf("failed to read template %s: %w", templatePath, err)
	}

	rendered := string(body)
	for name, value := range placeholders {
		rendered = strings.ReplaceAll(rendered, "["+name+"]", value)
	}

	return rendered, nil
}
