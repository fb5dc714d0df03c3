// Пакет catalog — статический каталог коннекторов control plane
// и таблица предпочтительных коннекторов по отраслям.
// Данные встроены в бинарник (connectors.yaml) и не меняются во время работы.
package catalog

import (
	_ "embed"
	"fmt"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/facundoinfinure/infinure/internal/domain/model"
)

//go:embed connectors.yaml
var defaultData []byte

// Допустимые категории коннекторов.
var knownCategories = map[string]bool{
	"databases":      true,
	"dataWarehouses": true,
	"saas":           true,
	"files":          true,
}

// catalogFile — структура connectors.yaml.
type catalogFile struct {
	Categories []struct {
		Name       string `yaml:"name"`
		Connectors []struct {
			Key          string `yaml:"key"`
			DefinitionID string `yaml:"definitionId"`
		} `yaml:"connectors"`
	} `yaml:"categories"`
	Industries map[string][]string `yaml:"industries"`
}

// Catalog — неизменяемый каталог коннекторов. Безопасен для конкурентного чтения.
type Catalog struct {
	connectors []model.ConnectorInfo
	byKey      map[string]model.ConnectorInfo
	industries map[string]map[string]bool
}

// Load создаёт каталог из встроенных данных.
func Load() (*Catalog, error) {
	return New(defaultData)
}

// New разбирает YAML-описание каталога.
// Неизвестная категория или повторяющийся ключ внутри категории — ошибка.
func New(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("ошибка разбора каталога коннекторов: %w", err)
	}

	c := &Catalog{
		byKey:      make(map[string]model.ConnectorInfo),
		industries: make(map[string]map[string]bool, len(f.Industries)),
	}

	for _, cat := range f.Categories {
		if !knownCategories[cat.Name] {
			return nil, fmt.Errorf("неизвестная категория коннекторов %q", cat.Name)
		}
		seen := make(map[string]bool, len(cat.Connectors))
		for _, conn := range cat.Connectors {
			if conn.Key == "" || conn.DefinitionID == "" {
				return nil, fmt.Errorf("категория %s: коннектор без key или definitionId", cat.Name)
			}
			if seen[conn.Key] {
				return nil, fmt.Errorf("категория %s: повторяющийся коннектор %q", cat.Name, conn.Key)
			}
			seen[conn.Key] = true

			info := model.ConnectorInfo{
				Key:          conn.Key,
				Name:         displayName(conn.Key),
				Category:     cat.Name,
				DefinitionID: conn.DefinitionID,
			}
			c.connectors = append(c.connectors, info)
			if _, exists := c.byKey[conn.Key]; !exists {
				c.byKey[conn.Key] = info
			}
		}
	}

	for industry, keys := range f.Industries {
		set := make(map[string]bool, len(keys))
		for _, k := range keys {
			set[k] = true
		}
		c.industries[normalizeIndustry(industry)] = set
	}

	return c, nil
}

// ListAll возвращает все коннекторы: категории по порядку, внутри — порядок каталога.
// Возвращается копия, изменение результата не влияет на каталог.
func (c *Catalog) ListAll() []model.ConnectorInfo {
	result := make([]model.ConnectorInfo, len(c.connectors))
	copy(result, c.connectors)
	return result
}

// ListByIndustry возвращает коннекторы, предпочтительные для отрасли,
// в порядке каталога. Для неизвестной отрасли или отрасли без совпадающих
// ключей возвращается полный каталог.
func (c *Catalog) ListByIndustry(industry string) []model.ConnectorInfo {
	keys := c.industries[normalizeIndustry(industry)]
	if len(keys) == 0 {
		return c.ListAll()
	}

	result := make([]model.ConnectorInfo, 0, len(keys))
	for _, conn := range c.connectors {
		if keys[conn.Key] {
			result = append(result, conn)
		}
	}
	if len(result) == 0 {
		return c.ListAll()
	}
	return result
}

// Lookup ищет коннектор по ключу.
func (c *Catalog) Lookup(key string) (model.ConnectorInfo, bool) {
	info, ok := c.byKey[key]
	return info, ok
}

// Industries возвращает список известных отраслей (порядок не определён).
func (c *Catalog) Industries() []string {
	result := make([]string, 0, len(c.industries))
	for k := range c.industries {
		result = append(result, k)
	}
	return result
}

func normalizeIndustry(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// displayName: "_" → пробел, первая буква каждого слова в верхнем регистре
// ("google-analytics" → "Google-Analytics").
func displayName(key string) string {
	runes := []rune(strings.ReplaceAll(key, "_", " "))
	prevWord := false
	for i, r := range runes {
		isWord := r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
		if isWord && !prevWord {
			runes[i] = unicode.ToUpper(r)
		}
		prevWord = isWord
	}
	return string(runes)
}
