package reference

import "sort"

// EnumDirectory: один справочник: код -> отображаемое имя.
type EnumDirectory struct {
	Name  string     `yaml:"name" json:"name"`
	Items []EnumItem `yaml:"items" json:"items"`
}

type EnumItem struct {
	Code      string `yaml:"code" json:"code"`
	Name      string `yaml:"name" json:"name"`
	Order     int    `yaml:"order,omitempty" json:"order,omitempty"`
	ValidFrom string `yaml:"valid_from,omitempty" json:"validFrom,omitempty"`
	ValidTo   string `yaml:"valid_to,omitempty" json:"validTo,omitempty"`
}

// Catalogs: все справочники по имени.
type Catalogs map[string]EnumDirectory

// Label возвращает имя элемента справочника по коду.
func (c Catalogs) Label(catalog, code string) (string, bool) {
	dir, ok := c[catalog]
	if !ok {
		return "", false
	}
	for _, it := range dir.Items {
		if it.Code == code {
			return it.Name, true
		}
	}
	return "", false
}

// Ordered: элементы справочника по Order, затем по коду.
func (d EnumDirectory) Ordered() []EnumItem {
	out := append([]EnumItem(nil), d.Items...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].Code < out[j].Code
	})
	return out
}
