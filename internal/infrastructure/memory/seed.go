package memory

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/jhoicas/pcp-stock-ledger/internal/domain/entity"
)

type seedProduct struct {
	ID          int64  `mapstructure:"id"`
	Code        string `mapstructure:"code"`
	Description string `mapstructure:"description"`
}

// LoadCatalogFile lee los productos de un archivo yaml, json o toml con la lista bajo "products":
//
//	products:
//	  - {id: 7, code: P-7, description: Tornillo}
func LoadCatalogFile(path string) ([]entity.Product, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("catálogo semilla %s: %w", path, err)
	}
	var raw []seedProduct
	if err := v.UnmarshalKey("products", &raw); err != nil {
		return nil, fmt.Errorf("catálogo semilla %s: %w", path, err)
	}
	out := make([]entity.Product, 0, len(raw))
	seen := make(map[int64]bool, len(raw))
	for i, p := range raw {
		code := strings.TrimSpace(p.Code)
		if p.ID <= 0 || code == "" {
			return nil, fmt.Errorf("catálogo semilla %s: producto #%d requiere id positivo y code", path, i+1)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("catálogo semilla %s: id %d repetido", path, p.ID)
		}
		seen[p.ID] = true
		out = append(out, entity.Product{ID: p.ID, Code: code, Description: strings.TrimSpace(p.Description)})
	}
	return out, nil
}
