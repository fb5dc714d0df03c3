package catalog

import (
	"reflect"
	"testing"
)

func loadCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return c
}

func TestLoad_Embedded(t *testing.T) {
	c := loadCatalog(t)

	all := c.ListAll()
	if len(all) != 26 {
		t.Fatalf("ListAll: %d коннекторов, ожидается 26", len(all))
	}
	if all[0].Key != "postgres" || all[0].Category != "databases" {
		t.Errorf("первый коннектор = %s/%s, ожидается databases/postgres", all[0].Category, all[0].Key)
	}
	if last := all[len(all)-1]; last.Key != "ftp" || last.Category != "files" {
		t.Errorf("последний коннектор = %s/%s, ожидается files/ftp", last.Category, last.Key)
	}

	pg, ok := c.Lookup("postgres")
	if !ok {
		t.Fatal("Lookup(postgres) не найден")
	}
	if pg.DefinitionID != "decd338e-5647-4c0b-adf4-da0e75f5a750" {
		t.Errorf("postgres definitionId = %s", pg.DefinitionID)
	}
	if pg.Name != "Postgres" {
		t.Errorf("postgres name = %q, ожидается Postgres", pg.Name)
	}
}

func TestListAll_ReturnsCopy(t *testing.T) {
	c := loadCatalog(t)

	first := c.ListAll()
	first[0].Key = "changed"

	if c.ListAll()[0].Key != "postgres" {
		t.Error("изменение результата ListAll повлияло на каталог")
	}
}

func TestListByIndustry(t *testing.T) {
	c := loadCatalog(t)

	tests := []struct {
		name     string
		industry string
		want     []string
	}{
		{"saas", "saas", []string{"salesforce", "hubspot", "intercom"}},
		{"fintech", "fintech", []string{"postgres", "salesforce", "stripe"}},
		{"healthcare", "healthcare", []string{"postgres", "mongodb", "salesforce"}},
		{"ecommerce", "ecommerce", []string{"stripe", "shopify", "google-analytics", "facebook-marketing", "mailchimp"}},
		{"регистр и пробелы", "  SaaS ", []string{"salesforce", "hubspot", "intercom"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.ListByIndustry(tt.industry)
			keys := make([]string, len(got))
			for i, conn := range got {
				keys[i] = conn.Key
			}
			if !reflect.DeepEqual(keys, tt.want) {
				t.Errorf("ListByIndustry(%q) = %v, ожидается %v", tt.industry, keys, tt.want)
			}
		})
	}
}

func TestListByIndustry_UnknownReturnsAll(t *testing.T) {
	c := loadCatalog(t)

	for _, industry := range []string{"unknown-industry", ""} {
		if got := c.ListByIndustry(industry); !reflect.DeepEqual(got, c.ListAll()) {
			t.Errorf("ListByIndustry(%q) должен совпадать с ListAll", industry)
		}
	}
}

func TestListByIndustry_NoMatchingKeysReturnsAll(t *testing.T) {
	c, err := New([]byte(`
categories:
  - name: databases
    connectors:
      - key: postgres
        definitionId: def-postgres
industries:
  legal: [clio, plaid]
  fintech: [postgres, plaid]
`))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got := c.ListByIndustry("legal")
	if len(got) == 0 {
		t.Fatal("ListByIndustry не должен возвращать пустой список")
	}
	if !reflect.DeepEqual(got, c.ListAll()) {
		t.Errorf("ListByIndustry(legal) = %v, ожидается полный каталог", got)
	}

	// Частичное совпадение: только известные ключи
	if got := c.ListByIndustry("fintech"); len(got) != 1 || got[0].Key != "postgres" {
		t.Errorf("ListByIndustry(fintech) = %v, ожидается [postgres]", got)
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"postgres", "Postgres"},
		{"google-analytics", "Google-Analytics"},
		{"linkedin_ads", "Linkedin Ads"},
		{"s3", "S3"},
		{"dataWarehouse", "DataWarehouse"},
	}

	for _, tt := range tests {
		if got := displayName(tt.key); got != tt.want {
			t.Errorf("displayName(%q) = %q, ожидается %q", tt.key, got, tt.want)
		}
	}
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"неизвестная категория", `
categories:
  - name: queues
    connectors:
      - key: kafka
        definitionId: x
`},
		{"повторяющийся ключ", `
categories:
  - name: databases
    connectors:
      - key: postgres
        definitionId: a
      - key: postgres
        definitionId: b
`},
		{"пустой definitionId", `
categories:
  - name: files
    connectors:
      - key: csv
`},
		{"не YAML", "categories: [unterminated"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New([]byte(tt.data)); err == nil {
				t.Error("ожидалась ошибка")
			}
		})
	}
}
