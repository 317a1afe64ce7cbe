package schema

import (
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// yamlDocument is the top-level shape of a mapping file.
type yamlDocument struct {
	Roles map[string]yamlRole `yaml:"roles"`
}

type yamlRole struct {
	Database   string         `yaml:"database"`
	Table      string         `yaml:"table"`
	Mapper     string         `yaml:"mapper"`
	PrimaryKey []string       `yaml:"primaryKey"`
	Columns    []yamlColumn   `yaml:"columns"`
	Relations  []yamlRelation `yaml:"relations"`
}

type yamlColumn struct {
	Name      string `yaml:"name"`
	Field     string `yaml:"field"`
	Nullable  bool   `yaml:"nullable"`
	Generated string `yaml:"generated"`
	Cast      string `yaml:"cast"`
}

type yamlRelation struct {
	Name         string       `yaml:"name"`
	Rel          string       `yaml:"rel"`
	Target       string       `yaml:"target"`
	Owning       bool         `yaml:"owning"`
	Column       string       `yaml:"column"`
	TargetColumn string       `yaml:"targetColumn"`
	Nullable     bool         `yaml:"nullable"`
	Cascade      string       `yaml:"cascade"`
	Through      *yamlThrough `yaml:"through"`
}

type yamlThrough struct {
	Table        string `yaml:"table"`
	SourceColumn string `yaml:"sourceColumn"`
	TargetColumn string `yaml:"targetColumn"`
}

// FromYAML builds a Registry from a YAML mapping document. The result
// is validated before it is returned.
func FromYAML(data []byte) (*Registry, error) {
	var doc yamlDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("schema: parse mapping: %w", err)
	}
	r := &Registry{defs: make(map[string]*Definition, len(doc.Roles))}
	// Map iteration order is random; sort for deterministic registration.
	for _, role := range sortedKeys(doc.Roles) {
		d, err := doc.Roles[role].definition(role)
		if err != nil {
			return nil, err
		}
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// LoadFile reads a YAML mapping file and builds a Registry from it.
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("schema: open mapping: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("schema: read mapping: %w", err)
	}
	return FromYAML(data)
}

func (y yamlRole) definition(role string) (*Definition, error) {
	d := &Definition{
		Role:       role,
		Database:   y.Database,
		Table:      y.Table,
		Mapper:     y.Mapper,
		PrimaryKey: y.PrimaryKey,
	}
	for _, c := range y.Columns {
		gen, err := parseGenerated(c.Generated)
		if err != nil {
			return nil, fmt.Errorf("schema: %s.%s: %w", role, c.Name, err)
		}
		d.Columns = append(d.Columns, Column{
			Name:      c.Name,
			Field:     c.Field,
			Nullable:  c.Nullable,
			Generated: gen,
			Cast:      c.Cast,
		})
	}
	for _, rel := range y.Relations {
		rt, err := parseRel(rel.Rel)
		if err != nil {
			return nil, fmt.Errorf("schema: %s.%s: %w", role, rel.Name, err)
		}
		cascade, err := parseCascade(rel.Cascade)
		if err != nil {
			return nil, fmt.Errorf("schema: %s.%s: %w", role, rel.Name, err)
		}
		relation := Relation{
			Name:         rel.Name,
			Rel:          rt,
			Target:       rel.Target,
			Owning:       rel.Owning,
			Column:       rel.Column,
			TargetColumn: rel.TargetColumn,
			Nullable:     rel.Nullable,
			Cascade:      cascade,
		}
		if rel.Through != nil {
			relation.Through = &Through{
				Table:        rel.Through.Table,
				SourceColumn: rel.Through.SourceColumn,
				TargetColumn: rel.Through.TargetColumn,
			}
		}
		d.Relations = append(d.Relations, relation)
	}
	return d, nil
}

func parseRel(s string) (Rel, error) {
	switch s {
	case "o2o":
		return O2O, nil
	case "o2m":
		return O2M, nil
	case "m2o":
		return M2O, nil
	case "m2m":
		return M2M, nil
	default:
		return 0, fmt.Errorf("unknown relation type %q", s)
	}
}

func parseCascade(s string) (Cascade, error) {
	switch s {
	case "", "none":
		return CascadeNone, nil
	case "set_null":
		return CascadeSetNull, nil
	case "delete":
		return CascadeDelete, nil
	case "all":
		return CascadeAll, nil
	default:
		return 0, fmt.Errorf("unknown cascade policy %q", s)
	}
}

func parseGenerated(s string) (Generated, error) {
	switch s {
	case "":
		return GenNone, nil
	case "autoincrement":
		return GenAutoIncrement, nil
	case "uuid":
		return GenUUID, nil
	default:
		return 0, fmt.Errorf("unknown key generation %q", s)
	}
}

func sortedKeys(m map[string]yamlRole) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
