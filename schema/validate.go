package schema

import (
	"errors"
	"fmt"
)

// Validate checks all registered definitions for consistency. It is
// meant to run once at startup; runtime code may assume a validated
// registry.
//
// Checks:
//   - primary-key columns exist in the column list
//   - relation targets are registered roles
//   - owning relations name a column on their own table, referencing
//     relations a column on the target table
//   - M2M relations carry a pivot table, other relations do not
//   - set-null cascades require a nullable foreign key
//   - two relations toward the same target do not declare both
//     CascadeNone and a propagating policy
func (r *Registry) Validate() error {
	var errs []error
	for _, role := range r.order {
		d := r.defs[role]
		errs = append(errs, r.validateDefinition(d)...)
	}
	return errors.Join(errs...)
}

func (r *Registry) validateDefinition(d *Definition) []error {
	var errs []error
	if len(d.PrimaryKey) == 0 {
		errs = append(errs, fmt.Errorf("schema: %s: no primary key", d.Role))
	}
	for _, pk := range d.PrimaryKey {
		if _, ok := d.Column(pk); !ok {
			errs = append(errs, fmt.Errorf("schema: %s: primary key column %q not mapped", d.Role, pk))
		}
	}
	seen := make(map[string]struct{}, len(d.Columns))
	for i := range d.Columns {
		c := &d.Columns[i]
		if _, dup := seen[c.Name]; dup {
			errs = append(errs, fmt.Errorf("schema: %s: duplicate column %q", d.Role, c.Name))
		}
		seen[c.Name] = struct{}{}
		if c.Cast != "" {
			if _, ok := casts[c.Cast]; !ok {
				errs = append(errs, fmt.Errorf("schema: %s.%s: unknown typecast %q", d.Role, c.Name, c.Cast))
			}
		}
		if c.Generated != GenNone && !d.IsPrimaryKey(c.Name) {
			errs = append(errs, fmt.Errorf("schema: %s.%s: generated column is not part of the primary key", d.Role, c.Name))
		}
	}
	// policy[target] records the first propagating/non-propagating
	// declaration toward each target so conflicts can be reported.
	policy := make(map[string]Cascade)
	for i := range d.Relations {
		rel := &d.Relations[i]
		target, err := r.Describe(rel.Target)
		if err != nil {
			errs = append(errs, fmt.Errorf("schema: %s.%s: %w", d.Role, rel.Name, err))
			continue
		}
		switch {
		case rel.Rel == M2M:
			if rel.Through == nil {
				errs = append(errs, fmt.Errorf("schema: %s.%s: M2M relation without a through table", d.Role, rel.Name))
			}
		case rel.Through != nil:
			errs = append(errs, fmt.Errorf("schema: %s.%s: through table on a non-M2M relation", d.Role, rel.Name))
		case rel.Owning:
			if _, ok := d.Column(rel.Column); !ok {
				errs = append(errs, fmt.Errorf("schema: %s.%s: owning column %q not mapped", d.Role, rel.Name, rel.Column))
			}
		default:
			if _, ok := target.Column(rel.Column); !ok {
				errs = append(errs, fmt.Errorf("schema: %s.%s: column %q not mapped on target %s", d.Role, rel.Name, rel.Column, rel.Target))
			}
		}
		if rel.TargetColumn != "" && rel.Rel != M2M {
			if _, ok := target.Column(rel.TargetColumn); !ok {
				errs = append(errs, fmt.Errorf("schema: %s.%s: target column %q not mapped on %s", d.Role, rel.Name, rel.TargetColumn, rel.Target))
			}
		}
		if rel.Cascade == CascadeSetNull && !rel.Nullable {
			errs = append(errs, fmt.Errorf("schema: %s.%s: set_null cascade on a non-nullable foreign key", d.Role, rel.Name))
		}
		if prev, ok := policy[rel.Target]; ok {
			if (prev == CascadeNone) != (rel.Cascade == CascadeNone) {
				errs = append(errs, fmt.Errorf("schema: %s: conflicting cascade policies toward %s (%s vs %s)", d.Role, rel.Target, prev, rel.Cascade))
			}
		} else {
			policy[rel.Target] = rel.Cascade
		}
	}
	return errs
}
