// Package bunadapter persists page access rules for casbin in a bun database.
//
// It is a trimmed fork of github.com/msales/casbin-bun-adapter: rules have
// exactly three values (subject, page pattern, action), the table has a
// composite primary key instead of a surrogate id, and no schema qualifier is
// used so the same table works on SQLite and Postgres.
package bunadapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2/model"
	"github.com/casbin/casbin/v2/persist"
	"github.com/uptrace/bun"
)

// PageRule is one row of page_access_rules.
//
//	p, <role>, <page pattern>, <action>   role may perform action on matching pages
//	g, <role>, <parent role>              role inherits everything parent may do
type PageRule struct {
	bun.BaseModel `bun:"table:page_access_rules,alias:par"`

	Ptype string `bun:",pk,type:varchar(16),notnull"`
	V0    string `bun:",pk,type:varchar(255),notnull"`
	V1    string `bun:",pk,type:varchar(255),notnull"`
	V2    string `bun:",pk,type:varchar(64),notnull,default:''"`
}

// NewPageRule builds a row from a casbin rule.
func NewPageRule(ptype string, rule []string) *PageRule {
	r := &PageRule{Ptype: ptype}
	if len(rule) > 0 {
		r.V0 = rule[0]
	}
	if len(rule) > 1 {
		r.V1 = rule[1]
	}
	if len(rule) > 2 {
		r.V2 = rule[2]
	}
	return r
}

// Rule returns the casbin rule values, dropping trailing empty fields.
func (r *PageRule) Rule() []string {
	values := []string{r.V0, r.V1, r.V2}
	for len(values) > 0 && values[len(values)-1] == "" {
		values = values[:len(values)-1]
	}
	return values
}

func (r *PageRule) String() string {
	return strings.Join(append([]string{r.Ptype}, r.Rule()...), ", ")
}

// queryWhereGroup adds an OR group matching every non-empty field of r.
func (r *PageRule) queryWhereGroup(q bun.QueryBuilder) bun.QueryBuilder {
	return q.WhereGroup(" OR ", func(q bun.QueryBuilder) bun.QueryBuilder {
		q = q.Where("ptype = ?", r.Ptype)
		if r.V0 != "" {
			q = q.Where("v0 = ?", r.V0)
		}
		if r.V1 != "" {
			q = q.Where("v1 = ?", r.V1)
		}
		if r.V2 != "" {
			q = q.Where("v2 = ?", r.V2)
		}
		return q
	})
}

// Adapter implements persist.Adapter and persist.BatchAdapter over bun.
type Adapter struct {
	db *bun.DB
}

var (
	_ persist.Adapter      = (*Adapter)(nil)
	_ persist.BatchAdapter = (*Adapter)(nil)
)

// NewAdapter wraps db. The page_access_rules table must already exist.
func NewAdapter(db *bun.DB) *Adapter {
	return &Adapter{db: db}
}

// LoadPolicy loads every rule into the model.
func (a *Adapter) LoadPolicy(m model.Model) error {
	var rules []*PageRule
	if err := a.db.NewSelect().Model(&rules).Order("ptype", "v0", "v1").Scan(context.Background()); err != nil {
		return fmt.Errorf("failed to load page access rules: %w", err)
	}

	for _, r := range rules {
		if len(r.Rule()) == 0 {
			continue
		}
		if err := persist.LoadPolicyArray(append([]string{r.Ptype}, r.Rule()...), m); err != nil {
			return fmt.Errorf("load rule %q: %w", r.String(), err)
		}
	}
	return nil
}

// SavePolicy replaces all stored rules with the model's rules.
func (a *Adapter) SavePolicy(m model.Model) error {
	var rules []*PageRule
	for _, sec := range []string{"p", "g"} {
		for ptype, assertion := range m[sec] {
			for _, rule := range assertion.Policy {
				rules = append(rules, NewPageRule(ptype, rule))
			}
		}
	}

	if err := a.save(true, rules...); err != nil {
		return fmt.Errorf("failed to save page access rules: %w", err)
	}
	return nil
}

// AddPolicy stores one rule.
func (a *Adapter) AddPolicy(_ string, ptype string, rule []string) error {
	if err := a.save(false, NewPageRule(ptype, rule)); err != nil {
		return fmt.Errorf("failed to add page access rule: %w", err)
	}
	return nil
}

// AddPolicies stores several rules in one transaction.
func (a *Adapter) AddPolicies(_ string, ptype string, rules [][]string) error {
	rows := make([]*PageRule, 0, len(rules))
	for _, rule := range rules {
		rows = append(rows, NewPageRule(ptype, rule))
	}
	if err := a.save(false, rows...); err != nil {
		return fmt.Errorf("failed to add page access rules: %w", err)
	}
	return nil
}

// RemovePolicy deletes one rule.
func (a *Adapter) RemovePolicy(_ string, ptype string, rule []string) error {
	if err := a.delete(NewPageRule(ptype, rule)); err != nil {
		return fmt.Errorf("failed to remove page access rule: %w", err)
	}
	return nil
}

// RemovePolicies deletes several rules.
func (a *Adapter) RemovePolicies(_ string, ptype string, rules [][]string) error {
	rows := make([]*PageRule, 0, len(rules))
	for _, rule := range rules {
		rows = append(rows, NewPageRule(ptype, rule))
	}
	if err := a.delete(rows...); err != nil {
		return fmt.Errorf("failed to remove page access rules: %w", err)
	}
	return nil
}

// RemoveFilteredPolicy deletes rules whose fields from fieldIndex on match fieldValues.
// Empty values match anything.
func (a *Adapter) RemoveFilteredPolicy(_ string, ptype string, fieldIndex int, fieldValues ...string) error {
	query := a.db.NewDelete().Model((*PageRule)(nil)).Where("ptype = ?", ptype)

	columns := []string{"v0", "v1", "v2"}
	for i, v := range fieldValues {
		col := fieldIndex + i
		if v == "" || col < 0 {
			continue
		}
		if col >= len(columns) {
			return fmt.Errorf("field index %d out of range", col)
		}
		query = query.Where("? = ?", bun.Ident(columns[col]), v)
	}

	if _, err := query.Exec(context.Background()); err != nil {
		return fmt.Errorf("failed to remove filtered page access rules: %w", err)
	}
	return nil
}

func (a *Adapter) save(truncate bool, rows ...*PageRule) error {
	return a.db.RunInTx(context.Background(), nil, func(ctx context.Context, tx bun.Tx) error {
		if truncate {
			if _, err := tx.NewDelete().Model((*PageRule)(nil)).Where("1 = 1").Exec(ctx); err != nil {
				return err
			}
		}
		for _, row := range rows {
			if _, err := tx.NewInsert().Model(row).On("CONFLICT DO NOTHING").Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

func (a *Adapter) delete(rows ...*PageRule) error {
	if len(rows) == 0 {
		return nil
	}

	q := a.db.NewDelete().Model((*PageRule)(nil))
	q.QueryBuilder().WhereGroup(" AND ", func(qb bun.QueryBuilder) bun.QueryBuilder {
		for _, row := range rows {
			qb = row.queryWhereGroup(qb)
		}
		return qb
	})
	_, err := q.Exec(context.Background())
	return err
}
