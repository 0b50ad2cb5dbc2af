package sla

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type policyDB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Policy pairs response/resolution targets with an escalation chain
// definition. Priority orders policies the way the admin screens list
// them.
type Policy struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Priority         int     `json:"priority"`
	Response         Span    `json:"response"`
	Resolution       Span    `json:"resolution"`
	OperationalHours bool    `json:"operational_hours"`
	Levels           []Level `json:"escalation_levels"`
}

// TargetFor materializes the configured target for one metric.
func (p Policy) TargetFor(m Metric) Target {
	d := p.Resolution
	if m == MetricResponse {
		d = p.Response
	}
	return Target{Metric: m, Duration: d, AppliesCalendar: p.OperationalHours}
}

// ListPolicies returns all SLA policies with their escalation levels.
func ListPolicies(ctx context.Context, db policyDB) ([]Policy, error) {
	rows, err := db.Query(ctx, `select id::text, name, priority,
               response_days, response_hours, response_mins,
               resolution_days, resolution_hours, resolution_mins,
               operational_hours
        from sla_policies order by priority`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Policy{}
	for rows.Next() {
		var p Policy
		if err := rows.Scan(&p.ID, &p.Name, &p.Priority,
			&p.Response.Days, &p.Response.Hours, &p.Response.Minutes,
			&p.Resolution.Days, &p.Resolution.Hours, &p.Resolution.Minutes,
			&p.OperationalHours); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		levels, err := listLevels(ctx, db, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Levels = levels
	}
	return out, nil
}

func listLevels(ctx context.Context, db policyDB, policyID string) ([]Level, error) {
	rows, err := db.Query(ctx, `select id::text, level_order, enabled,
               offset_days, offset_hours, offset_mins, offset_type, target
        from sla_escalation_levels where policy_id=$1 order by level_order`, policyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Level{}
	for rows.Next() {
		var l Level
		var ot string
		if err := rows.Scan(&l.ID, &l.Order, &l.Enabled,
			&l.Offset.Days, &l.Offset.Hours, &l.Offset.Minutes, &ot, &l.Target); err != nil {
			return nil, err
		}
		l.OffsetType = OffsetType(ot)
		out = append(out, l)
	}
	return out, rows.Err()
}

// InsertPolicy stores a policy and its levels, assigning IDs.
func InsertPolicy(ctx context.Context, db policyDB, p *Policy) error {
	if err := ValidateLevels(p.Levels); err != nil {
		return err
	}
	if !p.Response.Valid() || !p.Resolution.Valid() {
		return &ValidationError{Field: "targets", Msg: "response and resolution need at least one positive component"}
	}
	p.ID = uuid.NewString()
	if _, err := db.Exec(ctx, `insert into sla_policies
               (id, name, priority, response_days, response_hours, response_mins,
                resolution_days, resolution_hours, resolution_mins, operational_hours)
        values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		p.ID, p.Name, p.Priority,
		p.Response.Days, p.Response.Hours, p.Response.Minutes,
		p.Resolution.Days, p.Resolution.Hours, p.Resolution.Minutes,
		p.OperationalHours); err != nil {
		return err
	}
	for i := range p.Levels {
		l := &p.Levels[i]
		if l.ID == "" {
			l.ID = uuid.NewString()
		}
		if _, err := db.Exec(ctx, `insert into sla_escalation_levels
                       (id, policy_id, level_order, enabled, offset_days, offset_hours,
                        offset_mins, offset_type, target)
                values ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			l.ID, p.ID, l.Order, l.Enabled,
			l.Offset.Days, l.Offset.Hours, l.Offset.Minutes, string(l.OffsetType), l.Target); err != nil {
			return err
		}
	}
	return nil
}

// DefaultLevels is the four-tier template the admin screens seed new
// policies with.
func DefaultLevels() []Level {
	return []Level{
		{Order: 1, Enabled: true, Offset: Span{Hours: 2}, OffsetType: OffsetAfter, Target: "Manager"},
		{Order: 2, Enabled: false, Offset: Span{Hours: 4}, OffsetType: OffsetAfter, Target: "Senior Manager"},
		{Order: 3, Enabled: false, Offset: Span{Hours: 8}, OffsetType: OffsetAfter, Target: "Director"},
		{Order: 4, Enabled: false, Offset: Span{Days: 1}, OffsetType: OffsetAfter, Target: "Executive"},
	}
}
