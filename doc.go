// Package loom is a data-mapper persistence engine. Entities are plain
// application values tracked by a session-scoped identity map (the
// heap); a schema registry describes how each logical role maps to
// tables, columns and relations; and a unit of work turns the tracked
// changes into an ordered command sequence executed in one database
// transaction.
//
// A typical flow:
//
//	reg := schema.NewRegistry()
//	reg.Register(&schema.Definition{Role: "user", PrimaryKey: []string{"id"}, ...})
//
//	drv, err := sql.Open(dialect.Postgres, dsn)
//	...
//	sess, err := loom.NewSession(loom.Driver(drv), loom.Schema(reg))
//	...
//	u := sess.Unit()
//	u.Persist(user, true)
//	if err := u.RunE(ctx); err != nil {
//		...
//	}
//
// The unit collects registrations, expands them through each role's
// relation descriptors, diffs managed entities against their committed
// snapshots and schedules the resulting inserts, updates and deletes so
// every foreign key is satisfied when its row is written. Runs are
// all-or-nothing: any failure rolls the transaction back and leaves the
// heap exactly as it was before Run.
package loom
